package fake

import (
	"context"
	"strings"
	"sync"

	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/ai/llm"
)

// FakeLLM replies with scripted responses in order, cycling when they run
// out, and records every request.
type FakeLLM struct {
	mu        sync.Mutex
	responses []string
	calls     int
	requests  []llm.ChatRequest

	// Err, when set, is returned by every Chat call.
	Err error
}

func NewFakeLLM(responses ...string) *FakeLLM {
	if len(responses) == 0 {
		responses = []string{"Hello! Do you own your home?"}
	}
	return &FakeLLM{responses: responses}
}

func (f *FakeLLM) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	if err := ctx.Err(); err != nil {
		return llm.ChatResponse{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	req.Messages = append([]llm.Message(nil), req.Messages...)
	f.requests = append(f.requests, req)
	if f.Err != nil {
		return llm.ChatResponse{}, f.Err
	}

	reply := f.responses[f.calls%len(f.responses)]
	f.calls++

	return llm.ChatResponse{
		Message:      llm.Message{Role: llm.RoleAssistant, Content: reply},
		TokensUsed:   len(strings.Fields(reply)) + 10,
		FinishReason: "stop",
	}, nil
}

// Requests returns a copy of every request received so far.
func (f *FakeLLM) Requests() []llm.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]llm.ChatRequest(nil), f.requests...)
}

func (f *FakeLLM) Capabilities() llm.Capabilities {
	return llm.Capabilities{Model: "fake", SupportsSystemRole: true}
}
