package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/ai"
	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/ai/llm"
	openai "github.com/sashabaranov/go-openai"
)

const (
	DefaultModel       = "gpt-4o-mini"
	DefaultTemperature = 0.2
)

// Config for the chat completion provider.
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string // empty uses api.openai.com
	Temperature float32
	MaxTokens   int
	Logger      *slog.Logger
}

// LLM implements llm.LLM against the OpenAI chat completions API.
type LLM struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	logger      *slog.Logger
}

func NewLLM(cfg Config) (*LLM, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is required (set OPENAI_API_KEY environment variable or provide api_key in config)")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &LLM{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      cfg.Logger.With(slog.String("provider", "openai"), slog.String("model", cfg.Model)),
	}, nil
}

func (o *LLM) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	start := time.Now()

	msgs := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content}
	}

	creq := openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    msgs,
		MaxTokens:   o.maxTokens,
		Temperature: o.temperature,
	}
	if req.Model != "" {
		creq.Model = req.Model
	}
	if req.MaxTokens > 0 {
		creq.MaxTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		creq.Temperature = req.Temperature
	}
	creq.Temperature = wireTemperature(creq.Temperature)

	resp, err := o.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		o.logger.Error("chat completion failed", slog.Any("error", err))
		return llm.ChatResponse{}, classify(err)
	}
	if len(resp.Choices) == 0 {
		return llm.ChatResponse{}, ai.NewRecoverableError(nil, "no chat completion choices returned")
	}

	choice := resp.Choices[0]
	o.logger.Debug("chat completion",
		slog.Int("messages", len(req.Messages)),
		slog.Int("tokens", resp.Usage.TotalTokens),
		slog.Duration("duration", time.Since(start)))

	return llm.ChatResponse{
		Message:      llm.Message{Role: llm.RoleAssistant, Content: choice.Message.Content},
		TokensUsed:   resp.Usage.TotalTokens,
		FinishReason: string(choice.FinishReason),
	}, nil
}

// wireTemperature keeps a zero temperature in the request body. The client
// omits a literal zero and the API then applies its own default of 1.
func wireTemperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}

func (o *LLM) Capabilities() llm.Capabilities {
	return llm.Capabilities{Model: o.model, SupportsSystemRole: true}
}

// classify maps API failures onto ai.ErrRecoverable and ai.ErrFatal.
func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	msg := "chat completion request failed"
	if status != 0 {
		msg = fmt.Sprintf("chat completion request failed (HTTP %d)", status)
	}
	if status == 0 || status == http.StatusTooManyRequests || status >= 500 {
		return ai.NewRecoverableError(err, msg)
	}
	return ai.NewFatalError(err, msg)
}
