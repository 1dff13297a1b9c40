package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/agent"
	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/job"
)

// Converse runs a text conversation. Each non-empty line of in is a caller
// turn and every bot utterance is written to out. It returns when in is
// exhausted or the job ends.
func (s *Session) Converse(ctx context.Context, j *job.Job, in io.Reader, out io.Writer) error {
	a, err := s.NewAgent(IO{OnTranscript: func(t agent.Transcript) {
		if t.Speaker == agent.SpeakerAgent {
			fmt.Fprintf(out, "bot> %s\n", t.Text)
		}
	}})
	if err != nil {
		return err
	}

	errc := make(chan error, 1)
	go func() { errc <- a.Start(ctx, j) }()

	if err := s.Qualifier.OnEnter(ctx, a); err != nil && !errors.Is(err, agent.ErrClosed) {
		s.logger.Warn("opening turn failed", slog.Any("error", err))
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-a.Done():
				return
			}
		}
	}()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				a.Close()
				return ended(<-errc)
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if err := a.GenerateReply(ctx, line); err != nil && !errors.Is(err, agent.ErrClosed) {
				s.logger.Warn("reply failed", slog.Any("error", err))
			}
		case err := <-errc:
			return ended(err)
		}
	}
}

func ended(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
