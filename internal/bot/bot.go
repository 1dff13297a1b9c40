// Package bot turns a bot type into a ready-to-run Qualifier.
package bot

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Hash-if-vs/Qualifier-voice-bot/internal/config"
	"github.com/Hash-if-vs/Qualifier-voice-bot/internal/prompt"
)

const (
	HomeRenovation = "home_renovation"
	LoanQualifier  = "loan_qualifier"
	DefaultBotType = config.DefaultBotType
)

// Qualifier is one configured qualification script. Variants differ only in
// Config.
type Qualifier struct {
	BotType      string
	Config       *config.BotConfig
	Instructions string
}

// Replier asks the running conversation for an assistant turn.
type Replier interface {
	GenerateReply(ctx context.Context, userInput string) error
}

// OnEnter requests the opening turn. The empty utterance adds nothing to the
// history; the model speaks the greeting on its own.
func (q *Qualifier) OnEnter(ctx context.Context, r Replier) error {
	return r.GenerateReply(ctx, "")
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithFallback makes unknown bot types resolve to botType instead of failing.
func WithFallback(botType string) Option {
	return func(d *Dispatcher) { d.fallback = botType }
}

// WithLogger sets the logger used for dispatch decisions.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// Dispatcher turns a bot type into a ready Qualifier.
type Dispatcher struct {
	src      prompt.ConfigSource
	renderer *prompt.Renderer
	fallback string
	logger   *slog.Logger
}

// NewDispatcher reads bot configs from src and renders prompts with renderer.
func NewDispatcher(src prompt.ConfigSource, renderer *prompt.Renderer, opts ...Option) *Dispatcher {
	d := &Dispatcher{src: src, renderer: renderer, logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch builds the Qualifier for botType. An unknown type fails with a
// *config.ConfigurationError unless a fallback was configured.
func (d *Dispatcher) Dispatch(botType string) (*Qualifier, error) {
	cfg, err := d.src.BotConfig(botType)
	if err != nil {
		if d.fallback == "" || d.fallback == botType || !isUnknownBotType(err) {
			return nil, err
		}
		d.logger.Warn("unknown bot type, using fallback",
			slog.String("bot_type", botType),
			slog.String("fallback", d.fallback))
		botType = d.fallback
		if cfg, err = d.src.BotConfig(botType); err != nil {
			return nil, err
		}
	}

	instructions, err := prompt.BotPrompt(d.src, d.renderer, botType)
	if err != nil {
		return nil, err
	}

	d.logger.Info("bot dispatched",
		slog.String("bot_type", botType),
		slog.Int("questions", len(cfg.Questions)))
	return &Qualifier{BotType: botType, Config: cfg, Instructions: instructions}, nil
}

func isUnknownBotType(err error) bool {
	var ce *config.ConfigurationError
	return errors.As(err, &ce) && ce.Kind == config.KindUnknownBotType
}
