package session

import (
	"context"
	"log/slog"

	"github.com/Hash-if-vs/Qualifier-voice-bot/internal/bot"
	"github.com/Hash-if-vs/Qualifier-voice-bot/internal/config"
	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/job"
)

// Runner serves room jobs for one bot type. RunJob fits worker.JobFunc.
type Runner struct {
	Store      *config.Store
	Dispatcher *bot.Dispatcher
	Assembler  *Assembler
	BotType    string
	LiveKit    LiveKit
	Logger     *slog.Logger
}

// Qualify dispatches the bot type and returns it with the file defaults.
func (r *Runner) Qualify() (*bot.Qualifier, config.Defaults, error) {
	q, err := r.Dispatcher.Dispatch(r.BotType)
	if err != nil {
		return nil, config.Defaults{}, err
	}
	defaults, err := r.Store.Defaults()
	if err != nil {
		return nil, config.Defaults{}, err
	}
	return q, defaults, nil
}

// Prepare dispatches the bot type and builds its providers.
func (r *Runner) Prepare() (*Session, error) {
	q, defaults, err := r.Qualify()
	if err != nil {
		return nil, err
	}
	c, err := r.Assembler.Build(q, defaults)
	if err != nil {
		return nil, err
	}
	return New(q, c, r.Logger), nil
}

func (r *Runner) RunJob(ctx context.Context, j *job.Job) error {
	s, err := r.Prepare()
	if err != nil {
		return err
	}
	s.logger = s.logger.With(slog.String("job_id", j.ID), slog.String("room", j.RoomName))
	s.logger.Info("session starting")
	defer s.logger.Info("session ended", slog.String("reason", j.Context.Reason()))
	return s.RunRoom(ctx, j, r.LiveKit)
}
