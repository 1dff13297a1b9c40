package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Hash-if-vs/Qualifier-voice-bot/internal/config"
	"github.com/Hash-if-vs/Qualifier-voice-bot/internal/health"
	"github.com/Hash-if-vs/Qualifier-voice-bot/internal/worker"
	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/version"
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Serve qualification calls in LiveKit rooms",
	Long: `start polls the LiveKit server for rooms with callers and runs one bot
session per room. With --room it serves that single room and exits when the
call ends.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStart(cmd.Context(), cur)
	},
}

var devCmd = &cobra.Command{
	Use:   "dev",
	Short: "Like start, with colored debug logging",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStart(cmd.Context(), cur)
	},
}

func runStart(ctx context.Context, a *app) error {
	if err := config.ValidateEnvironment(); err != nil {
		return err
	}

	runner := a.runner()
	// Fail on configuration mistakes before the first caller arrives.
	if _, err := runner.Prepare(); err != nil {
		return err
	}

	rooms, err := worker.NewRoomService(runner.LiveKit.URL, runner.LiveKit.APIKey, runner.LiveKit.APISecret)
	if err != nil {
		return err
	}

	s := a.settings
	w := worker.New(worker.Config{
		Rooms:        rooms,
		Handler:      runner.RunJob,
		RoomPrefix:   s.RoomPrefix,
		MaxJobs:      s.MaxJobs,
		PollInterval: s.PollInterval,
	}, a.logger)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a.logger.Info("starting",
		slog.String("service", version.Name),
		slog.String("version", version.Version),
		slog.String("commit", version.GitCommit),
		slog.String("bot_type", s.BotType),
		slog.String("room", s.Room),
		slog.Int("max_jobs", s.MaxJobs))

	checks := []health.ReadyFunc{configLoaded(a.store)}
	if s.Room == "" {
		checks = append(checks, func() error {
			if !w.IsConnected() {
				return errors.New("room service unreachable")
			}
			return nil
		})
	}

	ln, err := health.Listen(s.HealthAddr)
	if err != nil {
		return err
	}
	handler := health.NewHandler(a.store, a.logger, checks...)
	serve := func(ctx context.Context) error { return health.ServeListener(ctx, ln, handler) }

	run := w.Run
	if s.Room != "" {
		run = func(ctx context.Context) error { return w.RunRoom(ctx, s.Room) }
	}

	err = runWithHealth(ctx, run, serve, a.logger)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// runWithHealth runs the worker beside the health server. Whichever stops
// first stops the other; a failed health server fails the process.
func runWithHealth(ctx context.Context, run, serve func(context.Context) error, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	healthErr := make(chan error, 1)
	go func() { healthErr <- serve(ctx) }()
	runErr := make(chan error, 1)
	go func() { runErr <- run(ctx) }()

	select {
	case err := <-runErr:
		cancel()
		if herr := <-healthErr; herr != nil {
			logger.Error("health server failed", slog.Any("error", herr))
		}
		return err
	case herr := <-healthErr:
		cancel()
		err := <-runErr
		if herr != nil {
			return fmt.Errorf("health server: %w", herr)
		}
		return err
	}
}

func configLoaded(store *config.Store) health.ReadyFunc {
	return func() error {
		_, err := store.File()
		return err
	}
}

func init() {
	for _, c := range []*cobra.Command{startCmd, devCmd} {
		c.Flags().String("room", "", "serve only this room (env QUALIFIER_ROOM)")
		c.Flags().String("room-prefix", "", "only serve rooms whose name starts with this (env QUALIFIER_ROOM_PREFIX)")
		c.Flags().Int("max-jobs", 4, "concurrent sessions (env QUALIFIER_MAX_JOBS)")
		c.Flags().Duration("poll-interval", 2*time.Second, "room poll interval (env QUALIFIER_POLL_INTERVAL)")
		c.Flags().String("health-addr", ":8081", "health server listen address (env QUALIFIER_HEALTH_ADDR)")
		c.Flags().String("audio-codec", "opus", "codec of the bot voice track, opus or pcmu (env QUALIFIER_AUDIO_CODEC)")
	}
}
