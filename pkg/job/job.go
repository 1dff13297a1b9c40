// Package job binds a bot session to a LiveKit room: lifecycle, room
// connection, media tracks and access tokens.
package job

import (
	"context"
	"fmt"
	"log/slog"
)

// New creates a Job whose context derives from parent.
func New(parent context.Context, cfg Config) (*Job, error) {
	if cfg.RoomName == "" {
		return nil, fmt.Errorf("room name is required")
	}

	id := cfg.ID
	if id == "" {
		id = generateJobID()
	}

	j := &Job{
		ID:       id,
		RoomName: cfg.RoomName,
		Context:  NewJobContext(parent, cfg.Timeout),
	}

	slog.Debug("job created",
		slog.String("job_id", id),
		slog.String("room_name", cfg.RoomName),
		slog.Duration("timeout", cfg.Timeout))
	return j, nil
}

// Shutdown ends the job with the given reason.
func (j *Job) Shutdown(reason string) {
	slog.Info("job shutting down",
		slog.String("job_id", j.ID),
		slog.String("room_name", j.RoomName),
		slog.String("reason", reason))
	j.Context.Shutdown(reason)
}

// Wait blocks until the job context is cancelled.
func (j *Job) Wait() error {
	<-j.Context.Done()
	return j.Context.Err()
}

func (j *Job) IsActive() bool {
	return !j.Context.IsShutdown()
}

func (j *Job) String() string {
	status := "active"
	if j.Context.IsShutdown() {
		status = "shutdown"
	}
	return fmt.Sprintf("Job{ID: %s, Room: %s, Status: %s}", j.ID, j.RoomName, status)
}
