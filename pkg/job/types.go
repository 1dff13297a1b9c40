package job

import (
	"context"
	"sync"
	"time"
)

// Job is one bot session bound to a room.
type Job struct {
	ID       string
	RoomName string

	// Context is cancelled when the job ends.
	Context *JobContext
}

// JobContext manages the lifecycle and cleanup of a job.
type JobContext struct {
	Ctx context.Context

	cancel        context.CancelFunc
	mu            sync.Mutex
	shutdownHooks []func(string)
	shutdown      bool
	reason        string
}

// Config contains configuration options for creating a new Job.
type Config struct {
	// ID for the job; a random one is generated when empty.
	ID string

	RoomName string

	// Timeout bounds the whole job. Zero means no limit.
	Timeout time.Duration
}
