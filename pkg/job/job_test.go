package job

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestJob_New(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:   "valid config with ID",
			config: Config{ID: "test-job-1", RoomName: "test-room", Timeout: time.Minute},
		},
		{
			name:   "valid config without ID",
			config: Config{RoomName: "test-room"},
		},
		{
			name:    "missing room name",
			config:  Config{ID: "test-job-1"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job, err := New(ctx, tt.config)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if tt.config.ID != "" && job.ID != tt.config.ID {
				t.Errorf("expected job ID %s, got %s", tt.config.ID, job.ID)
			}
			if tt.config.ID == "" && !strings.HasPrefix(job.ID, "job_") {
				t.Errorf("generated ID %q should start with job_", job.ID)
			}
			if job.RoomName != tt.config.RoomName {
				t.Errorf("expected room name %s, got %s", tt.config.RoomName, job.RoomName)
			}
			if !job.IsActive() {
				t.Error("new job should be active")
			}
		})
	}
}

func TestJob_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := generateJobID()
		if seen[id] {
			t.Fatalf("duplicate job ID %s", id)
		}
		seen[id] = true
	}
}

func TestJob_Shutdown(t *testing.T) {
	is := is.New(t)
	job, err := New(context.Background(), Config{RoomName: "test-room"})
	is.NoErr(err)

	job.Shutdown("room empty")

	is.True(!job.IsActive())
	is.Equal(job.Wait(), context.Canceled)
	is.Equal(job.Context.Reason(), "room empty")
	is.True(strings.Contains(job.String(), "shutdown"))
}

func TestJob_Timeout(t *testing.T) {
	is := is.New(t)
	job, err := New(context.Background(), Config{RoomName: "test-room", Timeout: 20 * time.Millisecond})
	is.NoErr(err)

	is.Equal(job.Wait(), context.DeadlineExceeded)
}

func TestJob_ParentCancel(t *testing.T) {
	is := is.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	job, err := New(ctx, Config{RoomName: "test-room"})
	is.NoErr(err)

	cancel()
	is.Equal(job.Wait(), context.Canceled)
}

func TestJobContext_HooksRunOnce(t *testing.T) {
	is := is.New(t)
	jc := NewJobContext(context.Background(), 0)

	var calls atomic.Int32
	var mu sync.Mutex
	var reasons []string
	for i := 0; i < 3; i++ {
		jc.OnShutdown(func(reason string) {
			calls.Add(1)
			mu.Lock()
			reasons = append(reasons, reason)
			mu.Unlock()
		})
	}

	jc.Shutdown("first")
	jc.Shutdown("second")

	is.Equal(calls.Load(), int32(3))
	is.Equal(reasons, []string{"first", "first", "first"})
	is.True(jc.IsShutdown())
}

func TestJobContext_LateHook(t *testing.T) {
	is := is.New(t)
	jc := NewJobContext(context.Background(), 0)
	jc.Shutdown("done")

	got := make(chan string, 1)
	jc.OnShutdown(func(reason string) { got <- reason })

	select {
	case reason := <-got:
		is.Equal(reason, "done")
	case <-time.After(time.Second):
		t.Fatal("late hook was not run")
	}
}

func TestJobContext_PanickingHook(t *testing.T) {
	jc := NewJobContext(context.Background(), 0)
	jc.OnShutdown(func(string) { panic("boom") })

	jc.Shutdown("test")

	if !jc.IsShutdown() {
		t.Error("context should be cancelled even when a hook panics")
	}
}

func TestJobContext_HookTimeout(t *testing.T) {
	orig := ShutdownHookTimeout
	ShutdownHookTimeout = 20 * time.Millisecond
	t.Cleanup(func() { ShutdownHookTimeout = orig })

	release := make(chan struct{})
	defer close(release)

	jc := NewJobContext(context.Background(), 0)
	jc.OnShutdown(func(string) { <-release })

	start := time.Now()
	jc.Shutdown("test")
	if time.Since(start) > time.Second {
		t.Error("shutdown waited for a stuck hook")
	}
	if !jc.IsShutdown() {
		t.Error("context should be cancelled after hook timeout")
	}
}
