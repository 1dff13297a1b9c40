// Package worker finds rooms that need a qualification bot and runs one job
// per room.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/job"
	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go"
)

const maxBackoff = 10 * time.Second

// RoomLister lists the server's active rooms. *lksdk.RoomServiceClient
// implements it.
type RoomLister interface {
	ListRooms(ctx context.Context, req *livekit.ListRoomsRequest) (*livekit.ListRoomsResponse, error)
}

// JobFunc runs a bot session in the job's room until it ends.
type JobFunc func(ctx context.Context, j *job.Job) error

type Config struct {
	Rooms   RoomLister
	Handler JobFunc

	// RoomPrefix limits dispatch to rooms whose name starts with it.
	RoomPrefix   string
	MaxJobs      int
	PollInterval time.Duration
}

type Worker struct {
	rooms        RoomLister
	handler      JobFunc
	roomPrefix   string
	maxJobs      int
	pollInterval time.Duration
	logger       *slog.Logger

	mu             sync.RWMutex
	connected      bool
	backoffAttempt int
	active         map[string]*job.Job
	cooldown       map[string]time.Time
	wg             sync.WaitGroup
}

func New(config Config, logger *slog.Logger) *Worker {
	if config.MaxJobs < 1 {
		config.MaxJobs = 1
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 2 * time.Second
	}
	return &Worker{
		rooms:        config.Rooms,
		handler:      config.Handler,
		roomPrefix:   config.RoomPrefix,
		maxJobs:      config.MaxJobs,
		pollInterval: config.PollInterval,
		logger:       logger,
		active:       make(map[string]*job.Job),
		cooldown:     make(map[string]time.Time),
	}
}

// NewRoomService returns a RoomService client for a LiveKit server URL given
// in its websocket form.
func NewRoomService(serverURL, apiKey, apiSecret string) (*lksdk.RoomServiceClient, error) {
	host, err := HTTPURL(serverURL)
	if err != nil {
		return nil, err
	}
	return lksdk.NewRoomServiceClient(host, apiKey, apiSecret), nil
}

// HTTPURL maps ws:// and wss:// to http:// and https://.
func HTTPURL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("parse LiveKit URL: %w", err)
	}
	switch u.Scheme {
	case "wss":
		u.Scheme = "https"
	case "ws":
		u.Scheme = "http"
	case "http", "https":
	default:
		return "", fmt.Errorf("unsupported LiveKit URL scheme %q", u.Scheme)
	}
	return u.String(), nil
}

// Run polls for rooms until ctx is cancelled, then shuts down every job and
// waits for them.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started",
		slog.String("room_prefix", w.roomPrefix),
		slog.Int("max_jobs", w.maxJobs),
		slog.Duration("poll_interval", w.pollInterval))

	for {
		if err := w.poll(ctx); err != nil {
			if ctx.Err() != nil {
				return w.shutdown()
			}
			w.logger.Error("room poll failed", slog.Any("error", err))
			if err := w.backoffDelay(ctx); err != nil {
				return w.shutdown()
			}
			continue
		}

		timer := time.NewTimer(w.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return w.shutdown()
		case <-timer.C:
		}
	}
}

// RunRoom serves a single named room and returns when its job ends.
func (w *Worker) RunRoom(ctx context.Context, room string) error {
	j, err := job.New(ctx, job.Config{RoomName: room})
	if err != nil {
		return err
	}
	defer j.Shutdown("session ended")
	return w.handler(j.Context.Ctx, j)
}

func (w *Worker) poll(ctx context.Context) error {
	resp, err := w.rooms.ListRooms(ctx, &livekit.ListRoomsRequest{})
	if err != nil {
		w.setConnected(false)
		return fmt.Errorf("list rooms: %w", err)
	}
	w.setConnected(true)

	for _, room := range resp.GetRooms() {
		if !w.eligible(room) {
			continue
		}
		if w.ActiveJobs() >= w.maxJobs {
			w.logger.Warn("max jobs reached, room waits",
				slog.String("room_name", room.Name),
				slog.Int("max_jobs", w.maxJobs))
			break
		}
		w.startJob(ctx, room.Name)
	}
	return nil
}

func (w *Worker) eligible(room *livekit.Room) bool {
	if room.NumParticipants == 0 || !strings.HasPrefix(room.Name, w.roomPrefix) {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.active[room.Name]; ok {
		return false
	}
	if until, ok := w.cooldown[room.Name]; ok {
		if time.Now().Before(until) {
			return false
		}
		delete(w.cooldown, room.Name)
	}
	return true
}

func (w *Worker) startJob(ctx context.Context, room string) {
	j, err := job.New(ctx, job.Config{RoomName: room})
	if err != nil {
		w.logger.Error("create job", slog.String("room_name", room), slog.Any("error", err))
		return
	}

	w.mu.Lock()
	w.active[room] = j
	w.mu.Unlock()
	w.wg.Add(1)

	w.logger.Info("job started", slog.String("job_id", j.ID), slog.String("room_name", room))

	go func() {
		defer w.wg.Done()
		err := w.handler(j.Context.Ctx, j)
		j.Shutdown("session ended")

		w.mu.Lock()
		delete(w.active, room)
		// The room still reports the departing participants for a moment.
		w.cooldown[room] = time.Now().Add(2 * w.pollInterval)
		w.mu.Unlock()

		if err != nil && ctx.Err() == nil {
			w.logger.Error("job failed", slog.String("job_id", j.ID), slog.String("room_name", room), slog.Any("error", err))
			return
		}
		w.logger.Info("job finished", slog.String("job_id", j.ID), slog.String("room_name", room))
	}()
}

// ActiveJobs returns the number of running jobs.
func (w *Worker) ActiveJobs() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.active)
}

// ActiveRooms returns the rooms being served, sorted.
func (w *Worker) ActiveRooms() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	rooms := make([]string, 0, len(w.active))
	for name := range w.active {
		rooms = append(rooms, name)
	}
	sort.Strings(rooms)
	return rooms
}

func (w *Worker) backoffDelay(ctx context.Context) error {
	w.mu.Lock()
	w.backoffAttempt++
	attempt := w.backoffAttempt
	w.mu.Unlock()

	// 1s, 2s, 4s, 8s, then 10s.
	delay := time.Duration(math.Min(math.Pow(2, float64(attempt-1)), maxBackoff.Seconds())) * time.Second

	w.logger.Info("retrying room poll",
		slog.Int("attempt", attempt),
		slog.Duration("delay", delay))

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) setConnected(connected bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if connected && !w.connected {
		w.backoffAttempt = 0
		w.logger.Info("connected to LiveKit room service")
	}
	w.connected = connected
}

// IsConnected reports whether the last room poll succeeded.
func (w *Worker) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}

func (w *Worker) shutdown() error {
	w.mu.RLock()
	jobs := make([]*job.Job, 0, len(w.active))
	for _, j := range w.active {
		jobs = append(jobs, j)
	}
	w.mu.RUnlock()

	w.logger.Info("worker shutting down", slog.Int("active_jobs", len(jobs)))
	for _, j := range jobs {
		j.Shutdown("worker shutting down")
	}
	w.wg.Wait()
	w.logger.Info("worker shutdown complete")
	return nil
}
