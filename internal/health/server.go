// Package health serves liveness, readiness and process metrics over HTTP.
package health

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/version"
	"github.com/gin-gonic/gin"
)

// BotLister reports the configured bot types.
type BotLister interface {
	BotTypes() ([]string, error)
}

// ReadyFunc returns nil when the process can serve calls.
type ReadyFunc func() error

// Handler holds the endpoints' dependencies.
type Handler struct {
	bots   BotLister
	checks []ReadyFunc
	logger *slog.Logger
}

// NewHandler returns a Handler. Every check must pass for /readyz to report
// ready.
func NewHandler(bots BotLister, logger *slog.Logger, checks ...ReadyFunc) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{bots: bots, checks: checks, logger: logger}
}

// Router builds the gin engine.
func (h *Handler) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), h.accessLog)

	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
	r.GET("/bots", h.Bots)
	r.GET("/version", h.Version)
	r.GET("/debug/vars", gin.WrapH(expvar.Handler()))
	return r
}

func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) Readyz(c *gin.Context) {
	for _, check := range h.checks {
		if err := check(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Bots lists the configured bot types in sorted order.
func (h *Handler) Bots(c *gin.Context) {
	types, err := h.bots.BotTypes()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"bots": types})
}

func (h *Handler) Version(c *gin.Context) {
	c.JSON(http.StatusOK, version.Get())
}

func (h *Handler) accessLog(c *gin.Context) {
	start := time.Now()
	c.Next()
	h.logger.Debug("http request",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.Int("status", c.Writer.Status()),
		slog.Duration("took", time.Since(start)))
}

// Listen binds addr so a busy port is reported before anything else starts.
func Listen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("health server: %w", err)
	}
	return ln, nil
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, addr string, h *Handler) error {
	ln, err := Listen(addr)
	if err != nil {
		return err
	}
	return ServeListener(ctx, ln, h)
}

// ServeListener is Serve on an already bound listener, which it closes.
func ServeListener(ctx context.Context, ln net.Listener, h *Handler) error {
	srv := &http.Server{
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		h.logger.Info("health server listening", slog.String("addr", ln.Addr().String()))
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
