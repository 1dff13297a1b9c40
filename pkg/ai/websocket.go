package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

// DialWebsocket connects to a streaming provider, retrying transient
// failures. Handshake rejections with 4xx status (other than 429) are fatal.
func DialWebsocket(ctx context.Context, url string, header http.Header, retry RetryConfig, logger *slog.Logger) (*websocket.Conn, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var conn *websocket.Conn
	err := Retry(ctx, retry, func(attempt int) error {
		c, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
		if err == nil {
			conn = c
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		logger.Warn("websocket dial failed",
			slog.Int("attempt", attempt+1),
			slog.Any("error", err))

		if errors.Is(err, websocket.ErrBadHandshake) && resp != nil {
			msg := fmt.Sprintf("websocket handshake rejected (HTTP %d)", resp.StatusCode)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return NewFatalError(err, msg)
			}
			return NewRecoverableError(err, msg)
		}
		return NewRecoverableError(err, "websocket dial failed")
	})
	if err != nil {
		return nil, err
	}
	return conn, nil
}
