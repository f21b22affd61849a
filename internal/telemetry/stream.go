package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"iot-console/internal/config"
)

// Handler receives stream lifecycle events. Console implements it.
type Handler interface {
	HandleOpen()
	HandleMessage(raw []byte) error
	HandleClose()
}

// Source delivers telemetry to a Handler until ctx is done or the source
// gives up.
type Source interface {
	Run(ctx context.Context, h Handler) error
}

const (
	closeWait        = time.Second
	handshakeTimeout = 10 * time.Second
)

// StreamSource reads the generator's websocket feed.
type StreamSource struct {
	url       string
	readLimit int64
	reconnect config.ReconnectConfig
	dialer    *websocket.Dialer
	logger    *slog.Logger
}

func NewStreamSource(cfg config.TelemetryConfig, logger *slog.Logger) *StreamSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamSource{
		url:       cfg.StreamURL,
		readLimit: cfg.ReadLimit,
		reconnect: cfg.Reconnect,
		dialer: &websocket.Dialer{
			HandshakeTimeout: handshakeTimeout,
		},
		logger: logger,
	}
}

// Run connects and pumps frames into h. Without reconnect enabled it returns
// after the first dial failure or disconnect; with it, it retries with
// exponential backoff until ctx is done. A ctx cancellation returns nil.
func (s *StreamSource) Run(ctx context.Context, h Handler) error {
	backoff := s.reconnect.MinBackoff
	for {
		opened, err := s.session(ctx, h)
		if ctx.Err() != nil {
			return nil
		}
		if !s.reconnect.Enabled {
			return err
		}

		if opened {
			backoff = s.reconnect.MinBackoff
		}
		s.logger.Warn("Telemetry stream lost, reconnecting", "error", err, "backoff", backoff)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = nextBackoff(backoff, s.reconnect.MaxBackoff)
	}
}

// session runs one connection from dial to close. The bool reports whether
// the dial succeeded.
func (s *StreamSource) session(ctx context.Context, h Handler) (bool, error) {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", s.url, err)
	}
	defer conn.Close()

	if s.readLimit > 0 {
		conn.SetReadLimit(s.readLimit)
	}

	h.HandleOpen()
	defer h.HandleClose()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(closeWait))
			conn.Close()
		case <-done:
		}
	}()

	for {
		msgType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return true, nil
			}
			return true, fmt.Errorf("read: %w", err)
		}
		if msgType != websocket.TextMessage {
			continue
		}
		if err := h.HandleMessage(message); err != nil {
			// Bad frames are dropped; the stream carries on.
			s.logger.Warn("Discarding stream message", "error", err)
		}
	}
}

func nextBackoff(cur, max time.Duration) time.Duration {
	next := cur * 2
	if max > 0 && next > max {
		return max
	}
	return next
}
