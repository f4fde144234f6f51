package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// WebSocketSink pushes progress records as JSON text frames to an external
// collector. The connection is dialed lazily on first Emit and redialed after
// a write failure; records emitted while the collector is unreachable are
// dropped and logged.
type WebSocketSink struct {
	url         string
	logger      *zap.Logger
	dialTimeout time.Duration
	writeLimit  time.Duration

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// NewWebSocketSink creates a sink targeting the given ws:// or wss:// URL.
func NewWebSocketSink(url string, logger *zap.Logger) *WebSocketSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocketSink{
		url:         url,
		logger:      logger.With(zap.String("component", "notify_ws_sink")),
		dialTimeout: 5 * time.Second,
		writeLimit:  2 * time.Second,
	}
}

// Emit implements Sink. 写失败时丢弃记录并重置连接。
func (s *WebSocketSink) Emit(p Progress) {
	data, err := json.Marshal(p)
	if err != nil {
		s.logger.Warn("marshal progress failed", zap.Error(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	if s.conn == nil {
		if err := s.dialLocked(); err != nil {
			s.logger.Warn("dial collector failed, dropping record",
				zap.String("url", s.url), zap.Error(err))
			return
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.writeLimit)
	defer cancel()
	if err := s.conn.Write(ctx, websocket.MessageText, data); err != nil {
		s.logger.Warn("write progress failed, dropping record", zap.Error(err))
		s.conn.Close(websocket.StatusInternalError, "write failed")
		s.conn = nil
	}
}

func (s *WebSocketSink) dialLocked() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.dialTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("websocket dial %s: %w", s.url, err)
	}
	s.conn = conn
	return nil
}

// Close tears the connection down. Subsequent Emit calls are no-ops.
func (s *WebSocketSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.conn != nil {
		err := s.conn.Close(websocket.StatusNormalClosure, "sink closed")
		s.conn = nil
		return err
	}
	return nil
}
