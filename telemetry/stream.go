package telemetry

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait bounds how long a single frame write may take before the
	// subscriber is considered dead.
	writeWait = 10 * time.Second

	// DefaultBufferSize is the per-subscriber backlog of pending snapshots.
	DefaultBufferSize = 64
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// StreamConfig holds the configuration for a StreamServer.
type StreamConfig struct {
	Logger Logger
	// BufferSize is the per-subscriber snapshot backlog. Subscribers that fall
	// further behind are disconnected. Defaults to DefaultBufferSize.
	BufferSize int
}

func (c *StreamConfig) validate() error {
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	if c.BufferSize < 0 {
		return errors.New("config: BufferSize must not be negative")
	}
	return nil
}

// StreamServer fans simulation snapshots out to websocket subscribers. The
// simulation loop stays synchronous: Broadcast never blocks on a slow
// subscriber, it drops the subscriber instead.
type StreamServer struct {
	logger     Logger
	bufferSize int
	upgrader   websocket.Upgrader

	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
	closed      bool
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

// NewStreamServer creates a stream server from the given configuration.
func NewStreamServer(cfg StreamConfig) (*StreamServer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	return &StreamServer{
		logger:      cfg.Logger,
		bufferSize:  cfg.BufferSize,
		subscribers: make(map[*subscriber]struct{}),
	}, nil
}

// Handler returns the HTTP handler that upgrades connections and subscribes
// them to the snapshot stream.
func (s *StreamServer) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
			return
		}

		sub := &subscriber{conn: conn, send: make(chan []byte, s.bufferSize)}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.subscribers[sub] = struct{}{}
		s.mu.Unlock()
		s.logger.Debug("telemetry subscriber connected", "remote", r.RemoteAddr)

		go s.writeLoop(sub)
		s.readLoop(sub)
	})
}

// Broadcast encodes the snapshot once and queues it to every subscriber,
// dropping subscribers whose backlog is full.
func (s *StreamServer) Broadcast(state *State) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for sub := range s.subscribers {
		select {
		case sub.send <- payload:
		default:
			s.logger.Warn("dropping slow telemetry subscriber")
			s.dropLocked(sub)
		}
	}
	return nil
}

// Close disconnects every subscriber and rejects future connections.
func (s *StreamServer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for sub := range s.subscribers {
		s.dropLocked(sub)
	}
}

func (s *StreamServer) writeLoop(sub *subscriber) {
	for payload := range sub.send {
		sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := sub.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			s.drop(sub)
			return
		}
	}
	sub.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
	sub.conn.Close()
}

// readLoop consumes (and discards) client frames so closes are detected.
func (s *StreamServer) readLoop(sub *subscriber) {
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			s.drop(sub)
			return
		}
	}
}

func (s *StreamServer) drop(sub *subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropLocked(sub)
}

// dropLocked must be called with s.mu held.
func (s *StreamServer) dropLocked(sub *subscriber) {
	if _, ok := s.subscribers[sub]; !ok {
		return
	}
	delete(s.subscribers, sub)
	close(sub.send)
}
