// ws/manager.go
package ws

import (
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	pulse_errors "github.com/schoolsync/pulse/errors"
	logger "github.com/schoolsync/pulse/logging"
	"github.com/schoolsync/pulse/metrics"
	"github.com/schoolsync/pulse/model"
)

const writeWait = 10 * time.Second

// State is the connection manager's lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Options tunes the connection, heartbeat and reconnection policy.
type Options struct {
	URL              string
	Token            string
	BackoffBase      time.Duration
	BackoffMax       time.Duration
	GracePeriod      time.Duration
	PingInterval     time.Duration
	PongTimeout      time.Duration
	HandshakeTimeout time.Duration
}

func (o *Options) withDefaults() {
	if o.BackoffBase <= 0 {
		o.BackoffBase = time.Second
	}
	if o.BackoffMax < o.BackoffBase {
		o.BackoffMax = 30 * time.Second
	}
	if o.GracePeriod <= 0 {
		o.GracePeriod = 10 * time.Second
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 25 * time.Second
	}
	if o.PongTimeout <= 0 {
		o.PongTimeout = 60 * time.Second
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 10 * time.Second
	}
}

// Handlers receive decoded frames and lifecycle transitions. OnMessage runs
// on the read loop and must not block it. OnError reports failed connection
// attempts; on ErrHandshakeRejected the credentials are bad and the owner
// should Close the manager rather than let it retry.
type Handlers struct {
	OnMessage    func(model.Message)
	OnConnect    func()
	OnDisconnect func()
	OnError      func(error)
}

// Manager owns the single logical stream connection for a session. It dials,
// decodes frames into envelopes, sends heartbeats, and reconnects with
// bounded backoff until Close disables it.
type Manager struct {
	opts     Options
	handlers Handlers

	mu             sync.Mutex
	state          State
	enabled        bool
	conn           *websocket.Conn
	connDone       chan struct{}
	reconnectTimer *time.Timer
	failures       int
	connectedAt    time.Time
	gen            uint64
}

func NewManager(opts Options) *Manager {
	opts.withDefaults()
	return &Manager{opts: opts, state: StateDisconnected}
}

// Open starts the connection lifecycle. Calling it while the manager is
// already enabled is a no-op.
func (m *Manager) Open(handlers Handlers) {
	m.mu.Lock()
	if m.enabled {
		m.mu.Unlock()
		return
	}
	m.enabled = true
	m.handlers = handlers
	m.failures = 0
	m.setState(StateConnecting)
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	go m.connect(gen)
}

// Close disables the manager, tears down the transport and cancels any
// pending reconnect timer. Callbacks scheduled before Close become no-ops.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.enabled = false
	m.gen++
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	m.closeConnLocked()
	m.setState(StateDisconnected)
}

// IsConnected reports whether the stream is currently established.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateConnected
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) connect(gen uint64) {
	header := http.Header{}
	if m.opts.Token != "" {
		header.Set("Authorization", "Bearer "+m.opts.Token)
	}

	dialer := websocket.Dialer{HandshakeTimeout: m.opts.HandshakeTimeout}
	conn, resp, err := dialer.Dial(m.opts.URL, header)

	m.mu.Lock()
	if !m.enabled || gen != m.gen {
		m.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}

	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			err = pulse_errors.ErrHandshakeRejected
		}
		logger.Warn("Stream handshake failed",
			zap.Error(err),
			zap.Int("status", status),
			zap.String("url", m.opts.URL))
		m.failures++
		m.setState(StateReconnecting)
		m.scheduleReconnectLocked()
		onError := m.handlers.OnError
		m.mu.Unlock()

		if onError != nil {
			onError(err)
		}
		return
	}

	m.conn = conn
	m.connDone = make(chan struct{})
	m.connectedAt = time.Now()
	m.setState(StateConnected)
	metrics.ConnectionState.Set(1)
	onConnect := m.handlers.OnConnect
	onMessage := m.handlers.OnMessage
	done := m.connDone
	m.mu.Unlock()

	logger.Info("Stream connected", zap.String("url", m.opts.URL))
	if onConnect != nil {
		onConnect()
	}

	go m.pingLoop(conn, done)
	m.readLoop(conn, gen, onMessage)
}

// readLoop delivers frames to the onMessage handler snapshotted at connect
// time, so a loop draining after Close never reaches handlers installed by a
// later Open.
func (m *Manager) readLoop(conn *websocket.Conn, gen uint64, onMessage func(model.Message)) {
	conn.SetReadDeadline(time.Now().Add(m.opts.PongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(m.opts.PongTimeout))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.handleDisconnect(gen, err)
			return
		}
		conn.SetReadDeadline(time.Now().Add(m.opts.PongTimeout))

		var msg model.Message
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
			if err == nil {
				err = pulse_errors.ErrMalformedFrame
			}
			metrics.MalformedFrames.Inc()
			logger.Warn("Dropping malformed stream frame", zap.Error(err))
			continue
		}

		switch msg.Type {
		case model.MessageTypePing:
			// App-level heartbeat from the peer; reciprocate.
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(model.Message{Type: model.MessageTypePong}); err != nil {
				logger.Warn("Failed to answer stream ping", zap.Error(err))
			}
		case model.MessageTypePong:
			// Liveness already extended above.
		default:
			if onMessage != nil {
				onMessage(msg)
			}
		}
	}
}

func (m *Manager) pingLoop(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(m.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (m *Manager) handleDisconnect(gen uint64, cause error) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}

	m.closeConnLocked()
	metrics.ConnectionState.Set(0)

	if netErr, ok := cause.(net.Error); ok && netErr.Timeout() {
		metrics.HeartbeatTimeouts.Inc()
		logger.Warn("Stream heartbeat timed out, forcing reconnect")
	} else {
		logger.Warn("Stream disconnected", zap.Error(cause))
	}

	onDisconnect := m.handlers.OnDisconnect

	if !m.enabled {
		m.setState(StateDisconnected)
		m.mu.Unlock()
		if onDisconnect != nil {
			onDisconnect()
		}
		return
	}

	// A connection that survived the grace period resets the backoff run.
	if time.Since(m.connectedAt) >= m.opts.GracePeriod {
		m.failures = 1
	} else {
		m.failures++
	}
	m.setState(StateReconnecting)
	m.scheduleReconnectLocked()
	m.mu.Unlock()

	if onDisconnect != nil {
		onDisconnect()
	}
}

// scheduleReconnectLocked arms the backoff timer. Caller holds the lock.
func (m *Manager) scheduleReconnectLocked() {
	delay := m.backoffDelay(m.failures)
	metrics.ReconnectAttempts.Inc()
	logger.Info("Scheduling stream reconnect",
		zap.Duration("delay", delay),
		zap.Int("failures", m.failures))

	m.reconnectTimer = time.AfterFunc(delay, func() {
		m.mu.Lock()
		if !m.enabled {
			m.mu.Unlock()
			return
		}
		m.reconnectTimer = nil
		m.setState(StateConnecting)
		m.gen++
		gen := m.gen
		m.mu.Unlock()

		m.connect(gen)
	})
}

// backoffDelay doubles per consecutive failure, bounded by BackoffMax.
func (m *Manager) backoffDelay(failures int) time.Duration {
	if failures < 1 {
		failures = 1
	}
	delay := m.opts.BackoffBase
	for i := 1; i < failures; i++ {
		delay *= 2
		if delay >= m.opts.BackoffMax {
			return m.opts.BackoffMax
		}
	}
	if delay > m.opts.BackoffMax {
		return m.opts.BackoffMax
	}
	return delay
}

// closeConnLocked releases the transport. Caller holds the lock.
func (m *Manager) closeConnLocked() {
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	if m.connDone != nil {
		close(m.connDone)
		m.connDone = nil
	}
	if m.state == StateConnected {
		metrics.ConnectionState.Set(0)
	}
}

func (m *Manager) setState(s State) {
	if m.state == s {
		return
	}
	logger.Debug("Stream state transition",
		zap.String("from", m.state.String()),
		zap.String("to", s.String()))
	m.state = s
}
