// ws/manager_test.go
package ws

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pulse_errors "github.com/schoolsync/pulse/errors"
	logger "github.com/schoolsync/pulse/logging"
	"github.com/schoolsync/pulse/model"
)

func TestBackoffDelay(t *testing.T) {
	m := NewManager(Options{BackoffBase: time.Second, BackoffMax: 30 * time.Second})

	t.Run("DoublesPerFailure", func(t *testing.T) {
		assert.Equal(t, 1*time.Second, m.backoffDelay(1))
		assert.Equal(t, 2*time.Second, m.backoffDelay(2))
		assert.Equal(t, 4*time.Second, m.backoffDelay(3))
		assert.Equal(t, 8*time.Second, m.backoffDelay(4))
		assert.Equal(t, 16*time.Second, m.backoffDelay(5))
	})

	t.Run("CappedAtCeiling", func(t *testing.T) {
		assert.Equal(t, 30*time.Second, m.backoffDelay(6))
		assert.Equal(t, 30*time.Second, m.backoffDelay(7))
		assert.Equal(t, 30*time.Second, m.backoffDelay(50))
	})

	t.Run("NeverShrinksWithinARun", func(t *testing.T) {
		previous := time.Duration(0)
		for failures := 1; failures <= 10; failures++ {
			delay := m.backoffDelay(failures)
			assert.GreaterOrEqual(t, delay, previous)
			previous = delay
		}
	})

	t.Run("ZeroFailuresTreatedAsFirst", func(t *testing.T) {
		assert.Equal(t, 1*time.Second, m.backoffDelay(0))
	})
}

func TestGracePeriodResetsBackoffRun(t *testing.T) {
	logger.InitTestLogger()

	t.Run("StableConnectionResetsRun", func(t *testing.T) {
		m := NewManager(Options{BackoffBase: time.Hour, BackoffMax: 2 * time.Hour, GracePeriod: 10 * time.Second})
		m.enabled = true
		m.failures = 5
		m.connectedAt = time.Now().Add(-time.Minute)
		defer m.Close()

		m.handleDisconnect(m.gen, errors.New("peer went away"))

		assert.Equal(t, 1, m.failures)
		assert.Equal(t, StateReconnecting, m.State())
	})

	t.Run("FlappingConnectionKeepsCounting", func(t *testing.T) {
		m := NewManager(Options{BackoffBase: time.Hour, BackoffMax: 2 * time.Hour, GracePeriod: 10 * time.Second})
		m.enabled = true
		m.failures = 2
		m.connectedAt = time.Now()
		defer m.Close()

		m.handleDisconnect(m.gen, errors.New("peer went away"))

		assert.Equal(t, 3, m.failures)
		assert.Equal(t, StateReconnecting, m.State())
	})

	t.Run("StaleGenerationIgnored", func(t *testing.T) {
		m := NewManager(Options{})
		m.enabled = true
		m.failures = 2
		m.state = StateConnected

		m.handleDisconnect(m.gen+1, errors.New("late read error"))

		assert.Equal(t, 2, m.failures)
		assert.Equal(t, StateConnected, m.State())
	})
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestManagerDeliversFrames(t *testing.T) {
	logger.InitTestLogger()
	upgrader := websocket.Upgrader{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		conn.WriteJSON(model.Message{Type: model.MessageTypeNotification, Payload: []byte(`{"id":"evt-1","type":"incident","action":"create"}`)})
		conn.WriteMessage(websocket.TextMessage, []byte(`{not json`))
		conn.WriteJSON(model.Message{Type: model.MessageTypeNotification, Payload: []byte(`{"id":"evt-2","type":"incident","action":"update"}`)})

		// Hold the connection until the client hangs up.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	received := make(chan model.Message, 4)
	m := NewManager(Options{URL: wsURL(server), BackoffBase: 10 * time.Millisecond})
	m.Open(Handlers{OnMessage: func(msg model.Message) { received <- msg }})
	defer m.Close()

	var first, second model.Message
	select {
	case first = <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("first frame never arrived")
	}
	select {
	case second = <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("frame after the malformed one never arrived, connection died")
	}

	event, err := first.Notification()
	require.NoError(t, err)
	assert.Equal(t, "evt-1", event.ID)

	event, err = second.Notification()
	require.NoError(t, err)
	assert.Equal(t, "evt-2", event.ID)
}

func TestManagerReconnects(t *testing.T) {
	logger.InitTestLogger()
	upgrader := websocket.Upgrader{}

	var dials atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if dials.Add(1) == 1 {
			// First connection is dropped immediately to force a reconnect.
			conn.Close()
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	connects := make(chan struct{}, 4)
	m := NewManager(Options{URL: wsURL(server), BackoffBase: 10 * time.Millisecond, BackoffMax: 100 * time.Millisecond})
	m.Open(Handlers{OnConnect: func() { connects <- struct{}{} }})
	defer m.Close()

	for i := 0; i < 2; i++ {
		select {
		case <-connects:
		case <-time.After(2 * time.Second):
			t.Fatalf("connection %d never established", i+1)
		}
	}
	assert.GreaterOrEqual(t, dials.Load(), int32(2))
	assert.Eventually(t, m.IsConnected, 2*time.Second, 10*time.Millisecond)
}

func TestManagerOpenAndClose(t *testing.T) {
	logger.InitTestLogger()
	upgrader := websocket.Upgrader{}

	var dials atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		dials.Add(1)
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	t.Run("OpenWhileEnabledIsNoop", func(t *testing.T) {
		m := NewManager(Options{URL: wsURL(server), BackoffBase: 10 * time.Millisecond})
		m.Open(Handlers{})
		m.Open(Handlers{})
		defer m.Close()

		assert.Eventually(t, m.IsConnected, 2*time.Second, 10*time.Millisecond)
		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, int32(1), dials.Load())
	})

	t.Run("CloseCancelsPendingReconnect", func(t *testing.T) {
		dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer dead.Close()

		m := NewManager(Options{URL: wsURL(dead), BackoffBase: 20 * time.Millisecond, BackoffMax: 100 * time.Millisecond})
		m.Open(Handlers{})

		assert.Eventually(t, func() bool { return m.State() == StateReconnecting }, 2*time.Second, 5*time.Millisecond)
		m.Close()

		assert.Equal(t, StateDisconnected, m.State())
		time.Sleep(200 * time.Millisecond)
		assert.Equal(t, StateDisconnected, m.State())
	})
}

func TestHeartbeatTimeoutForcesReconnect(t *testing.T) {
	logger.InitTestLogger()
	upgrader := websocket.Upgrader{}

	// The server completes the handshake and then goes silent: it never
	// reads, so control pings are never answered and no frames arrive.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		time.Sleep(500 * time.Millisecond)
	}))
	defer server.Close()

	connects := make(chan struct{}, 8)
	m := NewManager(Options{
		URL:          wsURL(server),
		BackoffBase:  10 * time.Millisecond,
		BackoffMax:   50 * time.Millisecond,
		PingInterval: 25 * time.Millisecond,
		PongTimeout:  100 * time.Millisecond,
	})
	m.Open(Handlers{OnConnect: func() { connects <- struct{}{} }})
	defer m.Close()

	for i := 0; i < 2; i++ {
		select {
		case <-connects:
		case <-time.After(2 * time.Second):
			t.Fatalf("connection %d never established, liveness timeout did not force a reconnect", i+1)
		}
	}
}

func TestHandshakeRejectionSurfacedToOwner(t *testing.T) {
	logger.InitTestLogger()

	var attempts atomic.Int32
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer dead.Close()

	failures := make(chan error, 1)
	m := NewManager(Options{URL: wsURL(dead), BackoffBase: 200 * time.Millisecond})
	m.Open(Handlers{OnError: func(err error) {
		m.Close()
		failures <- err
	}})

	select {
	case err := <-failures:
		assert.ErrorIs(t, err, pulse_errors.ErrHandshakeRejected)
	case <-time.After(2 * time.Second):
		t.Fatal("handshake rejection never reached the owner")
	}

	// Close from the error handler cancels the retry loop.
	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, int32(1), attempts.Load())
	assert.Equal(t, StateDisconnected, m.State())
}

func TestReopenDeliversToNewConsumerOnly(t *testing.T) {
	logger.InitTestLogger()
	upgrader := websocket.Upgrader{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteJSON(model.Message{Type: model.MessageTypeNotification, Payload: []byte(`{"id":"evt-1","type":"incident","action":"create"}`)})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	first := make(chan model.Message, 4)
	m := NewManager(Options{URL: wsURL(server), BackoffBase: 10 * time.Millisecond})
	m.Open(Handlers{OnMessage: func(msg model.Message) { first <- msg }})

	select {
	case <-first:
	case <-time.After(2 * time.Second):
		t.Fatal("frame never arrived on the first consumer")
	}
	m.Close()

	second := make(chan model.Message, 4)
	m.Open(Handlers{OnMessage: func(msg model.Message) { second <- msg }})
	defer m.Close()

	select {
	case <-second:
	case <-time.After(2 * time.Second):
		t.Fatal("frame never arrived on the replacement consumer")
	}
	assert.Empty(t, first, "retired consumer must not receive frames after reopen")
}
