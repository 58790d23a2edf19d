// service/hub_service.go
package service

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	logger "github.com/schoolsync/pulse/logging"
	"github.com/schoolsync/pulse/metrics"
	"github.com/schoolsync/pulse/model"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 32
)

// HubClient is one connected stream consumer with its own buffered outgoing
// channel so a slow reader never blocks the broadcast path.
type HubClient struct {
	conn *websocket.Conn
	send chan model.Message
}

// HubService fans stream frames out to every registered WebSocket client.
type HubService struct {
	mu      sync.RWMutex
	clients map[*HubClient]bool
}

func NewHubService() *HubService {
	return &HubService{clients: make(map[*HubClient]bool)}
}

// Serve owns the connection until it closes: registers the client, pumps
// outgoing frames and answers heartbeats.
func (h *HubService) Serve(conn *websocket.Conn) {
	client := &HubClient{conn: conn, send: make(chan model.Message, sendBuffer)}

	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()
	metrics.RelayClients.Inc()

	go h.writePump(client)
	h.readPump(client)

	h.mu.Lock()
	delete(h.clients, client)
	h.mu.Unlock()
	metrics.RelayClients.Dec()

	close(client.send)
	conn.Close()
}

// Broadcast fans a frame out to all clients, dropping it for any client
// whose buffer is full.
func (h *HubService) Broadcast(msg model.Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
			metrics.RelayDroppedFrames.Inc()
			logger.Warn("Dropping frame for slow stream client")
		}
	}
}

// ClientCount returns the number of registered clients.
func (h *HubService) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *HubService) readPump(client *HubClient) {
	conn := client.conn
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("Stream client read failed", zap.Error(err))
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg model.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			// One bad inbound frame must not kill the connection.
			continue
		}

		// App-level heartbeat; control pings are answered by the transport.
		if msg.Type == model.MessageTypePing {
			select {
			case client.send <- model.Message{Type: model.MessageTypePong}:
			default:
			}
		}
	}
}

func (h *HubService) writePump(client *HubClient) {
	conn := client.conn
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-client.send:
			if !ok {
				conn.WriteControl(websocket.CloseMessage, nil, time.Now().Add(writeWait))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				logger.Debug("Stream client write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
