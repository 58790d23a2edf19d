// controller/stream_controller.go
package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	logger "github.com/schoolsync/pulse/logging"
	"github.com/schoolsync/pulse/service"
	"github.com/schoolsync/pulse/util"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The relay sits behind the dashboard's own origin checks.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamController upgrades authenticated clients onto the event stream.
type StreamController struct {
	hub *service.HubService
}

func NewStreamController(hub *service.HubService) *StreamController {
	return &StreamController{hub: hub}
}

func (sc *StreamController) RegisterRoutes(r gin.IRouter) {
	r.GET("/ws", sc.Connect)
}

// Connect upgrades the request and hands the connection to the hub.
func (sc *StreamController) Connect(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		logger.Warn("Stream upgrade failed", zap.Error(err))
		return
	}

	userID, _ := util.GetUserIDFromContext(c)
	logger.Info("Stream client connected", zap.String("userID", userID))
	sc.hub.Serve(conn)
	logger.Info("Stream client disconnected", zap.String("userID", userID))
}
