// controller/notification_controller.go
package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	logger "github.com/schoolsync/pulse/logging"
	"github.com/schoolsync/pulse/util"
)

// NotificationController accepts read-state sync from clients. The relay
// only acknowledges; clients keep their local state either way.
type NotificationController struct{}

func NewNotificationController() *NotificationController {
	return &NotificationController{}
}

func (nc *NotificationController) RegisterRoutes(r gin.IRouter) {
	r.POST("/notifications/read", nc.MarkRead)
}

type markReadRequest struct {
	// Comma-separated event ids, or the literal "all".
	IDs string `json:"ids" binding:"required"`
}

func (nc *NotificationController) MarkRead(c *gin.Context) {
	var req markReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid mark-read request", err)
		return
	}

	userID, _ := util.GetUserIDFromContext(c)
	logger.Info("Notifications marked read",
		zap.String("userID", userID),
		zap.String("ids", req.IDs))
	c.Status(http.StatusNoContent)
}
