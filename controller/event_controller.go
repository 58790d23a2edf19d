// controller/event_controller.go
package controller

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/schoolsync/pulse/model"
	"github.com/schoolsync/pulse/service"
	"github.com/schoolsync/pulse/util"
)

// EventController lets backend jobs (and tests) push notification events
// onto the stream.
type EventController struct {
	hub *service.HubService
	bus *util.EventBus
}

func NewEventController(hub *service.HubService, bus *util.EventBus) *EventController {
	return &EventController{hub: hub, bus: bus}
}

func (ec *EventController) RegisterRoutes(r gin.IRouter) {
	r.POST("/events", ec.PublishEvent)
}

// PublishEvent validates the event, stamps missing fields and broadcasts it.
func (ec *EventController) PublishEvent(c *gin.Context) {
	var event model.NotificationEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid event payload", err)
		return
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if err := event.Validate(); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid event payload", err)
		return
	}

	msg, err := model.NewNotificationMessage(event, event.Timestamp.Format(time.RFC3339))
	if err != nil {
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to encode event", err)
		return
	}

	ec.hub.Broadcast(msg)
	if ec.bus != nil {
		ec.bus.Publish(c.Request.Context(), "event.published", event)
	}
	c.JSON(http.StatusAccepted, gin.H{"id": event.ID})
}
