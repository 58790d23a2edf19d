// controller/controllers.go
package controller

import (
	"github.com/schoolsync/pulse/audit"
	"github.com/schoolsync/pulse/service"
	"github.com/schoolsync/pulse/util"
)

type Controllers struct {
	Stream        *StreamController
	Event         *EventController
	Impersonation *ImpersonationController
	Notification  *NotificationController
	Audit         *AuditController
}

func InitializeControllers(
	hub *service.HubService,
	bus *util.EventBus,
	directory *service.DirectoryService,
	auditService audit.Service,
) *Controllers {
	return &Controllers{
		Stream:        NewStreamController(hub),
		Event:         NewEventController(hub, bus),
		Impersonation: NewImpersonationController(directory),
		Notification:  NewNotificationController(),
		Audit:         NewAuditController(auditService),
	}
}
