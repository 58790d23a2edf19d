// notify/router.go
package notify

import (
	"context"

	"go.uber.org/zap"

	logger "github.com/schoolsync/pulse/logging"
	"github.com/schoolsync/pulse/model"
)

// Invalidator is the external cache/query layer's "invalidate by key"
// capability. The core never implements the cache itself.
type Invalidator interface {
	Invalidate(ctx context.Context, namespace string) error
}

// NamespaceNotifications is invalidated for every ingested event.
const NamespaceNotifications = "notifications"

// Entity-type to query-namespace mapping. Device events carry no namespace
// of their own: the feed still stores them, the cache has nothing to refetch.
var namespacesByType = map[model.EntityType][]string{
	model.EntityIncident:    {"incidents"},
	model.EntityWorkOrder:   {"work-orders"},
	model.EntityProject:     {"projects"},
	model.EntityServiceShop: {"service-shops"},
}

// Router maps ingested events to stale cache namespaces and tells the
// external query layer to refetch them. Failures are best-effort.
type Router struct {
	invalidator Invalidator
}

func NewRouter(invalidator Invalidator) *Router {
	return &Router{invalidator: invalidator}
}

// Namespaces returns every namespace an event of this type invalidates.
func Namespaces(entityType model.EntityType) []string {
	namespaces := []string{NamespaceNotifications}
	return append(namespaces, namespacesByType[entityType]...)
}

// Route issues one invalidation per stale namespace for the event.
func (r *Router) Route(ctx context.Context, event model.NotificationEvent) {
	if r.invalidator == nil {
		return
	}
	for _, namespace := range Namespaces(event.Type) {
		if err := r.invalidator.Invalidate(ctx, namespace); err != nil {
			logger.Warn("Cache invalidation failed",
				zap.Error(err),
				zap.String("namespace", namespace),
				zap.String("eventID", event.ID))
		}
	}
}
