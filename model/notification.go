// model/notification.go
package model

import (
	"fmt"
	"time"
)

// EntityType identifies which tracked entity a notification refers to.
type EntityType string

const (
	EntityIncident    EntityType = "incident"
	EntityWorkOrder   EntityType = "work_order"
	EntityProject     EntityType = "project"
	EntityDevice      EntityType = "device"
	EntityServiceShop EntityType = "service_shop"
)

// Action is the change a notification describes.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// NotificationEvent is a server-pushed record describing a change on a
// tracked entity, destined for the notification feed.
type NotificationEvent struct {
	ID        string         `json:"id"`
	Type      EntityType     `json:"type"`
	Action    Action         `json:"action"`
	Actor     string         `json:"actor,omitempty"`
	Target    string         `json:"target,omitempty"`
	Summary   string         `json:"summary,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`

	// Read is client-side state only; it is never sent over the stream.
	Read bool `json:"read"`
}

// Validate checks the fields the feed cannot work without.
func (e NotificationEvent) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("notification event ID cannot be empty")
	}
	if e.Type == "" {
		return fmt.Errorf("notification event type cannot be empty")
	}
	if e.Action == "" {
		return fmt.Errorf("notification event action cannot be empty")
	}
	return nil
}

var entityLabels = map[EntityType]string{
	EntityIncident:    "Incident",
	EntityWorkOrder:   "Work Order",
	EntityProject:     "Project",
	EntityServiceShop: "Service Shop",
	EntityDevice:      "Device",
}

// Label returns the human-readable name for an entity type. Unknown types
// fall back to the raw value so forward-compatible events still display.
func (t EntityType) Label() string {
	if label, ok := entityLabels[t]; ok {
		return label
	}
	return string(t)
}
