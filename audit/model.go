// audit/model.go
package audit

import (
	"encoding/json"
	"time"
)

const (
	ActionImpersonationStart  = "impersonation.start"
	ActionImpersonationStop   = "impersonation.stop"
	ActionImpersonationReason = "impersonation.reason"
	ActionNotificationIngest  = "notification.ingest"
)

type Entry struct {
	Timestamp time.Time       `json:"timestamp"`
	ActorID   string          `json:"actor_id"`
	Action    string          `json:"action"`
	TargetID  string          `json:"target_id"`
	Reason    string          `json:"reason,omitempty"`
	Details   json.RawMessage `json:"details,omitempty"`
}
