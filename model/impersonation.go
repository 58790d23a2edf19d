// model/impersonation.go
package model

// TargetUser identifies whose identity is being assumed.
type TargetUser struct {
	UserID  string   `json:"userId"`
	Name    string   `json:"name"`
	Email   string   `json:"email"`
	Schools []string `json:"schools"`
}

// ImpersonationSession is the persisted "acting as" state. The whole struct
// is written as one JSON blob; absence of the blob means no session.
type ImpersonationSession struct {
	TargetUser TargetUser `json:"targetUser"`
	Reason     string     `json:"reason"`
}

// ValidateImpersonationRequest is the body of the backend validation call.
type ValidateImpersonationRequest struct {
	TargetUserID string `json:"targetUserId" binding:"required"`
}

// ValidateImpersonationResponse is the backend's verdict on a target.
type ValidateImpersonationResponse struct {
	Valid   bool     `json:"valid"`
	UserID  string   `json:"userId,omitempty"`
	Name    string   `json:"name,omitempty"`
	Email   string   `json:"email,omitempty"`
	Schools []string `json:"schools,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// Outbound headers contributed while a session is active.
const (
	HeaderImpersonateUser   = "X-Impersonate-User"
	HeaderImpersonateReason = "X-Impersonate-Reason"
)
