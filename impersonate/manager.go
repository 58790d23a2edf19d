// impersonate/manager.go
package impersonate

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/schoolsync/pulse/audit"
	pulse_errors "github.com/schoolsync/pulse/errors"
	logger "github.com/schoolsync/pulse/logging"
	"github.com/schoolsync/pulse/model"
	"github.com/schoolsync/pulse/util"
)

// Validator asks the backend whether a target may be impersonated.
type Validator interface {
	ValidateImpersonation(ctx context.Context, targetUserID string) (model.ValidateImpersonationResponse, error)
}

// Toaster surfaces outcomes to the user.
type Toaster interface {
	Toast(kind util.ToastKind, title, body string)
}

// Manager owns the "acting as another user" session: it validates targets,
// persists the session blob atomically with the in-memory state, and derives
// outgoing request headers while active.
type Manager struct {
	mu      sync.Mutex
	session *model.ImpersonationSession
	reason  string

	actorID   string
	store     Store
	validator Validator
	toaster   Toaster
	auditor   audit.Service
}

// NewManager rehydrates any persisted session so in-memory presence always
// matches the blob at boot.
func NewManager(actorID string, store Store, validator Validator, toaster Toaster, auditor audit.Service) *Manager {
	m := &Manager{
		actorID:   actorID,
		store:     store,
		validator: validator,
		toaster:   toaster,
		auditor:   auditor,
	}
	if store != nil {
		session, err := store.Load()
		if err != nil {
			logger.Error("Failed to rehydrate impersonation session", zap.Error(err))
		} else if session != nil {
			m.session = session
			m.reason = session.Reason
			logger.Info("Impersonation session rehydrated",
				zap.String("targetUserID", session.TargetUser.UserID))
		}
	}
	return m
}

// Start validates the target and, on success, persists and activates the
// session in one step. Every failure mode is surfaced to the user and leaves
// prior state untouched; the return value is the success signal.
func (m *Manager) Start(ctx context.Context, targetUserID, reason string) bool {
	resp, err := m.validator.ValidateImpersonation(ctx, targetUserID)
	if err != nil {
		logger.Error("Impersonation validation request failed",
			zap.Error(err),
			zap.String("targetUserID", targetUserID))
		m.toast(util.ToastError, "Impersonation failed", "Could not validate the target user")
		return false
	}
	if !resp.Valid {
		message := resp.Error
		if message == "" {
			message = "Target user cannot be impersonated"
		}
		logger.Warn("Impersonation target rejected",
			zap.Error(pulse_errors.ErrInvalidImpersonationTarget),
			zap.String("targetUserID", targetUserID),
			zap.String("reason", message))
		m.toast(util.ToastError, "Impersonation failed", message)
		return false
	}

	session := model.ImpersonationSession{
		TargetUser: model.TargetUser{
			UserID:  resp.UserID,
			Name:    resp.Name,
			Email:   resp.Email,
			Schools: resp.Schools,
		},
		Reason: reason,
	}

	if err := m.store.Save(session); err != nil {
		logger.Error("Failed to persist impersonation session", zap.Error(err))
		m.toast(util.ToastError, "Impersonation failed", "Could not persist the session")
		return false
	}

	m.mu.Lock()
	m.session = &session
	m.reason = reason
	m.mu.Unlock()

	m.toast(util.ToastSuccess, "Impersonation started", "Now acting as "+resp.Name)
	m.record(ctx, audit.ActionImpersonationStart, resp.UserID, reason)
	return true
}

// Stop clears the persisted blob and in-memory state together. It always
// succeeds from the caller's point of view; storage trouble is only logged.
func (m *Manager) Stop(ctx context.Context) {
	m.mu.Lock()
	target := ""
	if m.session != nil {
		target = m.session.TargetUser.UserID
	}
	m.session = nil
	m.reason = ""
	m.mu.Unlock()

	if err := m.store.Clear(); err != nil {
		logger.Error("Failed to clear persisted impersonation session", zap.Error(err))
	}

	m.toast(util.ToastInfo, "Impersonation ended", "")
	if target != "" {
		m.record(ctx, audit.ActionImpersonationStop, target, "")
	}
}

// SetReason updates the justification. While a session is active the full
// blob is rewritten; otherwise the reason is held in memory only, there is
// nothing to attach it to yet.
func (m *Manager) SetReason(ctx context.Context, reason string) {
	m.mu.Lock()
	m.reason = reason
	var persisted *model.ImpersonationSession
	if m.session != nil {
		m.session.Reason = reason
		copySession := *m.session
		persisted = &copySession
	}
	m.mu.Unlock()

	if persisted == nil {
		return
	}
	if err := m.store.Save(*persisted); err != nil {
		logger.Error("Failed to persist impersonation reason", zap.Error(err))
		return
	}
	m.record(ctx, audit.ActionImpersonationReason, persisted.TargetUser.UserID, reason)
}

// Headers derives the outbound header contribution: empty when inactive,
// the user header always while active, the reason header only when set.
func (m *Manager) Headers() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	headers := map[string]string{}
	if m.session == nil {
		return headers
	}
	headers[model.HeaderImpersonateUser] = m.session.TargetUser.UserID
	if m.reason != "" {
		headers[model.HeaderImpersonateReason] = m.reason
	}
	return headers
}

// Active reports whether a session is in progress.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session != nil
}

// Session returns a copy of the active session, or nil.
func (m *Manager) Session() *model.ImpersonationSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}
	copySession := *m.session
	return &copySession
}

func (m *Manager) toast(kind util.ToastKind, title, body string) {
	if m.toaster != nil {
		m.toaster.Toast(kind, title, body)
	}
}

func (m *Manager) record(ctx context.Context, action, targetID, reason string) {
	if m.auditor == nil {
		return
	}
	entry := audit.Entry{
		ActorID:  m.actorID,
		Action:   action,
		TargetID: targetID,
		Reason:   reason,
	}
	if err := m.auditor.Record(ctx, entry); err != nil {
		logger.Warn("Failed to record impersonation audit entry", zap.Error(err))
	}
}
