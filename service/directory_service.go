// service/directory_service.go
package service

import (
	"sync"

	"github.com/schoolsync/pulse/model"
)

// DirectoryService resolves impersonation targets for the relay. It stands
// in for the real identity backend during development and tests.
type DirectoryService struct {
	mu    sync.RWMutex
	users map[string]model.TargetUser
}

func NewDirectoryService() *DirectoryService {
	return &DirectoryService{users: make(map[string]model.TargetUser)}
}

// Add registers or replaces a resolvable user.
func (d *DirectoryService) Add(user model.TargetUser) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[user.UserID] = user
}

// Validate resolves a target user id into an impersonation verdict.
func (d *DirectoryService) Validate(targetUserID string) model.ValidateImpersonationResponse {
	d.mu.RLock()
	user, ok := d.users[targetUserID]
	d.mu.RUnlock()

	if !ok {
		return model.ValidateImpersonationResponse{Valid: false, Error: "user not found"}
	}
	return model.ValidateImpersonationResponse{
		Valid:   true,
		UserID:  user.UserID,
		Name:    user.Name,
		Email:   user.Email,
		Schools: user.Schools,
	}
}
