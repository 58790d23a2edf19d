// impersonate/store.go
package impersonate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	pulse_errors "github.com/schoolsync/pulse/errors"
	"github.com/schoolsync/pulse/model"
)

// Store persists the impersonation blob. Absence (Load returning nil, nil)
// means no session is active.
type Store interface {
	Save(session model.ImpersonationSession) error
	Load() (*model.ImpersonationSession, error)
	Clear() error
}

// FileStore keeps the session as a single JSON file on local disk. Writes go
// through a temp file and rename so the blob is never observed half-written.
// There is no cross-process watcher: last writer wins, matching the
// single-tab design this state comes from.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Save(session model.ImpersonationSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal impersonation session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("%w: %v", pulse_errors.ErrSessionStorage, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: %v", pulse_errors.ErrSessionStorage, err)
	}
	return nil
}

func (f *FileStore) Load() (*model.ImpersonationSession, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read impersonation session: %w", err)
	}

	var session model.ImpersonationSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal impersonation session: %w", err)
	}
	return &session, nil
}

func (f *FileStore) Clear() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear impersonation session: %w", err)
	}
	return nil
}
