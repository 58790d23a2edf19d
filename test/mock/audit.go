// test/mock/audit.go
package mock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/schoolsync/pulse/audit"
)

// MockAuditService is a mock implementation of audit.Service
type MockAuditService struct {
	mock.Mock
}

func (m *MockAuditService) Record(ctx context.Context, entry audit.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockAuditService) Query(ctx context.Context, from, to time.Time, actorID, targetID string) ([]audit.Entry, error) {
	args := m.Called(ctx, from, to, actorID, targetID)
	return args.Get(0).([]audit.Entry), args.Error(1)
}
