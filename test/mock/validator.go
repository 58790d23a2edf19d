// test/mock/validator.go
package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/schoolsync/pulse/model"
)

// MockValidator is a mock implementation of the impersonation validation capability
type MockValidator struct {
	mock.Mock
}

func (m *MockValidator) ValidateImpersonation(ctx context.Context, targetUserID string) (model.ValidateImpersonationResponse, error) {
	args := m.Called(ctx, targetUserID)
	return args.Get(0).(model.ValidateImpersonationResponse), args.Error(1)
}
