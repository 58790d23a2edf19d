// test/mock/invalidator.go
package mock

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockInvalidator is a mock implementation of the cache invalidation capability
type MockInvalidator struct {
	mock.Mock
}

func (m *MockInvalidator) Invalidate(ctx context.Context, namespace string) error {
	args := m.Called(ctx, namespace)
	return args.Error(0)
}
