// test/mock/syncer.go
package mock

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockReadSyncer is a mock implementation of the mark-read sync capability
type MockReadSyncer struct {
	mock.Mock
}

func (m *MockReadSyncer) MarkRead(ctx context.Context, ids string) error {
	args := m.Called(ctx, ids)
	return args.Error(0)
}
