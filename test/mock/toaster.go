// test/mock/toaster.go
package mock

import (
	"github.com/stretchr/testify/mock"

	"github.com/schoolsync/pulse/util"
)

// MockToaster is a mock implementation of the toast capability
type MockToaster struct {
	mock.Mock
}

func (m *MockToaster) Toast(kind util.ToastKind, title, body string) {
	m.Called(kind, title, body)
}
