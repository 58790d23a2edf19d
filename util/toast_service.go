// util/toast_service.go

package util

import (
	"sync"

	"go.uber.org/zap"

	logger "github.com/schoolsync/pulse/logging"
)

// ToastKind classifies a user-visible alert.
type ToastKind string

const (
	ToastInfo    ToastKind = "info"
	ToastSuccess ToastKind = "success"
	ToastError   ToastKind = "error"
)

// Toast is a fire-and-forget user-visible alert. Display lifecycle is owned
// by whoever subscribes; the core only emits.
type Toast struct {
	Kind  ToastKind
	Title string
	Body  string
}

// ToastService fans toasts out to subscribers. Slow subscribers drop toasts
// rather than blocking emitters.
type ToastService struct {
	mu   sync.RWMutex
	subs []chan Toast
}

func NewToastService() *ToastService {
	return &ToastService{}
}

// Toast emits an alert to every subscriber.
func (t *ToastService) Toast(kind ToastKind, title, body string) {
	logger.Info("Toast emitted",
		zap.String("kind", string(kind)),
		zap.String("title", title),
		zap.String("body", body))

	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, ch := range t.subs {
		select {
		case ch <- Toast{Kind: kind, Title: title, Body: body}:
		default:
			// Drop when subscriber is slow; toasts are ephemeral
		}
	}
}

// Subscribe returns a channel receiving future toasts.
func (t *ToastService) Subscribe() <-chan Toast {
	ch := make(chan Toast, 16)
	t.mu.Lock()
	t.subs = append(t.subs, ch)
	t.mu.Unlock()
	return ch
}
