// notify/store.go
package notify

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	logger "github.com/schoolsync/pulse/logging"
	"github.com/schoolsync/pulse/metrics"
	"github.com/schoolsync/pulse/model"
	"github.com/schoolsync/pulse/util"
)

// DefaultCapacity bounds the feed; arrivals beyond it evict the oldest entry.
const DefaultCapacity = 50

// EventIngested is published on the event bus after every accepted event.
const EventIngested = "notification.ingested"

// Toaster is the user-visible alert capability consumed on create events.
type Toaster interface {
	Toast(kind util.ToastKind, title, body string)
}

// ReadSyncer pushes read-state to the backend. The call is best-effort:
// its outcome never rolls back local state.
type ReadSyncer interface {
	MarkRead(ctx context.Context, ids string) error
}

// Store is the in-memory notification feed: bounded, deduplicated by event
// id, ordered newest first, with a derived unread count. All mutation goes
// through its methods; consumers only see copies.
type Store struct {
	mu       sync.Mutex
	events   []model.NotificationEvent
	seen     map[string]struct{}
	capacity int

	router  *Router
	toaster Toaster
	syncer  ReadSyncer
	bus     *util.EventBus
}

func NewStore(capacity int, router *Router, toaster Toaster, syncer ReadSyncer, bus *util.EventBus) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		seen:     make(map[string]struct{}),
		capacity: capacity,
		router:   router,
		toaster:  toaster,
		syncer:   syncer,
		bus:      bus,
	}
}

// Ingest accepts one event. Duplicates (by id) are ignored so server
// retransmissions cannot double-count or reorder the first occurrence. The
// state transition is synchronous; toast, invalidation and bus fan-out run
// only after it completes, and the invalidation round trip never blocks the
// ingesting goroutine. Returns whether the event was stored.
func (s *Store) Ingest(ctx context.Context, event model.NotificationEvent) bool {
	if err := event.Validate(); err != nil {
		logger.Warn("Dropping invalid notification event", zap.Error(err))
		return false
	}

	s.mu.Lock()
	if _, dup := s.seen[event.ID]; dup {
		s.mu.Unlock()
		metrics.NotificationsDeduped.Inc()
		logger.Debug("Duplicate notification event ignored", zap.String("eventID", event.ID))
		return false
	}

	event.Read = false
	s.events = append([]model.NotificationEvent{event}, s.events...)
	s.seen[event.ID] = struct{}{}
	if len(s.events) > s.capacity {
		evicted := s.events[len(s.events)-1]
		s.events = s.events[:s.capacity]
		delete(s.seen, evicted.ID)
	}
	unread := s.unreadLocked()
	s.mu.Unlock()

	metrics.NotificationsIngested.Inc()
	metrics.UnreadNotifications.Set(float64(unread))

	if event.Action == model.ActionCreate && s.toaster != nil {
		s.toaster.Toast(util.ToastInfo, "New "+event.Type.Label(), event.Summary)
	}
	if s.router != nil {
		go s.router.Route(ctx, event)
	}
	if s.bus != nil {
		s.bus.Publish(ctx, EventIngested, event)
	}

	logger.Info("Notification ingested",
		zap.String("eventID", event.ID),
		zap.String("entityType", string(event.Type)),
		zap.String("action", string(event.Action)))
	return true
}

// MarkRead flags the given ids as read locally, then syncs the backend
// without waiting for it. A failed sync is logged and accepted as drift
// until the next full refresh.
func (s *Store) MarkRead(ctx context.Context, ids []string) {
	if len(ids) == 0 {
		return
	}

	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	s.mu.Lock()
	for i := range s.events {
		if _, ok := want[s.events[i].ID]; ok {
			s.events[i].Read = true
		}
	}
	unread := s.unreadLocked()
	s.mu.Unlock()

	metrics.UnreadNotifications.Set(float64(unread))
	s.syncRead(ctx, strings.Join(ids, ","))
}

// MarkAllRead flags every entry as read and syncs with the literal "all".
func (s *Store) MarkAllRead(ctx context.Context) {
	s.mu.Lock()
	for i := range s.events {
		s.events[i].Read = true
	}
	s.mu.Unlock()

	metrics.UnreadNotifications.Set(0)
	s.syncRead(ctx, "all")
}

// Clear empties the feed.
func (s *Store) Clear() {
	s.mu.Lock()
	s.events = nil
	s.seen = make(map[string]struct{})
	s.mu.Unlock()

	metrics.UnreadNotifications.Set(0)
}

// Snapshot returns a copy of the feed, newest first.
func (s *Store) Snapshot() []model.NotificationEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.NotificationEvent, len(s.events))
	copy(out, s.events)
	return out
}

// UnreadCount is derived from entry state, never stored independently.
func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unreadLocked()
}

// Len returns the number of entries currently held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func (s *Store) unreadLocked() int {
	count := 0
	for i := range s.events {
		if !s.events[i].Read {
			count++
		}
	}
	return count
}

func (s *Store) syncRead(ctx context.Context, ids string) {
	if s.syncer == nil {
		return
	}
	go func() {
		if err := s.syncer.MarkRead(ctx, ids); err != nil {
			logger.Warn("Mark-read sync failed, local state kept",
				zap.Error(err),
				zap.String("ids", ids))
		}
	}()
}
