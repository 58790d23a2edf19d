// notify/store_test.go
package notify_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	tmock "github.com/stretchr/testify/mock"

	logger "github.com/schoolsync/pulse/logging"
	"github.com/schoolsync/pulse/model"
	"github.com/schoolsync/pulse/notify"
	"github.com/schoolsync/pulse/test/mock"
)

func incidentEvent(id string, action model.Action) model.NotificationEvent {
	return model.NotificationEvent{
		ID:        id,
		Type:      model.EntityIncident,
		Action:    action,
		Summary:   "Projector offline in room 204",
		Timestamp: time.Now().UTC(),
	}
}

func TestStoreIngest(t *testing.T) {
	logger.InitTestLogger()
	ctx := context.Background()

	t.Run("DuplicateIDIgnored", func(t *testing.T) {
		store := notify.NewStore(0, nil, nil, nil, nil)

		assert.True(t, store.Ingest(ctx, incidentEvent("evt-1", model.ActionUpdate)))
		assert.False(t, store.Ingest(ctx, incidentEvent("evt-1", model.ActionUpdate)))
		assert.Equal(t, 1, store.Len())
	})

	t.Run("InvalidEventRejected", func(t *testing.T) {
		store := notify.NewStore(0, nil, nil, nil, nil)

		assert.False(t, store.Ingest(ctx, model.NotificationEvent{Type: model.EntityIncident, Action: model.ActionCreate}))
		assert.False(t, store.Ingest(ctx, model.NotificationEvent{ID: "evt-2", Action: model.ActionCreate}))
		assert.Equal(t, 0, store.Len())
	})

	t.Run("NewestFirstOrdering", func(t *testing.T) {
		store := notify.NewStore(0, nil, nil, nil, nil)

		store.Ingest(ctx, incidentEvent("evt-old", model.ActionUpdate))
		store.Ingest(ctx, incidentEvent("evt-new", model.ActionUpdate))

		snapshot := store.Snapshot()
		assert.Equal(t, "evt-new", snapshot[0].ID)
		assert.Equal(t, "evt-old", snapshot[1].ID)
	})

	t.Run("CapacityEvictsOldest", func(t *testing.T) {
		store := notify.NewStore(50, nil, nil, nil, nil)

		for i := 0; i < 51; i++ {
			store.Ingest(ctx, incidentEvent(fmt.Sprintf("evt-%d", i), model.ActionUpdate))
		}

		assert.Equal(t, 50, store.Len())
		snapshot := store.Snapshot()
		assert.Equal(t, "evt-50", snapshot[0].ID)
		assert.Equal(t, "evt-1", snapshot[len(snapshot)-1].ID)

		// The evicted id is reusable again, the dedup set follows the feed.
		assert.True(t, store.Ingest(ctx, incidentEvent("evt-0", model.ActionUpdate)))
	})

	t.Run("ToastOnlyOnCreate", func(t *testing.T) {
		toaster := new(mock.MockToaster)
		toaster.On("Toast", tmock.Anything, tmock.Anything, tmock.Anything).Return()

		store := notify.NewStore(0, nil, toaster, nil, nil)
		store.Ingest(ctx, incidentEvent("evt-created", model.ActionCreate))
		store.Ingest(ctx, incidentEvent("evt-updated", model.ActionUpdate))
		store.Ingest(ctx, incidentEvent("evt-deleted", model.ActionDelete))

		toaster.AssertNumberOfCalls(t, "Toast", 1)
		toaster.AssertCalled(t, "Toast", tmock.Anything, "New Incident", "Projector offline in room 204")
	})

	t.Run("ScenarioOneCreateOneEntryOneToastTwoInvalidations", func(t *testing.T) {
		toaster := new(mock.MockToaster)
		toaster.On("Toast", tmock.Anything, tmock.Anything, tmock.Anything).Return()

		invalidated := make(chan string, 4)
		invalidator := new(mock.MockInvalidator)
		invalidator.On("Invalidate", tmock.Anything, tmock.Anything).
			Run(func(args tmock.Arguments) { invalidated <- args.String(1) }).
			Return(nil)

		store := notify.NewStore(0, notify.NewRouter(invalidator), toaster, nil, nil)
		assert.True(t, store.Ingest(ctx, incidentEvent("evt-scenario", model.ActionCreate)))

		assert.Equal(t, 1, store.Len())
		assert.Equal(t, 1, store.UnreadCount())
		toaster.AssertNumberOfCalls(t, "Toast", 1)

		namespaces := make([]string, 0, 2)
		for i := 0; i < 2; i++ {
			select {
			case ns := <-invalidated:
				namespaces = append(namespaces, ns)
			case <-time.After(time.Second):
				t.Fatal("invalidation never issued")
			}
		}
		assert.ElementsMatch(t, []string{"notifications", "incidents"}, namespaces)

		select {
		case ns := <-invalidated:
			t.Fatalf("unexpected extra invalidation for %q", ns)
		case <-time.After(50 * time.Millisecond):
		}
	})

	t.Run("SlowInvalidationDoesNotBlockIngest", func(t *testing.T) {
		invalidator := new(mock.MockInvalidator)
		invalidator.On("Invalidate", tmock.Anything, tmock.Anything).
			Run(func(tmock.Arguments) { time.Sleep(500 * time.Millisecond) }).
			Return(nil)

		store := notify.NewStore(0, notify.NewRouter(invalidator), nil, nil, nil)

		start := time.Now()
		assert.True(t, store.Ingest(ctx, incidentEvent("evt-stalled-cache", model.ActionCreate)))
		assert.Less(t, time.Since(start), 100*time.Millisecond,
			"ingest must not wait on the invalidation round trip")
	})
}

func TestStoreReadState(t *testing.T) {
	logger.InitTestLogger()
	ctx := context.Background()

	t.Run("UnreadCountDerivedFromEntries", func(t *testing.T) {
		store := notify.NewStore(0, nil, nil, nil, nil)
		store.Ingest(ctx, incidentEvent("evt-a", model.ActionUpdate))
		store.Ingest(ctx, incidentEvent("evt-b", model.ActionUpdate))
		store.Ingest(ctx, incidentEvent("evt-c", model.ActionUpdate))

		assert.Equal(t, 3, store.UnreadCount())
		store.MarkRead(ctx, []string{"evt-a", "evt-c"})
		assert.Equal(t, 1, store.UnreadCount())
		store.MarkRead(ctx, []string{"evt-b"})
		assert.Equal(t, 0, store.UnreadCount())
	})

	t.Run("MarkReadSyncsCommaSeparatedIDs", func(t *testing.T) {
		synced := make(chan string, 1)
		syncer := new(mock.MockReadSyncer)
		syncer.On("MarkRead", tmock.Anything, tmock.Anything).
			Run(func(args tmock.Arguments) { synced <- args.String(1) }).
			Return(nil)

		store := notify.NewStore(0, nil, nil, syncer, nil)
		store.Ingest(ctx, incidentEvent("evt-a", model.ActionUpdate))
		store.Ingest(ctx, incidentEvent("evt-b", model.ActionUpdate))
		store.MarkRead(ctx, []string{"evt-a", "evt-b"})

		select {
		case ids := <-synced:
			assert.Equal(t, "evt-a,evt-b", ids)
		case <-time.After(time.Second):
			t.Fatal("mark-read sync never reached the backend")
		}
	})

	t.Run("MarkAllReadSyncsLiteralAll", func(t *testing.T) {
		synced := make(chan string, 1)
		syncer := new(mock.MockReadSyncer)
		syncer.On("MarkRead", tmock.Anything, "all").
			Run(func(args tmock.Arguments) { synced <- args.String(1) }).
			Return(nil)

		store := notify.NewStore(0, nil, nil, syncer, nil)
		store.Ingest(ctx, incidentEvent("evt-a", model.ActionUpdate))
		store.MarkAllRead(ctx)

		assert.Equal(t, 0, store.UnreadCount())
		select {
		case ids := <-synced:
			assert.Equal(t, "all", ids)
		case <-time.After(time.Second):
			t.Fatal("mark-all-read sync never reached the backend")
		}
	})

	t.Run("FailedSyncKeepsLocalState", func(t *testing.T) {
		synced := make(chan struct{}, 1)
		syncer := new(mock.MockReadSyncer)
		syncer.On("MarkRead", tmock.Anything, tmock.Anything).
			Run(func(tmock.Arguments) { synced <- struct{}{} }).
			Return(fmt.Errorf("backend unavailable"))

		store := notify.NewStore(0, nil, nil, syncer, nil)
		store.Ingest(ctx, incidentEvent("evt-a", model.ActionUpdate))
		store.MarkRead(ctx, []string{"evt-a"})

		<-synced
		assert.Equal(t, 0, store.UnreadCount())
		assert.True(t, store.Snapshot()[0].Read)
	})

	t.Run("MarkReadEmptyIsNoop", func(t *testing.T) {
		syncer := new(mock.MockReadSyncer)
		store := notify.NewStore(0, nil, nil, syncer, nil)
		store.MarkRead(ctx, nil)
		syncer.AssertNotCalled(t, "MarkRead", tmock.Anything, tmock.Anything)
	})

	t.Run("ClearEmptiesFeed", func(t *testing.T) {
		store := notify.NewStore(0, nil, nil, nil, nil)
		store.Ingest(ctx, incidentEvent("evt-a", model.ActionUpdate))
		store.Clear()

		assert.Equal(t, 0, store.Len())
		assert.Equal(t, 0, store.UnreadCount())
		// Cleared ids may arrive again.
		assert.True(t, store.Ingest(ctx, incidentEvent("evt-a", model.ActionUpdate)))
	})
}
