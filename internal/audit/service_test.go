package audit

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	id "kayo/pkg/domain"
	"kayo/pkg/requestcontext"
)

func TestServiceWritesEntries(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, slog.Default(), nil)

	userID := id.NewUserID()
	ctx := requestcontext.WithUserID(context.Background(), userID)
	ctx = requestcontext.WithClientMetadata(ctx, "10.0.0.1", "test-agent")

	svc.Record(ctx, Entry{
		Action:       ActionCreate,
		ResourceType: "delegate",
		ResourceID:   "abc",
		Description:  "registered delegate",
	})
	svc.Close()

	entries, err := store.List(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, ActionCreate, entries[0].Action)
	require.Equal(t, userID, entries[0].UserID)
	require.Equal(t, "10.0.0.1", entries[0].IPAddress)
	require.Equal(t, "test-agent", entries[0].UserAgent)
	require.False(t, entries[0].CreatedAt.IsZero())
}

func TestServiceCloseFlushesBuffer(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, slog.Default(), nil, WithBufferSize(64))

	ctx := context.Background()
	for i := 0; i < 50; i++ {
		svc.Record(ctx, Entry{Action: ActionUpdate, ResourceType: "payment"})
	}
	svc.Close()

	entries, err := store.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 50)
}

func TestMemoryStoreFilters(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.Insert(ctx, Entry{Action: ActionCreate, ResourceType: "delegate", CreatedAt: base}))
	require.NoError(t, store.Insert(ctx, Entry{Action: ActionApprove, ResourceType: "payment", CreatedAt: base.Add(time.Hour)}))
	require.NoError(t, store.Insert(ctx, Entry{Action: ActionApprove, ResourceType: "transfer", CreatedAt: base.Add(2 * time.Hour)}))

	byAction, err := store.List(ctx, Filter{Action: ActionApprove})
	require.NoError(t, err)
	require.Len(t, byAction, 2)

	byResource, err := store.List(ctx, Filter{ResourceType: "payment"})
	require.NoError(t, err)
	require.Len(t, byResource, 1)

	byWindow, err := store.List(ctx, Filter{From: base.Add(30 * time.Minute), To: base.Add(90 * time.Minute)})
	require.NoError(t, err)
	require.Len(t, byWindow, 1)
	require.Equal(t, "payment", byWindow[0].ResourceType)
}
