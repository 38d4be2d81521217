package sqlitedirectory_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/go-session-host/directory"
	"github.com/jrsteele09/go-session-host/directory/sqlitedirectory"
	apperrors "github.com/jrsteele09/go-session-host/internal/errors"
	"github.com/stretchr/testify/require"
)

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

func openTestStore(t *testing.T, ttl time.Duration) (*sqlitedirectory.Store, *testClock) {
	t.Helper()

	clk := &testClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	store, err := sqlitedirectory.Open(filepath.Join(t.TempDir(), "directory.db"), ttl, sqlitedirectory.WithNowTime(clk.Now))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Close()) })
	return store, clk
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := sqlitedirectory.Open("  ", time.Minute)
	require.Error(t, err)
}

func TestRegisterHeartbeatList(t *testing.T) {
	ctx := context.Background()
	store, clk := openTestStore(t, 30*time.Second)

	id, err := store.Register(ctx, "MyLobby", 4, map[string]string{directory.MetadataJoinToken: "token-1"})
	require.NoError(t, err)

	clk.now = clk.now.Add(20 * time.Second)
	require.NoError(t, store.Heartbeat(ctx, id))

	clk.now = clk.now.Add(20 * time.Second)
	entries, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, id, entries[0].ID)
	require.Equal(t, "MyLobby", entries[0].Name)
	require.Equal(t, 4, entries[0].Capacity)
	require.Equal(t, "token-1", entries[0].Metadata[directory.MetadataJoinToken])
	require.True(t, entries[0].LastHeartbeat.After(entries[0].CreatedAt))
}

func TestExpiry(t *testing.T) {
	ctx := context.Background()
	store, clk := openTestStore(t, 30*time.Second)

	id, err := store.Register(ctx, "MyLobby", 4, nil)
	require.NoError(t, err)

	clk.now = clk.now.Add(time.Minute)

	entries, err := store.List(ctx)
	require.NoError(t, err)
	require.Empty(t, entries)
	require.ErrorIs(t, store.Heartbeat(ctx, id), apperrors.ErrNotFound)

	removed, err := store.DeleteExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)
}

func TestUnregister(t *testing.T) {
	ctx := context.Background()
	store, _ := openTestStore(t, 0)

	id, err := store.Register(ctx, "MyLobby", 2, nil)
	require.NoError(t, err)

	require.NoError(t, store.Unregister(ctx, id))
	require.ErrorIs(t, store.Unregister(ctx, id), apperrors.ErrNotFound)

	_, err = store.Register(ctx, "", 2, nil)
	require.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}
