package session_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jrsteele09/go-session-host/directory/directoryfake"
	"github.com/jrsteele09/go-session-host/relay/relayfake"
	"github.com/jrsteele09/go-session-host/session"
	"github.com/stretchr/testify/require"
)

const eventually = 2 * time.Second

func TestKeepAliveSendsEveryInterval(t *testing.T) {
	f := setupTestFixture(t)
	f.hosting(t, 4)

	require.Equal(t, 0, f.directory.Heartbeats("entry-1"))

	f.clock.Add(testInterval)
	require.Eventually(t, func() bool { return f.directory.Heartbeats("entry-1") == 1 }, eventually, time.Millisecond)

	f.clock.Add(testInterval)
	require.Eventually(t, func() bool { return f.directory.Heartbeats("entry-1") == 2 }, eventually, time.Millisecond)
	require.Empty(t, f.errors.Errors())
}

func TestKeepAliveStopsAfterShutdown(t *testing.T) {
	f := setupTestFixture(t)
	f.hosting(t, 4)

	f.clock.Add(testInterval)
	require.Eventually(t, func() bool { return f.directory.Heartbeats("entry-1") == 1 }, eventually, time.Millisecond)

	require.NoError(t, f.coordinator.Shutdown(context.Background()))

	for i := 0; i < 5; i++ {
		f.clock.Add(testInterval)
	}
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 1, f.directory.Heartbeats("entry-1"))
}

func TestKeepAliveStopsAfterShutdownRealClock(t *testing.T) {
	dir := directoryfake.NewFakeDirectory()
	settings := session.DefaultSettings()
	settings.KeepAliveInterval = 5 * time.Millisecond
	settings.KeepAliveRetries = 0

	c, err := session.NewCoordinator(session.Deps{
		Relay:     relayfake.NewFakeRelay(),
		Directory: dir,
		Spawner:   &spawnRecorder{},
	}, settings)
	require.NoError(t, err)

	_, err = c.CreateSession(context.Background(), 4)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return dir.TotalHeartbeats() >= 2 }, eventually, time.Millisecond)

	require.NoError(t, c.Shutdown(context.Background()))
	sent := dir.TotalHeartbeats()

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, sent, dir.TotalHeartbeats())
}

func TestKeepAliveFailureIsReportedAndLoopContinues(t *testing.T) {
	f := setupTestFixture(t)
	f.hosting(t, 4)
	cause := errors.New("lobby rate limited")
	f.directory.FailHeartbeats(cause)

	f.clock.Add(testInterval)
	require.Eventually(t, func() bool { return len(f.errors.Errors()) == 1 }, eventually, time.Millisecond)

	err := f.errors.Errors()[0]
	require.ErrorIs(t, err, session.ErrDirectory)
	require.ErrorIs(t, err, cause)
	require.Equal(t, session.PhaseHosting, f.coordinator.Phase())

	f.clock.Add(testInterval)
	require.Eventually(t, func() bool { return f.directory.Heartbeats("entry-1") == 2 }, eventually, time.Millisecond)
	require.Len(t, f.errors.Errors(), 1)
	require.Equal(t, session.PhaseHosting, f.coordinator.Phase())
}

func TestKeepAliveRetriesWithinRound(t *testing.T) {
	f := setupTestFixture(t, withSettings(func(s *session.Settings) { s.KeepAliveRetries = 2 }))
	f.hosting(t, 4)
	f.directory.FailHeartbeats(errors.New("blip"), errors.New("blip"))

	f.clock.Add(testInterval)
	require.Eventually(t, func() bool { return f.directory.Heartbeats("entry-1") == 3 }, eventually, time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	require.Empty(t, f.errors.Errors())
}

func TestKeepAliveFailureThresholdIsLogged(t *testing.T) {
	f := setupTestFixture(t, withSettings(func(s *session.Settings) { s.KeepAliveFailureThreshold = 2 }))
	f.hosting(t, 4)
	f.directory.FailHeartbeats(errors.New("down"), errors.New("down"))

	f.clock.Add(testInterval)
	require.Eventually(t, func() bool { return len(f.errors.Errors()) == 1 }, eventually, time.Millisecond)
	require.NotContains(t, f.logs.String(), "directory entry likely expired")

	f.clock.Add(testInterval)
	require.Eventually(t, func() bool { return len(f.errors.Errors()) == 2 }, eventually, time.Millisecond)
	require.Eventually(t, func() bool {
		return strings.Contains(f.logs.String(), "directory entry likely expired")
	}, eventually, time.Millisecond)

	// Recovery resets the count.
	f.clock.Add(testInterval)
	require.Eventually(t, func() bool {
		return strings.Contains(f.logs.String(), "keep-alive recovered")
	}, eventually, time.Millisecond)
	require.Equal(t, session.PhaseHosting, f.coordinator.Phase())
}
