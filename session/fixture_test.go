package session_test

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/jrsteele09/go-session-host/directory/directoryfake"
	"github.com/jrsteele09/go-session-host/relay"
	"github.com/jrsteele09/go-session-host/relay/relayfake"
	"github.com/jrsteele09/go-session-host/session"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const testInterval = 200 * time.Millisecond

// spawnRecorder records every Spawn call.
type spawnRecorder struct {
	mu    sync.Mutex
	calls [][]session.ClientRecord
	err   error
}

func (s *spawnRecorder) Spawn(ctx context.Context, roster []session.ClientRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, roster)
	return s.err
}

func (s *spawnRecorder) Calls() [][]session.ClientRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]session.ClientRecord(nil), s.calls...)
}

// sceneRecorder records every scene load.
type sceneRecorder struct {
	mu     sync.Mutex
	scenes []string
	err    error
}

func (s *sceneRecorder) LoadScene(ctx context.Context, scene string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scenes = append(s.scenes, scene)
	return s.err
}

func (s *sceneRecorder) Scenes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.scenes...)
}

// errorCollector is an error sink safe for use from the keep-alive goroutine.
type errorCollector struct {
	mu   sync.Mutex
	errs []error
}

func (e *errorCollector) Sink(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errs = append(e.errs, err)
}

func (e *errorCollector) Errors() []error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]error(nil), e.errs...)
}

// syncBuffer is a log destination safe for concurrent writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// testFixture holds all test dependencies
type testFixture struct {
	relay       *relayfake.FakeRelay
	directory   *directoryfake.FakeDirectory
	spawner     *spawnRecorder
	scenes      *sceneRecorder
	clock       *clock.Mock
	errors      *errorCollector
	logs        *syncBuffer
	settings    session.Settings
	coordinator *session.Coordinator
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	relay    relay.Client
	settings session.Settings
}

func withRelay(r relay.Client) fixtureOption {
	return func(c *fixtureConfig) { c.relay = r }
}

func withSettings(modify func(*session.Settings)) fixtureOption {
	return func(c *fixtureConfig) { modify(&c.settings) }
}

// setupTestFixture creates a coordinator wired to fakes and a mock clock.
func setupTestFixture(t *testing.T, options ...fixtureOption) *testFixture {
	t.Helper()

	f := &testFixture{
		relay:     relayfake.NewFakeRelay(),
		directory: directoryfake.NewFakeDirectory(),
		spawner:   &spawnRecorder{},
		scenes:    &sceneRecorder{},
		clock:     clock.NewMock(),
		errors:    &errorCollector{},
		logs:      &syncBuffer{},
	}

	cfg := fixtureConfig{relay: f.relay, settings: session.DefaultSettings()}
	cfg.settings.KeepAliveInterval = testInterval
	cfg.settings.KeepAliveRetries = 0
	cfg.settings.CallTimeout = time.Second
	for _, opt := range options {
		opt(&cfg)
	}
	f.settings = cfg.settings

	c, err := session.NewCoordinator(session.Deps{
		Relay:     cfg.relay,
		Directory: f.directory,
		Spawner:   f.spawner,
		Scenes:    f.scenes,
	}, cfg.settings,
		session.WithClock(f.clock),
		session.WithErrorSink(f.errors.Sink),
		session.WithLogger(zerolog.New(f.logs).Level(zerolog.DebugLevel)),
	)
	require.NoError(t, err)
	f.coordinator = c

	t.Cleanup(func() { _ = c.Shutdown(context.Background()) })
	return f
}

// hosting creates a session with maxClients and asserts it is Hosting.
func (f *testFixture) hosting(t *testing.T, maxClients int) string {
	t.Helper()

	token, err := f.coordinator.CreateSession(context.Background(), maxClients)
	require.NoError(t, err)
	require.Equal(t, session.PhaseHosting, f.coordinator.Phase())
	return token
}

// admit admits ids and requires every one to be accepted.
func (f *testFixture) admit(t *testing.T, ids ...session.ClientID) {
	t.Helper()

	for _, id := range ids {
		require.True(t, f.coordinator.AdmitConnection(id).Accepted, "client %d", id)
	}
}
