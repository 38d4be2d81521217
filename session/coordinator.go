package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-session-host/catalog"
	"github.com/jrsteele09/go-session-host/directory"
	"github.com/jrsteele09/go-session-host/internal/metrics"
	"github.com/jrsteele09/go-session-host/internal/utils"
	"github.com/jrsteele09/go-session-host/relay"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"
)

// SceneNotifier switches every connected client to another scene.
type SceneNotifier interface {
	LoadScene(ctx context.Context, scene string) error
}

// Spawner instantiates player entities from a frozen roster snapshot.
type Spawner interface {
	Spawn(ctx context.Context, roster []ClientRecord) error
}

// Deps holds the collaborators of a Coordinator.
type Deps struct {
	Relay     relay.Client
	Directory directory.Client
	Spawner   Spawner
	Scenes    SceneNotifier // optional
}

// Status is a read-only view of the session.
type Status struct {
	SessionID        string `json:"sessionId"`
	Phase            Phase  `json:"phase"`
	MaxClients       int    `json:"maxClients"`
	RosterSize       int    `json:"rosterSize"`
	JoinToken        string `json:"joinToken,omitempty"`
	DirectoryEntryID string `json:"directoryEntryId,omitempty"`
}

// Coordinator is the authoritative host of one multiplayer session. It owns the
// session phase and the client roster; every mutation goes through its mutex.
type Coordinator struct {
	id        string
	relay     relay.Client
	directory directory.Client
	spawner   Spawner
	scenes    SceneNotifier
	settings  Settings

	clock     clock.Clock
	logger    zerolog.Logger
	errorSink func(error)
	metrics   *metrics.Metrics

	mu            sync.Mutex
	phase         Phase
	creating      bool
	maxClients    int
	allocationID  string
	joinToken     string
	entryID       string
	roster        roster
	stopKeepAlive context.CancelFunc
	keepAliveDone chan struct{}
}

// Option modifies a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger. Defaults to the global zerolog logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithClock sets the clock driving the keep-alive ticker and connection timestamps.
func WithClock(clk clock.Clock) Option {
	return func(c *Coordinator) {
		c.clock = clk
	}
}

// WithErrorSink receives non-fatal errors such as failed keep-alives. Defaults to an error log line.
func WithErrorSink(sink func(error)) Option {
	return func(c *Coordinator) {
		c.errorSink = sink
	}
}

// WithMetrics records coordinator metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// NewCoordinator creates a coordinator in PhaseCreated.
func NewCoordinator(deps Deps, settings Settings, options ...Option) (*Coordinator, error) {
	if deps.Relay == nil {
		return nil, errors.New("[NewCoordinator] Relay client is required")
	}
	if deps.Directory == nil {
		return nil, errors.New("[NewCoordinator] Directory client is required")
	}
	if deps.Spawner == nil {
		return nil, errors.New("[NewCoordinator] Spawner is required")
	}
	if err := settings.validate(); err != nil {
		return nil, fmt.Errorf("[NewCoordinator] %w", err)
	}

	c := &Coordinator{
		id:        uuid.New().String(),
		relay:     deps.Relay,
		directory: deps.Directory,
		spawner:   deps.Spawner,
		scenes:    deps.Scenes,
		settings:  settings,
		clock:     clock.New(),
		logger:    log.Logger,
		phase:     PhaseCreated,
		roster:    make(roster),
	}
	for _, opt := range options {
		opt(c)
	}

	c.logger = c.logger.With().Str("component", "session").Str("session_id", c.id).Logger()
	if c.errorSink == nil {
		c.errorSink = func(err error) {
			c.logger.Error().Err(err).Msg("session error")
		}
	}
	c.metrics.Phase(int(PhaseCreated))
	return c, nil
}

// ID returns the session id advertised in the directory entry.
func (c *Coordinator) ID() string {
	return c.id
}

// CreateSession allocates a relay endpoint, obtains its join token and
// publishes a directory entry, in that order. Any failure releases what was
// already acquired and leaves the session in PhaseCreated. On success the
// session is Hosting, the keep-alive is running and the join token is returned.
func (c *Coordinator) CreateSession(ctx context.Context, maxClients int) (string, error) {
	if maxClients < 1 {
		return "", fmt.Errorf("[CreateSession] %w: got %d", ErrInvalidCapacity, maxClients)
	}

	c.mu.Lock()
	if c.phase != PhaseCreated || c.creating {
		err := c.phaseErrorLocked("CreateSession")
		c.mu.Unlock()
		return "", err
	}
	c.creating = true
	c.mu.Unlock()

	acq, err := c.acquire(ctx, maxClients)

	c.mu.Lock()
	c.creating = false
	if err == nil && c.phase == PhaseTerminated {
		err = fmt.Errorf("[CreateSession] %w during creation", ErrSessionTerminated)
	}
	if err != nil {
		c.mu.Unlock()
		c.logger.Error().Err(err).Msg("session creation failed")
		if releaseErr := c.release(ctx, acq); releaseErr != nil {
			err = multierr.Append(err, releaseErr)
		}
		return "", err
	}

	c.maxClients = maxClients
	c.allocationID = acq.allocationID
	c.joinToken = acq.joinToken
	c.entryID = acq.entryID
	c.setPhaseLocked(PhaseHosting)
	c.startKeepAliveLocked(acq.entryID)
	c.mu.Unlock()

	c.logger.Info().
		Int("max_clients", maxClients).
		Str("allocation_id", acq.allocationID).
		Str("entry_id", acq.entryID).
		Msg("session hosting")
	return acq.joinToken, nil
}

// acquisition tracks what CreateSession obtained so far.
type acquisition struct {
	allocationID string
	joinToken    string
	entryID      string
}

func (c *Coordinator) acquire(ctx context.Context, maxClients int) (acquisition, error) {
	var acq acquisition

	callCtx, cancel := c.callContext(ctx)
	alloc, err := c.relay.CreateAllocation(callCtx, maxClients)
	cancel()
	if err != nil {
		return acq, fmt.Errorf("[CreateSession] %w: %w", ErrAllocation, err)
	}
	acq.allocationID = alloc.ID

	callCtx, cancel = c.callContext(ctx)
	token, err := c.relay.GetJoinToken(callCtx, alloc.ID)
	cancel()
	if err != nil {
		return acq, fmt.Errorf("[CreateSession] %w: %w", ErrJoinToken, err)
	}
	acq.joinToken = token

	metadata := map[string]string{
		directory.MetadataJoinToken: token,
		directory.MetadataSessionID: c.id,
	}
	callCtx, cancel = c.callContext(ctx)
	entryID, err := c.directory.Register(callCtx, c.settings.DirectoryName, maxClients, metadata)
	cancel()
	if err != nil {
		return acq, fmt.Errorf("[CreateSession] %w: %w", ErrDirectory, err)
	}
	acq.entryID = entryID

	return acq, nil
}

// release frees acquired resources in reverse order of acquisition. It runs
// even when ctx is already cancelled.
func (c *Coordinator) release(ctx context.Context, acq acquisition) error {
	ctx = context.WithoutCancel(ctx)
	var err error

	if acq.entryID != "" {
		callCtx, cancel := c.callContext(ctx)
		if unregErr := c.directory.Unregister(callCtx, acq.entryID); unregErr != nil {
			err = multierr.Append(err, fmt.Errorf("%w: unregister %s: %w", ErrDirectory, acq.entryID, unregErr))
		}
		cancel()
	}
	if acq.allocationID != "" {
		callCtx, cancel := c.callContext(ctx)
		if relErr := c.relay.Release(callCtx, acq.allocationID); relErr != nil {
			err = multierr.Append(err, fmt.Errorf("%w: release %s: %w", ErrAllocation, acq.allocationID, relErr))
		}
		cancel()
	}
	return err
}

func (c *Coordinator) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.settings.CallTimeout > 0 {
		return context.WithTimeout(ctx, c.settings.CallTimeout)
	}
	return context.WithCancel(ctx)
}

// AdmitConnection decides whether clientID may join. It accepts only while
// Hosting and while the roster has a free non-host slot, and records the
// client on acceptance.
func (c *Coordinator) AdmitConnection(clientID ClientID) Verdict {
	c.mu.Lock()
	defer c.mu.Unlock()

	verdict := c.admitLocked(clientID)
	if verdict.Accepted {
		c.metrics.Admission(metrics.AdmissionAccepted)
		c.metrics.RosterSize(len(c.roster))
		c.logger.Info().Uint64("client_id", uint64(clientID)).Int("roster_size", len(c.roster)).Msg("client admitted")
	} else {
		c.metrics.Admission(string(verdict.Reason))
		c.logger.Info().Uint64("client_id", uint64(clientID)).Str("reason", string(verdict.Reason)).Msg("client rejected")
	}
	return verdict
}

func (c *Coordinator) admitLocked(clientID ClientID) Verdict {
	if c.phase != PhaseHosting {
		return reject(RejectWrongPhase)
	}
	if _, ok := c.roster[clientID]; ok || clientID == HostClientID {
		return reject(RejectDuplicate)
	}
	if len(c.roster) >= c.maxClients-1 {
		return reject(RejectCapacity)
	}
	c.roster[clientID] = &ClientRecord{
		ClientID:    clientID,
		ConnectedAt: c.clock.Now(),
	}
	return accept()
}

// RemoveClient drops clientID from the roster. Removing an absent client is a no-op.
func (c *Coordinator) RemoveClient(clientID ClientID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.roster[clientID]; !ok {
		c.metrics.UnknownClient("remove")
		c.logger.Debug().Uint64("client_id", uint64(clientID)).Msg("remove: client not in roster")
		return
	}
	delete(c.roster, clientID)
	c.metrics.RosterSize(len(c.roster))
	c.logger.Info().Uint64("client_id", uint64(clientID)).Int("roster_size", len(c.roster)).Msg("client removed")
}

// SetCharacterSelection records the character picked by clientID. Selections
// for clients not in the roster, or made after the game started, are ignored.
func (c *Coordinator) SetCharacterSelection(clientID ClientID, characterID catalog.CharacterID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseHosting && c.phase != PhaseCharacterSelect {
		c.logger.Debug().Uint64("client_id", uint64(clientID)).Stringer("phase", c.phase).Msg("selection ignored: roster frozen")
		return
	}
	rec, ok := c.roster[clientID]
	if !ok {
		c.metrics.UnknownClient("select")
		c.logger.Debug().Uint64("client_id", uint64(clientID)).Msg("selection ignored: client not in roster")
		return
	}
	rec.CharacterID = utils.Ptr(characterID)
	c.logger.Debug().Uint64("client_id", uint64(clientID)).Str("character_id", string(characterID)).Msg("character selected")
}

// AdvanceToCharacterSelect closes admission and moves every client to the
// character selection scene. The phase advances even when the scene
// transition reports an error.
func (c *Coordinator) AdvanceToCharacterSelect(ctx context.Context) error {
	c.mu.Lock()
	if c.phase != PhaseHosting {
		err := c.phaseErrorLocked("AdvanceToCharacterSelect")
		c.mu.Unlock()
		return err
	}
	c.setPhaseLocked(PhaseCharacterSelect)
	c.mu.Unlock()

	c.logger.Info().Msg("character selection started")
	return c.loadScene(ctx, c.settings.CharacterSelectScene)
}

// StartGame freezes the roster, loads the gameplay scene and runs the spawner
// exactly once with a snapshot of the roster.
func (c *Coordinator) StartGame(ctx context.Context) error {
	c.mu.Lock()
	if c.phase != PhaseCharacterSelect {
		err := c.phaseErrorLocked("StartGame")
		c.mu.Unlock()
		return err
	}
	c.setPhaseLocked(PhaseInGame)
	snapshot := c.roster.snapshot()
	c.mu.Unlock()

	c.logger.Info().Int("roster_size", len(snapshot)).Msg("game started")

	var err error
	if sceneErr := c.loadScene(ctx, c.settings.GameplayScene); sceneErr != nil {
		err = multierr.Append(err, sceneErr)
	}
	if spawnErr := c.spawner.Spawn(ctx, snapshot); spawnErr != nil {
		err = multierr.Append(err, fmt.Errorf("[StartGame] %w: %w", ErrSpawn, spawnErr))
	}
	return err
}

// Shutdown stops the keep-alive, removes the directory entry, releases the
// relay allocation and terminates the session. Removal is best-effort: the
// session is Terminated even when an error is returned. Calling Shutdown on a
// terminated session does nothing.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if c.phase == PhaseTerminated {
		c.mu.Unlock()
		return nil
	}
	previous := c.phase
	c.setPhaseLocked(PhaseTerminated)
	stop, done := c.stopKeepAlive, c.keepAliveDone
	c.stopKeepAlive, c.keepAliveDone = nil, nil
	acq := acquisition{allocationID: c.allocationID, entryID: c.entryID}
	c.roster = make(roster)
	c.metrics.RosterSize(0)
	c.mu.Unlock()

	if stop != nil {
		stop()
		<-done
	}

	err := c.release(ctx, acq)
	if err != nil {
		c.errorSink(fmt.Errorf("[Shutdown] %w", err))
	}
	c.logger.Info().Stringer("previous_phase", previous).Msg("session terminated")
	return err
}

// Phase returns the current phase.
func (c *Coordinator) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// RosterSize returns the number of admitted clients.
func (c *Coordinator) RosterSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.roster)
}

// Status returns a snapshot of the session.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Status{
		SessionID:        c.id,
		Phase:            c.phase,
		MaxClients:       c.maxClients,
		RosterSize:       len(c.roster),
		JoinToken:        c.joinToken,
		DirectoryEntryID: c.entryID,
	}
}

// Client returns the record of clientID.
func (c *Coordinator) Client(clientID ClientID) (ClientRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.roster[clientID]
	if !ok {
		return ClientRecord{}, fmt.Errorf("%w: %d", ErrUnknownClient, clientID)
	}
	return rec.clone(), nil
}

// Roster returns a copy of the roster ordered by client id.
func (c *Coordinator) Roster() []ClientRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roster.snapshot()
}

func (c *Coordinator) loadScene(ctx context.Context, scene string) error {
	if c.scenes == nil {
		return nil
	}
	if err := c.scenes.LoadScene(ctx, scene); err != nil {
		err = fmt.Errorf("%w: %s: %w", ErrSceneTransition, scene, err)
		c.logger.Error().Err(err).Str("scene", scene).Msg("scene transition failed")
		return err
	}
	return nil
}

func (c *Coordinator) setPhaseLocked(p Phase) {
	c.logger.Debug().Stringer("from", c.phase).Stringer("to", p).Msg("phase transition")
	c.phase = p
	c.metrics.Phase(int(p))
}

func (c *Coordinator) phaseErrorLocked(op string) error {
	if c.phase == PhaseTerminated {
		return fmt.Errorf("[%s] %w: %w", op, ErrInvalidPhase, ErrSessionTerminated)
	}
	if c.creating {
		return fmt.Errorf("[%s] %w: session creation in progress", op, ErrInvalidPhase)
	}
	return fmt.Errorf("[%s] %w: session is %s", op, ErrInvalidPhase, c.phase)
}
