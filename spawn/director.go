package spawn

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/jrsteele09/go-session-host/catalog"
	"github.com/jrsteele09/go-session-host/internal/metrics"
	"github.com/jrsteele09/go-session-host/session"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"
)

// Vector3 is a world position.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Quaternion is a world rotation.
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// Identity is the default forward orientation.
var Identity = Quaternion{W: 1}

// Request asks for one entity controlled exclusively by ClientID.
type Request struct {
	ClientID   session.ClientID   `json:"clientId"`
	Definition catalog.Definition `json:"definition"`
	Position   Vector3            `json:"position"`
	Rotation   Quaternion         `json:"rotation"`
}

// Instantiator creates entities in the game world.
type Instantiator interface {
	Instantiate(ctx context.Context, req Request) error
}

// Director decides which player entities to spawn when the game starts.
// It runs on the host only, as the coordinator's Spawner.
type Director struct {
	catalog      catalog.Catalog
	instantiator Instantiator
	spread       float64
	logger       zerolog.Logger
	metrics      *metrics.Metrics

	rngMu sync.Mutex
	rng   *rand.Rand
}

var _ session.Spawner = (*Director)(nil)

// Option modifies a Director.
type Option func(*Director)

// WithRand sets the source of lateral offsets (primarily for testing).
func WithRand(rng *rand.Rand) Option {
	return func(d *Director) {
		d.rng = rng
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(d *Director) {
		d.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Director) {
		d.metrics = m
	}
}

// NewDirector creates a director placing entities at a random x in [-spread, spread).
func NewDirector(cat catalog.Catalog, instantiator Instantiator, spread float64, options ...Option) (*Director, error) {
	if cat == nil {
		return nil, errors.New("[NewDirector] catalog is required")
	}
	if instantiator == nil {
		return nil, errors.New("[NewDirector] instantiator is required")
	}
	if spread < 0 {
		return nil, fmt.Errorf("[NewDirector] spread must not be negative, got %v", spread)
	}

	d := &Director{
		catalog:      cat,
		instantiator: instantiator,
		spread:       spread,
		logger:       log.Logger,
		rng:          rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range options {
		opt(d)
	}
	d.logger = d.logger.With().Str("component", "spawn").Logger()
	return d, nil
}

// Spawn instantiates one entity per client whose selected character resolves
// in the catalog. Clients without a selection, or with an unknown one, are
// skipped. A failed instantiation does not stop the others; the failures are
// returned together.
func (d *Director) Spawn(ctx context.Context, roster []session.ClientRecord) error {
	var err error
	spawned := 0

	for _, rec := range roster {
		characterID, ok := rec.Character()
		if !ok {
			d.skip(rec.ClientID, "no character selected")
			continue
		}
		def, found := d.catalog.Lookup(characterID)
		if !found {
			d.skip(rec.ClientID, "character not in catalog")
			continue
		}

		req := Request{
			ClientID:   rec.ClientID,
			Definition: def,
			Position:   d.position(),
			Rotation:   Identity,
		}
		if instErr := d.instantiator.Instantiate(ctx, req); instErr != nil {
			d.metrics.Spawn("failed")
			err = multierr.Append(err, fmt.Errorf("client %d: %w", rec.ClientID, instErr))
			continue
		}
		spawned++
		d.metrics.Spawn("spawned")
		d.logger.Info().
			Uint64("client_id", uint64(rec.ClientID)).
			Str("character_id", string(characterID)).
			Float64("x", req.Position.X).
			Msg("player spawned")
	}

	d.logger.Info().Int("spawned", spawned).Int("roster_size", len(roster)).Msg("spawn complete")
	return err
}

// position picks a lateral offset on the ground plane.
func (d *Director) position() Vector3 {
	d.rngMu.Lock()
	defer d.rngMu.Unlock()

	return Vector3{X: (d.rng.Float64()*2 - 1) * d.spread}
}

func (d *Director) skip(clientID session.ClientID, reason string) {
	d.metrics.Spawn("skipped")
	d.logger.Debug().Uint64("client_id", uint64(clientID)).Str("reason", reason).Msg("spawn skipped")
}
