package relay

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-session-host/internal/config"
	apperrors "github.com/jrsteele09/go-session-host/internal/errors"
)

// Local is an in-process relay allocator. It hands out allocation ids and
// signed join tokens; traffic is carried by the host's own listener.
type Local struct {
	region string
	signer *tokenSigner

	mu          sync.RWMutex
	allocations map[string]*Allocation
}

var (
	_ Client        = (*Local)(nil)
	_ TokenVerifier = (*Local)(nil)
)

// LocalOption modifies a Local relay.
type LocalOption func(*Local)

// WithNowTime sets the clock used for allocation and token timestamps (primarily for testing).
func WithNowTime(nowFunc func() time.Time) LocalOption {
	return func(l *Local) {
		l.signer.now = nowFunc
	}
}

// NewLocal creates a local relay. An empty join token secret is replaced by 32 random bytes.
func NewLocal(cfg config.RelayConfig, options ...LocalOption) (*Local, error) {
	secret := []byte(cfg.GetJoinTokenSecret())
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("[NewLocal] failed to generate join token secret: %w", err)
		}
	}
	if cfg.GetJoinTokenExpiry() <= 0 {
		return nil, fmt.Errorf("[NewLocal] join token expiry must be positive")
	}

	l := &Local{
		region: cfg.GetRelayRegion(),
		signer: &tokenSigner{
			secret: secret,
			expiry: cfg.GetJoinTokenExpiry(),
			now:    time.Now,
		},
		allocations: make(map[string]*Allocation),
	}
	for _, opt := range options {
		opt(l)
	}
	return l, nil
}

func (l *Local) CreateAllocation(ctx context.Context, maxConnections int) (*Allocation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if maxConnections < 1 {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidArgument, "max connections %d", maxConnections)
	}

	a := &Allocation{
		ID:             uuid.New().String(),
		Region:         l.region,
		MaxConnections: maxConnections,
		CreatedAt:      l.signer.now(),
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.allocations[a.ID] = a

	copied := *a
	return &copied, nil
}

func (l *Local) GetJoinToken(ctx context.Context, allocationID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	l.mu.RLock()
	_, ok := l.allocations[allocationID]
	l.mu.RUnlock()
	if !ok {
		return "", apperrors.Wrapf(apperrors.ErrNotFound, "allocation %s", allocationID)
	}
	return l.signer.sign(allocationID)
}

func (l *Local) Release(ctx context.Context, allocationID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.allocations, allocationID)
	return nil
}

// VerifyJoinToken checks the token signature and expiry and that its allocation is still held.
func (l *Local) VerifyJoinToken(token string) (string, error) {
	allocationID, err := l.signer.verify(token)
	if err != nil {
		return "", err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if _, ok := l.allocations[allocationID]; !ok {
		return "", apperrors.Wrapf(apperrors.ErrInvalidToken, "allocation %s released", allocationID)
	}
	return allocationID, nil
}

// Allocations returns the number of live allocations.
func (l *Local) Allocations() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.allocations)
}
