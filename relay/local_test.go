package relay_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/go-session-host/internal/config"
	apperrors "github.com/jrsteele09/go-session-host/internal/errors"
	"github.com/jrsteele09/go-session-host/relay"
	"github.com/stretchr/testify/require"
)

type testRelayConfig struct {
	secret string
	expiry time.Duration
}

func (c testRelayConfig) GetJoinTokenSecret() string        { return c.secret }
func (c testRelayConfig) GetJoinTokenExpiry() time.Duration { return c.expiry }
func (c testRelayConfig) GetRelayRegion() string            { return "test-region" }

var _ config.RelayConfig = testRelayConfig{}

func TestAllocateAndVerify(t *testing.T) {
	ctx := context.Background()
	l, err := relay.NewLocal(testRelayConfig{secret: "s3cret", expiry: time.Hour})
	require.NoError(t, err)

	a, err := l.CreateAllocation(ctx, 4)
	require.NoError(t, err)
	require.NotEmpty(t, a.ID)
	require.Equal(t, "test-region", a.Region)
	require.Equal(t, 4, a.MaxConnections)

	token, err := l.GetJoinToken(ctx, a.ID)
	require.NoError(t, err)

	allocationID, err := l.VerifyJoinToken(token)
	require.NoError(t, err)
	require.Equal(t, a.ID, allocationID)
}

func TestJoinTokenForUnknownAllocation(t *testing.T) {
	l, err := relay.NewLocal(testRelayConfig{expiry: time.Hour})
	require.NoError(t, err)

	_, err = l.GetJoinToken(context.Background(), "missing")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestReleaseInvalidatesToken(t *testing.T) {
	ctx := context.Background()
	l, err := relay.NewLocal(testRelayConfig{expiry: time.Hour})
	require.NoError(t, err)

	a, err := l.CreateAllocation(ctx, 2)
	require.NoError(t, err)
	token, err := l.GetJoinToken(ctx, a.ID)
	require.NoError(t, err)

	require.NoError(t, l.Release(ctx, a.ID))
	require.NoError(t, l.Release(ctx, a.ID))
	require.Equal(t, 0, l.Allocations())

	_, err = l.VerifyJoinToken(token)
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

func TestExpiredToken(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	l, err := relay.NewLocal(testRelayConfig{expiry: time.Minute}, relay.WithNowTime(func() time.Time { return now }))
	require.NoError(t, err)

	a, err := l.CreateAllocation(ctx, 2)
	require.NoError(t, err)
	token, err := l.GetJoinToken(ctx, a.ID)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = l.VerifyJoinToken(token)
	require.ErrorIs(t, err, apperrors.ErrTokenExpired)
}

func TestTokenFromAnotherRelay(t *testing.T) {
	ctx := context.Background()
	a, err := relay.NewLocal(testRelayConfig{secret: "one", expiry: time.Hour})
	require.NoError(t, err)
	b, err := relay.NewLocal(testRelayConfig{secret: "two", expiry: time.Hour})
	require.NoError(t, err)

	alloc, err := a.CreateAllocation(ctx, 2)
	require.NoError(t, err)
	token, err := a.GetJoinToken(ctx, alloc.ID)
	require.NoError(t, err)

	_, err = b.VerifyJoinToken(token)
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)

	_, err = a.VerifyJoinToken("not-a-token")
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

func TestInvalidArguments(t *testing.T) {
	_, err := relay.NewLocal(testRelayConfig{expiry: 0})
	require.Error(t, err)

	l, err := relay.NewLocal(testRelayConfig{expiry: time.Hour})
	require.NoError(t, err)
	_, err = l.CreateAllocation(context.Background(), 0)
	require.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}
