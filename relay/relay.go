package relay

import (
	"context"
	"time"
)

// Allocation is a reserved relay endpoint.
type Allocation struct {
	ID             string
	Region         string
	MaxConnections int
	CreatedAt      time.Time
}

// Client allocates relay endpoints and derives join tokens from them.
type Client interface {
	// CreateAllocation reserves an endpoint able to carry maxConnections peers.
	CreateAllocation(ctx context.Context, maxConnections int) (*Allocation, error)

	// GetJoinToken returns the shareable token clients exchange to connect through the allocation.
	GetJoinToken(ctx context.Context, allocationID string) (string, error)

	// Release frees an allocation. Releasing an unknown allocation is not an error.
	Release(ctx context.Context, allocationID string) error
}

// TokenVerifier resolves a join token back to its allocation.
type TokenVerifier interface {
	VerifyJoinToken(token string) (allocationID string, err error)
}
