package directory

import (
	"context"
	"time"
)

// Metadata keys advertised on a session's directory entry.
const (
	MetadataJoinToken = "joinToken"
	MetadataSessionID = "sessionId"
)

// Entry is a discoverable session record.
type Entry struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Capacity      int               `json:"capacity"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
	LastHeartbeat time.Time         `json:"lastHeartbeat"`
}

// Client publishes session records and keeps them alive.
type Client interface {
	// Register publishes a new entry and returns its id.
	Register(ctx context.Context, name string, capacity int, metadata map[string]string) (string, error)

	// Heartbeat proves the entry is still hosted.
	Heartbeat(ctx context.Context, entryID string) error

	// Unregister removes the entry.
	Unregister(ctx context.Context, entryID string) error
}

// Lister lists live entries for prospective clients.
type Lister interface {
	List(ctx context.Context) ([]Entry, error)
}

// Store is a directory that can also be browsed.
type Store interface {
	Client
	Lister
}

func copyMetadata(metadata map[string]string) map[string]string {
	if metadata == nil {
		return nil
	}
	copied := make(map[string]string, len(metadata))
	for k, v := range metadata {
		copied[k] = v
	}
	return copied
}

// CopyEntry returns a deep copy of e.
func CopyEntry(e Entry) Entry {
	e.Metadata = copyMetadata(e.Metadata)
	return e
}
