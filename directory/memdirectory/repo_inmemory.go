package memdirectory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-session-host/directory"
	apperrors "github.com/jrsteele09/go-session-host/internal/errors"
)

var _ directory.Store = (*InMemoryDirectory)(nil)

// InMemoryDirectory is an in-memory directory. Entries without a heartbeat
// for longer than the TTL are hidden from List and removed by DeleteExpired.
type InMemoryDirectory struct {
	mu      sync.RWMutex
	entries map[string]directory.Entry
	ttl     time.Duration
	nowTime func() time.Time
}

// Option modifies an InMemoryDirectory.
type Option func(*InMemoryDirectory)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(d *InMemoryDirectory) {
		d.nowTime = nowFunc
	}
}

// NewInMemoryDirectory creates an in-memory directory. A ttl of zero disables expiry.
func NewInMemoryDirectory(ttl time.Duration, options ...Option) *InMemoryDirectory {
	d := &InMemoryDirectory{
		entries: make(map[string]directory.Entry),
		ttl:     ttl,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(d)
	}
	return d
}

func (d *InMemoryDirectory) Register(ctx context.Context, name string, capacity int, metadata map[string]string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(name) == "" {
		return "", apperrors.Wrapf(apperrors.ErrInvalidArgument, "name is required")
	}
	if capacity < 1 {
		return "", apperrors.Wrapf(apperrors.ErrInvalidArgument, "capacity %d", capacity)
	}

	now := d.nowTime()
	entry := directory.CopyEntry(directory.Entry{
		ID:            uuid.New().String(),
		Name:          name,
		Capacity:      capacity,
		Metadata:      metadata,
		CreatedAt:     now,
		LastHeartbeat: now,
	})

	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[entry.ID] = entry
	return entry.ID, nil
}

func (d *InMemoryDirectory) Heartbeat(ctx context.Context, entryID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.entries[entryID]
	if !ok || d.expired(entry) {
		return apperrors.Wrapf(apperrors.ErrNotFound, "entry %s", entryID)
	}
	entry.LastHeartbeat = d.nowTime()
	d.entries[entryID] = entry
	return nil
}

func (d *InMemoryDirectory) Unregister(ctx context.Context, entryID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.entries[entryID]; !ok {
		return apperrors.Wrapf(apperrors.ErrNotFound, "entry %s", entryID)
	}
	delete(d.entries, entryID)
	return nil
}

// List returns live entries, oldest first.
func (d *InMemoryDirectory) List(ctx context.Context) ([]directory.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	entries := make([]directory.Entry, 0, len(d.entries))
	for _, e := range d.entries {
		if d.expired(e) {
			continue
		}
		entries = append(entries, directory.CopyEntry(e))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].CreatedAt.Before(entries[j].CreatedAt) })
	return entries, nil
}

// DeleteExpired removes entries whose last heartbeat is older than the TTL.
func (d *InMemoryDirectory) DeleteExpired() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	removed := 0
	for id, e := range d.entries {
		if d.expired(e) {
			delete(d.entries, id)
			removed++
		}
	}
	return removed
}

func (d *InMemoryDirectory) expired(e directory.Entry) bool {
	return d.ttl > 0 && d.nowTime().Sub(e.LastHeartbeat) > d.ttl
}
