package directoryfake

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jrsteele09/go-session-host/directory"
)

var _ directory.Client = (*FakeDirectory)(nil)

// FakeDirectory records registrations and heartbeats and fails on demand.
type FakeDirectory struct {
	lock sync.Mutex

	RegisterErr   error
	UnregisterErr error

	heartbeatErrs []error
	entries       map[string]directory.Entry
	heartbeats    map[string]int
	unregistered  []string
	next          int
}

func NewFakeDirectory() *FakeDirectory {
	return &FakeDirectory{
		entries:    make(map[string]directory.Entry),
		heartbeats: make(map[string]int),
	}
}

func (f *FakeDirectory) Register(ctx context.Context, name string, capacity int, metadata map[string]string) (string, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	if f.RegisterErr != nil {
		return "", f.RegisterErr
	}
	f.next++
	id := fmt.Sprintf("entry-%d", f.next)
	f.entries[id] = directory.CopyEntry(directory.Entry{ID: id, Name: name, Capacity: capacity, Metadata: metadata})
	return id, nil
}

// FailHeartbeats queues errors returned by the next heartbeats, one per call.
func (f *FakeDirectory) FailHeartbeats(errs ...error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.heartbeatErrs = append(f.heartbeatErrs, errs...)
}

func (f *FakeDirectory) Heartbeat(ctx context.Context, entryID string) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.heartbeats[entryID]++
	if len(f.heartbeatErrs) > 0 {
		err := f.heartbeatErrs[0]
		f.heartbeatErrs = f.heartbeatErrs[1:]
		return err
	}
	if _, ok := f.entries[entryID]; !ok {
		return errors.New("not found")
	}
	return nil
}

func (f *FakeDirectory) Unregister(ctx context.Context, entryID string) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.unregistered = append(f.unregistered, entryID)
	if f.UnregisterErr != nil {
		return f.UnregisterErr
	}
	delete(f.entries, entryID)
	return nil
}

func (f *FakeDirectory) List(ctx context.Context) ([]directory.Entry, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	entries := make([]directory.Entry, 0, len(f.entries))
	for _, e := range f.entries {
		entries = append(entries, directory.CopyEntry(e))
	}
	return entries, nil
}

// Entry returns a registered entry.
func (f *FakeDirectory) Entry(entryID string) (directory.Entry, bool) {
	f.lock.Lock()
	defer f.lock.Unlock()

	e, ok := f.entries[entryID]
	return directory.CopyEntry(e), ok
}

// Heartbeats returns how many heartbeats entryID received, failed ones included.
func (f *FakeDirectory) Heartbeats(entryID string) int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.heartbeats[entryID]
}

// TotalHeartbeats returns the heartbeat count across all entries.
func (f *FakeDirectory) TotalHeartbeats() int {
	f.lock.Lock()
	defer f.lock.Unlock()

	total := 0
	for _, n := range f.heartbeats {
		total += n
	}
	return total
}

// Unregistered returns the ids passed to Unregister, in call order.
func (f *FakeDirectory) Unregistered() []string {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]string(nil), f.unregistered...)
}
