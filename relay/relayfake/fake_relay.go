package relayfake

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/jrsteele09/go-session-host/relay"
)

var _ relay.Client = (*FakeRelay)(nil)

// FakeRelay records every call and fails on demand.
type FakeRelay struct {
	lock sync.Mutex

	AllocationErr error
	JoinTokenErr  error
	ReleaseErr    error

	allocated []string
	released  []string
	next      int
}

func NewFakeRelay() *FakeRelay {
	return &FakeRelay{}
}

func (f *FakeRelay) CreateAllocation(ctx context.Context, maxConnections int) (*relay.Allocation, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	if f.AllocationErr != nil {
		return nil, f.AllocationErr
	}
	f.next++
	id := fmt.Sprintf("alloc-%d", f.next)
	f.allocated = append(f.allocated, id)
	return &relay.Allocation{ID: id, MaxConnections: maxConnections}, nil
}

func (f *FakeRelay) GetJoinToken(ctx context.Context, allocationID string) (string, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	if f.JoinTokenErr != nil {
		return "", f.JoinTokenErr
	}
	return "join-" + allocationID, nil
}

func (f *FakeRelay) Release(ctx context.Context, allocationID string) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.released = append(f.released, allocationID)
	return f.ReleaseErr
}

// VerifyJoinToken accepts tokens minted by GetJoinToken for allocations not yet released.
func (f *FakeRelay) VerifyJoinToken(token string) (string, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	for _, id := range f.allocated {
		if token == "join-"+id && !slices.Contains(f.released, id) {
			return id, nil
		}
	}
	return "", fmt.Errorf("unknown join token %q", token)
}

// Allocated returns the ids handed out so far.
func (f *FakeRelay) Allocated() []string {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]string(nil), f.allocated...)
}

// Released returns the ids passed to Release, in call order.
func (f *FakeRelay) Released() []string {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]string(nil), f.released...)
}
