package approval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"property-workflow/internal/domain"
)

type fakeStore struct {
	mu      sync.Mutex
	states  map[int64]domain.ApprovalState
	failing map[int64]error
	listErr error
	writes  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		states:  map[int64]domain.ApprovalState{},
		failing: map[int64]error{},
	}
}

func (f *fakeStore) put(id int64, s domain.ApprovalState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[id] = s
}

func (f *fakeStore) get(id int64) domain.ApprovalState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.states[id]
}

func (f *fakeStore) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

func (f *fakeStore) UpdateApprovalState(_ context.Context, id int64, fn domain.Transition) (domain.ApprovalState, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.failing[id]; err != nil {
		return domain.ApprovalState{}, false, fmt.Errorf("%w: %w", domain.ErrStore, err)
	}
	current, ok := f.states[id]
	if !ok {
		return domain.ApprovalState{}, false, domain.ErrNotFound
	}
	next, err := fn(current)
	if err != nil {
		return current, false, err
	}
	if next == current {
		return current, false, nil
	}
	f.states[id] = next
	f.writes++
	return next, true, nil
}

func (f *fakeStore) ListPropertyIDs(context.Context) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	ids := make([]int64, 0, len(f.states)+len(f.failing))
	seen := map[int64]bool{}
	for id := range f.states {
		ids = append(ids, id)
		seen[id] = true
	}
	for id := range f.failing {
		if !seen[id] {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

var errConnReset = errors.New("connection reset by peer")
