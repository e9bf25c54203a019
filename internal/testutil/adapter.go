package testutil

import (
	"errors"
	"sync"

	"github.com/roach88/filedb/dberr"
	"github.com/roach88/filedb/model"
	"github.com/roach88/filedb/state"
)

// ErrInjected is the cause of failures produced by MemoryAdapter.
var ErrInjected = errors.New("injected failure")

// MemoryAdapter keeps the last persisted snapshot in memory.
//
// It counts persist calls and can be told to fail, which lets engine tests
// observe sync policies and error paths without touching the filesystem.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type MemoryAdapter struct {
	mu       sync.Mutex
	saved    *state.State
	persists int
	failing  bool
	failLoad bool
}

// NewMemoryAdapter returns an adapter with nothing persisted.
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{}
}

// Persist stores a clone of st, or fails with an IO error while failing is set.
func (a *MemoryAdapter) Persist(st *state.State) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.persists++
	if a.failing {
		return dberr.IO("memory", ErrInjected)
	}
	a.saved = st.Clone()
	return nil
}

// Load returns a clone of the last persisted state, or an empty state.
func (a *MemoryAdapter) Load(reg *model.Registry) (*state.State, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failLoad {
		return nil, dberr.Serialization("memory", ErrInjected)
	}
	if a.saved == nil {
		return state.New(reg), nil
	}
	return a.saved.Clone(), nil
}

// SetFailing makes subsequent persists fail (true) or succeed (false).
func (a *MemoryAdapter) SetFailing(failing bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failing = failing
}

// SetFailLoad makes subsequent loads fail with a serialization error.
func (a *MemoryAdapter) SetFailLoad(fail bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failLoad = fail
}

// Persists returns how many times Persist was called, failures included.
func (a *MemoryAdapter) Persists() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.persists
}

// Saved returns the last successfully persisted state, or nil.
func (a *MemoryAdapter) Saved() *state.State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.saved
}
