package engine

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"
	"weak"

	"github.com/roach88/filedb/adapter"
	"github.com/roach88/filedb/dberr"
	"github.com/roach88/filedb/model"
	"github.com/roach88/filedb/state"
)

// DB is an open database.
//
// Thread-safety model:
//   - every method and CRUD function is safe from any goroutine
//   - all of them serialize on one state lock
//   - Close is idempotent; operations after Close fail with dberr CLOSED
type DB struct {
	c       *core
	cleanup runtime.Cleanup
}

// core is the part of a DB shared with its runtime cleanup. It never
// references the DB, so dropping the DB handle makes the DB collectable.
type core struct {
	adapter      adapter.Adapter
	registry     *model.Registry
	policy       SyncPolicy
	logger       *slog.Logger
	metrics      *metrics
	onFlushError func(error)

	// flushMu serializes persists so snapshots reach storage in order.
	// Always acquired before mu.
	flushMu sync.Mutex

	mu     sync.Mutex
	state  *state.State
	dirty  bool
	closed bool

	flusher   *flusher
	closeOnce sync.Once
	closeErr  error
}

// Open loads the state persisted by a and returns a DB serving it.
//
// A missing target starts from an empty state; nothing is written until
// the first persist. Under a Periodic policy the background flusher starts
// before Open returns.
func Open(a adapter.Adapter, reg *model.Registry, opts ...Option) (*DB, error) {
	if a == nil {
		return nil, fmt.Errorf("open: adapter is nil")
	}
	if reg == nil {
		return nil, fmt.Errorf("open: registry is nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if err := cfg.policy.validate(); err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	st, err := a.Load(reg)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	c := &core{
		adapter:      a,
		registry:     reg,
		policy:       cfg.policy,
		logger:       cfg.logger,
		metrics:      newMetrics(cfg.scope),
		onFlushError: cfg.onFlushError,
		state:        st,
	}
	db := &DB{c: c}

	if cfg.policy.IsPeriodic() {
		c.flusher = startFlusher(weak.Make(db), cfg.policy.Interval())
		c.logger.Debug("background flusher started", "interval", cfg.policy.Interval())
	}
	db.cleanup = runtime.AddCleanup(db, func(c *core) {
		c.logger.Warn("database dropped without Close, flushing")
		_ = c.close()
	}, c)

	c.logger.Info("database opened",
		"target", describe(a),
		"models", reg.Names(),
		"records", st.Len(),
		"policy", cfg.policy.String(),
	)
	return db, nil
}

// OpenPath opens the database at path with the adapter chosen by adapter.ForPath.
func OpenPath(path string, reg *model.Registry, opts ...Option) (*DB, error) {
	return Open(adapter.ForPath(path), reg, opts...)
}

// Flush persists the current state now, whatever the policy and even if
// nothing changed. Returns the adapter's error.
func (db *DB) Flush() error {
	return db.c.flush(false)
}

// Close stops the background flusher, persists the state if dirty and
// releases the DB. Later calls return the first call's result.
func (db *DB) Close() error {
	db.cleanup.Stop()
	return db.c.close()
}

// IsDirty reports whether the state has changes not yet persisted.
func (db *DB) IsDirty() bool {
	db.c.mu.Lock()
	defer db.c.mu.Unlock()
	return db.c.dirty
}

// Policy returns the sync policy the DB was opened with.
func (db *DB) Policy() SyncPolicy {
	return db.c.policy
}

// Registry returns the models served by the DB.
func (db *DB) Registry() *model.Registry {
	return db.c.registry
}

// Snapshot returns a copy of the whole state.
func (db *DB) Snapshot() (*state.State, error) {
	db.c.mu.Lock()
	defer db.c.mu.Unlock()
	if db.c.closed {
		return nil, dberr.Closed()
	}
	return db.c.state.Clone(), nil
}

// collection returns the collection of m. Caller must hold mu.
func (c *core) collection(m model.Descriptor) (*state.Collection, error) {
	if c.closed {
		return nil, dberr.Closed()
	}
	if !c.registry.Contains(m) {
		return nil, dberr.UnknownModel(m.Name())
	}
	col, ok := c.state.Collection(m.Name())
	if !ok {
		return nil, dberr.UnknownModel(m.Name())
	}
	return col, nil
}

// read runs fn against the collection of m under the state lock.
func (c *core) read(m model.Descriptor, fn func(col *state.Collection)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	col, err := c.collection(m)
	if err != nil {
		return err
	}
	fn(col)
	return nil
}

// mutate runs fn against the collection of m under the state lock.
// fn reports whether it changed anything; only changes mark the DB dirty
// and, under EveryWrite, persist before mutate returns.
//
// Under EveryWrite a failed persist is returned, but the in-memory change
// stands and the DB stays dirty.
func (c *core) mutate(m model.Descriptor, fn func(col *state.Collection) (bool, error)) error {
	if c.policy.IsEveryWrite() {
		c.flushMu.Lock()
		defer c.flushMu.Unlock()
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	col, err := c.collection(m)
	if err != nil {
		return err
	}
	changed, err := fn(col)
	if err != nil || !changed {
		return err
	}

	c.dirty = true
	c.metrics.mutated()

	if c.policy.IsEveryWrite() {
		if err := c.persist(c.state); err != nil {
			return fmt.Errorf("persist after write: %w", err)
		}
		c.dirty = false
	}
	return nil
}

// flush persists a snapshot. With onlyIfDirty it does nothing on a clean DB.
func (c *core) flush(onlyIfDirty bool) error {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return dberr.Closed()
	}
	if onlyIfDirty && !c.dirty {
		c.mu.Unlock()
		return nil
	}
	// Clear before snapshotting: a mutation after the unlock re-dirties.
	c.dirty = false
	snap := c.state.Clone()
	c.mu.Unlock()

	if err := c.persist(snap); err != nil {
		c.mu.Lock()
		c.dirty = true
		c.mu.Unlock()
		return err
	}
	return nil
}

// backgroundFlush is one flusher tick. Errors go to the log, the metrics
// and the flush error handler; the schedule continues.
func (c *core) backgroundFlush() {
	err := c.flush(true)
	if err == nil || dberr.IsClosed(err) {
		return
	}
	c.logger.Error("background flush failed", "target", describe(c.adapter), "error", err)
	if c.onFlushError != nil {
		c.onFlushError(err)
	}
}

func (c *core) persist(st *state.State) error {
	start := time.Now()
	err := c.adapter.Persist(st)
	c.metrics.flushed(time.Since(start), err)
	return err
}

func (c *core) close() error {
	c.closeOnce.Do(func() {
		if c.flusher != nil {
			c.flusher.stop()
			c.logger.Debug("background flusher stopped")
		}

		c.flushMu.Lock()
		defer c.flushMu.Unlock()

		c.mu.Lock()
		c.closed = true
		dirty := c.dirty
		c.dirty = false
		c.mu.Unlock()

		// Closed: nothing mutates the state any more.
		if dirty {
			if err := c.persist(c.state); err != nil {
				c.closeErr = fmt.Errorf("final flush: %w", err)
			}
		}
		c.logger.Info("database closed", "target", describe(c.adapter), "flushed", dirty, "error", c.closeErr)
	})
	return c.closeErr
}

// describe names the storage target of a for logs.
func describe(a adapter.Adapter) string {
	if p, ok := a.(interface{ Path() string }); ok {
		return p.Path()
	}
	return fmt.Sprintf("%T", a)
}
