package engine

import (
	"sync"
	"time"
	"weak"
)

// flusher is the background goroutine of the Periodic policy.
//
// It holds a weak pointer to its DB, so it never keeps the DB alive: each
// tick it resolves the pointer and exits if the DB is gone.
type flusher struct {
	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func startFlusher(target weak.Pointer[DB], interval time.Duration) *flusher {
	f := &flusher{
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go f.run(target, interval)
	return f
}

func (f *flusher) run(target weak.Pointer[DB], interval time.Duration) {
	defer close(f.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-f.stopCh:
			return
		case <-ticker.C:
			db := target.Value()
			if db == nil {
				return
			}
			db.c.backgroundFlush()
		}
	}
}

// stop signals the goroutine and waits for it to exit.
// Safe to call more than once.
func (f *flusher) stop() {
	f.stopOnce.Do(func() {
		close(f.stopCh)
	})
	<-f.done
}
