package engine

import (
	"time"

	"github.com/uber-go/tally/v4"
)

// metrics groups the tally instruments of one DB.
type metrics struct {
	flushes      tally.Counter
	flushErrors  tally.Counter
	mutations    tally.Counter
	flushLatency tally.Timer
	dirty        tally.Gauge
}

func newMetrics(scope tally.Scope) *metrics {
	return &metrics{
		flushes:      scope.Counter("flushes"),
		flushErrors:  scope.Counter("flush_errors"),
		mutations:    scope.Counter("mutations"),
		flushLatency: scope.Timer("flush_latency"),
		dirty:        scope.Gauge("dirty"),
	}
}

func (m *metrics) mutated() {
	m.mutations.Inc(1)
	m.dirty.Update(1)
}

func (m *metrics) flushed(elapsed time.Duration, err error) {
	m.flushLatency.Record(elapsed)
	if err != nil {
		m.flushErrors.Inc(1)
		m.dirty.Update(1)
		return
	}
	m.flushes.Inc(1)
	m.dirty.Update(0)
}
