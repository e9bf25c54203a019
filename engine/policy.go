package engine

import (
	"fmt"
	"strings"
	"time"
)

type syncMode int

const (
	modeManual syncMode = iota
	modeEveryWrite
	modePeriodic
)

// SyncPolicy decides when mutations reach storage.
// The zero value is Manual.
type SyncPolicy struct {
	mode     syncMode
	interval time.Duration
}

// Manual persists only on Flush and Close.
func Manual() SyncPolicy {
	return SyncPolicy{mode: modeManual}
}

// EveryWrite persists synchronously after every changing mutation.
func EveryWrite() SyncPolicy {
	return SyncPolicy{mode: modeEveryWrite}
}

// Periodic persists dirty state every interval from a background goroutine.
// interval must be positive; Open rejects anything else.
func Periodic(interval time.Duration) SyncPolicy {
	return SyncPolicy{mode: modePeriodic, interval: interval}
}

// IsManual reports whether p is Manual.
func (p SyncPolicy) IsManual() bool { return p.mode == modeManual }

// IsEveryWrite reports whether p is EveryWrite.
func (p SyncPolicy) IsEveryWrite() bool { return p.mode == modeEveryWrite }

// IsPeriodic reports whether p is Periodic.
func (p SyncPolicy) IsPeriodic() bool { return p.mode == modePeriodic }

// Interval returns the flush interval of a Periodic policy, or 0.
func (p SyncPolicy) Interval() time.Duration {
	if p.mode != modePeriodic {
		return 0
	}
	return p.interval
}

// String returns the textual form accepted by ParseSyncPolicy.
func (p SyncPolicy) String() string {
	switch p.mode {
	case modeEveryWrite:
		return "every-write"
	case modePeriodic:
		return "periodic:" + p.interval.String()
	default:
		return "manual"
	}
}

func (p SyncPolicy) validate() error {
	if p.mode == modePeriodic && p.interval <= 0 {
		return fmt.Errorf("periodic sync interval must be positive, got %s", p.interval)
	}
	return nil
}

// ParseSyncPolicy parses "manual", "every-write" or "periodic:<duration>"
// (for example "periodic:5s").
func ParseSyncPolicy(s string) (SyncPolicy, error) {
	text := strings.ToLower(strings.TrimSpace(s))
	switch text {
	case "", "manual":
		return Manual(), nil
	case "every-write", "everywrite", "every_write":
		return EveryWrite(), nil
	}

	if rest, ok := strings.CutPrefix(text, "periodic:"); ok {
		d, err := time.ParseDuration(rest)
		if err != nil {
			return SyncPolicy{}, fmt.Errorf("invalid sync policy %q: %w", s, err)
		}
		p := Periodic(d)
		if err := p.validate(); err != nil {
			return SyncPolicy{}, fmt.Errorf("invalid sync policy %q: %w", s, err)
		}
		return p, nil
	}

	return SyncPolicy{}, fmt.Errorf("invalid sync policy %q: must be manual, every-write or periodic:<duration>", s)
}
