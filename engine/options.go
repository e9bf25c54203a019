package engine

import (
	"log/slog"

	"github.com/uber-go/tally/v4"
)

// Option configures a DB at Open.
type Option func(*config)

type config struct {
	policy       SyncPolicy
	logger       *slog.Logger
	scope        tally.Scope
	onFlushError func(error)
}

func defaultConfig() config {
	return config{
		policy: Manual(),
		logger: slog.Default(),
		scope:  tally.NoopScope,
	}
}

// WithSyncPolicy sets when mutations are persisted.
//
// Default: Manual()
func WithSyncPolicy(p SyncPolicy) Option {
	return func(c *config) {
		c.policy = p
	}
}

// WithLogger sets the logger for lifecycle events and background flush failures.
//
// Default: slog.Default()
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics reports flush and mutation metrics to scope.
//
// Default: tally.NoopScope
func WithMetrics(scope tally.Scope) Option {
	return func(c *config) {
		if scope != nil {
			c.scope = scope
		}
	}
}

// WithFlushErrorHandler registers fn to receive background flush errors,
// which have no caller to return to. fn runs on the flusher goroutine and
// must not call back into the DB's Flush or Close.
func WithFlushErrorHandler(fn func(error)) Option {
	return func(c *config) {
		c.onFlushError = fn
	}
}
