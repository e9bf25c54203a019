package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/filedb/engine"
	"github.com/roach88/filedb/model"
)

// session is one opened store for the duration of a command.
type session struct {
	cfg *Config
	cat *catalog
	db  *engine.DB
	out *OutputFormatter
}

// withSession opens the configured store, runs fn and closes the store,
// flushing any mutation fn made.
func withSession(opts *RootOptions, cmd *cobra.Command, fn func(s *session) error) error {
	out := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := LoadConfig(opts.Config)
	if err != nil {
		return out.Fail("load config", err)
	}
	cat, err := cfg.catalog()
	if err != nil {
		return out.Fail("load config", err)
	}
	a, err := cfg.Adapter()
	if err != nil {
		return out.Fail("load config", err)
	}
	policy, err := cfg.Policy()
	if err != nil {
		return out.Fail("load config", err)
	}

	out.VerboseLog("Opening %s (%d model(s), sync %s)", cfg.StorePath(), cat.registry.Len(), policy)
	db, err := engine.Open(a, cat.registry,
		engine.WithSyncPolicy(policy),
		engine.WithLogger(slog.Default()),
	)
	if err != nil {
		return out.Fail("open store", err)
	}

	s := &session{cfg: cfg, cat: cat, db: db, out: out}
	runErr := fn(s)
	if closeErr := db.Close(); closeErr != nil {
		if runErr != nil {
			slog.Error("error closing store", "error", closeErr)
			return runErr
		}
		return out.Fail("close store", closeErr)
	}
	return runErr
}

// result outputs data as JSON or text as plain text, depending on the format.
func (s *session) result(data any, text string) error {
	if s.out.Format == "json" {
		return s.out.Success(data)
	}
	return s.out.Success(text)
}

// parseDocument decodes a JSON object. "-" reads it from in.
func parseDocument(arg string, in io.Reader) (model.Document, error) {
	raw := []byte(arg)
	if arg == "-" {
		data, err := io.ReadAll(in)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		raw = data
	}
	if strings.TrimSpace(string(raw)) == "" {
		return nil, fmt.Errorf("record must be a JSON object")
	}
	var doc model.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("invalid record JSON: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("record must be a JSON object")
	}
	return doc, nil
}
