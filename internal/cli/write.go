package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/filedb/engine"
	"github.com/roach88/filedb/internal/query"
	"github.com/roach88/filedb/model"
)

// NewInsertCommand creates the insert command.
func NewInsertCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "insert <model> <json>",
		Short: "Insert a new record",
		Long: `Insert a record given as a JSON object. "-" reads it from stdin.

Fails with status 1 if a record with the same id exists.

Example:
  filedb insert users '{"id":"42","name":"Alice"}'`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := parseDocument(args[1], cmd.InOrStdin())
			if err != nil {
				return newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr()).Fail("insert", err)
			}
			return withSession(rootOpts, cmd, func(s *session) error {
				return runWrite(s, "insert", args[0], doc, engine.Insert[model.Document, string])
			})
		},
	}
}

// NewUpsertCommand creates the upsert command.
func NewUpsertCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "upsert <model> <json>",
		Short: "Insert a record or replace the one with the same id",
		Long: `Insert a record, or replace the record with the same id in place.
"-" reads the record from stdin.

Example:
  filedb upsert users '{"id":"42","name":"Alice B."}'`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := parseDocument(args[1], cmd.InOrStdin())
			if err != nil {
				return newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr()).Fail("upsert", err)
			}
			return withSession(rootOpts, cmd, func(s *session) error {
				return runWrite(s, "upsert", args[0], doc, engine.Upsert[model.Document, string])
			})
		},
	}
}

func runWrite(s *session, verb, modelName string, doc model.Document,
	op func(*engine.DB, *model.Model[model.Document, string], model.Document) error) error {
	m, err := s.cat.lookup(modelName)
	if err != nil {
		return s.out.Fail(verb, err)
	}
	if err := op(s.db, m, doc); err != nil {
		return s.out.Fail(verb, err)
	}
	return s.result(doc, fmt.Sprintf("%sed %s/%s", verb, modelName, m.ID(doc)))
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "update <model> <id> <json>",
		Short: "Replace the record with the given id",
		Long: `Replace the record with the given id, keeping its position.
The new record may carry a different id as long as no other record holds it.
"-" reads the record from stdin.

Fails with status 1 if no record has the id.

Example:
  filedb update users 42 '{"id":"42","name":"Alice B."}'`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := parseDocument(args[2], cmd.InOrStdin())
			if err != nil {
				return newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr()).Fail("update", err)
			}
			return withSession(rootOpts, cmd, func(s *session) error {
				return runUpdate(s, args[0], args[1], doc)
			})
		},
	}
}

func runUpdate(s *session, modelName, id string, doc model.Document) error {
	m, err := s.cat.lookup(modelName)
	if err != nil {
		return s.out.Fail("update", err)
	}
	if err := engine.Update(s.db, m, id, doc); err != nil {
		return s.out.Fail("update", err)
	}
	return s.result(doc, fmt.Sprintf("updated %s/%s", modelName, id))
}

// DeleteResult is the JSON payload of delete and delete-by.
type DeleteResult struct {
	Deleted []model.Document `json:"deleted"`
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <model> <id>",
		Short: "Delete the record with the given id",
		Long: `Delete the record with the given id. Deleting an absent id succeeds
and changes nothing.

Example:
  filedb delete users 42`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(s *session) error {
				return runDelete(s, args[0], args[1])
			})
		},
	}
}

func runDelete(s *session, modelName, id string) error {
	m, err := s.cat.lookup(modelName)
	if err != nil {
		return s.out.Fail("delete", err)
	}
	removed, ok, err := engine.Delete(s.db, m, id)
	if err != nil {
		return s.out.Fail("delete", err)
	}
	res := DeleteResult{Deleted: []model.Document{}}
	text := fmt.Sprintf("no record %s/%s", modelName, id)
	if ok {
		res.Deleted = append(res.Deleted, removed)
		text = fmt.Sprintf("deleted %s/%s", modelName, id)
	}
	return s.result(res, text)
}

// NewDeleteByCommand creates the delete-by command.
func NewDeleteByCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FilterOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "delete-by <model> --where <expr>",
		Short: "Delete every record matching an expression",
		Long: `Delete every record matching the --where expression.

Nothing is deleted if the expression fails to evaluate on any record.

Example:
  filedb delete-by sessions --where 'expired == true'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(s *session) error {
				return runDeleteBy(s, args[0], opts.Where)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Where, "where", "", "filter expression (required)")
	_ = cmd.MarkFlagRequired("where")

	return cmd
}

func runDeleteBy(s *session, modelName, where string) error {
	m, err := s.cat.lookup(modelName)
	if err != nil {
		return s.out.Fail("delete-by", err)
	}
	filter, err := query.Compile(where)
	if err != nil {
		return s.out.Fail("delete-by", err)
	}

	// Evaluate on a snapshot first so a failing expression deletes nothing.
	matched, err := engine.GetAllBy(s.db, m, filter.Predicate())
	if err != nil {
		return s.out.Fail("delete-by", err)
	}
	if err := filter.Err(); err != nil {
		return s.out.Fail("delete-by", err)
	}
	ids := make(map[string]bool, len(matched))
	for _, d := range matched {
		ids[m.ID(d)] = true
	}

	removed, err := engine.DeleteAllBy(s.db, m, func(d model.Document) bool {
		return ids[m.ID(d)]
	})
	if err != nil {
		return s.out.Fail("delete-by", err)
	}
	if removed == nil {
		removed = []model.Document{}
	}
	return s.result(DeleteResult{Deleted: removed}, fmt.Sprintf("deleted %d record(s) from %s", len(removed), modelName))
}
