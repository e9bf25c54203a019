package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/filedb/dberr"
	"github.com/roach88/filedb/engine"
	"github.com/roach88/filedb/internal/query"
	"github.com/roach88/filedb/model"
)

// ModelInfo describes a configured model in `models` output.
type ModelInfo struct {
	Name    string   `json:"name"`
	IDField string   `json:"id_field"`
	Columns []string `json:"columns,omitempty"`
	Schema  bool     `json:"schema"`
	Records int      `json:"records"`
}

// NewModelsCommand creates the models command.
func NewModelsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "models",
		Short:         "List configured models and their record counts",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, runModels)
		},
	}
}

func runModels(s *session) error {
	infos := make([]ModelInfo, 0, s.cat.registry.Len())
	var text strings.Builder
	for i, mc := range s.cfg.Models {
		m, err := s.cat.lookup(mc.Name)
		if err != nil {
			return s.out.Fail("list models", err)
		}
		n, err := engine.Count(s.db, m)
		if err != nil {
			return s.out.Fail("list models", err)
		}
		info := ModelInfo{
			Name:    mc.Name,
			IDField: s.cat.idFields[mc.Name],
			Columns: mc.Columns,
			Schema:  mc.Schema != "" || mc.SchemaFile != "",
			Records: n,
		}
		infos = append(infos, info)
		if i > 0 {
			text.WriteString("\n")
		}
		fmt.Fprintf(&text, "%s\tid=%s\trecords=%d", info.Name, info.IDField, info.Records)
	}
	return s.result(infos, text.String())
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <model> <id>",
		Short: "Print one record",
		Long: `Print the record of a model with the given id.

Exits with status 1 when no such record exists.

Example:
  filedb get users 42`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(s *session) error {
				return runGet(s, args[0], args[1])
			})
		},
	}
}

func runGet(s *session, modelName, id string) error {
	m, err := s.cat.lookup(modelName)
	if err != nil {
		return s.out.Fail("get", err)
	}
	doc, ok, err := engine.Get(s.db, m, id)
	if err != nil {
		return s.out.Fail("get", err)
	}
	if !ok {
		return s.out.Fail("get", dberr.NotFound(modelName, id))
	}
	if s.out.Format == "json" {
		return s.out.Success(doc)
	}
	return s.out.Documents([]model.Document{doc})
}

// FilterOptions holds the --where flag shared by list, count and delete-by.
type FilterOptions struct {
	*RootOptions
	Where string
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FilterOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list <model>",
		Short: "Print the records of a model",
		Long: `Print the records of a model in collection order.

--where filters with an expression over the record fields:

Example:
  filedb list users
  filedb list users --where 'age >= 18 && role == "admin"'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(s *session) error {
				return runList(s, args[0], opts.Where)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Where, "where", "", "filter expression")

	return cmd
}

func runList(s *session, modelName, where string) error {
	docs, err := selectDocuments(s, modelName, where)
	if err != nil {
		return s.out.Fail("list", err)
	}
	return s.out.Documents(docs)
}

// NewCountCommand creates the count command.
func NewCountCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FilterOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "count <model>",
		Short:         "Print the number of records of a model",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(s *session) error {
				return runCount(s, args[0], opts.Where)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Where, "where", "", "count only records matching the expression")

	return cmd
}

func runCount(s *session, modelName, where string) error {
	var n int
	if where == "" {
		m, err := s.cat.lookup(modelName)
		if err != nil {
			return s.out.Fail("count", err)
		}
		if n, err = engine.Count(s.db, m); err != nil {
			return s.out.Fail("count", err)
		}
	} else {
		docs, err := selectDocuments(s, modelName, where)
		if err != nil {
			return s.out.Fail("count", err)
		}
		n = len(docs)
	}
	return s.result(map[string]int{"count": n}, fmt.Sprint(n))
}

// selectDocuments returns the documents of modelName matching where,
// or all of them when where is empty.
func selectDocuments(s *session, modelName, where string) ([]model.Document, error) {
	m, err := s.cat.lookup(modelName)
	if err != nil {
		return nil, err
	}
	if where == "" {
		return engine.GetAll(s.db, m)
	}
	filter, err := query.Compile(where)
	if err != nil {
		return nil, err
	}
	docs, err := engine.GetAllBy(s.db, m, filter.Predicate())
	if err != nil {
		return nil, err
	}
	if err := filter.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}
