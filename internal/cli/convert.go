package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ConvertOptions holds flags for the convert command.
type ConvertOptions struct {
	*RootOptions
	To       string
	ToFormat string
	ToLayout string
	Compact  bool
}

// ConvertResult is the JSON payload of convert.
type ConvertResult struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Records int    `json:"records"`
}

// NewConvertCommand creates the convert command.
func NewConvertCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConvertOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "convert --to <path>",
		Short: "Copy the store into another format or layout",
		Long: `Load the configured store and persist a snapshot of it with another adapter.

Without --to-format and --to-layout the target adapter is picked from the
extension of --to: .json, .yaml and .db are single files, anything else is
a directory of JSON files. The configured store is not modified.

Example:
  filedb convert --to ./backup.db
  filedb convert --to ./export --to-format csv`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(s *session) error {
				return runConvert(s, opts)
			})
		},
	}

	cmd.Flags().StringVar(&opts.To, "to", "", "target file or directory (required)")
	cmd.Flags().StringVar(&opts.ToFormat, "to-format", "", "target format (json|yaml|csv|sqlite)")
	cmd.Flags().StringVar(&opts.ToLayout, "to-layout", "", "target layout (unified|partitioned)")
	cmd.Flags().BoolVar(&opts.Compact, "compact", false, "write compact JSON")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

func runConvert(s *session, opts *ConvertOptions) error {
	target, err := buildAdapter(opts.To, opts.ToFormat, opts.ToLayout, opts.Compact)
	if err != nil {
		return s.out.Fail("convert", err)
	}
	snapshot, err := s.db.Snapshot()
	if err != nil {
		return s.out.Fail("convert", err)
	}
	s.out.VerboseLog("Writing %d record(s) to %s", snapshot.Len(), opts.To)
	if err := target.Persist(snapshot); err != nil {
		return s.out.Fail("convert", err)
	}

	res := ConvertResult{From: s.cfg.StorePath(), To: opts.To, Records: snapshot.Len()}
	return s.result(res, fmt.Sprintf("converted %d record(s) from %s to %s", res.Records, res.From, res.To))
}
