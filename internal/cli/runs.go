package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/idsync/internal/store/sqlitestore"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	Limit int
}

// RunsResult is the output of the runs command.
type RunsResult struct {
	Runs []sqlitestore.Run `json:"runs"`
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded reconcile runs",
		Long: `List reconcile and sync runs recorded in the local database, most recent
first.

Examples:
  idsync runs
  idsync runs --limit 5 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(contextOf(cmd), opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum runs to list (0 for all)")
	return cmd
}

func runRuns(ctx context.Context, opts *RunsOptions, cmd *cobra.Command) error {
	// Run history is local; never dial MongoDB for it.
	local := *opts.RootOptions
	local.Store = StoreSQLite
	b, err := openBackend(ctx, &local)
	if err != nil {
		return err
	}
	defer b.Close(context.Background())

	runs, err := b.sqlite.ListRuns(ctx, opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}
	if runs == nil {
		runs = []sqlitestore.Run{}
	}
	return opts.formatter(cmd).Success(&RunsResult{Runs: runs})
}

func (r *RunsResult) renderText(w io.Writer) error {
	if len(r.Runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tCOMMAND\tTARGET\tSTARTED\tUPDATED\tCORRECT\tNOT FOUND\tSKIPPED\tFAILED")
	for _, run := range r.Runs {
		command := run.Command
		if run.DryRun {
			command += " (dry)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
			run.ID, command, run.Target, run.StartedAt.Format(time.RFC3339),
			run.Updated, run.AlreadyCorrect, run.NotFound, run.Skipped, run.Failed)
	}
	return tw.Flush()
}
