package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/idsync/internal/config"
	"github.com/roach88/idsync/internal/doc"
	"github.com/roach88/idsync/internal/engine"
	"github.com/roach88/idsync/internal/match"
	"github.com/roach88/idsync/internal/metrics"
	"github.com/roach88/idsync/internal/snapshot"
	"github.com/roach88/idsync/internal/store"
)

// ReconcileOptions holds flags for the reconcile command.
type ReconcileOptions struct {
	*RootOptions
	DryRun      bool
	Workers     int
	Snapshot    string // mirror file; overrides the target's snapshot setting
	NoSnapshot  bool
	MetricsFile string
}

// ReconcileResult is the output of the reconcile command.
type ReconcileResult struct {
	Live   *engine.Report `json:"live"`
	Mirror *engine.Report `json:"mirror,omitempty"`

	// Snapshot is the mirror file path, when one was reconciled.
	Snapshot string `json:"snapshot,omitempty"`

	// Diff holds the planned changes as unified diffs on a dry run.
	Diff string `json:"diff,omitempty"`
}

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReconcileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reconcile <target>",
		Short: "Resolve customer ids on a target collection",
		Long: `Resolve each record of a configured target collection to a customer and
write the customer's stable id into the record's tracked fields.

When the target has a snapshot file (or --snapshot is given) the file is
reconciled as a mirror of the live collection: both are read before either
is written, and the file is rewritten afterwards.

Exit codes:
  0 - Every record was updated, already correct, not found or skipped
  1 - One or more record updates failed
  2 - Command error (unknown target, store unreachable, etc.)

Examples:
  idsync reconcile orders
  idsync reconcile orders --dry-run
  idsync reconcile orders --snapshot ./data/orders.json --workers 8
  idsync reconcile orders --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("workers") {
				opts.Config.Workers = opts.Workers
			}
			return runReconcile(contextOf(cmd), opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "plan and report without writing")
	cmd.Flags().IntVar(&opts.Workers, "workers", engine.DefaultWorkers, "concurrent record updates (default from config)")
	cmd.Flags().StringVar(&opts.Snapshot, "snapshot", "", "JSON mirror file to keep in step with the collection")
	cmd.Flags().BoolVar(&opts.NoSnapshot, "no-snapshot", false, "ignore the target's configured snapshot file")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "write Prometheus metrics in textfile format (default from config)")

	return cmd
}

func runReconcile(ctx context.Context, opts *ReconcileOptions, name string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	target, err := opts.Config.Target(name)
	if err != nil {
		if errors.Is(err, config.ErrUnknownTarget) {
			return WrapExitError(ExitCommandError, "cannot reconcile", err)
		}
		return err
	}
	mirrorPath := target.Snapshot
	if opts.Snapshot != "" {
		mirrorPath = opts.Snapshot
	}
	if opts.NoSnapshot {
		mirrorPath = ""
	}

	b, err := openBackend(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer b.Close(context.Background())

	identities, err := b.identities(ctx, opts.RootOptions)
	if err != nil {
		return engineExit("failed to load identities", err)
	}

	m := metrics.New()
	eng := newEngine(opts.RootOptions, m, engine.WithDryRun(opts.DryRun))
	live := b.Collection(target.Name)

	result := &ReconcileResult{Snapshot: mirrorPath}
	command := "reconcile"
	var full any

	formatter.VerboseLog("reconciling %s against %d identities", target.Name, len(identities))
	if mirrorPath == "" {
		report, err := eng.Reconcile(ctx, identities, live, target.TargetSpec)
		if err != nil {
			return engineExit("reconcile failed", err)
		}
		result.Live = report
		full = report
	} else {
		command = "sync"
		file, err := snapshot.Load(mirrorPath)
		if err != nil {
			return engineExit("failed to load snapshot", err)
		}
		sync, err := eng.Sync(ctx, identities, live, file.Collection(), target.TargetSpec)
		if err != nil {
			return engineExit("sync failed", err)
		}
		if !eng.DryRun() {
			if err := file.Save(); err != nil {
				return engineExit("failed to save snapshot", err)
			}
		}
		result.Live, result.Mirror = sync.Live, sync.Mirror
		full = sync
	}

	if opts.DryRun {
		diff, err := planDiff(ctx, identities, live, mirrorPath, target.TargetSpec)
		if err != nil {
			return engineExit("failed to render diff", err)
		}
		result.Diff = diff
	}

	if err := b.saveRun(ctx, command, result.Live, full); err != nil {
		opts.Logger.Warn("failed to record run", "run_id", result.Live.RunID, "error", err)
	}

	metricsFile := opts.Config.MetricsFile
	if opts.MetricsFile != "" {
		metricsFile = opts.MetricsFile
	}
	if metricsFile != "" {
		if err := m.WriteTextfile(metricsFile); err != nil {
			opts.Logger.Warn("failed to write metrics", "file", metricsFile, "error", err)
		}
	}

	if err := formatter.SuccessRun(result.Live.RunID, result); err != nil {
		return err
	}

	failed := result.Live.Failed
	if result.Mirror != nil {
		failed += result.Mirror.Failed
	}
	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d record update(s) failed", failed))
	}
	return nil
}

// planDiff renders what a reconcile would change, as unified diffs of the
// snapshot form of the live collection and (when set) the mirror file. The
// plan is applied to scratch copies; nothing is written.
func planDiff(ctx context.Context, identities []match.IdentityRecord, live store.Collection, mirrorPath string, spec engine.TargetSpec) (string, error) {
	docs, err := live.FindAll(ctx)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if err := diffInto(ctx, &b, spec.Name, identities, docs, spec); err != nil {
		return "", err
	}
	if mirrorPath != "" {
		file, err := snapshot.Load(mirrorPath)
		if err != nil {
			return "", err
		}
		if err := diffInto(ctx, &b, mirrorPath, identities, file.Docs(), spec); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

func diffInto(ctx context.Context, w io.StringWriter, name string, identities []match.IdentityRecord, docs []doc.Object, spec engine.TargetSpec) error {
	before, err := snapshot.Encode(docs)
	if err != nil {
		return err
	}
	scratch := store.NewMemory(docs...)
	eng := engine.New(engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if _, err := eng.Reconcile(ctx, identities, scratch, spec); err != nil {
		return err
	}
	after, err := snapshot.Encode(scratch.Docs())
	if err != nil {
		return err
	}
	diff, err := snapshot.Diff(name, before, after)
	if err != nil {
		return err
	}
	_, err = w.WriteString(diff)
	return err
}

func (r *ReconcileResult) renderText(w io.Writer) error {
	writeReport(w, "live", r.Live)
	if r.Mirror != nil {
		writeReport(w, "mirror "+r.Snapshot, r.Mirror)
	}
	if r.Diff != "" {
		fmt.Fprintln(w)
		fmt.Fprint(w, r.Diff)
	}
	return nil
}

func writeReport(w io.Writer, label string, r *engine.Report) {
	mode := ""
	if r.DryRun {
		mode = " (dry run)"
	}
	fmt.Fprintf(w, "%s %s%s: run %s in %s\n", label, r.Target, mode, r.RunID, r.Duration().Round(time.Millisecond))
	fmt.Fprintf(w, "  scanned %d, updated %d, already correct %d, not found %d, skipped %d, failed %d\n",
		r.Scanned, r.Updated, r.AlreadyCorrect, r.NotFound, r.Skipped, r.Failed)

	if len(r.ByTier) > 0 {
		tiers := make([]string, 0, len(r.ByTier))
		for tier := range r.ByTier {
			tiers = append(tiers, tier)
		}
		sort.Strings(tiers)
		parts := make([]string, len(tiers))
		for i, tier := range tiers {
			parts[i] = fmt.Sprintf("%s=%d", tier, r.ByTier[tier])
		}
		fmt.Fprintf(w, "  matched by tier: %s\n", strings.Join(parts, " "))
	}
	for _, u := range r.Unmatched {
		fmt.Fprintf(w, "  not found: %s (name %q, phone %q)\n", u.Key, u.FullName, u.Phone)
	}
	for _, f := range r.Failures {
		fmt.Fprintf(w, "  ✗ %s\n", f.Error())
	}
}
