package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/idsync/internal/engine"
	"github.com/roach88/idsync/internal/metrics"
)

// PropagateOptions holds flags for the propagate command.
type PropagateOptions struct {
	*RootOptions
	Pairs       []string // OLD=NEW
	MappingFile string
	Fields      []string
	Snapshot    string
	DryRun      bool
}

// PropagateResult is the output of the propagate command.
type PropagateResult struct {
	Live     *engine.PropagateReport `json:"live"`
	Snapshot *engine.PropagateReport `json:"snapshot,omitempty"`
}

// NewPropagateCommand creates the propagate command.
func NewPropagateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PropagateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "propagate <collection>",
		Short: "Replace old customer ids with new ones",
		Long: `Push an old->new customer id mapping into a collection: every listed field
holding an old id is set to its new id. With --snapshot the same mapping is
applied to a JSON snapshot file, at any depth.

The mapping comes from repeated --map OLD=NEW flags and/or a YAML file of
old: new pairs (--mapping-file). Pairs whose old and new ids are equal are
ignored. A new id may not also be remapped (no chains or swaps).

Examples:
  idsync propagate orders --map OLD1=CUS000001 --map OLD2=CUS000002
  idsync propagate orders --mapping-file ids.yaml --field CustomerID --field billing.customerId
  idsync propagate orders --mapping-file ids.yaml --snapshot ./data/orders.json --dry-run`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPropagate(contextOf(cmd), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Pairs, "map", nil, "id mapping pair OLD=NEW (repeatable)")
	cmd.Flags().StringVar(&opts.MappingFile, "mapping-file", "", "YAML file of old: new id pairs")
	cmd.Flags().StringArrayVar(&opts.Fields, "field", []string{"CustomerID"}, "field holding customer ids (repeatable)")
	cmd.Flags().StringVar(&opts.Snapshot, "snapshot", "", "also rewrite this JSON snapshot file")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "count matches without writing")

	return cmd
}

func runPropagate(ctx context.Context, opts *PropagateOptions, collection string, cmd *cobra.Command) error {
	mapping, err := loadMapping(opts.MappingFile, opts.Pairs)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid mapping", err)
	}
	if len(mapping) == 0 {
		return NewExitError(ExitCommandError, "no id mapping given: use --map or --mapping-file")
	}

	b, err := openBackend(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer b.Close(context.Background())

	eng := newEngine(opts.RootOptions, metrics.New(), engine.WithDryRun(opts.DryRun))
	result := &PropagateResult{}

	result.Live, err = eng.Propagate(ctx, b.Collection(collection), mapping, opts.Fields)
	if err != nil {
		return engineExit("propagate failed", err)
	}
	if opts.Snapshot != "" {
		result.Snapshot, err = eng.PropagateFile(opts.Snapshot, mapping, opts.Fields)
		if err != nil {
			return engineExit("propagate to snapshot failed", err)
		}
	}

	if err := opts.formatter(cmd).SuccessRun(result.Live.RunID, result); err != nil {
		return err
	}
	if n := len(result.Live.Failures); n > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d id pair update(s) failed", n))
	}
	return nil
}

// loadMapping merges the YAML mapping file (if any) with OLD=NEW pairs.
// Pairs given on the command line win over the file.
func loadMapping(path string, pairs []string) (map[string]string, error) {
	mapping := map[string]string{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &mapping); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}
	for _, p := range pairs {
		old, next, ok := strings.Cut(p, "=")
		old, next = strings.TrimSpace(old), strings.TrimSpace(next)
		if !ok || old == "" || next == "" {
			return nil, fmt.Errorf("want OLD=NEW, got %q", p)
		}
		mapping[old] = next
	}
	return mapping, nil
}

func (r *PropagateResult) renderText(w io.Writer) error {
	writePropagate(w, "live", r.Live)
	if r.Snapshot != nil {
		writePropagate(w, "snapshot", r.Snapshot)
	}
	return nil
}

func writePropagate(w io.Writer, label string, r *engine.PropagateReport) {
	mode := ""
	if r.DryRun {
		mode = " (dry run)"
	}
	fmt.Fprintf(w, "%s%s: run %s, matched %d, modified %d\n", label, mode, r.RunID, r.Matched, r.Modified)
	for _, p := range r.Pairs {
		fmt.Fprintf(w, "  %s: %s -> %s (%d)\n", p.Field, p.Old, p.New, p.Modified)
	}
	for _, c := range r.Changes {
		fmt.Fprintf(w, "  %s: %s -> %s\n", c.Path, c.Old, c.New)
	}
	for _, f := range r.Failures {
		fmt.Fprintf(w, "  ✗ %s\n", f.Error())
	}
}
