package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/idsync/internal/match"
)

// ResolveOptions holds flags for the resolve command.
type ResolveOptions struct {
	*RootOptions
	FullName string
	Phone    string
	Email    string
}

// ResolveResult is the output of the resolve command.
type ResolveResult struct {
	Candidate match.Candidate  `json:"candidate"`
	Outcome   string           `json:"outcome"`
	StableID  string           `json:"stable_id,omitempty"`
	Tier      string           `json:"tier,omitempty"`
	Index     match.IndexStats `json:"index"`
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Look up the customer for a name, phone and email",
		Long: `Build the identity index from the customer collection and resolve one set
of loose identity fields against it, without touching any target.

Examples:
  idsync resolve --name "Alice Smith" --phone 0900000001
  idsync resolve --name "alice smith" --email alice@example.com --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(contextOf(cmd), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.FullName, "name", "", "customer full name")
	cmd.Flags().StringVar(&opts.Phone, "phone", "", "customer phone number")
	cmd.Flags().StringVar(&opts.Email, "email", "", "customer email address")

	return cmd
}

func runResolve(ctx context.Context, opts *ResolveOptions, cmd *cobra.Command) error {
	b, err := openBackend(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer b.Close(context.Background())

	identities, err := b.identities(ctx, opts.RootOptions)
	if err != nil {
		return engineExit("failed to load identities", err)
	}

	ix := match.Build(identities)
	c := match.Candidate{FullName: opts.FullName, Phone: opts.Phone, Email: opts.Email}
	res := ix.Resolve(c)

	result := &ResolveResult{
		Candidate: c,
		Outcome:   res.Outcome.String(),
		Index:     ix.Stats(),
	}
	if res.Outcome == match.Matched {
		result.StableID = res.StableID
		result.Tier = res.Tier.String()
	}
	return opts.formatter(cmd).Success(result)
}

func (r *ResolveResult) renderText(w io.Writer) error {
	if r.Outcome == match.Matched.String() {
		fmt.Fprintf(w, "%s (tier %s)\n", r.StableID, r.Tier)
		return nil
	}
	fmt.Fprintln(w, r.Outcome)
	return nil
}
