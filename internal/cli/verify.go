package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/crid/internal/store"
)

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Replay the event log and compare it with stored state",
		Long: `Replay the event log through a fresh registry and compare the result
with the stored course and enrollment tables.

Exit codes:
  0 - Log and tables agree
  1 - Divergence detected
  2 - Command error (database not found, not initialized, etc.)

Examples:
  crid verify --db ./crid.db
  crid verify --db ./crid.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(rootOpts, cmd)
		},
	}
}

func runVerify(opts *RootOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd.Context())

	st, err := openStore(opts)
	if err != nil {
		return err
	}
	defer st.Close()

	report, err := st.Verify(ctx)
	if errors.Is(err, store.ErrNotInitialized) {
		return NewExitError(ExitCommandError, fmt.Sprintf("registry at %s is not initialized", opts.DBPath))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to verify", err)
	}

	for _, d := range report.Divergences {
		opts.Logger().Warn("replay divergence", "detail", d)
	}

	if opts.Format == "json" {
		response := CLIResponse{Status: "ok", Data: report}
		if !report.OK() {
			response.Status = "error"
			response.Error = &CLIError{
				Code:    "E_REPLAY_MISMATCH",
				Message: fmt.Sprintf("%d divergence(s) between event log and stored state", len(report.Divergences)),
				Details: report.Divergences,
			}
		}
		if err := writeJSON(cmd.OutOrStdout(), response); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Events replayed: %d (last seq %d)\n", report.Events, report.LastSeq)
		fmt.Fprintf(w, "Stored digest:   %s\n", report.StoredDigest)
		if report.ReplayedDigest != "" {
			fmt.Fprintf(w, "Replayed digest: %s\n", report.ReplayedDigest)
		}
		for _, d := range report.Divergences {
			fmt.Fprintf(w, "  ✗ %s\n", d)
		}
		if report.OK() {
			fmt.Fprintln(w, "✓ Event log matches stored state")
		}
	}

	if !report.OK() {
		return &ExitError{
			Code:     ExitFailure,
			Message:  fmt.Sprintf("%d divergence(s) between event log and stored state", len(report.Divergences)),
			Reported: true,
		}
	}
	return nil
}
