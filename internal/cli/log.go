package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/crid/internal/ir"
	"github.com/roach88/crid/internal/registry"
)

// LogOptions holds flags for the log command.
type LogOptions struct {
	*RootOptions
	After     int64
	Limit     int
	RequestID string
}

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Print the event log",
		Long: `Print committed events in seq order.

Each line shows the seq, the event ID, the kind and the canonical payload.
Rejected operations never appear in the log.

Examples:
  crid log
  crid log --after 10 --limit 5
  crid log --request 01920000-0000-7000-8000-000000000000 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLog(opts, cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.After, "after", 0, "only events with seq greater than this")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of events (0 = all)")
	cmd.Flags().StringVar(&opts.RequestID, "request", "", "only events stamped with this request ID")

	return cmd
}

func runLog(opts *LogOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd.Context())

	s, err := openSession(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	var events []registry.Event
	if opts.RequestID != "" {
		events, err = s.store.ReadEventsByRequest(ctx, opts.RequestID)
	} else {
		events, err = s.store.ReadEvents(ctx, opts.After, opts.Limit)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read event log", err)
	}

	if opts.Format == "json" {
		return opts.formatter(cmd).Success(events)
	}
	return writeEvents(cmd.OutOrStdout(), events)
}

func writeEvents(w io.Writer, events []registry.Event) error {
	if len(events) == 0 {
		fmt.Fprintln(w, "No events.")
		return nil
	}
	for _, ev := range events {
		payload, err := ir.MarshalCanonical(ev.Payload())
		if err != nil {
			return fmt.Errorf("event %d: %w", ev.Seq, err)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s", ev.Seq, ev.ID, ev.Kind, payload)
		if ev.RequestID != "" {
			fmt.Fprintf(w, "\trequest=%s", ev.RequestID)
		}
		fmt.Fprintln(w)
	}
	return nil
}
