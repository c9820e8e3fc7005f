package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/crid/internal/engine"
	"github.com/roach88/crid/internal/registry"
)

// EnrollOptions holds flags for the enroll and enrollment commands.
type EnrollOptions struct {
	*RootOptions
	As string // participant identity
}

func writeEnrollment(w io.Writer, e registry.Enrollment) {
	fmt.Fprintf(w, "%s\t%s\t%s\n", e.Code, e.Participant, e.State)
}

// NewEnrollCommand creates the enroll command.
func NewEnrollCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EnrollOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "enroll <code> <state>",
		Short: "Set your enrollment state in a course",
		Long: `Request an enrollment state for the calling participant.

States are Pending, Confirmed and Locked (names are case-insensitive;
0, 1 and 2 are accepted too). Confirmation takes a slot and is only
possible from Pending while slots remain. Locking a Confirmed enrollment
releases its slot. Locked is final.

Exit codes:
  0 - Enrollment updated
  1 - Rejected (COURSE_NOT_FOUND, ILLEGAL_TRANSITION, CAPACITY_EXCEEDED, INVALID_ARGUMENT)
  2 - Command error

Examples:
  crid enroll MAB123 Confirmed --as alice
  crid enroll MAB123 locked --as alice --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnroll(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.As, "as", "", "participant identity (required)")
	_ = cmd.MarkFlagRequired("as")

	return cmd
}

func runEnroll(opts *EnrollOptions, code, state string, cmd *cobra.Command) error {
	ctx := commandContext(cmd.Context())
	f := opts.formatter(cmd)

	requested, err := registry.ParseState(state)
	if err != nil {
		return f.Rejected(err)
	}

	s, err := openSession(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	out, err := s.submit(ctx, engine.Command{
		Op:     engine.OpUpdateEnrollment,
		Caller: registry.Identity(opts.As),
		Code:   code,
		State:  requested,
	})
	if err != nil {
		return f.Rejected(err)
	}

	ev := out.Event
	e := registry.Enrollment{Participant: ev.Participant, Code: ev.Code, State: ev.State}
	return f.Applied(out.RequestID, e,
		fmt.Sprintf("%s is %s in %s (%d slots remaining)", e.Participant, e.State, e.Code, s.reg.GetRemainingSlots(e.Code)))
}

// NewEnrollmentCommand creates the enrollment command group.
func NewEnrollmentCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EnrollOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "enrollment",
		Short: "Inspect enrollments",
	}

	show := &cobra.Command{
		Use:   "show <code>",
		Short: "Show a participant's enrollment state",
		Long: `Show a participant's state in a course. Participants who never
requested a state read as Pending.

Example:
  crid enrollment show MAB123 --as alice`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnrollmentShow(opts, args[0], cmd)
		},
	}
	show.Flags().StringVar(&opts.As, "as", "", "participant identity (required)")
	_ = show.MarkFlagRequired("as")

	list := &cobra.Command{
		Use:           "list <code>",
		Short:         "List recorded enrollments of a course by participant",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnrollmentList(rootOpts, args[0], cmd)
		},
	}

	cmd.AddCommand(show, list)
	return cmd
}

func runEnrollmentShow(opts *EnrollOptions, code string, cmd *cobra.Command) error {
	s, err := openSession(commandContext(cmd.Context()), opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	participant := registry.NormalizeIdentity(registry.Identity(opts.As))
	code = registry.NormalizeCode(code)
	e := s.reg.GetEnrollment(participant, code)
	e.Participant, e.Code = participant, code

	if opts.Format == "json" {
		return opts.formatter(cmd).Success(e)
	}
	writeEnrollment(cmd.OutOrStdout(), e)
	return nil
}

func runEnrollmentList(opts *RootOptions, code string, cmd *cobra.Command) error {
	s, err := openSession(commandContext(cmd.Context()), opts)
	if err != nil {
		return err
	}
	defer s.Close()

	enrollments := s.reg.ListEnrollments(registry.NormalizeCode(code))
	if enrollments == nil {
		enrollments = []registry.Enrollment{}
	}

	if opts.Format == "json" {
		return opts.formatter(cmd).Success(enrollments)
	}
	w := cmd.OutOrStdout()
	if len(enrollments) == 0 {
		fmt.Fprintln(w, "No enrollments.")
		return nil
	}
	for _, e := range enrollments {
		writeEnrollment(w, e)
	}
	return nil
}
