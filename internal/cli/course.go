package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/crid/internal/engine"
	"github.com/roach88/crid/internal/registry"
)

// CourseOptions holds flags for the course subcommands.
type CourseOptions struct {
	*RootOptions
	As string // caller for course create
}

// courseView is a course as shown by the CLI.
type courseView struct {
	Code           string `json:"code"`
	Exists         bool   `json:"exists"`
	MaxCapacity    uint32 `json:"max_capacity"`
	ConfirmedCount uint32 `json:"confirmed_count"`
	RemainingSlots uint32 `json:"remaining_slots"`
}

func viewCourse(code string, c registry.Course) courseView {
	return courseView{
		Code:           code,
		Exists:         c.Exists(),
		MaxCapacity:    c.MaxCapacity,
		ConfirmedCount: c.ConfirmedCount,
		RemainingSlots: c.RemainingSlots(),
	}
}

func (v courseView) writeText(w io.Writer) {
	if !v.Exists {
		fmt.Fprintf(w, "%s: no such course\n", v.Code)
		return
	}
	fmt.Fprintf(w, "%s\tcapacity=%d\tconfirmed=%d\tremaining=%d\n",
		v.Code, v.MaxCapacity, v.ConfirmedCount, v.RemainingSlots)
}

// NewCourseCommand creates the course command group.
func NewCourseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CourseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "course",
		Short: "Create and inspect courses",
	}

	create := &cobra.Command{
		Use:   "create <code> <max-capacity>",
		Short: "Create a course (administrator only)",
		Long: `Create a course with a fixed, positive capacity.

Only the registry's administrator may create courses. The caller defaults
to the configured admin (CRID_ADMIN).

Exit codes:
  0 - Course created
  1 - Rejected (UNAUTHORIZED, ALREADY_EXISTS, INVALID_ARGUMENT)
  2 - Command error

Examples:
  crid course create MAB123 30 --as registrar
  crid course create MAB123 30 --as registrar --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCourseCreate(opts, args[0], args[1], cmd)
		},
	}
	create.Flags().StringVar(&opts.As, "as", "", "caller identity (default: configured admin)")

	show := &cobra.Command{
		Use:           "show <code>",
		Short:         "Show a course",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCourseShow(rootOpts, args[0], cmd)
		},
	}

	list := &cobra.Command{
		Use:           "list",
		Short:         "List all courses by code",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCourseList(rootOpts, cmd)
		},
	}

	slots := &cobra.Command{
		Use:           "slots <code>",
		Short:         "Print the remaining slots of a course (0 if unknown)",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCourseSlots(rootOpts, args[0], cmd)
		},
	}

	cmd.AddCommand(create, show, list, slots)
	return cmd
}

func runCourseCreate(opts *CourseOptions, code, capacity string, cmd *cobra.Command) error {
	ctx := commandContext(cmd.Context())
	f := opts.formatter(cmd)

	n, err := strconv.ParseUint(capacity, 10, 32)
	if err != nil {
		return f.Rejected(registry.NewInvalidArgument("max_capacity",
			fmt.Sprintf("max capacity must be a positive integer, got %q", capacity)))
	}

	caller := opts.As
	if caller == "" {
		caller = opts.Admin
	}

	s, err := openSession(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	out, err := s.submit(ctx, engine.Command{
		Op:          engine.OpCreateCourse,
		Caller:      registry.Identity(caller),
		Code:        code,
		MaxCapacity: uint32(n),
	})
	if err != nil {
		return f.Rejected(err)
	}

	view := viewCourse(out.Event.Code, s.reg.GetCourse(out.Event.Code))
	return f.Applied(out.RequestID, view,
		fmt.Sprintf("Created course %s with capacity %d", view.Code, view.MaxCapacity))
}

func runCourseShow(opts *RootOptions, code string, cmd *cobra.Command) error {
	s, err := openSession(commandContext(cmd.Context()), opts)
	if err != nil {
		return err
	}
	defer s.Close()

	code = registry.NormalizeCode(code)
	view := viewCourse(code, s.reg.GetCourse(code))
	if opts.Format == "json" {
		return opts.formatter(cmd).Success(view)
	}
	view.writeText(cmd.OutOrStdout())
	return nil
}

func runCourseList(opts *RootOptions, cmd *cobra.Command) error {
	s, err := openSession(commandContext(cmd.Context()), opts)
	if err != nil {
		return err
	}
	defer s.Close()

	courses := s.reg.ListCourses()
	views := make([]courseView, len(courses))
	for i, c := range courses {
		views[i] = viewCourse(c.Code, c)
	}

	if opts.Format == "json" {
		return opts.formatter(cmd).Success(views)
	}
	w := cmd.OutOrStdout()
	if len(views) == 0 {
		fmt.Fprintln(w, "No courses.")
		return nil
	}
	for _, v := range views {
		v.writeText(w)
	}
	return nil
}

func runCourseSlots(opts *RootOptions, code string, cmd *cobra.Command) error {
	s, err := openSession(commandContext(cmd.Context()), opts)
	if err != nil {
		return err
	}
	defer s.Close()

	code = registry.NormalizeCode(code)
	remaining := s.reg.GetRemainingSlots(code)
	if opts.Format == "json" {
		return opts.formatter(cmd).Success(map[string]any{
			"code":            code,
			"remaining_slots": remaining,
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), remaining)
	return nil
}
