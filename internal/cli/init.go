package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/crid/internal/registry"
	"github.com/roach88/crid/internal/store"
)

// InitOptions holds flags for the init command.
type InitOptions struct {
	*RootOptions
	AdminID string
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a registry and fix its administrator",
		Long: `Initialize the database and record the registry's administrator.

The administrator is fixed for the lifetime of the registry. Running init
again with the same administrator is a no-op; a different administrator is
rejected with ALREADY_EXISTS.

The administrator defaults to the configured admin (CRID_ADMIN).

Exit codes:
  0 - Registry initialized (or already initialized with this admin)
  1 - Rejected (different administrator, empty identity)
  2 - Command error (database unusable, etc.)

Examples:
  crid init --admin registrar
  crid init --admin registrar --db /var/lib/crid/crid.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.AdminID, "admin", "", "administrator identity (default: configured admin)")

	return cmd
}

func runInit(opts *InitOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd.Context())
	f := opts.formatter(cmd)

	admin := opts.AdminID
	if admin == "" {
		admin = opts.Admin
	}

	st, err := openStore(opts.RootOptions)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Init(ctx, registry.Identity(admin)); err != nil {
		return f.Rejected(err)
	}
	recorded, err := st.Admin(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read administrator", err)
	}

	opts.Logger().Info("registry initialized", "db", opts.DBPath, "admin", recorded)
	if opts.Format == "json" {
		return f.Success(adminResult{DBPath: opts.DBPath, Admin: recorded})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Initialized registry at %s (administrator: %s)\n", opts.DBPath, recorded)
	return nil
}

type adminResult struct {
	DBPath string            `json:"db_path"`
	Admin  registry.Identity `json:"admin"`
}

// NewAdminCommand creates the admin command.
func NewAdminCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "admin",
		Short:         "Show the registry's administrator",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdmin(rootOpts, cmd)
		},
	}
}

func runAdmin(opts *RootOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd.Context())

	st, err := openStore(opts)
	if err != nil {
		return err
	}
	defer st.Close()

	admin, err := st.Admin(ctx)
	if errors.Is(err, store.ErrNotInitialized) {
		return NewExitError(ExitCommandError, fmt.Sprintf("registry at %s is not initialized", opts.DBPath))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read administrator", err)
	}

	if opts.Format == "json" {
		return opts.formatter(cmd).Success(adminResult{DBPath: opts.DBPath, Admin: admin})
	}
	fmt.Fprintln(cmd.OutOrStdout(), admin)
	return nil
}
