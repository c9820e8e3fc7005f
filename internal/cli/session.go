package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/crid/internal/engine"
	"github.com/roach88/crid/internal/registry"
	"github.com/roach88/crid/internal/store"
)

// session is an open database with the registry restored from it. Mutating
// commands also start an engine in front of the registry.
type session struct {
	opts   *RootOptions
	store  *store.Store
	reg    *registry.Registry
	engine *engine.Engine
	done   chan error
}

// openStore opens the configured database.
func openStore(opts *RootOptions) (*store.Store, error) {
	st, err := store.Open(opts.DBPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// openSession opens the database and restores the registry. An
// uninitialized database is a command error.
func openSession(ctx context.Context, opts *RootOptions) (*session, error) {
	st, err := openStore(opts)
	if err != nil {
		return nil, err
	}

	reg, err := st.Registry(ctx)
	if err != nil {
		st.Close()
		if errors.Is(err, store.ErrNotInitialized) {
			return nil, NewExitError(ExitCommandError,
				fmt.Sprintf("registry at %s is not initialized (run `crid init --admin <id>`)", opts.DBPath))
		}
		return nil, WrapExitError(ExitCommandError, "failed to load registry", err)
	}
	return &session{opts: opts, store: st, reg: reg}, nil
}

// submit runs cmd through the engine, starting it on first use.
func (s *session) submit(ctx context.Context, cmd engine.Command) (engine.Outcome, error) {
	if s.engine == nil {
		s.engine = engine.New(s.reg, s.opts.requestIDs(), engine.WithLogger(s.opts.Logger()))
		s.done = make(chan error, 1)
		go func() { s.done <- s.engine.Run(ctx) }()
	}
	return s.engine.Submit(ctx, cmd)
}

// Close drains the engine, if started, then closes the database.
func (s *session) Close() error {
	if s.engine != nil {
		s.engine.Stop()
		if err := <-s.done; err != nil && !errors.Is(err, context.Canceled) {
			s.opts.Logger().Error("engine stopped with error", "error", err)
		}
	}
	return s.store.Close()
}

// commandContext returns the command's context, or Background when the
// command is executed without one.
func commandContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
