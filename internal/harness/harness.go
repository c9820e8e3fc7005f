package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"reflect"

	"github.com/roach88/crid/internal/engine"
	"github.com/roach88/crid/internal/ir"
	"github.com/roach88/crid/internal/registry"
	"github.com/roach88/crid/internal/store"
	"github.com/roach88/crid/internal/testutil"
)

// Harness executes scenario steps through an engine and records the
// events it commits.
type Harness struct {
	engine   *engine.Engine
	recorder *testutil.EventRecorder
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// An error means the scenario could not be executed (invalid scenario,
// failed setup, storage failure). Expectation and assertion failures are
// reported in Result.Errors instead.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	if err := st.Init(ctx, registry.Identity(scenario.Admin)); err != nil {
		return nil, fmt.Errorf("failed to initialize registry: %w", err)
	}
	reg, err := st.Registry(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry: %w", err)
	}

	prefix := scenario.RequestPrefix
	if prefix == "" {
		prefix = scenario.Name
	}
	h := &Harness{
		engine: engine.New(reg, testutil.NewSequentialRequestIDs(prefix),
			engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))),
		recorder: testutil.NewEventRecorder(),
	}
	h.engine.Subscribe(h.recorder.Record)

	done := make(chan error, 1)
	go func() { done <- h.engine.Run(ctx) }()
	defer func() {
		h.engine.Stop()
		<-done
	}()

	result := NewResult()
	if err := h.executeSetup(ctx, scenario.Setup, result); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}
	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}
	result.Events = h.recorder.Events()

	actx := &AssertionContext{
		Ctx:      ctx,
		Registry: reg,
		Store:    st,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

// executeSetup runs all setup steps. Any rejection aborts the scenario.
func (h *Harness) executeSetup(ctx context.Context, setup []Step, result *Result) error {
	for i, step := range setup {
		te, err := h.execute(ctx, fmt.Sprintf("setup[%d]", i), step)
		if err != nil {
			return err
		}
		result.AddTrace(te)
		if te.Case != CaseSuccess {
			return fmt.Errorf("setup[%d]: %s %s as %s rejected: %s", i, step.Op, te.Args.Str("code"), step.As, te.Case)
		}
	}
	return nil
}

// executeFlow runs all flow steps and checks their expect clauses.
func (h *Harness) executeFlow(ctx context.Context, flow []Step, result *Result) error {
	for i, step := range flow {
		te, err := h.execute(ctx, fmt.Sprintf("flow[%d]", i), step)
		if err != nil {
			return err
		}
		result.AddTrace(te)

		if step.Expect == nil {
			continue
		}
		if te.Case != step.Expect.Case {
			result.AddError(fmt.Sprintf("flow[%d]: %s as %s: expected case %s, got %s",
				i, step.Op, step.As, step.Expect.Case, te.Case))
			continue
		}
		if len(step.Expect.Result) > 0 && te.Event != nil {
			if msg := matchPayload(te.Event.Payload(), step.Expect.Result); msg != "" {
				result.AddError(fmt.Sprintf("flow[%d]: %s", i, msg))
			}
		}
	}
	return nil
}

// execute submits one step through the engine. Argument errors that the
// registry would reject (bad state name, out-of-range capacity) become the
// step's outcome without reaching the engine.
func (h *Harness) execute(ctx context.Context, label string, step Step) (TraceEvent, error) {
	args, err := ir.ObjectFromMap(step.Args)
	if err != nil {
		return TraceEvent{}, fmt.Errorf("%s: args: %w", label, err)
	}
	te := TraceEvent{Step: label, As: step.As, Op: step.Op, Args: args}

	cmd, err := buildCommand(step, args)
	if err == nil {
		var out engine.Outcome
		out, err = h.engine.Submit(ctx, cmd)
		te.RequestID = out.RequestID
		if err == nil {
			ev := out.Event
			te.Event = &ev
		}
	}

	c, ok := caseOf(err)
	if !ok {
		return te, fmt.Errorf("%s: %w", label, err)
	}
	te.Case = c
	return te, nil
}

// buildCommand converts step arguments into an engine command.
func buildCommand(step Step, args ir.Object) (engine.Command, error) {
	op, err := engine.ParseOp(step.Op)
	if err != nil {
		return engine.Command{}, err
	}
	cmd := engine.Command{
		Op:     op,
		Caller: registry.Identity(step.As),
		Code:   args.Str("code"),
	}

	switch op {
	case engine.OpCreateCourse:
		if v, present := args["max_capacity"]; present {
			n, ok := v.(ir.Int)
			if !ok || n < 0 || n > math.MaxUint32 {
				return engine.Command{}, registry.NewInvalidArgument("max_capacity", fmt.Sprintf("invalid max capacity %v", ir.ToAny(v)))
			}
			cmd.MaxCapacity = uint32(n)
		}
	case engine.OpUpdateEnrollment:
		state, err := stateArg(args)
		if err != nil {
			return engine.Command{}, err
		}
		cmd.State = state
	}
	return cmd, nil
}

func stateArg(args ir.Object) (registry.State, error) {
	switch v := args["state"].(type) {
	case ir.String:
		return registry.ParseState(string(v))
	case ir.Int:
		if v < 0 || v > math.MaxUint8 {
			return 0, registry.NewInvalidArgument("state", fmt.Sprintf("unknown state %d", int64(v)))
		}
		// Out-of-range ordinals are left for the registry to reject.
		return registry.State(v), nil
	case nil:
		return 0, registry.NewInvalidArgument("state", "state is required")
	default:
		return 0, registry.NewInvalidArgument("state", fmt.Sprintf("invalid state %v", ir.ToAny(v)))
	}
}

// matchPayload checks that payload contains every expected field.
// Returns "" on match.
func matchPayload(payload ir.Object, expected map[string]any) string {
	want, err := ir.ObjectFromMap(expected)
	if err != nil {
		return fmt.Sprintf("expect.result: %v", err)
	}
	for _, key := range want.SortedKeys() {
		got, ok := payload[key]
		if !ok {
			return fmt.Sprintf("expected result field %q, not present", key)
		}
		if !reflect.DeepEqual(got, want[key]) {
			return fmt.Sprintf("expected result %s=%v, got %v", key, ir.ToAny(want[key]), ir.ToAny(got))
		}
	}
	return ""
}
