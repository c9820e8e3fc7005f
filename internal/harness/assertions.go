package harness

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/crid/internal/ir"
	"github.com/roach88/crid/internal/registry"
	"github.com/roach88/crid/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s as %s %v -> %s\n", i+1, ev.Op, ev.As, ir.ToAny(ev.Args), ev.Case)
		}
	}

	return buf.String()
}

// AssertionContext provides the state assertions are evaluated against.
type AssertionContext struct {
	Ctx      context.Context
	Registry *registry.Registry

	// Store, when set, lets invariants also replay the persisted log.
	Store *store.Store
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertCourse, AssertEnrollment, AssertInvariants:
			if actx == nil || actx.Registry == nil {
				err = fmt.Errorf("assertion[%d]: %s requires a registry", i, assertion.Type)
				break
			}
			switch assertion.Type {
			case AssertCourse:
				err = assertCourse(actx.Registry, assertion, result.Trace)
			case AssertEnrollment:
				err = assertEnrollment(actx.Registry, assertion, result.Trace)
			case AssertInvariants:
				err = assertInvariants(actx, result.Trace)
			}
		case AssertEventCount:
			err = assertEventCount(result, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

// assertCourse checks the listed course fields (subset semantics).
func assertCourse(reg *registry.Registry, a Assertion, trace []TraceEvent) error {
	c := reg.GetCourse(a.Code)
	actual := ir.Object{
		"max_capacity":    ir.Int(c.MaxCapacity),
		"confirmed_count": ir.Int(c.ConfirmedCount),
		"remaining_slots": ir.Int(c.RemainingSlots()),
		"exists":          ir.Bool(c.Exists()),
	}

	expected, err := ir.ObjectFromMap(a.Expect)
	if err != nil {
		return fmt.Errorf("course %s: expect: %w", a.Code, err)
	}
	for _, key := range expected.SortedKeys() {
		if !reflect.DeepEqual(actual[key], expected[key]) {
			return &AssertionError{
				Type:     AssertCourse,
				Expected: fmt.Sprintf("course %s %s=%v", a.Code, key, ir.ToAny(expected[key])),
				Actual:   fmt.Sprintf("%s=%v", key, ir.ToAny(actual[key])),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertEnrollment checks the state of one enrollment.
func assertEnrollment(reg *registry.Registry, a Assertion, trace []TraceEvent) error {
	want, err := registry.ParseState(a.State)
	if err != nil {
		return fmt.Errorf("enrollment %s/%s: %w", a.Participant, a.Code, err)
	}
	got := reg.GetEnrollment(registry.Identity(a.Participant), a.Code).State
	if got != want {
		return &AssertionError{
			Type:     AssertEnrollment,
			Expected: fmt.Sprintf("enrollment %s/%s in %s", a.Participant, a.Code, want),
			Actual:   got.String(),
			Trace:    trace,
		}
	}
	return nil
}

// assertEventCount counts committed events, optionally of one kind.
func assertEventCount(result *Result, a Assertion) error {
	count := 0
	for _, ev := range result.Events {
		if a.Kind == "" || string(ev.Kind) == a.Kind {
			count++
		}
	}

	if count != *a.Count {
		what := "events"
		if a.Kind != "" {
			what = a.Kind + " events"
		}
		return &AssertionError{
			Type:     AssertEventCount,
			Expected: fmt.Sprintf("%d %s", *a.Count, what),
			Actual:   fmt.Sprintf("%d %s", count, what),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertTraceOrder checks that the listed event kinds occur in order.
// Intervening events are allowed.
func assertTraceOrder(result *Result, a Assertion) error {
	next := 0
	for _, ev := range result.Events {
		if next < len(a.Events) && string(ev.Kind) == a.Events[next] {
			next++
		}
	}
	if next == len(a.Events) {
		return nil
	}

	kinds := make([]string, len(result.Events))
	for i, ev := range result.Events {
		kinds[i] = string(ev.Kind)
	}
	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: fmt.Sprintf("events in order: %v", a.Events),
		Actual:   fmt.Sprintf("%v (missing %s after position %d)", kinds, a.Events[next], next),
		Trace:    result.Trace,
	}
}

// assertInvariants checks capacity invariants in memory and, when a store
// is available, that replaying the event log reproduces the stored state.
func assertInvariants(actx *AssertionContext, trace []TraceEvent) error {
	if violations := actx.Registry.CheckInvariants(); len(violations) > 0 {
		msgs := make([]string, len(violations))
		for i, v := range violations {
			msgs[i] = v.String()
		}
		return &AssertionError{
			Type:     AssertInvariants,
			Expected: "no invariant violations",
			Actual:   strings.Join(msgs, "; "),
			Trace:    trace,
		}
	}

	if actx.Store == nil {
		return nil
	}
	ctx := actx.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	report, err := actx.Store.Verify(ctx)
	if err != nil {
		return fmt.Errorf("invariants: verify store: %w", err)
	}
	if !report.OK() {
		return &AssertionError{
			Type:     AssertInvariants,
			Expected: "event log replay matches stored state",
			Actual:   strings.Join(report.Divergences, "; "),
			Trace:    trace,
		}
	}
	return nil
}
