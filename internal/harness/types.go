package harness

import (
	"github.com/roach88/crid/internal/ir"
	"github.com/roach88/crid/internal/registry"
)

// TraceEvent records one executed step and its outcome.
type TraceEvent struct {
	// Step is "setup[i]" or "flow[i]".
	Step      string    `json:"step"`
	RequestID string    `json:"request_id,omitempty"`
	As        string    `json:"as"`
	Op        string    `json:"op"`
	Args      ir.Object `json:"args"`

	// Case is Success or the rejection case.
	Case string `json:"case"`

	// Event is the committed event; nil for rejections.
	Event *registry.Event `json:"event,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace contains every executed step in order.
	Trace []TraceEvent `json:"trace"`

	// Events are the committed events in commit order.
	Events []registry.Event `json:"events"`

	// Errors contains validation error messages.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Events: []registry.Event{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step to the trace.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}

var rejectionCodes = []registry.Code{
	registry.CodeUnauthorized,
	registry.CodeAlreadyExists,
	registry.CodeCourseNotFound,
	registry.CodeCapacityExceeded,
	registry.CodeIllegalTransition,
	registry.CodeInvalidArgument,
}

func knownCase(c string) bool {
	if c == CaseSuccess {
		return true
	}
	for _, code := range rejectionCodes {
		if code.Case() == c {
			return true
		}
	}
	return false
}

// caseOf maps a step error to its outcome case. ok is false for errors
// that are not registry rejections.
func caseOf(err error) (string, bool) {
	if err == nil {
		return CaseSuccess, true
	}
	code := registry.CodeOf(err)
	if code == "" {
		return "", false
	}
	return code.Case(), true
}
