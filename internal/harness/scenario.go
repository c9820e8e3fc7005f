package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/crid/internal/engine"
)

// Scenario defines a registry test scenario: commands to run and the
// outcomes and final state they must produce.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Admin is the registry's administrator.
	Admin string `yaml:"admin"`

	// RequestPrefix prefixes generated request IDs. Defaults to Name.
	RequestPrefix string `yaml:"request_prefix,omitempty"`

	// Setup commands establish initial state and must all succeed.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow commands are the behavior under test.
	Flow []Step `yaml:"flow"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one command issued by an identity.
type Step struct {
	// As is the caller identity.
	As string `yaml:"as"`

	// Op is createCourse or updateEnrollment.
	Op string `yaml:"op"`

	// Args holds code, max_capacity (createCourse) or state (updateEnrollment).
	Args map[string]any `yaml:"args"`

	// Expect is the expected outcome. Nil skips the check.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies an expected outcome.
type ExpectClause struct {
	// Case is Success or a rejection case name such as CapacityExceeded.
	Case string `yaml:"case"`

	// Result is a subset match against the event payload on Success.
	Result map[string]any `yaml:"result,omitempty"`
}

// Assertion validates the final trace or state.
type Assertion struct {
	Type string `yaml:"type"`

	// Code selects a course (course, enrollment).
	Code string `yaml:"code,omitempty"`

	// Participant selects an enrollment (enrollment).
	Participant string `yaml:"participant,omitempty"`

	// State is the expected enrollment state (enrollment).
	State string `yaml:"state,omitempty"`

	// Expect holds expected course fields (course).
	Expect map[string]any `yaml:"expect,omitempty"`

	// Kind filters events (event_count). Empty counts all events.
	Kind string `yaml:"kind,omitempty"`

	// Count is the expected number of events (event_count).
	Count *int `yaml:"count,omitempty"`

	// Events is the expected kind order (trace_order).
	Events []string `yaml:"events,omitempty"`
}

// Assertion type constants.
const (
	AssertCourse     = "course"
	AssertEnrollment = "enrollment"
	AssertEventCount = "event_count"
	AssertTraceOrder = "trace_order"
	AssertInvariants = "invariants"
)

// CaseSuccess is the outcome case of an applied command.
const CaseSuccess = "Success"

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Admin == "" {
		return fmt.Errorf("admin is required")
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Setup {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
		if step.Expect != nil && step.Expect.Case != CaseSuccess {
			return fmt.Errorf("setup[%d]: setup steps must expect Success", i)
		}
	}

	for i, step := range s.Flow {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(step Step) error {
	if step.As == "" {
		return fmt.Errorf("as is required")
	}
	if _, err := engine.ParseOp(step.Op); err != nil {
		return fmt.Errorf("op: %w", err)
	}
	if step.Args == nil {
		return fmt.Errorf("args is required (use {} if no args)")
	}
	for key := range step.Args {
		if !opArgs[step.Op][key] {
			return fmt.Errorf("unknown argument %q for %s", key, step.Op)
		}
	}
	if step.Expect != nil {
		if step.Expect.Case == "" {
			return fmt.Errorf("expect: case is required")
		}
		if !knownCase(step.Expect.Case) {
			return fmt.Errorf("expect: unknown case %q", step.Expect.Case)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertCourse:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for course", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for course", index)
		}
		for key := range a.Expect {
			if !courseFields[key] {
				return fmt.Errorf("assertions[%d]: unknown course field %q", index, key)
			}
		}
	case AssertEnrollment:
		if a.Code == "" || a.Participant == "" || a.State == "" {
			return fmt.Errorf("assertions[%d]: code, participant and state are required for enrollment", index)
		}
	case AssertEventCount:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for event_count", index)
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
	case AssertInvariants:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

var opArgs = map[string]map[string]bool{
	string(engine.OpCreateCourse):     {"code": true, "max_capacity": true},
	string(engine.OpUpdateEnrollment): {"code": true, "state": true},
}

var courseFields = map[string]bool{
	"max_capacity":    true,
	"confirmed_count": true,
	"remaining_slots": true,
	"exists":          true,
}
