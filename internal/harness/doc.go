// Package harness runs YAML scenarios against a registry.
//
// # Scenario Format
//
//	name: capacity_exhausted
//	description: "Second confirmation on a full course is rejected"
//	admin: registrar
//	setup:
//	  - as: registrar
//	    op: createCourse
//	    args: { code: CS101, max_capacity: 1 }
//	flow:
//	  - as: alice
//	    op: updateEnrollment
//	    args: { code: CS101, state: Confirmed }
//	    expect:
//	      case: Success
//	      result: { state: Confirmed }
//	  - as: bob
//	    op: updateEnrollment
//	    args: { code: CS101, state: Confirmed }
//	    expect:
//	      case: CapacityExceeded
//	assertions:
//	  - type: course
//	    code: CS101
//	    expect: { confirmed_count: 1, remaining_slots: 0 }
//	  - type: enrollment
//	    participant: bob
//	    code: CS101
//	    state: Pending
//	  - type: event_count
//	    kind: EnrollmentChanged
//	    count: 1
//	  - type: invariants
//
// Setup steps must succeed. Flow steps may expect any outcome case:
// Success or one of Unauthorized, AlreadyExists, CourseNotFound,
// CapacityExceeded, IllegalTransition, InvalidArgument.
//
// # Assertion Types
//
//   - course: checks max_capacity, confirmed_count, remaining_slots, exists
//   - enrollment: checks the state of one (participant, code) pair
//   - event_count: counts committed events, optionally of one kind
//   - trace_order: checks that event kinds occur in the given order
//   - invariants: checks capacity invariants and replays the event log
//
// # Deterministic Testing
//
// Each scenario runs in a fresh in-memory SQLite store behind a real
// engine. Request IDs are "<request_prefix>-<n>" (prefix defaults to the
// scenario name) and seq values start at 1, so traces are byte-identical
// across runs and can be compared to golden files with RunWithGolden.
package harness
