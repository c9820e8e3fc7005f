// Package registry implements the capacity-constrained enrollment registry.
//
// An administrator, fixed when the registry is created, defines courses with
// a maximum capacity. Participants move their own enrollment in a course
// through Pending, Confirmed and Locked:
//
//	Pending   -> Pending    always (idempotent re-request)
//	Pending   -> Confirmed  requires a free slot; confirmedCount += 1
//	Pending   -> Locked     always; no slot was held
//	Confirmed -> Locked     always; confirmedCount -= 1
//	Locked    -> Locked     always (idempotent)
//
// Every other edge is rejected with ILLEGAL_TRANSITION. Locked is a sink.
// Absent enrollments read as Pending.
//
// # Atomicity
//
// Each mutation runs under one registry-wide lock. Preconditions are read,
// the optional Journal is written, and only then is the in-memory state
// changed. A rejected call or a journal failure leaves every Course and
// Enrollment exactly as it was.
//
// # Invariants
//
// After every call, for every course:
//
//	confirmedCount == |{enrollments on the course with state Confirmed}|
//	confirmedCount <= maxCapacity
//
// Courses and enrollment keys are never deleted.
package registry
