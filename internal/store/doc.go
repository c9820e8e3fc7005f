// Package store provides SQLite-backed durable storage for the enrollment
// registry.
//
// The persisted state is exactly:
//   - registry_meta: the single administrator, written once by Init
//   - courses: course code -> (max_capacity, confirmed_count)
//   - enrollments: (participant, code) -> state
//   - events: append-only log of committed notifications, keyed by seq
//
// # Critical Patterns
//
// Atomic commit: Store implements registry.Journal. Each Append writes the
// event row and the affected course/enrollment rows in one transaction, so
// the tables and the log never disagree after a crash.
//
// Logical time: events are ordered by seq INTEGER only, never timestamps.
// Append rejects any seq that is not exactly one past the last stored seq.
//
// Deterministic reads: every query that returns multiple rows has an
// explicit ORDER BY.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enrollments must reference an existing course
package store
