// Package engine serializes registry commands through a single goroutine.
//
// Submitters from any goroutine call Submit, which places the command on a
// FIFO queue and waits for its outcome. Engine.Run dequeues commands one at
// a time and applies them to the registry, so the order of events in the
// log is exactly the order commands were dequeued.
//
// Every command is tagged with a request ID from a RequestIDGenerator
// (UUIDv7 in production, fixed IDs in tests). The ID travels on the
// context into the registry and is stamped on the resulting event.
//
// Subscribers registered with Subscribe observe committed events in commit
// order, on the Run goroutine. Rejected commands produce no event.
package engine
