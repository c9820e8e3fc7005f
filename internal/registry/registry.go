package registry

import (
	"context"
	"fmt"
	"math"
	"sync"
	"unicode/utf8"
)

// maxCapacityLimit keeps capacities representable as int64 payload values
// and SQLite integers.
const maxCapacityLimit = math.MaxUint32

// Change is one committed mutation as handed to a Journal: the event plus
// the records it produced.
type Change struct {
	Event  Event
	Course Course

	// Enrollment is nil for CourseCreated.
	Enrollment *Enrollment
}

// Journal persists changes. Append is called inside the registry's critical
// section before the change becomes visible; an error rejects the whole
// operation with no in-memory effect. Implementations must not call back
// into the Registry.
type Journal interface {
	Append(ctx context.Context, ch Change) error
}

// Registry is the coordinating state machine over AccessControl,
// CourseCatalog and EnrollmentLedger.
//
// Thread-safety: all methods are safe for concurrent use. Mutations hold
// the write lock for the whole check-then-act sequence.
type Registry struct {
	mu      sync.RWMutex
	access  AccessControl
	catalog *CourseCatalog
	ledger  *EnrollmentLedger
	clock   *Clock
	journal Journal
}

// Option configures a Registry.
type Option func(*Registry)

// WithJournal makes every mutation durable through j before it commits.
func WithJournal(j Journal) Option {
	return func(r *Registry) {
		r.journal = j
	}
}

// New creates an empty registry with admin as its administrator.
func New(admin Identity, opts ...Option) (*Registry, error) {
	access, err := NewAccessControl(admin)
	if err != nil {
		return nil, err
	}
	r := &Registry{
		access:  access,
		catalog: NewCourseCatalog(),
		ledger:  NewEnrollmentLedger(),
		clock:   NewClock(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Admin returns the administrator identity.
func (r *Registry) Admin() Identity {
	return r.access.Admin()
}

// IsAdmin reports whether id is the administrator.
func (r *Registry) IsAdmin(id Identity) bool {
	return r.access.IsAdmin(id)
}

// CreateCourse creates a course with zero confirmed enrollments.
//
// Checks, in order: caller is the administrator (UNAUTHORIZED), code is
// non-empty valid UTF-8 and maxCapacity positive (INVALID_ARGUMENT), code
// unused (ALREADY_EXISTS).
func (r *Registry) CreateCourse(ctx context.Context, caller Identity, code string, maxCapacity uint32) (Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.access.requireAdmin(caller); err != nil {
		return Event{}, err
	}
	code = NormalizeCode(code)
	if err := requireText("code", code, "course code"); err != nil {
		return Event{}, err
	}
	if maxCapacity == 0 {
		return Event{}, NewInvalidArgument("max_capacity", "max capacity must be positive")
	}
	if r.catalog.Has(code) {
		return Event{}, NewAlreadyExists(code)
	}

	course := Course{Code: code, MaxCapacity: maxCapacity}
	ev := Event{Kind: KindCourseCreated, Code: code, MaxCapacity: maxCapacity}
	if err := r.commit(ctx, &ev, Change{Course: course}); err != nil {
		return Event{}, err
	}
	r.catalog.put(course)
	return ev, nil
}

// UpdateEnrollment moves participant's enrollment in code to requested.
// The participant is always the caller; there is no way to act on another
// participant's record.
//
// Checks, in order: arguments (INVALID_ARGUMENT), course exists
// (COURSE_NOT_FOUND, for every requested state), edge legal
// (ILLEGAL_TRANSITION), free slot when confirming (CAPACITY_EXCEEDED).
func (r *Registry) UpdateEnrollment(ctx context.Context, participant Identity, code string, requested State) (Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	participant = NormalizeIdentity(participant)
	code = NormalizeCode(code)
	if err := requireText("participant", string(participant), "participant identity"); err != nil {
		return Event{}, err
	}
	if err := requireText("code", code, "course code"); err != nil {
		return Event{}, err
	}
	if !requested.Valid() {
		return Event{}, NewInvalidArgument("state", fmt.Sprintf("unknown state %d", uint8(requested)))
	}

	course := r.catalog.Get(code)
	if !course.Exists() {
		return Event{}, NewCourseNotFound(code)
	}

	current, _ := r.ledger.Get(participant, code)
	delta, err := transition(current.State, requested, course)
	if err != nil {
		return Event{}, err
	}

	switch delta {
	case 1:
		course.ConfirmedCount++
	case -1:
		course.ConfirmedCount--
	}
	next := Enrollment{Participant: participant, Code: code, State: requested}

	ev := Event{Kind: KindEnrollmentChanged, Code: code, Participant: participant, State: requested}
	if err := r.commit(ctx, &ev, Change{Course: course, Enrollment: &next}); err != nil {
		return Event{}, err
	}
	r.catalog.put(course)
	r.ledger.put(next)
	return ev, nil
}

// requireText rejects an empty or non-UTF-8 code or identity. Event payloads
// are canonical JSON text, which cannot carry arbitrary bytes.
func requireText(field, value, what string) error {
	if value == "" {
		return NewInvalidArgument(field, what+" is required")
	}
	if !utf8.ValidString(value) {
		return NewInvalidArgument(field, what+" must be valid UTF-8")
	}
	return nil
}

// transition validates the edge from -> to and returns the change to the
// course's confirmed count.
func transition(from, to State, course Course) (int, error) {
	switch to {
	case Pending:
		if from != Pending {
			return 0, NewIllegalTransition(from, to)
		}
		return 0, nil
	case Confirmed:
		if from != Pending {
			return 0, NewIllegalTransition(from, to)
		}
		if course.RemainingSlots() == 0 {
			return 0, NewCapacityExceeded(course.Code, course.MaxCapacity)
		}
		return 1, nil
	case Locked:
		if from == Confirmed {
			return -1, nil
		}
		return 0, nil
	default:
		return 0, NewInvalidArgument("state", fmt.Sprintf("unknown state %d", uint8(to)))
	}
}

// commit stamps ev with the next seq, journals the change and advances the
// clock. Caller holds r.mu and applies the in-memory writes only on nil.
func (r *Registry) commit(ctx context.Context, ev *Event, ch Change) error {
	seq := r.clock.Current() + 1
	if err := ev.stamp(seq, RequestIDFrom(ctx)); err != nil {
		return fmt.Errorf("stamp event: %w", err)
	}
	if r.journal != nil {
		ch.Event = *ev
		if err := r.journal.Append(ctx, ch); err != nil {
			return fmt.Errorf("journal %s: %w", ev.Kind, err)
		}
	}
	r.clock.Next()
	return nil
}

// GetCourse returns the course for code, or the zero Course.
func (r *Registry) GetCourse(code string) Course {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.catalog.Get(code)
}

// GetEnrollment returns the enrollment for (participant, code).
// Never-written enrollments read as Pending.
func (r *Registry) GetEnrollment(participant Identity, code string) Enrollment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, _ := r.ledger.Get(participant, code)
	return e
}

// GetRemainingSlots returns the free slots of code; 0 for an unknown code.
func (r *Registry) GetRemainingSlots(code string) uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.catalog.RemainingSlots(code)
}

// ListCourses returns every course ordered by code.
func (r *Registry) ListCourses() []Course {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.catalog.List()
}

// ListEnrollments returns the written enrollments of code, or of every
// course when code is empty.
func (r *Registry) ListEnrollments(code string) []Enrollment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if code == "" {
		return r.ledger.All()
	}
	return r.ledger.ForCourse(code)
}

// Seq returns the seq of the last committed mutation.
func (r *Registry) Seq() int64 {
	return r.clock.Current()
}
