package registry

import (
	"fmt"

	"github.com/roach88/crid/internal/ir"
)

// Snapshot is the complete persisted state of a registry: the
// administrator, both keyed stores and the clock position.
type Snapshot struct {
	Admin       Identity
	Seq         int64
	Courses     []Course
	Enrollments []Enrollment
}

// Snapshot captures the current state. Courses and enrollments are ordered.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Snapshot{
		Admin:       r.access.Admin(),
		Seq:         r.clock.Current(),
		Courses:     r.catalog.List(),
		Enrollments: r.ledger.All(),
	}
}

// Restore rebuilds a registry from a snapshot. The snapshot is rejected if
// it references unknown courses, repeats a key, or breaks an invariant.
func Restore(snap Snapshot, opts ...Option) (*Registry, error) {
	r, err := New(snap.Admin, opts...)
	if err != nil {
		return nil, fmt.Errorf("restore: %w", err)
	}
	if snap.Seq < 0 {
		return nil, fmt.Errorf("restore: negative seq %d", snap.Seq)
	}
	r.clock = NewClockAt(snap.Seq)

	for _, c := range snap.Courses {
		c.Code = NormalizeCode(c.Code)
		if requireText("code", c.Code, "course code") != nil || !c.Exists() {
			return nil, fmt.Errorf("restore: invalid course %q", c.Code)
		}
		if r.catalog.Has(c.Code) {
			return nil, fmt.Errorf("restore: duplicate course %q", c.Code)
		}
		r.catalog.put(c)
	}
	for _, e := range snap.Enrollments {
		e.Participant = NormalizeIdentity(e.Participant)
		e.Code = NormalizeCode(e.Code)
		if requireText("participant", string(e.Participant), "participant identity") != nil || !e.State.Valid() {
			return nil, fmt.Errorf("restore: invalid enrollment %s/%s", e.Participant, e.Code)
		}
		if !r.catalog.Has(e.Code) {
			return nil, fmt.Errorf("restore: enrollment %s references unknown course %q", e.Participant, e.Code)
		}
		if _, ok := r.ledger.Get(e.Participant, e.Code); ok {
			return nil, fmt.Errorf("restore: duplicate enrollment %s/%s", e.Participant, e.Code)
		}
		r.ledger.put(e)
	}

	if violations := r.CheckInvariants(); len(violations) > 0 {
		return nil, fmt.Errorf("restore: %s", violations[0])
	}
	return r, nil
}

// Violation describes a course whose counters disagree with the ledger.
type Violation struct {
	Code           string
	MaxCapacity    uint32
	ConfirmedCount uint32
	Confirmed      int // Confirmed enrollments in the ledger
}

func (v Violation) String() string {
	return fmt.Sprintf("course %q: confirmed_count=%d, confirmed enrollments=%d, max_capacity=%d",
		v.Code, v.ConfirmedCount, v.Confirmed, v.MaxCapacity)
}

// CheckInvariants returns every course where confirmedCount differs from
// the number of Confirmed enrollments or exceeds maxCapacity, plus any
// Confirmed enrollments on unknown courses. Empty means consistent.
func (r *Registry) CheckInvariants() []Violation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := r.ledger.CountConfirmed()
	var out []Violation
	for _, c := range r.catalog.List() {
		n := counts[c.Code]
		delete(counts, c.Code)
		if int(c.ConfirmedCount) != n || c.ConfirmedCount > c.MaxCapacity {
			out = append(out, Violation{
				Code:           c.Code,
				MaxCapacity:    c.MaxCapacity,
				ConfirmedCount: c.ConfirmedCount,
				Confirmed:      n,
			})
		}
	}
	for code, n := range counts {
		out = append(out, Violation{Code: code, Confirmed: n})
	}
	return out
}

// Object renders the snapshot for hashing and comparison. Seq is excluded:
// two registries with the same records are equal regardless of history length.
func (s Snapshot) Object() ir.Object {
	courses := make(ir.Array, len(s.Courses))
	for i, c := range s.Courses {
		courses[i] = ir.Object{
			"code":            ir.String(c.Code),
			"max_capacity":    ir.Int(c.MaxCapacity),
			"confirmed_count": ir.Int(c.ConfirmedCount),
		}
	}
	enrollments := make(ir.Array, len(s.Enrollments))
	for i, e := range s.Enrollments {
		enrollments[i] = ir.Object{
			"participant": ir.String(e.Participant),
			"code":        ir.String(e.Code),
			"state":       ir.String(e.State.String()),
		}
	}
	return ir.Object{
		"admin":       ir.String(s.Admin),
		"courses":     courses,
		"enrollments": enrollments,
	}
}

// Digest returns the content hash of Object.
func (s Snapshot) Digest() (string, error) {
	return ir.StateDigest(s.Object())
}
