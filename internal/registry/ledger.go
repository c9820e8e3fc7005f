package registry

import "sort"

// Enrollment is a participant's state in one course.
type Enrollment struct {
	Participant Identity `json:"participant"`
	Code        string   `json:"code"`
	State       State    `json:"state"`
}

type enrollmentKey struct {
	participant Identity
	code        string
}

// EnrollmentLedger maps (participant, course code) to an enrollment state.
// Records are never deleted, only transitioned. Absent records read as
// Pending. Not safe for concurrent use on its own.
type EnrollmentLedger struct {
	entries map[enrollmentKey]State
}

// NewEnrollmentLedger creates an empty ledger.
func NewEnrollmentLedger() *EnrollmentLedger {
	return &EnrollmentLedger{entries: make(map[enrollmentKey]State)}
}

// Get returns the enrollment for (participant, code) and whether it was
// ever written. An unwritten enrollment has State Pending.
func (l *EnrollmentLedger) Get(participant Identity, code string) (Enrollment, bool) {
	participant = NormalizeIdentity(participant)
	code = NormalizeCode(code)
	state, ok := l.entries[enrollmentKey{participant, code}]
	return Enrollment{Participant: participant, Code: code, State: state}, ok
}

// ForCourse returns the written enrollments of a course ordered by participant.
func (l *EnrollmentLedger) ForCourse(code string) []Enrollment {
	code = NormalizeCode(code)
	var out []Enrollment
	for k, s := range l.entries {
		if k.code == code {
			out = append(out, Enrollment{Participant: k.participant, Code: k.code, State: s})
		}
	}
	sortEnrollments(out)
	return out
}

// All returns every written enrollment ordered by course code, then participant.
func (l *EnrollmentLedger) All() []Enrollment {
	out := make([]Enrollment, 0, len(l.entries))
	for k, s := range l.entries {
		out = append(out, Enrollment{Participant: k.participant, Code: k.code, State: s})
	}
	sortEnrollments(out)
	return out
}

// CountConfirmed returns the number of Confirmed enrollments per course code.
func (l *EnrollmentLedger) CountConfirmed() map[string]int {
	counts := make(map[string]int)
	for k, s := range l.entries {
		if s == Confirmed {
			counts[k.code]++
		}
	}
	return counts
}

func (l *EnrollmentLedger) put(e Enrollment) {
	l.entries[enrollmentKey{e.Participant, e.Code}] = e.State
}

func sortEnrollments(es []Enrollment) {
	sort.Slice(es, func(i, j int) bool {
		if es[i].Code != es[j].Code {
			return es[i].Code < es[j].Code
		}
		return es[i].Participant < es[j].Participant
	})
}
