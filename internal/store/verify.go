package store

import (
	"context"
	"fmt"

	"github.com/roach88/crid/internal/registry"
)

// VerifyReport is the result of replaying the event log against the
// persisted tables.
type VerifyReport struct {
	Events         int      `json:"events"`
	LastSeq        int64    `json:"last_seq"`
	StoredDigest   string   `json:"stored_digest"`
	ReplayedDigest string   `json:"replayed_digest,omitempty"`
	Divergences    []string `json:"divergences,omitempty"`
}

// OK reports whether the log and the tables agree.
func (r VerifyReport) OK() bool {
	return len(r.Divergences) == 0
}

// Verify folds the event log through a fresh registry and compares the
// result with the persisted course and enrollment tables. The tables and
// the log are read from one consistent snapshot.
//
// A replay failure (an event the state machine rejects, or a seq/ID
// mismatch) is reported as a divergence, not an error. Errors are reserved
// for storage failures.
func (s *Store) Verify(ctx context.Context) (VerifyReport, error) {
	var (
		report VerifyReport
		stored registry.Snapshot
		events []registry.Event
	)
	err := s.readTx(ctx, func(q queryer) error {
		var err error
		if stored, err = loadSnapshot(ctx, q); err != nil {
			return err
		}
		events, err = readEvents(ctx, q, 0, 0)
		return err
	})
	if err != nil {
		return report, fmt.Errorf("verify: %w", err)
	}
	report.LastSeq = stored.Seq
	report.Events = len(events)
	report.StoredDigest, err = stored.Digest()
	if err != nil {
		return report, fmt.Errorf("verify: %w", err)
	}

	if violations := checkStored(stored); len(violations) > 0 {
		report.Divergences = append(report.Divergences, violations...)
	}

	replayed, err := registry.Replay(ctx, stored.Admin, events)
	if err != nil {
		report.Divergences = append(report.Divergences, fmt.Sprintf("replay: %v", err))
		return report, nil
	}

	snap := replayed.Snapshot()
	report.ReplayedDigest, err = snap.Digest()
	if err != nil {
		return report, fmt.Errorf("verify: %w", err)
	}
	report.Divergences = append(report.Divergences, diffSnapshots(stored, snap)...)
	return report, nil
}

// checkStored runs the registry invariants over the persisted tables.
func checkStored(snap registry.Snapshot) []string {
	if _, err := registry.Restore(snap); err != nil {
		return []string{fmt.Sprintf("stored state: %v", err)}
	}
	return nil
}

// diffSnapshots lists per-key differences between stored and replayed state.
func diffSnapshots(stored, replayed registry.Snapshot) []string {
	var out []string

	if stored.Seq != replayed.Seq {
		out = append(out, fmt.Sprintf("seq: stored %d, replayed %d", stored.Seq, replayed.Seq))
	}

	courses := make(map[string]registry.Course, len(replayed.Courses))
	for _, c := range replayed.Courses {
		courses[c.Code] = c
	}
	for _, c := range stored.Courses {
		r, ok := courses[c.Code]
		delete(courses, c.Code)
		switch {
		case !ok:
			out = append(out, fmt.Sprintf("course %q: stored but never created in log", c.Code))
		case r != c:
			out = append(out, fmt.Sprintf("course %q: stored %d/%d, replayed %d/%d",
				c.Code, c.ConfirmedCount, c.MaxCapacity, r.ConfirmedCount, r.MaxCapacity))
		}
	}
	for _, c := range replayed.Courses {
		if _, missing := courses[c.Code]; missing {
			out = append(out, fmt.Sprintf("course %q: in log but not stored", c.Code))
		}
	}

	type key struct {
		participant registry.Identity
		code        string
	}
	enrollments := make(map[key]registry.State, len(replayed.Enrollments))
	for _, e := range replayed.Enrollments {
		enrollments[key{e.Participant, e.Code}] = e.State
	}
	for _, e := range stored.Enrollments {
		k := key{e.Participant, e.Code}
		state, ok := enrollments[k]
		delete(enrollments, k)
		switch {
		case !ok:
			out = append(out, fmt.Sprintf("enrollment %s/%s: stored but not in log", e.Participant, e.Code))
		case state != e.State:
			out = append(out, fmt.Sprintf("enrollment %s/%s: stored %s, replayed %s",
				e.Participant, e.Code, e.State, state))
		}
	}
	for _, e := range replayed.Enrollments {
		if _, missing := enrollments[key{e.Participant, e.Code}]; missing {
			out = append(out, fmt.Sprintf("enrollment %s/%s: in log but not stored", e.Participant, e.Code))
		}
	}
	return out
}
