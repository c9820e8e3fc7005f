package registry

import (
	"context"
	"fmt"
)

// Apply re-executes a recorded event against the registry, acting as the
// identity that originally issued it. The resulting event must reproduce
// the recorded seq and ID; anything else means the log and the state
// machine disagree.
func (r *Registry) Apply(ctx context.Context, recorded Event) error {
	ctx = WithRequestID(ctx, recorded.RequestID)

	var (
		got Event
		err error
	)
	switch recorded.Kind {
	case KindCourseCreated:
		got, err = r.CreateCourse(ctx, r.Admin(), recorded.Code, recorded.MaxCapacity)
	case KindEnrollmentChanged:
		got, err = r.UpdateEnrollment(ctx, recorded.Participant, recorded.Code, recorded.State)
	default:
		return fmt.Errorf("apply event %d: unknown kind %q", recorded.Seq, recorded.Kind)
	}
	if err != nil {
		return fmt.Errorf("apply event %d: %w", recorded.Seq, err)
	}
	if got.Seq != recorded.Seq {
		return fmt.Errorf("apply event %d: replay produced seq %d", recorded.Seq, got.Seq)
	}
	if recorded.ID != "" && got.ID != recorded.ID {
		return fmt.Errorf("apply event %d: replay produced id %s, recorded %s", recorded.Seq, got.ID, recorded.ID)
	}
	return nil
}

// Replay builds a fresh registry for admin by applying events in order.
// The returned registry has no journal.
func Replay(ctx context.Context, admin Identity, events []Event) (*Registry, error) {
	r, err := New(admin)
	if err != nil {
		return nil, err
	}
	for _, ev := range events {
		if err := r.Apply(ctx, ev); err != nil {
			return nil, err
		}
	}
	return r, nil
}
