package registry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/crid/internal/ir"
)

// EventKind names a notification emitted by a successful mutation.
type EventKind string

const (
	// KindCourseCreated carries (code, max_capacity).
	KindCourseCreated EventKind = "CourseCreated"

	// KindEnrollmentChanged carries (participant, code, state).
	KindEnrollmentChanged EventKind = "EnrollmentChanged"
)

// Event is emitted exactly once per successful mutation, after all state
// is committed. Failed calls emit nothing.
type Event struct {
	// ID is content-addressed over (Kind, Payload, Seq).
	ID string `json:"id"`

	// Seq is the logical clock value of the mutation.
	Seq int64 `json:"seq"`

	Kind EventKind `json:"kind"`

	// RequestID correlates the event with the submitting request.
	// Not part of ID.
	RequestID string `json:"request_id,omitempty"`

	Code string `json:"code"`

	// MaxCapacity is set for CourseCreated.
	MaxCapacity uint32 `json:"max_capacity,omitempty"`

	// Participant and State are set for EnrollmentChanged.
	Participant Identity `json:"participant,omitempty"`
	State       State    `json:"state"`
}

// MarshalJSON leaves state out of CourseCreated events, whose zero State
// would otherwise read as Pending.
func (e Event) MarshalJSON() ([]byte, error) {
	type plain Event
	out := struct {
		plain
		State *State `json:"state,omitempty"`
	}{plain: plain(e)}
	if e.Kind == KindEnrollmentChanged {
		out.State = &e.State
	}
	return json.Marshal(out)
}

// Payload renders the event's notification arguments.
func (e Event) Payload() ir.Object {
	switch e.Kind {
	case KindCourseCreated:
		return ir.Object{
			"code":         ir.String(e.Code),
			"max_capacity": ir.Int(e.MaxCapacity),
		}
	case KindEnrollmentChanged:
		return ir.Object{
			"participant": ir.String(e.Participant),
			"code":        ir.String(e.Code),
			"state":       ir.String(e.State.String()),
		}
	default:
		return ir.Object{}
	}
}

// EventFromPayload reverses Payload for a persisted event.
func EventFromPayload(kind EventKind, payload ir.Object, seq int64) (Event, error) {
	ev := Event{Kind: kind, Seq: seq, Code: payload.Str("code")}
	switch kind {
	case KindCourseCreated:
		n, ok := payload.Num("max_capacity")
		if !ok || n <= 0 || n > maxCapacityLimit {
			return Event{}, fmt.Errorf("event %d: invalid max_capacity", seq)
		}
		ev.MaxCapacity = uint32(n)
	case KindEnrollmentChanged:
		ev.Participant = Identity(payload.Str("participant"))
		state, err := ParseState(payload.Str("state"))
		if err != nil {
			return Event{}, fmt.Errorf("event %d: %w", seq, err)
		}
		ev.State = state
	default:
		return Event{}, fmt.Errorf("event %d: unknown kind %q", seq, kind)
	}
	if ev.Code == "" {
		return Event{}, fmt.Errorf("event %d: missing code", seq)
	}
	return ev, nil
}

func (e *Event) stamp(seq int64, requestID string) error {
	e.Seq = seq
	e.RequestID = requestID
	id, err := ir.EventID(string(e.Kind), e.Payload(), seq)
	if err != nil {
		return err
	}
	e.ID = id
	return nil
}

type requestIDKey struct{}

// WithRequestID attaches a request ID that mutations stamp on their events.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom returns the request ID attached to ctx, or "".
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
