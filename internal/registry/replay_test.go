package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingJournal keeps every committed event.
type recordingJournal struct {
	events []Event
}

func (j *recordingJournal) Append(_ context.Context, ch Change) error {
	j.events = append(j.events, ch.Event)
	return nil
}

func TestReplayReproducesState(t *testing.T) {
	j := &recordingJournal{}
	r := newTestRegistry(t, WithJournal(j))
	mustCreate(t, r, "MAB123", 1)
	mustUpdate(t, r, student1, "MAB123", Confirmed)
	mustUpdate(t, r, student1, "MAB123", Locked)
	mustUpdate(t, r, student2, "MAB123", Confirmed)

	replayed, err := Replay(context.Background(), admin, j.events)
	require.NoError(t, err)
	assert.Equal(t, r.Snapshot(), replayed.Snapshot())
}

func TestReplayDetectsTamperedEvent(t *testing.T) {
	j := &recordingJournal{}
	r := newTestRegistry(t, WithJournal(j))
	mustCreate(t, r, "MAB123", 1)
	mustUpdate(t, r, student1, "MAB123", Confirmed)

	tampered := append([]Event(nil), j.events...)
	tampered[1].Participant = student2

	_, err := Replay(context.Background(), admin, tampered)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "replay produced id")
}

func TestReplayDetectsRejectedEvent(t *testing.T) {
	events := []Event{
		{Kind: KindCourseCreated, Code: "MAB123", MaxCapacity: 1, Seq: 1},
		{Kind: KindEnrollmentChanged, Code: "MAB123", Participant: student1, State: Confirmed, Seq: 2},
		{Kind: KindEnrollmentChanged, Code: "MAB123", Participant: student2, State: Confirmed, Seq: 3},
	}
	_, err := Replay(context.Background(), admin, events)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
}

func TestReplayDetectsSeqGap(t *testing.T) {
	events := []Event{
		{Kind: KindCourseCreated, Code: "MAB123", MaxCapacity: 1, Seq: 2},
	}
	_, err := Replay(context.Background(), admin, events)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "replay produced seq 1")
}

func TestEventPayloadRoundTrip(t *testing.T) {
	r := newTestRegistry(t)
	created, err := r.CreateCourse(context.Background(), admin, "MAB123", 30)
	require.NoError(t, err)
	changed := mustUpdate(t, r, student1, "MAB123", Locked)

	for _, ev := range []Event{created, changed} {
		decoded, err := EventFromPayload(ev.Kind, ev.Payload(), ev.Seq)
		require.NoError(t, err)
		decoded.ID = ev.ID
		assert.Equal(t, ev, decoded)
	}
}

func TestEventFromPayloadRejectsBadInput(t *testing.T) {
	_, err := EventFromPayload(KindCourseCreated, nil, 1)
	assert.Error(t, err)

	_, err = EventFromPayload("Bogus", nil, 1)
	assert.Error(t, err)

	created := Event{Kind: KindEnrollmentChanged, Code: "X", Participant: "p", State: Locked}
	payload := created.Payload()
	payload["state"] = payload["code"]
	_, err = EventFromPayload(KindEnrollmentChanged, payload, 1)
	assert.Error(t, err)
}
