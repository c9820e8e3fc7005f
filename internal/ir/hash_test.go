package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventIDDeterminism(t *testing.T) {
	payload := Object{
		"code":         String("MAB123"),
		"max_capacity": Int(30),
	}

	id1, err := EventID("CourseCreated", payload, 1)
	require.NoError(t, err)
	id2, err := EventID("CourseCreated", payload, 1)
	require.NoError(t, err)

	assert.Equal(t, id1, id2, "EventID must be deterministic")
	assert.Len(t, id1, 64, "SHA-256 hex is 64 characters")
}

func TestEventIDChangesWithInput(t *testing.T) {
	payload := Object{"code": String("MAB123")}

	id1 := MustEventID("CourseCreated", payload, 1)
	id2 := MustEventID("CourseCreated", payload, 2)
	id3 := MustEventID("EnrollmentChanged", payload, 1)
	id4 := MustEventID("CourseCreated", Object{"code": String("FIS123")}, 1)

	assert.NotEqual(t, id1, id2, "different seq")
	assert.NotEqual(t, id1, id3, "different kind")
	assert.NotEqual(t, id1, id4, "different payload")
}

func TestEventIDKeyOrderIndependent(t *testing.T) {
	a := Object{"a": Int(1), "b": Int(2)}
	b := Object{"b": Int(2), "a": Int(1)}
	assert.Equal(t, MustEventID("k", a, 1), MustEventID("k", b, 1))
}

func TestDomainSeparation(t *testing.T) {
	obj := Object{"seq": Int(1)}
	event := MustEventID("x", obj, 1)
	state, err := StateDigest(obj)
	require.NoError(t, err)
	assert.NotEqual(t, event, state)
}

func TestEventIDRejectsInvalidPayload(t *testing.T) {
	_, err := EventID("CourseCreated", Object{"bad": nil}, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EventID")
}
