package registry

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := NewCapacityExceeded("MAB123", 1)

	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.NotErrorIs(t, err, ErrIllegalTransition)

	wrapped := fmt.Errorf("engine: %w", err)
	assert.ErrorIs(t, wrapped, ErrCapacityExceeded)
	assert.Equal(t, CodeCapacityExceeded, CodeOf(wrapped))
	assert.True(t, IsRejection(wrapped))
}

func TestCodeOfNonRegistryError(t *testing.T) {
	err := errors.New("boom")
	assert.Equal(t, Code(""), CodeOf(err))
	assert.False(t, IsRejection(err))
	assert.False(t, IsRejection(nil))
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t,
		"COURSE_NOT_FOUND: course does not exist (code=XYZ)",
		NewCourseNotFound("XYZ").Error())
	assert.Equal(t,
		"CAPACITY_EXCEEDED: no remaining slots (code=MAB123, max_capacity=1)",
		NewCapacityExceeded("MAB123", 1).Error())
	assert.Equal(t, "UNAUTHORIZED", ErrUnauthorized.Error())
}

func TestIllegalTransitionMessage(t *testing.T) {
	assert.Contains(t, NewIllegalTransition(Locked, Confirmed).Error(), "only allowed from Pending")
	assert.Contains(t, NewIllegalTransition(Locked, Pending).Error(), "cannot move from Locked to Pending")
}

func TestCodeCase(t *testing.T) {
	assert.Equal(t, "Unauthorized", CodeUnauthorized.Case())
	assert.Equal(t, "AlreadyExists", CodeAlreadyExists.Case())
	assert.Equal(t, "CourseNotFound", CodeCourseNotFound.Case())
	assert.Equal(t, "CapacityExceeded", CodeCapacityExceeded.Case())
	assert.Equal(t, "IllegalTransition", CodeIllegalTransition.Case())
	assert.Equal(t, "InvalidArgument", CodeInvalidArgument.Case())
}
