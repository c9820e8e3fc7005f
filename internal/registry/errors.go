package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Code categorizes registry rejections.
type Code string

const (
	// CodeUnauthorized indicates the caller lacks the required privilege.
	CodeUnauthorized Code = "UNAUTHORIZED"

	// CodeAlreadyExists indicates a duplicate course code on creation.
	CodeAlreadyExists Code = "ALREADY_EXISTS"

	// CodeCourseNotFound indicates the operation targets an uncreated course.
	CodeCourseNotFound Code = "COURSE_NOT_FOUND"

	// CodeCapacityExceeded indicates confirmation with no free slot.
	CodeCapacityExceeded Code = "CAPACITY_EXCEEDED"

	// CodeIllegalTransition indicates a state change outside the lifecycle.
	CodeIllegalTransition Code = "ILLEGAL_TRANSITION"

	// CodeInvalidArgument indicates malformed input (empty or non-UTF-8
	// code or identity, zero capacity, unknown state).
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
)

// Case returns the outcome case name used in traces and scenarios.
func (c Code) Case() string {
	switch c {
	case CodeUnauthorized:
		return "Unauthorized"
	case CodeAlreadyExists:
		return "AlreadyExists"
	case CodeCourseNotFound:
		return "CourseNotFound"
	case CodeCapacityExceeded:
		return "CapacityExceeded"
	case CodeIllegalTransition:
		return "IllegalTransition"
	case CodeInvalidArgument:
		return "InvalidArgument"
	default:
		return string(c)
	}
}

// Error is a rejected registry operation. No state changed.
type Error struct {
	// Code identifies the rejection category.
	Code Code

	// Message is a human-readable description.
	Message string

	// Details carries the arguments that caused the rejection.
	Details map[string]string
}

// Sentinels for errors.Is. They match any *Error with the same Code.
var (
	ErrUnauthorized      = &Error{Code: CodeUnauthorized}
	ErrAlreadyExists     = &Error{Code: CodeAlreadyExists}
	ErrCourseNotFound    = &Error{Code: CodeCourseNotFound}
	ErrCapacityExceeded  = &Error{Code: CodeCapacityExceeded}
	ErrIllegalTransition = &Error{Code: CodeIllegalTransition}
	ErrInvalidArgument   = &Error{Code: CodeInvalidArgument}
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	if len(e.Details) == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	keys := make([]string, 0, len(e.Details))
	for k := range e.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + e.Details[k]
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, strings.Join(parts, ", "))
}

// Is matches another *Error by Code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// CodeOf extracts the registry code from err, or "" if err is not a
// registry rejection. Uses errors.As to handle wrapped errors.
func CodeOf(err error) Code {
	var re *Error
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// IsRejection reports whether err is a registry rejection as opposed to an
// infrastructure failure.
func IsRejection(err error) bool {
	return CodeOf(err) != ""
}

// NewUnauthorized creates an Error for a caller lacking administrator rights.
func NewUnauthorized(caller Identity) *Error {
	return &Error{
		Code:    CodeUnauthorized,
		Message: "caller is not the administrator",
		Details: map[string]string{"caller": string(caller)},
	}
}

// NewAlreadyExists creates an Error for a duplicate course code.
func NewAlreadyExists(code string) *Error {
	return &Error{
		Code:    CodeAlreadyExists,
		Message: "course already exists",
		Details: map[string]string{"code": code},
	}
}

// NewCourseNotFound creates an Error for an uncreated course code.
func NewCourseNotFound(code string) *Error {
	return &Error{
		Code:    CodeCourseNotFound,
		Message: "course does not exist",
		Details: map[string]string{"code": code},
	}
}

// NewCapacityExceeded creates an Error for a confirmation with no free slot.
func NewCapacityExceeded(code string, maxCapacity uint32) *Error {
	return &Error{
		Code:    CodeCapacityExceeded,
		Message: "no remaining slots",
		Details: map[string]string{
			"code":         code,
			"max_capacity": fmt.Sprintf("%d", maxCapacity),
		},
	}
}

// NewIllegalTransition creates an Error for a transition outside the lifecycle.
func NewIllegalTransition(from, to State) *Error {
	msg := fmt.Sprintf("cannot move from %s to %s", from, to)
	if to == Confirmed {
		msg = "confirmation is only allowed from Pending"
	}
	return &Error{
		Code:    CodeIllegalTransition,
		Message: msg,
		Details: map[string]string{
			"from": from.String(),
			"to":   to.String(),
		},
	}
}

// NewInvalidArgument creates an Error for a malformed argument.
func NewInvalidArgument(field, message string) *Error {
	return &Error{
		Code:    CodeInvalidArgument,
		Message: message,
		Details: map[string]string{"field": field},
	}
}
