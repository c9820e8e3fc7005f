package registry

import (
	"fmt"
	"strings"
)

// State is the lifecycle state of an enrollment.
// The zero value is Pending, so an absent record reads as Pending.
type State uint8

const (
	Pending State = iota
	Confirmed
	Locked
)

var stateNames = [...]string{
	Pending:   "Pending",
	Confirmed: "Confirmed",
	Locked:    "Locked",
}

// Valid reports whether s is one of the three defined states.
func (s State) Valid() bool {
	return int(s) < len(stateNames)
}

func (s State) String() string {
	if !s.Valid() {
		return fmt.Sprintf("State(%d)", uint8(s))
	}
	return stateNames[s]
}

// ParseState accepts a state name (case-insensitive) or its ordinal
// ("0", "1", "2").
func ParseState(s string) (State, error) {
	trimmed := strings.TrimSpace(s)
	for i, name := range stateNames {
		if strings.EqualFold(trimmed, name) || trimmed == fmt.Sprint(i) {
			return State(i), nil
		}
	}
	return 0, NewInvalidArgument("state", fmt.Sprintf("unknown state %q", s))
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid state %d", uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	parsed, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
