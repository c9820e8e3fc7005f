package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainEvent = "crid/event/v1"
	DomainState = "crid/state/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// EventID computes the content-addressed ID of a registry event.
// The ID is stable across restarts and replays given the same inputs.
func EventID(kind string, payload Object, seq int64) (string, error) {
	canonical, err := MarshalCanonical(Object{
		"kind":    String(kind),
		"payload": payload,
		"seq":     Int(seq),
	})
	if err != nil {
		return "", fmt.Errorf("EventID: %w", err)
	}
	return hashWithDomain(DomainEvent, canonical), nil
}

// StateDigest hashes a registry state rendering. Two registries with equal
// digests hold the same administrator, courses and enrollments.
func StateDigest(state Object) (string, error) {
	canonical, err := MarshalCanonical(state)
	if err != nil {
		return "", fmt.Errorf("StateDigest: %w", err)
	}
	return hashWithDomain(DomainState, canonical), nil
}

// MustEventID is like EventID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustEventID(kind string, payload Object, seq int64) string {
	id, err := EventID(kind, payload, seq)
	if err != nil {
		panic(err)
	}
	return id
}
