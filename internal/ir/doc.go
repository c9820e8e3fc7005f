// Package ir provides the constrained value model used for registry event
// payloads, together with canonical JSON and content-addressed IDs.
//
// ir imports nothing internal. Every other package that serializes events
// goes through it so that the same event always produces the same bytes.
//
// Key constraints:
//   - NO float types anywhere - numbers are int64
//   - NO null - absent fields are omitted
//   - Strings are NFC normalized at serialization time
//   - Object keys are ordered by UTF-16 code units (RFC 8785)
package ir
