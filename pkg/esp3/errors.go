// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Esper Authors

package esp3

import "fmt"

// MalformedFrameError reports a candidate frame that failed validation
// and was dropped from the stream. It is recoverable: the framer
// resynchronizes on the next sync byte and stream processing continues.
type MalformedFrameError struct {
	Reason string
}

// Error implements the error interface.
func (e *MalformedFrameError) Error() string {
	return fmt.Sprintf("malformed frame: %s", e.Reason)
}

// InvalidEnvelopeError reports a validated frame whose declared lengths
// are inconsistent with its packet type. The frame is rejected whole,
// never partially interpreted.
type InvalidEnvelopeError struct {
	Type   PacketType
	Reason string
}

// Error implements the error interface.
func (e *InvalidEnvelopeError) Error() string {
	return fmt.Sprintf("invalid %s envelope: %s", e.Type, e.Reason)
}

// InvalidFieldLengthError reports a caller-supplied field on the
// outbound path that violates the packet type's length constraints.
// The telegram is not sent.
type InvalidFieldLengthError struct {
	Field string
	Len   int
	Max   int
}

// Error implements the error interface.
func (e *InvalidFieldLengthError) Error() string {
	return fmt.Sprintf("invalid %s length: %d bytes (max %d)", e.Field, e.Len, e.Max)
}
