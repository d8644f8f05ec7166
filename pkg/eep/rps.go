// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Esper Authors

package eep

// RockerAction identifies one button position on an F6-02 rocker pair.
type RockerAction byte

const (
	RockerAI RockerAction = 0 // button A, down
	RockerAO RockerAction = 1 // button A, up
	RockerBI RockerAction = 2 // button B, down
	RockerBO RockerAction = 3 // button B, up
)

func (a RockerAction) String() string {
	switch a {
	case RockerAI:
		return "AI"
	case RockerAO:
		return "AO"
	case RockerBI:
		return "BI"
	case RockerBO:
		return "BO"
	}
	return "?"
}

// RockerPress returns the action and status bytes a physical rocker
// emits when the given button is pressed: action in the top bits with
// the energy bow set, status flagging T21 and a normal N-message.
func RockerPress(a RockerAction) (payload, status byte) {
	return byte(a)<<5 | 0x10, 0x30
}

// RockerRelease returns the action and status bytes for letting the
// energy bow go. The action byte carries no button and the status
// drops to a U-message, which is how receivers tell release from
// press.
func RockerRelease() (payload, status byte) {
	return 0x00, 0x20
}
