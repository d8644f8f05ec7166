// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Esper Authors

package eep

import "fmt"

// D2-05-00 command identifiers, carried in the low nibble of the
// payload's last byte. Only the position reply arrives inbound; the
// other three are commands toward the actuator.
const (
	blindsCmdSetPosition = 0x01
	blindsCmdStop        = 0x02
	blindsCmdQuery       = 0x03
	BlindsCmdReply       = 0x04
)

// BlindsPositionUnknown is reported by an actuator that has not
// completed a reference run. Known positions span 0..100, with 0
// fully open and 100 fully closed.
const BlindsPositionUnknown = 127

// BlindsSetPosition builds the payload driving a blinds actuator to a
// vertical position, 0 fully open through 100 fully closed. The slat
// angle is left at zero; tilt is not modelled.
func BlindsSetPosition(position int) ([]byte, error) {
	if position < 0 || position > 100 {
		return nil, fmt.Errorf("blinds position %d outside 0..100", position)
	}
	return []byte{byte(position), 0x00, 0x00, blindsCmdSetPosition}, nil
}

// BlindsStop halts a moving actuator.
func BlindsStop() []byte {
	return []byte{blindsCmdStop}
}

// BlindsQuery asks the actuator to report its position. The answer
// comes back as an ordinary position reply telegram.
func BlindsQuery() []byte {
	return []byte{blindsCmdQuery}
}
