// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Esper Authors

package esp3

import (
	"fmt"
	"strings"
	"time"
)

// DeviceID is the 4-byte big-endian identifier of a physical
// transceiver or a synthetic (base-ID-derived) switch sender.
type DeviceID [4]byte

// Broadcast addresses all receivers in range.
var Broadcast = DeviceID{0xFF, 0xFF, 0xFF, 0xFF}

// String formats the ID as "AA:BB:CC:DD".
func (id DeviceID) String() string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X", id[0], id[1], id[2], id[3])
}

// Uint32 returns the ID as a big-endian integer.
func (id DeviceID) Uint32() uint32 {
	return uint32(id[0])<<24 | uint32(id[1])<<16 | uint32(id[2])<<8 | uint32(id[3])
}

// ParseDeviceID parses "AA:BB:CC:DD" (colons optional) into a DeviceID.
func ParseDeviceID(s string) (DeviceID, error) {
	var id DeviceID
	clean := strings.ReplaceAll(s, ":", "")
	if len(clean) != 8 {
		return id, fmt.Errorf("invalid device ID %q: want 4 hex bytes", s)
	}
	for i := 0; i < 4; i++ {
		if _, err := fmt.Sscanf(clean[i*2:i*2+2], "%02x", &id[i]); err != nil {
			return id, fmt.Errorf("invalid device ID %q: %w", s, err)
		}
	}
	return id, nil
}

// Offset returns the ID shifted by n, used to derive synthetic sender
// IDs from the dongle base ID (base + 1 .. base + 127).
func (id DeviceID) Offset(n uint32) DeviceID {
	v := id.Uint32() + n
	return DeviceID{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

// Frame is a validated ESP3 frame as produced by the Framer: both CRCs
// have been checked but the data section has not been interpreted.
// Frames are consumed immediately by Decode and never retained.
type Frame struct {
	Type     PacketType
	Data     []byte
	Optional []byte
}

// Telegram is a decoded frame envelope. For radio packet types the
// accessors expose the EEP payload, sender ID and status byte; the
// payload itself is interpreted by the eep package against a
// configured profile.
type Telegram struct {
	Type     PacketType
	Data     []byte
	Optional []byte

	timestamp time.Time
}

// Decode interprets a validated frame's envelope. For RADIO_ERP1 frames
// the data section must hold the RORG byte, a family-specific payload,
// the 4-byte sender ID and the status byte; declared lengths that are
// inconsistent with the family layout are rejected whole.
func Decode(f Frame) (*Telegram, error) {
	t := &Telegram{
		Type:      f.Type,
		Data:      f.Data,
		Optional:  f.Optional,
		timestamp: time.Now(),
	}

	switch f.Type {
	case PacketRadioERP1, PacketRadioSubTel:
		if len(f.Data) < 1+radioTrailerLen {
			return nil, &InvalidEnvelopeError{
				Type:   f.Type,
				Reason: fmt.Sprintf("data section too short: %d bytes", len(f.Data)),
			}
		}
		layout, ok := radioLayouts[t.RORG()]
		if !ok {
			return nil, &InvalidEnvelopeError{
				Type:   f.Type,
				Reason: fmt.Sprintf("unknown RORG 0x%02X", byte(t.RORG())),
			}
		}
		if layout.fixed && len(f.Data) != 1+layout.payloadLen+radioTrailerLen {
			return nil, &InvalidEnvelopeError{
				Type: f.Type,
				Reason: fmt.Sprintf("%s telegram with %d data bytes (want %d)",
					t.RORG(), len(f.Data), 1+layout.payloadLen+radioTrailerLen),
			}
		}
	case PacketResponse, PacketEvent:
		if len(f.Data) < 1 {
			return nil, &InvalidEnvelopeError{Type: f.Type, Reason: "empty data section"}
		}
	}

	return t, nil
}

// Timestamp returns the telegram's decode timestamp.
func (t *Telegram) Timestamp() time.Time {
	return t.timestamp
}

// IsRadio reports whether the telegram carries a radio payload.
func (t *Telegram) IsRadio() bool {
	return t.Type == PacketRadioERP1 || t.Type == PacketRadioSubTel
}

// RORG returns the telegram family byte. Only meaningful for radio
// telegrams.
func (t *Telegram) RORG() RORG {
	if len(t.Data) == 0 {
		return 0
	}
	return RORG(t.Data[0])
}

// Payload returns the EEP payload bytes between the RORG byte and the
// sender/status trailer.
func (t *Telegram) Payload() []byte {
	if !t.IsRadio() || len(t.Data) < 1+radioTrailerLen {
		return nil
	}
	return t.Data[1 : len(t.Data)-radioTrailerLen]
}

// Sender returns the transmitting device's ID from the data trailer.
func (t *Telegram) Sender() DeviceID {
	var id DeviceID
	if !t.IsRadio() || len(t.Data) < radioTrailerLen {
		return id
	}
	copy(id[:], t.Data[len(t.Data)-radioTrailerLen:len(t.Data)-1])
	return id
}

// Status returns the trailing status byte of a radio telegram.
func (t *Telegram) Status() byte {
	if !t.IsRadio() || len(t.Data) == 0 {
		return 0
	}
	return t.Data[len(t.Data)-1]
}

// RepeaterCount returns the repeater hop count from the status byte.
func (t *Telegram) RepeaterCount() int {
	return int(t.Status() & 0x0F)
}

// Repeated reports whether the telegram passed through a repeater.
func (t *Telegram) Repeated() bool {
	return t.RepeaterCount() > 0
}

// T21 reports the status T21 flag (PTM switch module generation).
func (t *Telegram) T21() bool {
	return t.Status()&0x20 != 0
}

// NU reports the status NU flag (normal vs. unassigned RPS message).
func (t *Telegram) NU() bool {
	return t.Status()&0x10 != 0
}

// ReturnCode returns the first data byte of a RESPONSE telegram.
func (t *Telegram) ReturnCode() byte {
	if t.Type != PacketResponse || len(t.Data) == 0 {
		return RetError
	}
	return t.Data[0]
}
