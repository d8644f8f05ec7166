// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Esper Authors

package esp3

import "fmt"

// Build assembles a complete ESP3 wire frame from a data section and
// optional section. It is the mirror of the Framer: header fields and
// both CRCs are computed here, and the layout tables are shared so that
// Build output always survives Feed + Decode unchanged.
//
// The only failure mode is a length constraint violation; Build is
// otherwise deterministic.
func Build(packetType PacketType, data, optional []byte) ([]byte, error) {
	if len(data) == 0 || len(data) > MaxDataSize {
		return nil, &InvalidFieldLengthError{Field: "data", Len: len(data), Max: MaxDataSize}
	}
	if len(optional) > 0xFF {
		return nil, &InvalidFieldLengthError{Field: "optional", Len: len(optional), Max: 0xFF}
	}

	frame := make([]byte, 0, HeaderSize+len(data)+len(optional)+1)
	frame = append(frame,
		SyncByte,
		byte(len(data)>>8),
		byte(len(data)),
		byte(len(optional)),
		byte(packetType),
	)
	frame = append(frame, CRC8(frame[1:5]))
	frame = append(frame, data...)
	frame = append(frame, optional...)
	frame = append(frame, CRC8(frame[HeaderSize:]))
	return frame, nil
}

// BuildRadio assembles a RADIO_ERP1 frame for the given telegram
// family: RORG, payload, sender ID and status packed into the data
// section per the family layout table. The payload length must match
// the family's fixed size (RPS/1BS: 1 byte, 4BS: 4 bytes); VLD payloads
// are length-implied.
func BuildRadio(rorg RORG, payload []byte, sender DeviceID, status byte, optional []byte) ([]byte, error) {
	layout, ok := radioLayouts[rorg]
	if !ok {
		return nil, fmt.Errorf("unsupported RORG 0x%02X", byte(rorg))
	}
	if layout.fixed && len(payload) != layout.payloadLen {
		return nil, &InvalidFieldLengthError{Field: rorg.String() + " payload", Len: len(payload), Max: layout.payloadLen}
	}

	data := make([]byte, 0, 1+len(payload)+radioTrailerLen)
	data = append(data, byte(rorg))
	data = append(data, payload...)
	data = append(data, sender[:]...)
	data = append(data, status)
	return Build(PacketRadioERP1, data, optional)
}

// SubTelegramInfo is the standard optional section for an addressed
// outbound radio telegram: 3 subtelegrams, destination, full power,
// no security.
func SubTelegramInfo(destination DeviceID) []byte {
	opt := make([]byte, 0, 7)
	opt = append(opt, 0x03)
	opt = append(opt, destination[:]...)
	opt = append(opt, 0xFF, 0x00)
	return opt
}

// BuildCommonCommand assembles a COMMON_COMMAND frame for the given
// command code and parameters.
func BuildCommonCommand(code byte, params ...byte) ([]byte, error) {
	return Build(PacketCommonCmd, append([]byte{code}, params...), nil)
}
