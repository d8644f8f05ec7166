// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Esper Authors

// Package esp3 implements the EnOcean Serial Protocol 3 wire format.
//
// ESP3 frames a radio telegram for transport over a serial link to an
// EnOcean transceiver module. This package provides stream framing with
// resynchronization, envelope decoding, outbound frame building, and
// CRC8 validation.
//
// Frame layout:
//
//	0x55 | data length (2, BE) | optional length (1) | packet type (1) |
//	CRC8H | data | optional | CRC8D
//
// CRC8H covers the four header bytes after the sync byte; CRC8D covers
// data plus optional.
package esp3

// SyncByte delimits the start of every ESP3 frame.
const SyncByte = 0x55

// Frame geometry.
const (
	HeaderSize  = 6   // sync + len(2) + optLen + type + CRC8H
	MaxDataSize = 512 // sanity bound, well above any radio telegram
)

// PacketType identifies the ESP3 packet family.
type PacketType byte

// ESP3 packet types.
const (
	PacketRadioERP1    PacketType = 0x01
	PacketResponse     PacketType = 0x02
	PacketRadioSubTel  PacketType = 0x03
	PacketEvent        PacketType = 0x04
	PacketCommonCmd    PacketType = 0x05
	PacketSmartAckCmd  PacketType = 0x06
	PacketRemoteManCmd PacketType = 0x07
	PacketRadioERP2    PacketType = 0x0A
)

// String returns the ESP3 name of the packet type.
func (t PacketType) String() string {
	switch t {
	case PacketRadioERP1:
		return "RADIO_ERP1"
	case PacketResponse:
		return "RESPONSE"
	case PacketRadioSubTel:
		return "RADIO_SUB_TEL"
	case PacketEvent:
		return "EVENT"
	case PacketCommonCmd:
		return "COMMON_COMMAND"
	case PacketSmartAckCmd:
		return "SMART_ACK_COMMAND"
	case PacketRemoteManCmd:
		return "REMOTE_MAN_COMMAND"
	case PacketRadioERP2:
		return "RADIO_ERP2"
	default:
		return "UNKNOWN"
	}
}

// RORG is the leading data byte of a radio telegram, identifying the
// payload family.
type RORG byte

// Radio telegram families.
const (
	RORGRPS RORG = 0xF6 // repeated switch, 1 data byte
	RORG1BS RORG = 0xD5 // 1 byte sensor
	RORG4BS RORG = 0xA5 // 4 byte sensor
	RORGVLD RORG = 0xD2 // variable length data
	RORGUTE RORG = 0xD4 // universal teach-in
)

// String returns the EEP name of the telegram family.
func (r RORG) String() string {
	switch r {
	case RORGRPS:
		return "RPS"
	case RORG1BS:
		return "1BS"
	case RORG4BS:
		return "4BS"
	case RORGVLD:
		return "VLD"
	case RORGUTE:
		return "UTE"
	default:
		return "UNKNOWN"
	}
}

// Common command codes (packet type 0x05).
const (
	CmdWrReset   = 0x02
	CmdRdVersion = 0x03
	CmdRdIDBase  = 0x08
)

// Response return codes.
const (
	RetOK           = 0x00
	RetError        = 0x01
	RetNotSupported = 0x02
)

// radioLayout describes how a RADIO_ERP1 data section is arranged for
// one telegram family. The data section is payload bytes, then the
// 4-byte sender ID, then the status byte; only the payload length
// varies. fixed == false means the payload is length-implied (VLD).
type radioLayout struct {
	payloadLen int
	fixed      bool
}

// radioLayouts drives the envelope decoder and the outbound builder.
// Keeping offsets in one table is what guarantees encode/decode
// symmetry for the trailer fields.
var radioLayouts = map[RORG]radioLayout{
	RORGRPS: {payloadLen: 1, fixed: true},
	RORG1BS: {payloadLen: 1, fixed: true},
	RORG4BS: {payloadLen: 4, fixed: true},
	RORGVLD: {fixed: false},
	RORGUTE: {fixed: false},
}

// radioTrailerLen is sender ID (4) plus status (1).
const radioTrailerLen = 5
