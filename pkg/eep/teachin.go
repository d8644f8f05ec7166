// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Esper Authors

package eep

import (
	"fmt"

	"github.com/esper-home/esper/pkg/esp3"
)

// ManufacturerMulti is the generic "multi user" manufacturer code used
// when no specific vendor identity is wanted in a teach-in offer.
const ManufacturerMulti = 0x7FF

// TeachIn is the decoded form of a 4BS teach-in payload: the profile
// coordinates the sending device announces about itself.
type TeachIn struct {
	Func         byte
	TypeCode     byte
	Manufacturer uint16
}

// ProfileID renders the announced coordinates as an "A5-FF-TT"
// identifier suitable for registry lookup.
func (ti TeachIn) ProfileID() string {
	return fmt.Sprintf("A5-%02X-%02X", ti.Func, ti.TypeCode)
}

// BuildTeachIn packs the variant-3 teach-in payload for a 4BS profile:
// function, type and manufacturer in the top three bytes, LRN bit
// cleared, LRN type flag set. RPS and 1BS devices teach implicitly by
// pressing, so only 4BS profiles can build one.
func BuildTeachIn(p *Profile, manufacturer uint16) ([]byte, error) {
	if p.RORG != esp3.RORG4BS {
		return nil, fmt.Errorf("%s: teach-in telegrams exist only for 4BS profiles", p.ID)
	}
	if manufacturer > 0x7FF {
		return nil, fmt.Errorf("manufacturer 0x%X exceeds 11 bits", manufacturer)
	}

	return []byte{
		p.Func<<2 | p.TypeCode>>5,
		p.TypeCode<<3 | byte(manufacturer>>8),
		byte(manufacturer),
		0x80, // LRN type set, LRN bit cleared
	}, nil
}

// ParseTeachIn unpacks a 4BS teach-in payload. The caller is expected
// to have checked the LRN bit already (Event.Teach); payloads with the
// LRN bit set are data telegrams and are rejected here.
func ParseTeachIn(payload []byte) (TeachIn, error) {
	if len(payload) != 4 {
		return TeachIn{}, fmt.Errorf("teach-in payload is %d bytes, want 4", len(payload))
	}
	if payload[3]&0x08 != 0 {
		return TeachIn{}, fmt.Errorf("LRN bit set: not a teach-in telegram")
	}

	return TeachIn{
		Func:         payload[0] >> 2,
		TypeCode:     (payload[0]&0x03)<<5 | payload[1]>>3,
		Manufacturer: uint16(payload[1]&0x07)<<8 | uint16(payload[2]),
	}, nil
}
