// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Esper Authors

// Package eep decodes and encodes EnOcean Equipment Profile payloads.
//
// An EEP describes how a telegram family's payload bits map to named,
// typed fields. Profiles are declarative bit-layout tables (offset,
// width, linear scaling, enumeration) rather than per-profile code, so
// the codec itself is a single pure bit-field engine and every profile
// is testable as data.
//
// Radio telegrams carry no profile tag for the RPS/1BS/4BS families;
// the caller knows which profile a configured device speaks and
// supplies the identifier on every call.
package eep

import (
	"fmt"
	"math"

	"github.com/esper-home/esper/pkg/esp3"
)

// FieldType selects how a field's raw bits are interpreted.
type FieldType int

const (
	// FieldRaw exposes the bits as an unsigned integer.
	FieldRaw FieldType = iota
	// FieldBool exposes a single bit as a boolean.
	FieldBool
	// FieldScaled applies a linear mapping from the raw range onto a
	// physical scale (possibly inverted, e.g. 255..0 -> 0..40 degC).
	FieldScaled
	// FieldEnum maps raw values through an explicit value table.
	FieldEnum
)

// Field is one entry in a profile's bit layout. Offset counts bits
// MSB-first from the start of the payload, matching the EEP
// documentation convention.
type Field struct {
	Name   string
	Offset int
	Width  int
	Type   FieldType

	// Linear scaling endpoints for FieldScaled. RangeMin may exceed
	// RangeMax for inverted scales.
	RangeMin, RangeMax float64
	ScaleMin, ScaleMax float64

	// Value table for FieldEnum.
	Enum map[uint64]string
}

// Profile is an immutable bit-layout descriptor for one EEP, e.g.
// "A5-10-06". Func and TypeCode repeat the identifier's numeric parts
// for teach-in payload construction.
type Profile struct {
	ID         string
	RORG       esp3.RORG
	Func       byte
	TypeCode   byte
	PayloadLen int
	Fields     []Field

	// LearnBit is the MSB-first bit offset of the LRN bit, or -1 for
	// families without one (RPS). A cleared LRN bit marks a teach-in
	// telegram.
	LearnBit int
}

// Event is the decoded form of one payload against one profile: field
// name to typed value, plus telegram metadata.
type Event struct {
	Profile string
	Fields  map[string]any

	// Teach reports a teach-in telegram (LRN bit cleared); such
	// payloads carry profile identification, not sensor data.
	Teach bool
	// Repeated reports that the telegram passed through a repeater.
	Repeated bool
}

// extractBits reads width bits starting at MSB-first bit offset off.
func extractBits(payload []byte, off, width int) uint64 {
	var v uint64
	for i := 0; i < width; i++ {
		bit := off + i
		byteIdx := bit / 8
		shift := uint(7 - bit%8)
		v = v<<1 | uint64(payload[byteIdx]>>shift&1)
	}
	return v
}

// insertBits writes the low width bits of v at MSB-first bit offset off.
func insertBits(payload []byte, off, width int, v uint64) {
	for i := 0; i < width; i++ {
		bit := off + i
		byteIdx := bit / 8
		shift := uint(7 - bit%8)
		mask := byte(1) << shift
		if v>>(uint(width-1-i))&1 == 1 {
			payload[byteIdx] |= mask
		} else {
			payload[byteIdx] &^= mask
		}
	}
}

// scaleStep returns the physical size of one raw step, used as the
// round-trip quantization tolerance.
func (f *Field) scaleStep() float64 {
	rawSpan := math.Abs(f.RangeMax - f.RangeMin)
	if rawSpan == 0 {
		return 0
	}
	return math.Abs(f.ScaleMax-f.ScaleMin) / rawSpan
}

// Decode interprets payload against the profile layout. The status
// byte supplies repeater metadata. Payload length must match the
// profile exactly; there is no partial interpretation.
func (p *Profile) Decode(payload []byte, status byte) (Event, error) {
	if len(payload) != p.PayloadLen {
		return Event{}, fmt.Errorf("%s: payload is %d bytes, profile wants %d",
			p.ID, len(payload), p.PayloadLen)
	}

	ev := Event{
		Profile:  p.ID,
		Fields:   make(map[string]any, len(p.Fields)),
		Repeated: status&0x0F != 0,
	}
	if p.LearnBit >= 0 {
		ev.Teach = extractBits(payload, p.LearnBit, 1) == 0
	}

	for i := range p.Fields {
		f := &p.Fields[i]
		raw := extractBits(payload, f.Offset, f.Width)
		switch f.Type {
		case FieldBool:
			ev.Fields[f.Name] = raw != 0
		case FieldScaled:
			span := f.RangeMax - f.RangeMin
			ev.Fields[f.Name] = f.ScaleMin + (float64(raw)-f.RangeMin)*(f.ScaleMax-f.ScaleMin)/span
		case FieldEnum:
			label, ok := f.Enum[raw]
			if !ok {
				label = fmt.Sprintf("reserved(%d)", raw)
			}
			ev.Fields[f.Name] = label
		default:
			ev.Fields[f.Name] = raw
		}
	}
	return ev, nil
}

// Encode packs named field values into payload bytes, the inverse of
// Decode. Omitted fields encode as zero bits; the LRN bit is set (data
// telegram) unless the profile has none. Values outside a field's
// declared range are rejected.
func (p *Profile) Encode(fields map[string]any) ([]byte, error) {
	payload := make([]byte, p.PayloadLen)
	if p.LearnBit >= 0 {
		insertBits(payload, p.LearnBit, 1, 1)
	}

	for name, value := range fields {
		f := p.field(name)
		if f == nil {
			return nil, fmt.Errorf("%s: unknown field %q", p.ID, name)
		}
		raw, err := f.rawValue(value)
		if err != nil {
			return nil, fmt.Errorf("%s: field %q: %w", p.ID, name, err)
		}
		insertBits(payload, f.Offset, f.Width, raw)
	}
	return payload, nil
}

func (p *Profile) field(name string) *Field {
	for i := range p.Fields {
		if p.Fields[i].Name == name {
			return &p.Fields[i]
		}
	}
	return nil
}

// rawValue converts a typed field value back to raw bits.
func (f *Field) rawValue(value any) (uint64, error) {
	maxRaw := uint64(1)<<uint(f.Width) - 1

	switch f.Type {
	case FieldBool:
		b, ok := value.(bool)
		if !ok {
			return 0, fmt.Errorf("want bool, got %T", value)
		}
		if b {
			return 1, nil
		}
		return 0, nil

	case FieldScaled:
		v, ok := toFloat(value)
		if !ok {
			return 0, fmt.Errorf("want number, got %T", value)
		}
		lo, hi := f.ScaleMin, f.ScaleMax
		if lo > hi {
			lo, hi = hi, lo
		}
		if v < lo || v > hi {
			return 0, fmt.Errorf("value %g outside scale [%g, %g]", v, lo, hi)
		}
		span := f.ScaleMax - f.ScaleMin
		raw := math.Round(f.RangeMin + (v-f.ScaleMin)*(f.RangeMax-f.RangeMin)/span)
		if raw < 0 || uint64(raw) > maxRaw {
			return 0, fmt.Errorf("value %g maps outside %d-bit raw range", v, f.Width)
		}
		return uint64(raw), nil

	case FieldEnum:
		label, ok := value.(string)
		if !ok {
			return 0, fmt.Errorf("want enum label, got %T", value)
		}
		for raw, l := range f.Enum {
			if l == label {
				return raw, nil
			}
		}
		return 0, fmt.Errorf("unknown enum label %q", label)

	default:
		raw, ok := toUint(value)
		if !ok {
			return 0, fmt.Errorf("want unsigned integer, got %T", value)
		}
		if raw > maxRaw {
			return 0, fmt.Errorf("value %d exceeds %d-bit field", raw, f.Width)
		}
		return raw, nil
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func toUint(v any) (uint64, bool) {
	switch n := v.(type) {
	case uint64:
		return n, true
	case int:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case byte:
		return uint64(n), true
	}
	return 0, false
}
