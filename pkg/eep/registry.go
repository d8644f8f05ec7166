// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Esper Authors

package eep

import (
	"fmt"

	"github.com/esper-home/esper/pkg/esp3"
)

// UnknownProfileError marks a profile identifier the registry does not
// carry. Callers surface it once per device rather than per telegram.
type UnknownProfileError struct {
	ID string
}

func (e *UnknownProfileError) Error() string {
	return fmt.Sprintf("unknown EEP profile %q", e.ID)
}

// Registry resolves profile identifiers to their bit layouts. It is
// built once at startup and never mutated, so concurrent lookups need
// no locking.
type Registry struct {
	profiles map[string]*Profile
}

// NewRegistry builds a registry from an explicit profile set.
func NewRegistry(profiles ...*Profile) *Registry {
	r := &Registry{profiles: make(map[string]*Profile, len(profiles))}
	for _, p := range profiles {
		r.profiles[p.ID] = p
	}
	return r
}

// Lookup resolves a profile identifier such as "A5-10-06".
func (r *Registry) Lookup(id string) (*Profile, error) {
	p, ok := r.profiles[id]
	if !ok {
		return nil, &UnknownProfileError{ID: id}
	}
	return p, nil
}

// Decode resolves the profile and decodes the payload against it.
func (r *Registry) Decode(id string, payload []byte, status byte) (Event, error) {
	p, err := r.Lookup(id)
	if err != nil {
		return Event{}, err
	}
	return p.Decode(payload, status)
}

// Encode resolves the profile and packs the fields into a payload.
func (r *Registry) Encode(id string, fields map[string]any) ([]byte, error) {
	p, err := r.Lookup(id)
	if err != nil {
		return nil, err
	}
	return p.Encode(fields)
}

// Profiles returns the registered identifiers, for diagnostics.
func (r *Registry) Profiles() []string {
	ids := make([]string, 0, len(r.profiles))
	for id := range r.profiles {
		ids = append(ids, id)
	}
	return ids
}

// rockerEnum is shared by both F6-02 application styles.
var rockerEnum = map[uint64]string{
	0: "AI", // button A, down
	1: "AO", // button A, up
	2: "BI", // button B, down
	3: "BO", // button B, up
}

// DefaultRegistry carries the profiles this stack ships with:
//
//	D5-00-01  single input contact (window/door)
//	A5-02-05  temperature sensor, 0..40 degC
//	A5-10-06  room operating panel with setpoint and day/night switch
//	F6-02-01  rocker switch, application style 1
//	F6-02-02  rocker switch, application style 2
//	D2-05-00  blinds control for position and angle
func DefaultRegistry() *Registry {
	return NewRegistry(
		&Profile{
			ID:         "D5-00-01",
			RORG:       esp3.RORG1BS,
			Func:       0x00,
			TypeCode:   0x01,
			PayloadLen: 1,
			LearnBit:   4,
			Fields: []Field{
				{Name: "contact", Offset: 7, Width: 1, Type: FieldEnum,
					Enum: map[uint64]string{0: "open", 1: "closed"}},
			},
		},
		&Profile{
			ID:         "A5-02-05",
			RORG:       esp3.RORG4BS,
			Func:       0x02,
			TypeCode:   0x05,
			PayloadLen: 4,
			LearnBit:   28,
			Fields: []Field{
				// DB1, inverted: raw 255 is 0 degC, raw 0 is 40 degC.
				{Name: "temperature", Offset: 16, Width: 8, Type: FieldScaled,
					RangeMin: 255, RangeMax: 0, ScaleMin: 0, ScaleMax: 40},
			},
		},
		&Profile{
			ID:         "A5-10-06",
			RORG:       esp3.RORG4BS,
			Func:       0x10,
			TypeCode:   0x06,
			PayloadLen: 4,
			LearnBit:   28,
			Fields: []Field{
				{Name: "setpoint", Offset: 8, Width: 8, Type: FieldRaw},
				{Name: "temperature", Offset: 16, Width: 8, Type: FieldScaled,
					RangeMin: 255, RangeMax: 0, ScaleMin: 0, ScaleMax: 40},
				{Name: "day_night", Offset: 31, Width: 1, Type: FieldEnum,
					Enum: map[uint64]string{0: "night", 1: "day"}},
			},
		},
		&Profile{
			ID:         "F6-02-01",
			RORG:       esp3.RORGRPS,
			Func:       0x02,
			TypeCode:   0x01,
			PayloadLen: 1,
			LearnBit:   -1,
			Fields:     rockerFields(),
		},
		&Profile{
			ID:         "F6-02-02",
			RORG:       esp3.RORGRPS,
			Func:       0x02,
			TypeCode:   0x02,
			PayloadLen: 1,
			LearnBit:   -1,
			Fields:     rockerFields(),
		},
		&Profile{
			// The layout is the 4-byte position reply; the shorter
			// command forms only travel toward the actuator and are
			// built in blinds.go.
			ID:         "D2-05-00",
			RORG:       esp3.RORGVLD,
			Func:       0x05,
			TypeCode:   0x00,
			PayloadLen: 4,
			LearnBit:   -1,
			Fields: []Field{
				{Name: "position", Offset: 1, Width: 7, Type: FieldRaw},
				{Name: "angle", Offset: 9, Width: 7, Type: FieldRaw},
				{Name: "locking_mode", Offset: 21, Width: 3, Type: FieldEnum,
					Enum: map[uint64]string{0: "normal", 1: "blockage", 2: "alarm", 7: "deadlock"}},
				{Name: "channel", Offset: 24, Width: 4, Type: FieldRaw},
				{Name: "command", Offset: 28, Width: 4, Type: FieldRaw},
			},
		},
	)
}

// rockerFields is the F6-02 action byte layout: first action in the top
// three bits, energy bow, second action, second action valid flag.
func rockerFields() []Field {
	return []Field{
		{Name: "rocker_first", Offset: 0, Width: 3, Type: FieldEnum, Enum: rockerEnum},
		{Name: "energy_bow", Offset: 3, Width: 1, Type: FieldBool},
		{Name: "rocker_second", Offset: 4, Width: 3, Type: FieldEnum, Enum: rockerEnum},
		{Name: "second_action", Offset: 7, Width: 1, Type: FieldBool},
	}
}
