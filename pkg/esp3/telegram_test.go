// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Esper Authors

package esp3

import "testing"

// ============================================================
// Device ID Tests
// ============================================================

func TestParseDeviceID(t *testing.T) {
	tests := []struct {
		in      string
		want    DeviceID
		wantErr bool
	}{
		{in: "FF:D6:30:01", want: DeviceID{0xFF, 0xD6, 0x30, 0x01}},
		{in: "002dcf45", want: DeviceID{0x00, 0x2D, 0xCF, 0x45}},
		{in: "FF:D6:30", wantErr: true},
		{in: "not-an-id", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			id, err := ParseDeviceID(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected parse error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDeviceID: %v", err)
			}
			if id != tt.want {
				t.Errorf("got %v, want %v", id, tt.want)
			}
		})
	}
}

func TestDeviceID_Offset(t *testing.T) {
	base := DeviceID{0xFF, 0xD6, 0x30, 0x00}
	got := base.Offset(0x12)
	want := DeviceID{0xFF, 0xD6, 0x30, 0x12}
	if got != want {
		t.Errorf("Offset: got %v, want %v", got, want)
	}
}

func TestDeviceID_String(t *testing.T) {
	id := DeviceID{0x01, 0x9A, 0x0B, 0xFF}
	if s := id.String(); s != "01:9A:0B:FF" {
		t.Errorf("String: got %q", s)
	}
}

// ============================================================
// Envelope Decode Tests
// ============================================================

func TestDecode_RPSTelegram(t *testing.T) {
	// F6-02 second button pressed, as seen on air.
	frame := Frame{
		Type: PacketRadioERP1,
		Data: []byte{0xF6, 0x30, 0x00, 0x2D, 0xCF, 0x45, 0x30},
	}

	tg, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if tg.RORG() != RORGRPS {
		t.Errorf("RORG: got %v", tg.RORG())
	}
	if tg.Sender().String() != "00:2D:CF:45" {
		t.Errorf("Sender: got %v", tg.Sender())
	}
	if got := tg.Payload(); len(got) != 1 || got[0] != 0x30 {
		t.Errorf("Payload: got %X", got)
	}
	if tg.Status() != 0x30 {
		t.Errorf("Status: got 0x%02X", tg.Status())
	}
	if !tg.T21() || tg.NU() {
		t.Errorf("status flags: T21=%v NU=%v", tg.T21(), tg.NU())
	}
	if tg.Repeated() {
		t.Error("telegram should not be flagged repeated")
	}
}

func TestDecode_4BSTelegram(t *testing.T) {
	frame := Frame{
		Type: PacketRadioERP1,
		Data: []byte{0xA5, 0x00, 0x1F, 0x7F, 0x08, 0xFF, 0xD6, 0x30, 0x01, 0x01},
	}

	tg, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got := tg.Payload(); len(got) != 4 {
		t.Fatalf("4BS payload should be 4 bytes, got %d", len(got))
	}
	if tg.RepeaterCount() != 1 {
		t.Errorf("RepeaterCount: got %d", tg.RepeaterCount())
	}
	if !tg.Repeated() {
		t.Error("repeater count 1 should flag the telegram repeated")
	}
}

func TestDecode_LengthMismatchRejected(t *testing.T) {
	// 4BS RORG with only 2 payload bytes: inconsistent, must be
	// rejected whole rather than partially interpreted.
	frame := Frame{
		Type: PacketRadioERP1,
		Data: []byte{0xA5, 0x00, 0x1F, 0xFF, 0xD6, 0x30, 0x01, 0x00},
	}

	_, err := Decode(frame)
	if err == nil {
		t.Fatal("expected InvalidEnvelopeError")
	}
	if _, ok := err.(*InvalidEnvelopeError); !ok {
		t.Errorf("expected *InvalidEnvelopeError, got %T", err)
	}
}

func TestDecode_UnknownRORGRejected(t *testing.T) {
	frame := Frame{
		Type: PacketRadioERP1,
		Data: []byte{0x99, 0x00, 0xFF, 0xD6, 0x30, 0x01, 0x00},
	}
	if _, err := Decode(frame); err == nil {
		t.Fatal("unknown RORG should be rejected")
	}
}

func TestDecode_TooShortDataRejected(t *testing.T) {
	frame := Frame{
		Type: PacketRadioERP1,
		Data: []byte{0xF6, 0x30},
	}
	if _, err := Decode(frame); err == nil {
		t.Fatal("short radio data section should be rejected")
	}
}

func TestDecode_ResponseTelegram(t *testing.T) {
	frame := Frame{
		Type: PacketResponse,
		Data: []byte{RetOK, 0xFF, 0xD6, 0x30, 0x00, 0x0A},
	}

	tg, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if tg.ReturnCode() != RetOK {
		t.Errorf("ReturnCode: got 0x%02X", tg.ReturnCode())
	}
	if tg.IsRadio() {
		t.Error("RESPONSE should not be treated as radio")
	}
}

func TestDecode_VLDVariableLength(t *testing.T) {
	// VLD payloads are length-implied; any size passes the envelope.
	frame := Frame{
		Type: PacketRadioERP1,
		Data: []byte{0xD2, 0x04, 0x60, 0x00, 0x00, 0x00, 0x00, 0x05, 0x01, 0x7E, 0x43, 0x00},
	}

	tg, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(tg.Payload()) != 6 {
		t.Errorf("VLD payload: got %d bytes", len(tg.Payload()))
	}
	if tg.Sender().String() != "05:01:7E:43" {
		t.Errorf("Sender: got %v", tg.Sender())
	}
}
