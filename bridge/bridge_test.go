// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Esper Authors

package bridge

import (
	"io"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/esper-home/esper/config"
	"github.com/esper-home/esper/pkg/control"
	"github.com/esper-home/esper/pkg/eep"
	"github.com/esper-home/esper/pkg/esp3"
	"github.com/esper-home/esper/pkg/gateway"
)

// ============================================================
// Test Fixtures
// ============================================================

// sinkConn records outbound frames and never produces inbound bytes.
type sinkConn struct {
	mu     sync.Mutex
	writes [][]byte
	closed chan struct{}
	once   sync.Once
}

func newSinkConn() *sinkConn {
	return &sinkConn{closed: make(chan struct{})}
}

func (c *sinkConn) Read(p []byte) (int, error) {
	<-c.closed
	return 0, io.EOF
}

func (c *sinkConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, append([]byte(nil), p...))
	return len(p), nil
}

func (c *sinkConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *sinkConn) frames(t *testing.T) []*esp3.Frame {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	var frames []*esp3.Frame
	f := esp3.NewFramer()
	for _, w := range c.writes {
		for _, r := range f.Feed(w) {
			if r.Err != nil {
				t.Fatalf("outbound bytes do not reframe: %v", r.Err)
			}
			frames = append(frames, r.Frame)
		}
	}
	return frames
}

// recordingMqtt implements mqtt.Client for tests. Publishes are
// recorded; token completion is gated on the ack channel so a test
// can stand in for a broker that has stopped acknowledging.
type recordingMqtt struct {
	mu   sync.Mutex
	pubs []mqttPublish
	ack  chan struct{}
}

type mqttPublish struct {
	topic   string
	payload string
}

func newRecordingMqtt(t *testing.T, acked bool) *recordingMqtt {
	t.Helper()
	m := &recordingMqtt{ack: make(chan struct{})}
	if acked {
		close(m.ack)
	} else {
		// Release the ack waiters when the test is over.
		t.Cleanup(func() { close(m.ack) })
	}
	return m
}

func (m *recordingMqtt) published() []mqttPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mqttPublish(nil), m.pubs...)
}

type testToken struct{ done <-chan struct{} }

func (t *testToken) Wait() bool { <-t.done; return true }
func (t *testToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}
func (t *testToken) Done() <-chan struct{} { return t.done }
func (t *testToken) Error() error          { return nil }

func (m *recordingMqtt) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	var rendered string
	switch p := payload.(type) {
	case string:
		rendered = p
	case []byte:
		rendered = string(p)
	}
	m.mu.Lock()
	m.pubs = append(m.pubs, mqttPublish{topic: topic, payload: rendered})
	m.mu.Unlock()
	return &testToken{done: m.ack}
}

func (m *recordingMqtt) IsConnected() bool      { return true }
func (m *recordingMqtt) IsConnectionOpen() bool { return true }
func (m *recordingMqtt) Connect() mqtt.Token    { return &testToken{done: m.ack} }
func (m *recordingMqtt) Disconnect(quiesce uint) {}
func (m *recordingMqtt) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	return &testToken{done: m.ack}
}
func (m *recordingMqtt) SubscribeMultiple(filters map[string]byte, callback mqtt.MessageHandler) mqtt.Token {
	return &testToken{done: m.ack}
}
func (m *recordingMqtt) Unsubscribe(topics ...string) mqtt.Token {
	return &testToken{done: m.ack}
}
func (m *recordingMqtt) AddRoute(topic string, callback mqtt.MessageHandler) {}
func (m *recordingMqtt) OptionsReader() mqtt.ClientOptionsReader {
	return mqtt.ClientOptionsReader{}
}

func testConfig() *config.Config {
	return &config.Config{
		Connection: config.Connection{Port: "/dev/null"},
		Mqtt:       config.Mqtt{Broker: "localhost:1883"},
		Devices: []config.Device{
			{Name: "panel", ID: "01:9A:0B:12", Profile: "A5-10-06"},
			{Name: "window", ID: "00:2D:CF:45", Profile: "D5-00-01"},
			{Name: "mystery", ID: "0A:0B:0C:0D", Profile: "A5-77-77"},
			{Name: "shutter", ID: "05:11:22:33", Profile: "D2-05-00"},
		},
		Climates: []config.Climate{
			{
				Name: "living_room", Channel: 1, Sensor: "panel",
				Kp: 5, TnMinutes: 240, IntervalMinutes: 17,
				BaseTemperature: 20, Range: 5,
			},
		},
	}
}

func newTestBridge(t *testing.T) (*Bridge, *sinkConn) {
	t.Helper()
	conn := newSinkConn()
	gw := gateway.New(conn)
	t.Cleanup(func() { gw.Close() })

	b, err := New(testConfig(), gw, eep.DefaultRegistry())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b, conn
}

// radioTelegram decodes a hand-built RADIO_ERP1 data section.
func radioTelegram(t *testing.T, data []byte) *esp3.Telegram {
	t.Helper()
	tg, err := esp3.Decode(esp3.Frame{Type: esp3.PacketRadioERP1, Data: data})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return tg
}

// ============================================================
// Telegram Handling Tests
// ============================================================

func TestHandleTelegram_UpdatesDeviceState(t *testing.T) {
	b, _ := newTestBridge(t)

	// Panel at 20 degC (raw 128), setpoint dial mid-scale, LRN set.
	b.HandleTelegram(radioTelegram(t,
		[]byte{0xA5, 0x00, 0x80, 0x80, 0x09, 0x01, 0x9A, 0x0B, 0x12, 0x00}))

	devices, _ := b.Snapshot()
	if len(devices) != 1 {
		t.Fatalf("expected 1 device state, got %d", len(devices))
	}
	if devices[0].Name != "panel" || devices[0].Profile != "A5-10-06" {
		t.Errorf("state: %+v", devices[0])
	}
	temp, ok := devices[0].Fields["temperature"].(float64)
	if !ok || temp < 19.8 || temp > 20.2 {
		t.Errorf("temperature: got %v", devices[0].Fields["temperature"])
	}
}

func TestHandleTelegram_FeedsClimateSensor(t *testing.T) {
	b, _ := newTestBridge(t)

	b.HandleTelegram(radioTelegram(t,
		[]byte{0xA5, 0x00, 0x80, 0xFF, 0x09, 0x01, 0x9A, 0x0B, 0x12, 0x00}))

	loop := b.loops["living_room"]
	measured, _, ok := loop.est.Measured(time.Now())
	if !ok {
		t.Fatal("panel reading never reached the estimator")
	}
	if measured > 0.5 {
		t.Errorf("raw 0xFF should measure 0 degC, got %g", measured)
	}

	// The setpoint dial at 0x80 maps to just above the base.
	if target := loop.est.Target(); target < 20 || target > 20.2 {
		t.Errorf("target from dial: got %g", target)
	}
}

func TestHandleTelegram_UnknownSenderIgnored(t *testing.T) {
	b, _ := newTestBridge(t)

	b.HandleTelegram(radioTelegram(t,
		[]byte{0xF6, 0x30, 0xDE, 0xAD, 0xBE, 0xEF, 0x30}))

	if devices, _ := b.Snapshot(); len(devices) != 0 {
		t.Errorf("unknown sender must not create state, got %d entries", len(devices))
	}
}

func TestHandleTelegram_UnknownProfileWarnsWithoutState(t *testing.T) {
	b, _ := newTestBridge(t)

	// "mystery" is configured with a profile the registry lacks.
	for i := 0; i < 3; i++ {
		b.HandleTelegram(radioTelegram(t,
			[]byte{0xA5, 0x00, 0x00, 0x00, 0x08, 0x0A, 0x0B, 0x0C, 0x0D, 0x00}))
	}

	if devices, _ := b.Snapshot(); len(devices) != 0 {
		t.Error("undecodable device must not create state")
	}
	if !b.warned["decode:mystery"] {
		t.Error("decode failure should be remembered as warned")
	}
}

func TestHandleTelegram_TeachInDoesNotBecomeState(t *testing.T) {
	b, _ := newTestBridge(t)

	// LRN bit cleared: teach-in, not data.
	b.HandleTelegram(radioTelegram(t,
		[]byte{0xA5, 0x40, 0x30, 0xFF, 0x80, 0x01, 0x9A, 0x0B, 0x12, 0x00}))

	if devices, _ := b.Snapshot(); len(devices) != 0 {
		t.Error("teach-in telegrams must not be published as sensor data")
	}
}

func TestHandleTelegram_ContactSensor(t *testing.T) {
	b, _ := newTestBridge(t)

	b.HandleTelegram(radioTelegram(t,
		[]byte{0xD5, 0x08, 0x00, 0x2D, 0xCF, 0x45, 0x00}))

	devices, _ := b.Snapshot()
	if len(devices) != 1 {
		t.Fatalf("expected 1 device state, got %d", len(devices))
	}
	if devices[0].Fields["contact"] != "open" {
		t.Errorf("contact: got %v", devices[0].Fields["contact"])
	}
}

// ============================================================
// Regulation Transmission Tests
// ============================================================

func TestTransmit_SendsSetpointTelegram(t *testing.T) {
	b, conn := newTestBridge(t)
	loop := b.loops["living_room"]

	loop.heating = true
	loop.est.SetMode(control.ModeComfort)
	loop.est.SetTarget(21)
	now := time.Now()
	loop.est.UpdateMeasurement(19, now)

	b.mu.Lock()
	b.transmit(loop, now)
	b.mu.Unlock()

	frames := conn.frames(t)
	if len(frames) != 1 {
		t.Fatalf("expected 1 outbound frame, got %d", len(frames))
	}
	tg, err := esp3.Decode(*frames[0])
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if tg.RORG() != esp3.RORG4BS {
		t.Errorf("RORG: got %v", tg.RORG())
	}
	payload := tg.Payload()
	want := control.SetpointByte(21, 20)
	if payload[0] != 0x00 || payload[1] != 0x1F || payload[2] != want || payload[3] != 0x08 {
		t.Errorf("payload: got % X, want 00 1F %02X 08", payload, want)
	}
	// Channel 1 offsets the (zero) base ID.
	if tg.Sender()[3] != 0x01 {
		t.Errorf("sender channel: got %v", tg.Sender())
	}
}

func TestTransmit_IdleSendsNothing(t *testing.T) {
	b, conn := newTestBridge(t)
	loop := b.loops["living_room"]

	b.mu.Lock()
	b.transmit(loop, time.Now())
	b.mu.Unlock()

	if frames := conn.frames(t); len(frames) != 0 {
		t.Errorf("idle loop must not transmit, got %d frames", len(frames))
	}
}

func TestTransmit_FrostProtectUsesFrostTemperature(t *testing.T) {
	b, conn := newTestBridge(t)
	loop := b.loops["living_room"]

	loop.heating = false
	loop.est.SetMode(loop.mode())
	now := time.Now()
	loop.est.UpdateMeasurement(21, now)

	b.mu.Lock()
	b.transmit(loop, now)
	b.mu.Unlock()

	frames := conn.frames(t)
	if len(frames) != 1 {
		t.Fatalf("expected 1 outbound frame, got %d", len(frames))
	}
	tg, _ := esp3.Decode(*frames[0])
	want := control.SetpointByte(control.DefaultFrostProtection, 20)
	if tg.Payload()[2] != want {
		t.Errorf("frost setpoint: got 0x%02X, want 0x%02X", tg.Payload()[2], want)
	}
}

func TestSendFrostSwitch_PressAndRelease(t *testing.T) {
	b, conn := newTestBridge(t)
	loop := b.loops["living_room"]

	b.mu.Lock()
	b.sendFrostSwitch(loop, true)
	b.mu.Unlock()

	frames := conn.frames(t)
	if len(frames) != 2 {
		t.Fatalf("expected press and release, got %d frames", len(frames))
	}

	press, _ := esp3.Decode(*frames[0])
	release, _ := esp3.Decode(*frames[1])
	if press.RORG() != esp3.RORGRPS || release.RORG() != esp3.RORGRPS {
		t.Fatal("frost switch must use RPS telegrams")
	}
	if press.Payload()[0]&0x10 == 0 {
		t.Error("press must set the energy bow")
	}
	if release.Payload()[0] != 0x00 {
		t.Errorf("release action: got 0x%02X", release.Payload()[0])
	}
}

// ============================================================
// Cover Tests
// ============================================================

func TestCoverSetPosition_SendsInvertedPosition(t *testing.T) {
	b, conn := newTestBridge(t)
	cover := b.covers["shutter"]

	// Home Assistant 75 is actuator 25.
	b.mu.Lock()
	b.coverSetPosition(cover, 75)
	b.mu.Unlock()

	frames := conn.frames(t)
	if len(frames) != 1 {
		t.Fatalf("expected 1 outbound frame, got %d", len(frames))
	}
	tg, err := esp3.Decode(*frames[0])
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if tg.RORG() != esp3.RORGVLD {
		t.Errorf("RORG: got %v", tg.RORG())
	}
	payload := tg.Payload()
	if payload[0] != 25 || payload[3] != 0x01 {
		t.Errorf("payload: got % X, want 19 00 00 01", payload)
	}
	// Addressed to the actuator, not broadcast.
	if dest := frames[0].Optional[1:5]; dest[0] != 0x05 || dest[1] != 0x11 || dest[2] != 0x22 || dest[3] != 0x33 {
		t.Errorf("destination: got % X", dest)
	}
}

func TestCoverCommand_OpenCloseStop(t *testing.T) {
	b, conn := newTestBridge(t)
	cover := b.covers["shutter"]

	b.mu.Lock()
	b.coverCommand(cover, "OPEN")
	b.coverCommand(cover, "CLOSE")
	b.coverCommand(cover, "STOP")
	b.mu.Unlock()

	frames := conn.frames(t)
	if len(frames) != 3 {
		t.Fatalf("expected 3 outbound frames, got %d", len(frames))
	}
	open, _ := esp3.Decode(*frames[0])
	closeTg, _ := esp3.Decode(*frames[1])
	stop, _ := esp3.Decode(*frames[2])
	if open.Payload()[0] != 0 {
		t.Errorf("open should drive to actuator position 0, got %d", open.Payload()[0])
	}
	if closeTg.Payload()[0] != 100 {
		t.Errorf("close should drive to actuator position 100, got %d", closeTg.Payload()[0])
	}
	if len(stop.Payload()) != 1 || stop.Payload()[0] != 0x02 {
		t.Errorf("stop payload: got % X", stop.Payload())
	}
}

func TestHandleTelegram_CoverReplyPublishesPosition(t *testing.T) {
	b, _ := newTestBridge(t)
	m := newRecordingMqtt(t, true)
	b.mu.Lock()
	b.mqtt = m
	b.mu.Unlock()

	// Position reply at actuator 25, which is 75 on the entity scale.
	b.HandleTelegram(radioTelegram(t,
		[]byte{0xD2, 0x19, 0x00, 0x00, 0x04, 0x05, 0x11, 0x22, 0x33, 0x00}))

	topic := b.covers["shutter"].topics.Position
	var got string
	for _, p := range m.published() {
		if p.topic == topic {
			got = p.payload
		}
	}
	if got != "75" {
		t.Errorf("published position: got %q, want \"75\"", got)
	}
}

func TestCoverPosition(t *testing.T) {
	reply := func(pos uint64) eep.Event {
		return eep.Event{Fields: map[string]any{
			"position": pos,
			"command":  uint64(eep.BlindsCmdReply),
		}}
	}

	if pos, ok := coverPosition(reply(25)); !ok || pos != 75 {
		t.Errorf("position 25: got %d, %v", pos, ok)
	}
	if _, ok := coverPosition(reply(eep.BlindsPositionUnknown)); ok {
		t.Error("unknown position must not publish")
	}
	if _, ok := coverPosition(eep.Event{Fields: map[string]any{
		"position": uint64(25), "command": uint64(1),
	}}); ok {
		t.Error("only position replies carry state")
	}
}

// ============================================================
// MQTT Publishing Tests
// ============================================================

func TestHandleTelegram_DoesNotBlockOnStalledBroker(t *testing.T) {
	b, _ := newTestBridge(t)
	m := newRecordingMqtt(t, false) // broker never acknowledges

	b.mu.Lock()
	b.mqtt = m
	b.fieldTopics["panel.temperature"] = "esper/sensor/panel_temperature"
	b.mu.Unlock()

	tg := radioTelegram(t,
		[]byte{0xA5, 0x00, 0x80, 0x80, 0x09, 0x01, 0x9A, 0x0B, 0x12, 0x00})

	done := make(chan struct{})
	go func() {
		b.HandleTelegram(tg)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("telegram handling stalled on an unresponsive broker")
	}

	if len(m.published()) == 0 {
		t.Error("the reading should still be handed to the MQTT client")
	}
}

// ============================================================
// Snapshot Tests
// ============================================================

func TestSnapshot_ClimateState(t *testing.T) {
	b, _ := newTestBridge(t)
	loop := b.loops["living_room"]

	loop.heating = true
	loop.est.SetMode(control.ModeComfort)
	loop.est.SetTarget(22)
	now := time.Now()
	loop.est.UpdateMeasurement(20, now)
	b.mu.Lock()
	b.transmit(loop, now)
	b.mu.Unlock()

	_, climates := b.Snapshot()
	if len(climates) != 1 {
		t.Fatalf("expected 1 climate state, got %d", len(climates))
	}
	if climates[0].Mode != "comfort" || climates[0].Target != 22 {
		t.Errorf("climate state: %+v", climates[0])
	}
	if climates[0].Valve <= 0 {
		t.Errorf("valve should be open with a 2 degree error, got %g", climates[0].Valve)
	}
}

func TestRenderValue(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{name: "temperature", value: 21.52, want: "21.5"},
		{name: "energy_bow", value: true, want: "ON"},
		{name: "contact", value: "open", want: "ON"},
		{name: "contact", value: "closed", want: "OFF"},
		{name: "rocker_first", value: "BO", want: "BO"},
		{name: "setpoint", value: uint64(140), want: "140"},
	}
	for _, tt := range tests {
		if got := renderValue(tt.name, tt.value); got != tt.want {
			t.Errorf("renderValue(%s, %v) = %q, want %q", tt.name, tt.value, got, tt.want)
		}
	}
}
