// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Esper Authors

package routes

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/esper-home/esper/bridge"
	"github.com/esper-home/esper/config"
	"github.com/esper-home/esper/pkg/eep"
	"github.com/esper-home/esper/pkg/esp3"
	"github.com/esper-home/esper/pkg/gateway"
)

type nullConn struct {
	once   sync.Once
	closed chan struct{}
}

func (c *nullConn) Read(p []byte) (int, error) {
	<-c.closed
	return 0, io.EOF
}

func (c *nullConn) Write(p []byte) (int, error) { return len(p), nil }

func (c *nullConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func newTestRouter(t *testing.T) (*bridge.Bridge, http.Handler) {
	t.Helper()
	gw := gateway.New(&nullConn{closed: make(chan struct{})})
	t.Cleanup(func() { gw.Close() })

	cfg := &config.Config{
		Connection: config.Connection{Port: "/dev/null"},
		Mqtt:       config.Mqtt{Broker: "localhost:1883"},
		Devices: []config.Device{
			{Name: "window", ID: "00:2D:CF:45", Profile: "D5-00-01"},
		},
	}
	b, err := bridge.New(cfg, gw, eep.DefaultRegistry())
	if err != nil {
		t.Fatalf("bridge.New: %v", err)
	}
	return b, New(b)
}

func TestState_Empty(t *testing.T) {
	_, router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/state", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type: got %q", ct)
	}

	var resp struct {
		Devices  []json.RawMessage `json:"devices"`
		Climates []json.RawMessage `json:"climates"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if resp.Devices == nil || resp.Climates == nil {
		t.Error("empty state must serialize as [] rather than null")
	}
}

func TestState_ReflectsTelegrams(t *testing.T) {
	b, router := newTestRouter(t)

	tg, err := esp3.Decode(esp3.Frame{
		Type: esp3.PacketRadioERP1,
		Data: []byte{0xD5, 0x09, 0x00, 0x2D, 0xCF, 0x45, 0x00},
	})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	b.HandleTelegram(tg)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/state", nil))

	var resp struct {
		Devices []struct {
			Name   string         `json:"name"`
			Fields map[string]any `json:"fields"`
		} `json:"devices"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if len(resp.Devices) != 1 {
		t.Fatalf("expected 1 device, got %d", len(resp.Devices))
	}
	if resp.Devices[0].Name != "window" || resp.Devices[0].Fields["contact"] != "closed" {
		t.Errorf("device state: %+v", resp.Devices[0])
	}
}

func TestState_UnknownRouteIs404(t *testing.T) {
	_, router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status: got %d", rec.Code)
	}
}
