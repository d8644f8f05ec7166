// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Esper Authors

// Package config loads and validates the bridge configuration file.
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"gopkg.in/yaml.v3"

	"github.com/esper-home/esper/pkg/control"
	"github.com/esper-home/esper/pkg/esp3"
)

// HomeAssistantPrefix is the MQTT discovery prefix Home Assistant
// listens on by default.
const HomeAssistantPrefix = "homeassistant"

// TopicPrefix roots every state and command topic this bridge owns.
const TopicPrefix = "esper"

type Config struct {
	Connection Connection `yaml:"connection"`
	Mqtt       Mqtt       `yaml:"mqtt"`
	HTTP       HTTP       `yaml:"http"`
	Devices    []Device   `yaml:"devices"`
	Climates   []Climate  `yaml:"climate"`
}

// Connection selects the transceiver transport: a serial port, or a
// WebSocket URL for a remote transceiver.
type Connection struct {
	Port     string `yaml:"port"`
	Baud     int    `yaml:"baud"`
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
}

type Mqtt struct {
	Broker   string `yaml:"broker"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	ClientID string `yaml:"client_id"`
}

// HTTP configures the local state endpoint. An empty listen address
// disables it.
type HTTP struct {
	Listen string `yaml:"listen"`
}

// Device binds a radio sender address to the EEP profile it speaks.
type Device struct {
	Name    string `yaml:"name"`
	ID      string `yaml:"id"`
	Profile string `yaml:"profile"`
}

// DeviceID parses the configured address.
func (d *Device) DeviceID() (esp3.DeviceID, error) {
	return esp3.ParseDeviceID(d.ID)
}

// Climate configures one heating valve regulation loop.
type Climate struct {
	Name string `yaml:"name"`
	// Channel is the base ID offset used as sender for this entity's
	// outbound telegrams.
	Channel byte `yaml:"channel"`
	// Sensor names the device whose temperature feeds the loop.
	Sensor string `yaml:"sensor"`

	Kp              float64 `yaml:"kp"`
	TnMinutes       int     `yaml:"tn_minutes"`
	IntervalMinutes int     `yaml:"interval_minutes"`
	BaseTemperature float64 `yaml:"base_temperature"`
	Range           float64 `yaml:"range"`
	NightReduction  float64 `yaml:"night_reduction"`
	FrostProtection float64 `yaml:"frost_protection"`
	GraceMinutes    int     `yaml:"grace_minutes"`
}

// Params maps the climate block onto estimator parameters; zero
// fields fall back to the estimator defaults.
func (c *Climate) Params() control.Params {
	return control.Params{
		Kp:              c.Kp,
		Tn:              time.Duration(c.TnMinutes) * time.Minute,
		Interval:        time.Duration(c.IntervalMinutes) * time.Minute,
		BaseTemperature: c.BaseTemperature,
		Range:           c.Range,
		NightReduction:  c.NightReduction,
		FrostProtection: c.FrostProtection,
		Grace:           time.Duration(c.GraceMinutes) * time.Minute,
	}
}

// Load reads, parses and validates a configuration file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks cross-field consistency: a transport must be
// chosen, device IDs must parse, and climate sensors must reference
// configured devices.
func (c *Config) Validate() error {
	if c.Connection.Port == "" && c.Connection.URL == "" {
		return fmt.Errorf("connection: either port or url is required")
	}
	if c.Connection.Port != "" && c.Connection.URL != "" {
		return fmt.Errorf("connection: port and url are mutually exclusive")
	}
	if c.Connection.Baud == 0 {
		c.Connection.Baud = 57600
	}
	if c.Mqtt.Broker == "" {
		return fmt.Errorf("mqtt: broker is required")
	}
	if c.Mqtt.ClientID == "" {
		c.Mqtt.ClientID = TopicPrefix
	}

	names := make(map[string]bool, len(c.Devices))
	for i := range c.Devices {
		d := &c.Devices[i]
		if d.Name == "" {
			return fmt.Errorf("devices[%d]: name is required", i)
		}
		if names[d.Name] {
			return fmt.Errorf("devices[%d]: duplicate name %q", i, d.Name)
		}
		names[d.Name] = true
		if _, err := d.DeviceID(); err != nil {
			return fmt.Errorf("device %q: %w", d.Name, err)
		}
		if d.Profile == "" {
			return fmt.Errorf("device %q: profile is required", d.Name)
		}
	}

	channels := make(map[byte]string, len(c.Climates))
	for i := range c.Climates {
		cl := &c.Climates[i]
		if cl.Name == "" {
			return fmt.Errorf("climate[%d]: name is required", i)
		}
		if prev, dup := channels[cl.Channel]; dup {
			return fmt.Errorf("climate %q: channel %d already used by %q", cl.Name, cl.Channel, prev)
		}
		channels[cl.Channel] = cl.Name
		if cl.Sensor != "" && !names[cl.Sensor] {
			return fmt.Errorf("climate %q: unknown sensor device %q", cl.Name, cl.Sensor)
		}
	}
	return nil
}

// ClientOptions builds the paho options for this broker.
func (m *Mqtt) ClientOptions() *mqtt.ClientOptions {
	return mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%v", m.Broker)).
		SetClientID(m.ClientID).
		SetUsername(m.Username).
		SetPassword(m.Password).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(client mqtt.Client, err error) {
			log.Printf("MQTT connection lost: %v", err)
		}).
		SetReconnectingHandler(func(client mqtt.Client, opts *mqtt.ClientOptions) {
			log.Printf("MQTT reconnecting")
		})
}
