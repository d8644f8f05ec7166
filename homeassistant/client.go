// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Esper Authors

// Package homeassistant announces bridge entities over MQTT
// discovery so Home Assistant picks them up without manual YAML.
package homeassistant

import (
	"encoding/json"
	"fmt"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/esper-home/esper/config"
)

type Client struct {
	mqtt mqtt.Client
}

func NewClient(mqtt mqtt.Client) *Client {
	return &Client{
		mqtt: mqtt,
	}
}

func uniqueId(name string) string {
	return config.TopicPrefix + "_" + strings.Replace(strings.ToLower(name), " ", "_", -1)
}

// RegisterSensor announces a numeric sensor entity and returns the
// state topic the caller publishes readings to.
func (h *Client) RegisterSensor(name string, class string, unit string) (string, error) {
	id := uniqueId(name)
	stateTopic := fmt.Sprintf("%v/sensor/%v", config.TopicPrefix, id)

	payload, _ := json.Marshal(sensorConfiguration{
		UniqueId:          id,
		Name:              name,
		DeviceClass:       class,
		StateTopic:        stateTopic,
		UnitOfMeasurement: unit,
	})

	configTopic := fmt.Sprintf("%v/sensor/%v/config", config.HomeAssistantPrefix, id)
	if t := h.mqtt.Publish(configTopic, 0, true, payload); t.Wait() && t.Error() != nil {
		return "", t.Error()
	}
	return stateTopic, nil
}

// RegisterBinarySensor announces an on/off entity such as a window
// contact or rocker button and returns its state topic.
func (h *Client) RegisterBinarySensor(name string, class string) (string, error) {
	id := uniqueId(name)
	stateTopic := fmt.Sprintf("%v/binary_sensor/%v", config.TopicPrefix, id)

	payload, _ := json.Marshal(binarySensorConfiguration{
		UniqueId:    id,
		Name:        name,
		DeviceClass: class,
		StateTopic:  stateTopic,
		PayloadOn:   "ON",
		PayloadOff:  "OFF",
	})

	configTopic := fmt.Sprintf("%v/binary_sensor/%v/config", config.HomeAssistantPrefix, id)
	if t := h.mqtt.Publish(configTopic, 0, true, payload); t.Wait() && t.Error() != nil {
		return "", t.Error()
	}
	return stateTopic, nil
}

// CoverTopics is the topic set one cover entity communicates on.
type CoverTopics struct {
	Command     string
	SetPosition string
	Position    string
}

// CoverTopicsFor derives the cover topic set from the entity name
// without registering anything.
func CoverTopicsFor(name string) CoverTopics {
	base := fmt.Sprintf("%v/cover/%v", config.TopicPrefix, uniqueId(name))
	return CoverTopics{
		Command:     base + "/cmd",
		SetPosition: base + "/set_position",
		Position:    base + "/position",
	}
}

// RegisterCover announces a positional shutter entity. Positions are
// on the Home Assistant scale, 100 open and 0 closed.
func (h *Client) RegisterCover(name string) (CoverTopics, error) {
	id := uniqueId(name)
	topics := CoverTopicsFor(name)

	payload, _ := json.Marshal(coverConfiguration{
		UniqueId:         id,
		Name:             name,
		DeviceClass:      "shutter",
		CommandTopic:     topics.Command,
		SetPositionTopic: topics.SetPosition,
		PositionTopic:    topics.Position,
		PayloadOpen:      "OPEN",
		PayloadClose:     "CLOSE",
		PayloadStop:      "STOP",
		PositionOpen:     100,
		PositionClosed:   0,
	})

	configTopic := fmt.Sprintf("%v/cover/%v/config", config.HomeAssistantPrefix, id)
	if t := h.mqtt.Publish(configTopic, 0, true, payload); t.Wait() && t.Error() != nil {
		return CoverTopics{}, t.Error()
	}
	return topics, nil
}

// ClimateTopics is the topic set one climate entity communicates on.
type ClimateTopics struct {
	ModeState          string
	ModeCommand        string
	PresetState        string
	PresetCommand      string
	TemperatureState   string
	TemperatureCommand string
	CurrentTemperature string
}

// Topics derives the climate topic set from the entity name without
// registering anything, so command subscriptions can be set up before
// discovery runs.
func Topics(name string) ClimateTopics {
	base := fmt.Sprintf("%v/climate/%v", config.TopicPrefix, uniqueId(name))
	return ClimateTopics{
		ModeState:          base + "/mode/state",
		ModeCommand:        base + "/mode/cmd",
		PresetState:        base + "/preset/state",
		PresetCommand:      base + "/preset/cmd",
		TemperatureState:   base + "/temperature/state",
		TemperatureCommand: base + "/temperature/cmd",
		CurrentTemperature: base + "/current_temperature",
	}
}

// RegisterClimate announces a thermostat entity bounded to the band
// the valve actuator scale can express.
func (h *Client) RegisterClimate(name string, minTemp, maxTemp float64) (ClimateTopics, error) {
	id := uniqueId(name)
	topics := Topics(name)

	payload, _ := json.Marshal(climateConfiguration{
		UniqueId:                id,
		Name:                    name,
		Modes:                   []string{"off", "heat"},
		PresetModes:             []string{"comfort", "sleep", "away"},
		ModeStateTopic:          topics.ModeState,
		ModeCommandTopic:        topics.ModeCommand,
		PresetModeStateTopic:    topics.PresetState,
		PresetModeCommandTopic:  topics.PresetCommand,
		TemperatureStateTopic:   topics.TemperatureState,
		TemperatureCommandTopic: topics.TemperatureCommand,
		CurrentTemperatureTopic: topics.CurrentTemperature,
		MinTemp:                 minTemp,
		MaxTemp:                 maxTemp,
		TempStep:                0.5,
	})

	configTopic := fmt.Sprintf("%v/climate/%v/config", config.HomeAssistantPrefix, id)
	if t := h.mqtt.Publish(configTopic, 0, true, payload); t.Wait() && t.Error() != nil {
		return ClimateTopics{}, t.Error()
	}
	return topics, nil
}
