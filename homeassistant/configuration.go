// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Esper Authors

package homeassistant

// Discovery payload shapes, serialized to the retained config topics
// Home Assistant watches. Field names follow the MQTT discovery
// schema.

type sensorConfiguration struct {
	UniqueId          string `json:"unique_id"`
	Name              string `json:"name"`
	DeviceClass       string `json:"device_class,omitempty"`
	StateTopic        string `json:"state_topic"`
	UnitOfMeasurement string `json:"unit_of_measurement,omitempty"`
	ValueTemplate     string `json:"value_template,omitempty"`
}

type binarySensorConfiguration struct {
	UniqueId    string `json:"unique_id"`
	Name        string `json:"name"`
	DeviceClass string `json:"device_class,omitempty"`
	StateTopic  string `json:"state_topic"`
	PayloadOn   string `json:"payload_on"`
	PayloadOff  string `json:"payload_off"`
}

type coverConfiguration struct {
	UniqueId         string `json:"unique_id"`
	Name             string `json:"name"`
	DeviceClass      string `json:"device_class,omitempty"`
	CommandTopic     string `json:"command_topic"`
	SetPositionTopic string `json:"set_position_topic"`
	PositionTopic    string `json:"position_topic"`
	PayloadOpen      string `json:"payload_open"`
	PayloadClose     string `json:"payload_close"`
	PayloadStop      string `json:"payload_stop"`
	PositionOpen     int    `json:"position_open"`
	PositionClosed   int    `json:"position_closed"`
}

type climateConfiguration struct {
	UniqueId                string   `json:"unique_id"`
	Name                    string   `json:"name"`
	Modes                   []string `json:"modes"`
	PresetModes             []string `json:"preset_modes,omitempty"`
	ModeStateTopic          string   `json:"mode_state_topic"`
	ModeCommandTopic        string   `json:"mode_command_topic"`
	PresetModeStateTopic    string   `json:"preset_mode_state_topic,omitempty"`
	PresetModeCommandTopic  string   `json:"preset_mode_command_topic,omitempty"`
	TemperatureStateTopic   string   `json:"temperature_state_topic"`
	TemperatureCommandTopic string   `json:"temperature_command_topic"`
	CurrentTemperatureTopic string   `json:"current_temperature_topic"`
	MinTemp                 float64  `json:"min_temp"`
	MaxTemp                 float64  `json:"max_temp"`
	TempStep                float64  `json:"temp_step"`
}
