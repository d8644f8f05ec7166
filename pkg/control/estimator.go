// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Esper Authors

// Package control holds the heating regulation logic: a PI estimator
// per climate entity that turns room temperature readings into valve
// position commands on a fixed tick.
//
// The estimator is a pure state machine driven by explicit timestamps.
// It performs no I/O and starts no goroutines, so the whole regulation
// behaviour is testable with synthetic clocks.
package control

import (
	"math"
	"time"
)

// Mode is the operating mode of one climate entity.
type Mode int

const (
	// ModeIdle leaves the valve alone; no commands are produced.
	ModeIdle Mode = iota
	// ModeComfort regulates toward the user target temperature.
	ModeComfort
	// ModeSleep regulates toward the night-reduced target.
	ModeSleep
	// ModeAway behaves like sleep but is reported separately.
	ModeAway
	// ModeFrostProtect pins the target to the frost protection
	// temperature; used when the entity is switched off.
	ModeFrostProtect
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeComfort:
		return "comfort"
	case ModeSleep:
		return "sleep"
	case ModeAway:
		return "away"
	case ModeFrostProtect:
		return "frost_protect"
	}
	return "?"
}

// Params tunes one estimator. Zero fields are replaced by defaults in
// New.
type Params struct {
	// Kp is the proportional gain in valve percent per degree.
	Kp float64
	// Tn is the integral time: how long a constant one-degree error
	// takes to add one degree worth of output.
	Tn time.Duration
	// Interval is the regulation tick, also the fallback dt for the
	// first tick.
	Interval time.Duration

	// BaseTemperature anchors both the comfort band and the setpoint
	// byte scale.
	BaseTemperature float64
	// Range bounds the comfort target to BaseTemperature +/- Range.
	Range float64
	// NightReduction is subtracted from the base for sleep and away.
	NightReduction float64
	// FrostProtection is the absolute target while frost protecting.
	FrostProtection float64

	// Grace is how stale a measurement may get before the estimator
	// degrades and freezes its output.
	Grace time.Duration
}

// Defaults for an ordinary radiator loop.
const (
	DefaultKp              = 5.0
	DefaultTnMinutes       = 240
	DefaultIntervalMinutes = 17
	DefaultBaseTemperature = 20.0
	DefaultRange           = 5.0
	DefaultNightReduction  = 3.0
	DefaultFrostProtection = 8.0
	DefaultGraceMinutes    = 60
)

func (p Params) withDefaults() Params {
	if p.Kp == 0 {
		p.Kp = DefaultKp
	}
	if p.Tn == 0 {
		p.Tn = DefaultTnMinutes * time.Minute
	}
	if p.Interval == 0 {
		p.Interval = DefaultIntervalMinutes * time.Minute
	}
	if p.BaseTemperature == 0 {
		p.BaseTemperature = DefaultBaseTemperature
	}
	if p.Range == 0 {
		p.Range = DefaultRange
	}
	if p.NightReduction == 0 {
		p.NightReduction = DefaultNightReduction
	}
	if p.FrostProtection == 0 {
		p.FrostProtection = DefaultFrostProtection
	}
	if p.Grace == 0 {
		p.Grace = DefaultGraceMinutes * time.Minute
	}
	return p
}

// Command is one regulation decision: the target the valve actuator
// should chase and the estimator's own valve position estimate.
type Command struct {
	// Active is false while idle; nothing should be sent.
	Active bool
	Mode   Mode
	// Target is the effective target temperature for this tick.
	Target float64
	// Valve is the estimated valve position in percent, 0 to 100.
	Valve float64
	// Setpoint is Target rendered onto the 0..255 actuator scale
	// around the base temperature.
	Setpoint byte
	// Degraded reports that the last measurement is older than the
	// grace period and the output is frozen.
	Degraded bool
}

// Estimator is a PI regulator for one heating valve. Not safe for
// concurrent use; callers serialize access.
type Estimator struct {
	params Params

	mode   Mode
	target float64

	measured   float64
	measuredAt time.Time
	haveSample bool

	integral float64
	valve    float64
	lastTick time.Time
}

// New builds an estimator with defaults applied and the comfort target
// anchored at the base temperature.
func New(params Params) *Estimator {
	p := params.withDefaults()
	return &Estimator{
		params: p,
		mode:   ModeIdle,
		target: p.BaseTemperature,
	}
}

// Params returns the effective parameter set after defaulting.
func (e *Estimator) Params() Params { return e.params }

// Mode returns the current operating mode.
func (e *Estimator) Mode() Mode { return e.mode }

// Target returns the user comfort target.
func (e *Estimator) Target() float64 { return e.target }

// SetMode switches the operating mode. Leaving frost protection or
// idle resets the integral so stale accumulation cannot slam the
// valve.
func (e *Estimator) SetMode(m Mode) {
	if e.mode == m {
		return
	}
	if e.mode == ModeFrostProtect || e.mode == ModeIdle {
		e.integral = 0
	}
	e.mode = m
}

// SetTarget sets the comfort target, clamped to the band the actuator
// scale can express.
func (e *Estimator) SetTarget(t float64) {
	lo := e.params.BaseTemperature - e.params.Range
	hi := e.params.BaseTemperature + e.params.Range
	e.target = math.Min(math.Max(t, lo), hi)
}

// UpdateMeasurement records a fresh room temperature reading.
func (e *Estimator) UpdateMeasurement(temp float64, now time.Time) {
	e.measured = temp
	e.measuredAt = now
	e.haveSample = true
}

// Measured returns the last reading and its age relative to now.
func (e *Estimator) Measured(now time.Time) (float64, time.Duration, bool) {
	if !e.haveSample {
		return 0, 0, false
	}
	return e.measured, now.Sub(e.measuredAt), true
}

// effectiveTarget maps the mode onto a target temperature.
func (e *Estimator) effectiveTarget() float64 {
	switch e.mode {
	case ModeComfort:
		return e.target
	case ModeSleep, ModeAway:
		return e.params.BaseTemperature - e.params.NightReduction
	case ModeFrostProtect:
		return e.params.FrostProtection
	}
	return e.target
}

// Tick advances the regulator to now and returns the command for this
// interval. Idle mode and missing measurements produce inactive
// commands; stale measurements freeze the output and flag degradation.
func (e *Estimator) Tick(now time.Time) Command {
	if e.mode == ModeIdle {
		e.lastTick = now
		return Command{Mode: e.mode}
	}

	target := e.effectiveTarget()
	cmd := Command{
		Active:   true,
		Mode:     e.mode,
		Target:   target,
		Setpoint: SetpointByte(target, e.params.BaseTemperature),
	}

	if !e.haveSample {
		// Nothing to regulate against yet; announce the target only.
		e.lastTick = now
		cmd.Degraded = true
		cmd.Valve = e.valve
		return cmd
	}

	if now.Sub(e.measuredAt) > e.params.Grace {
		// Sensor went quiet. Hold the last estimate rather than
		// integrating a phantom error.
		e.lastTick = now
		cmd.Degraded = true
		cmd.Valve = e.valve
		return cmd
	}

	dt := e.params.Interval
	if !e.lastTick.IsZero() {
		if d := now.Sub(e.lastTick); d > 0 {
			dt = d
		}
	}
	e.lastTick = now

	err := target - e.measured
	e.integral += err * dt.Minutes() / e.params.Tn.Minutes()
	e.integral = math.Min(math.Max(e.integral, 0), 100)

	e.valve = math.Min(math.Max(e.params.Kp*err+e.integral, 0), 100)
	cmd.Valve = e.valve
	return cmd
}

// SetpointByte renders a target temperature onto the 0..255 actuator
// scale centered on the base temperature, 12.75 steps per degree,
// clipped at the scale ends.
func SetpointByte(target, base float64) byte {
	v := math.Round((target-base)*12.75 + 127.5)
	if v < 0 {
		v = 0
	}
	if v > 255 {
		v = 255
	}
	return byte(v)
}
