// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Esper Authors

// Package bridge ties the radio side to MQTT: decoded telegrams
// become Home Assistant entity updates, and climate commands coming
// back over MQTT drive the per-valve regulation loops.
package bridge

import (
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/esper-home/esper/config"
	"github.com/esper-home/esper/homeassistant"
	"github.com/esper-home/esper/pkg/control"
	"github.com/esper-home/esper/pkg/eep"
	"github.com/esper-home/esper/pkg/esp3"
	"github.com/esper-home/esper/pkg/gateway"
)

// DeviceState is the last decoded event from one device, kept for the
// HTTP state endpoint.
type DeviceState struct {
	Name     string         `json:"name"`
	ID       string         `json:"id"`
	Profile  string         `json:"profile"`
	Fields   map[string]any `json:"fields"`
	Repeated bool           `json:"repeated"`
	SeenAt   time.Time      `json:"seen_at"`
}

// ClimateState is the regulation snapshot of one climate entity.
type ClimateState struct {
	Name     string  `json:"name"`
	Mode     string  `json:"mode"`
	Target   float64 `json:"target"`
	Valve    float64 `json:"valve"`
	Degraded bool    `json:"degraded"`
}

// coverProfile is the blinds actuator EEP; devices configured with it
// become positional cover entities instead of per-field sensors.
const coverProfile = "D2-05-00"

// coverEntity pairs one blinds actuator with its MQTT topics.
type coverEntity struct {
	dev    config.Device
	id     esp3.DeviceID
	topics homeassistant.CoverTopics
}

// climateLoop pairs one estimator with its MQTT topics and radio
// channel.
type climateLoop struct {
	cfg    config.Climate
	est    *control.Estimator
	topics homeassistant.ClimateTopics

	heating bool
	preset  control.Mode
	last    control.Command
}

// mode maps the HVAC switch and preset onto the estimator mode.
func (l *climateLoop) mode() control.Mode {
	if !l.heating {
		return control.ModeFrostProtect
	}
	return l.preset
}

type Bridge struct {
	cfg      *config.Config
	gw       *gateway.Gateway
	registry *eep.Registry

	mu          sync.Mutex
	mqtt        mqtt.Client
	devices     map[esp3.DeviceID]config.Device
	state       map[string]DeviceState
	fieldTopics map[string]string
	warned      map[string]bool
	loops       map[string]*climateLoop
	covers      map[string]*coverEntity
}

// New wires a bridge from configuration. The gateway's base ID must
// already be known when the climate loops start transmitting.
func New(cfg *config.Config, gw *gateway.Gateway, registry *eep.Registry) (*Bridge, error) {
	b := &Bridge{
		cfg:         cfg,
		gw:          gw,
		registry:    registry,
		devices:     make(map[esp3.DeviceID]config.Device, len(cfg.Devices)),
		state:       make(map[string]DeviceState),
		fieldTopics: make(map[string]string),
		warned:      make(map[string]bool),
		loops:       make(map[string]*climateLoop, len(cfg.Climates)),
		covers:      make(map[string]*coverEntity),
	}

	for _, d := range cfg.Devices {
		id, err := d.DeviceID()
		if err != nil {
			return nil, err
		}
		if _, err := registry.Lookup(d.Profile); err != nil {
			// Configured but undecodable devices are tolerated; they
			// warn once when they first transmit.
			log.Printf("Device %v: %v", d.Name, err)
		}
		b.devices[id] = d
		if d.Profile == coverProfile {
			b.covers[d.Name] = &coverEntity{
				dev:    d,
				id:     id,
				topics: homeassistant.CoverTopicsFor(d.Name),
			}
		}
	}

	for _, cl := range cfg.Climates {
		b.loops[cl.Name] = &climateLoop{
			cfg:    cl,
			est:    control.New(cl.Params()),
			topics: homeassistant.Topics(cl.Name),
			preset: control.ModeComfort,
		}
	}
	return b, nil
}

// HandleTelegram is installed as the gateway's radio handler. It runs
// on the read loop goroutine.
func (b *Bridge) HandleTelegram(tg *esp3.Telegram) {
	if !tg.IsRadio() {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	sender := tg.Sender()
	dev, known := b.devices[sender]
	if !known {
		b.warnOnce("sender:"+sender.String(), "Ignoring unknown sender %v (%v)", sender, tg.RORG())
		return
	}

	ev, err := b.registry.Decode(dev.Profile, tg.Payload(), tg.Status())
	if err != nil {
		b.warnOnce("decode:"+dev.Name, "Device %v: %v", dev.Name, err)
		return
	}

	if ev.Teach {
		b.handleTeachIn(dev, tg)
		return
	}

	b.state[dev.Name] = DeviceState{
		Name:     dev.Name,
		ID:       sender.String(),
		Profile:  dev.Profile,
		Fields:   ev.Fields,
		Repeated: ev.Repeated,
		SeenAt:   tg.Timestamp(),
	}

	b.publishFields(dev, ev)
	b.publishCoverPosition(dev, ev)
	b.feedClimates(dev, ev, tg.Timestamp())
}

// handleTeachIn logs what the device announces about itself so a
// mismatch with the configured profile is visible.
func (b *Bridge) handleTeachIn(dev config.Device, tg *esp3.Telegram) {
	if tg.RORG() == esp3.RORG4BS {
		if ti, err := eep.ParseTeachIn(tg.Payload()); err == nil {
			log.Printf("Teach-in from %v: announces %v (manufacturer 0x%03X), configured as %v",
				dev.Name, ti.ProfileID(), ti.Manufacturer, dev.Profile)
			return
		}
	}
	log.Printf("Teach-in from %v (%v)", dev.Name, tg.RORG())
}

// warnOnce logs a condition the first time it occurs and stays quiet
// afterwards; a chatty unknown device must not flood the log.
func (b *Bridge) warnOnce(key, format string, args ...any) {
	if b.warned[key] {
		return
	}
	b.warned[key] = true
	log.Printf(format, args...)
}

// publishFields pushes every decoded field to its registered state
// topic. Called with the lock held.
func (b *Bridge) publishFields(dev config.Device, ev eep.Event) {
	for name, value := range ev.Fields {
		topic, ok := b.fieldTopics[dev.Name+"."+name]
		if !ok {
			continue
		}
		b.publishTo(topic, renderValue(name, value))
	}
}

// publishCoverPosition pushes a position reply to the cover's state
// topic. Called with the lock held.
func (b *Bridge) publishCoverPosition(dev config.Device, ev eep.Event) {
	c, ok := b.covers[dev.Name]
	if !ok {
		return
	}
	if pos, ok := coverPosition(ev); ok {
		b.publishTo(c.topics.Position, strconv.Itoa(pos))
	}
}

// coverPosition maps a decoded blinds event onto the Home Assistant
// position scale, 100 open and 0 closed. Only position replies count,
// and an actuator that has not finished its reference run reports an
// unknown position.
func coverPosition(ev eep.Event) (int, bool) {
	cmd, ok := ev.Fields["command"].(uint64)
	if !ok || cmd != eep.BlindsCmdReply {
		return 0, false
	}
	raw, ok := ev.Fields["position"].(uint64)
	if !ok || raw > 100 {
		return 0, false
	}
	return 100 - int(raw), true
}

// renderValue formats a decoded field for its MQTT state topic.
func renderValue(name string, value any) string {
	switch v := value.(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', 1, 64)
	case bool:
		if v {
			return "ON"
		}
		return "OFF"
	case string:
		// Binary sensor semantics for contacts: open means ON for the
		// window device class.
		if name == "contact" {
			if v == "open" {
				return "ON"
			}
			return "OFF"
		}
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

// feedClimates routes panel readings into the regulation loops.
// Called with the lock held.
func (b *Bridge) feedClimates(dev config.Device, ev eep.Event, at time.Time) {
	for _, l := range b.loops {
		if l.cfg.Sensor != dev.Name {
			continue
		}

		if temp, ok := ev.Fields["temperature"].(float64); ok {
			l.est.UpdateMeasurement(temp, at)
			b.publishTo(l.topics.CurrentTemperature, strconv.FormatFloat(temp, 'f', 1, 64))
		}

		// A room panel's setpoint dial moves the target, mapped from
		// the byte scale onto base +/- range.
		if sp, ok := ev.Fields["setpoint"].(uint64); ok {
			p := l.est.Params()
			target := (float64(sp)*2/255-1)*p.Range + p.BaseTemperature
			l.est.SetTarget(target)
			b.publishTo(l.topics.TemperatureState,
				strconv.FormatFloat(l.est.Target(), 'f', 1, 64))
		}
	}
}

// publishTo is a fire-and-forget retained publish. It runs on the
// gateway read loop goroutine with the lock held, so it must never
// wait for the broker there: a stalled broker must not stall telegram
// processing. The ack is awaited off to the side only to surface
// errors. Skips silently until MQTT is connected.
func (b *Bridge) publishTo(topic, payload string) {
	if b.mqtt == nil {
		return
	}
	t := b.mqtt.Publish(topic, 0, true, payload)
	go func() {
		if t.Wait() && t.Error() != nil {
			log.Printf("MQTT publishing failed: %v", t.Error())
		}
	}()
}

// Register announces all configured entities over MQTT discovery and
// remembers the state topics for publishing.
func (b *Bridge) Register(mqttClient mqtt.Client) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mqtt = mqttClient

	ha := homeassistant.NewClient(mqttClient)

	for _, d := range b.cfg.Devices {
		if c, ok := b.covers[d.Name]; ok {
			topics, err := ha.RegisterCover(d.Name)
			if err != nil {
				return err
			}
			c.topics = topics
			log.Printf("Registered cover %v", d.Name)
			continue
		}

		p, err := b.registry.Lookup(d.Profile)
		if err != nil {
			continue
		}
		for i := range p.Fields {
			f := &p.Fields[i]
			topic, err := b.registerField(ha, d, f)
			if err != nil {
				return err
			}
			if topic != "" {
				b.fieldTopics[d.Name+"."+f.Name] = topic
				log.Printf("Registered %v.%v", d.Name, f.Name)
			}
		}
	}

	for _, l := range b.loops {
		p := l.est.Params()
		topics, err := ha.RegisterClimate(l.cfg.Name,
			p.BaseTemperature-p.Range, p.BaseTemperature+p.Range)
		if err != nil {
			return err
		}
		l.topics = topics
		log.Printf("Registered climate %v", l.cfg.Name)
	}
	return nil
}

// registerField picks the Home Assistant entity type for one profile
// field. Fields with no sensible entity return an empty topic.
func (b *Bridge) registerField(ha *homeassistant.Client, d config.Device, f *eep.Field) (string, error) {
	name := d.Name + " " + f.Name
	switch f.Name {
	case "temperature":
		return ha.RegisterSensor(name, "temperature", "°C")
	case "setpoint":
		return ha.RegisterSensor(name, "", "")
	case "contact":
		return ha.RegisterBinarySensor(name, "window")
	case "energy_bow":
		return ha.RegisterBinarySensor(name, "")
	case "rocker_first":
		return ha.RegisterSensor(name, "", "")
	}
	return "", nil
}

// SubscribeToClimateCommands wires the MQTT command topics of every
// climate entity to its regulation loop.
func (b *Bridge) SubscribeToClimateCommands(mqttClient mqtt.Client) {
	b.mu.Lock()
	loops := make([]*climateLoop, 0, len(b.loops))
	for _, l := range b.loops {
		loops = append(loops, l)
	}
	b.mu.Unlock()

	for _, l := range loops {
		loop := l

		b.subscribe(mqttClient, loop.topics.ModeCommand, func(payload string) {
			b.mu.Lock()
			defer b.mu.Unlock()
			wasHeating := loop.heating
			loop.heating = payload == "heat"
			loop.est.SetMode(loop.mode())
			b.publishTo(loop.topics.ModeState, payload)
			if wasHeating != loop.heating {
				b.sendFrostSwitch(loop, !loop.heating)
				b.transmit(loop, time.Now())
			}
		})

		b.subscribe(mqttClient, loop.topics.PresetCommand, func(payload string) {
			b.mu.Lock()
			defer b.mu.Unlock()
			switch payload {
			case "sleep":
				loop.preset = control.ModeSleep
			case "away":
				loop.preset = control.ModeAway
			default:
				loop.preset = control.ModeComfort
			}
			loop.est.SetMode(loop.mode())
			b.publishTo(loop.topics.PresetState, payload)
		})

		b.subscribe(mqttClient, loop.topics.TemperatureCommand, func(payload string) {
			target, err := strconv.ParseFloat(payload, 64)
			if err != nil {
				log.Printf("Climate %v: bad temperature %q", loop.cfg.Name, payload)
				return
			}
			b.mu.Lock()
			defer b.mu.Unlock()
			loop.est.SetTarget(target)
			b.publishTo(loop.topics.TemperatureState,
				strconv.FormatFloat(loop.est.Target(), 'f', 1, 64))
			// Push the new setpoint out immediately rather than waiting
			// for the next tick.
			b.transmit(loop, time.Now())
		})
	}
}

// SubscribeToCoverCommands wires each cover's MQTT command topics to
// its actuator, then asks every actuator for its current position so
// entity state is restored after a restart.
func (b *Bridge) SubscribeToCoverCommands(mqttClient mqtt.Client) {
	b.mu.Lock()
	covers := make([]*coverEntity, 0, len(b.covers))
	for _, c := range b.covers {
		covers = append(covers, c)
	}
	b.mu.Unlock()

	for _, c := range covers {
		cover := c

		b.subscribe(mqttClient, cover.topics.Command, func(payload string) {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.coverCommand(cover, payload)
		})

		b.subscribe(mqttClient, cover.topics.SetPosition, func(payload string) {
			pos, err := strconv.Atoi(payload)
			if err != nil {
				log.Printf("Cover %v: bad position %q", cover.dev.Name, payload)
				return
			}
			b.mu.Lock()
			defer b.mu.Unlock()
			b.coverSetPosition(cover, pos)
		})

		b.mu.Lock()
		b.sendCover(cover, eep.BlindsQuery())
		b.mu.Unlock()
	}
}

// coverCommand handles the OPEN/CLOSE/STOP command topic. Called with
// the lock held.
func (b *Bridge) coverCommand(c *coverEntity, payload string) {
	switch payload {
	case "OPEN":
		b.coverSetPosition(c, 100)
	case "CLOSE":
		b.coverSetPosition(c, 0)
	case "STOP":
		b.sendCover(c, eep.BlindsStop())
	default:
		log.Printf("Cover %v: unknown command %q", c.dev.Name, payload)
	}
}

// coverSetPosition drives the actuator to a Home Assistant position,
// 100 open and 0 closed. The actuator counts the other way around.
// Called with the lock held.
func (b *Bridge) coverSetPosition(c *coverEntity, position int) {
	payload, err := eep.BlindsSetPosition(100 - position)
	if err != nil {
		log.Printf("Cover %v: %v", c.dev.Name, err)
		return
	}
	b.sendCover(c, payload)
}

// sendCover addresses one VLD payload to the actuator, sent from the
// gateway's base ID. Called with the lock held.
func (b *Bridge) sendCover(c *coverEntity, payload []byte) {
	if err := b.gw.SendRadio(esp3.RORGVLD, payload, b.gw.BaseID(), 0x00, c.id); err != nil {
		log.Printf("Cover %v: send failed: %v", c.dev.Name, err)
	}
}

func (b *Bridge) subscribe(mqttClient mqtt.Client, topic string, fn func(payload string)) {
	if t := mqttClient.Subscribe(topic, 0, func(client mqtt.Client, msg mqtt.Message) {
		fn(string(msg.Payload()))
	}); t.Wait() && t.Error() != nil {
		log.Printf("MQTT receive error: %v", t.Error())
	}
}

// RunClimateLoops ticks every regulation loop on its interval until
// stop closes.
func (b *Bridge) RunClimateLoops(stop <-chan struct{}) {
	var wg sync.WaitGroup
	b.mu.Lock()
	for _, l := range b.loops {
		loop := l
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticker := time.NewTicker(loop.est.Params().Interval)
			defer ticker.Stop()
			for {
				select {
				case now := <-ticker.C:
					b.mu.Lock()
					b.transmit(loop, now)
					b.mu.Unlock()
				case <-stop:
					return
				}
			}
		}()
	}
	b.mu.Unlock()
	wg.Wait()
}

// transmit runs one estimator tick and sends the resulting setpoint
// telegram. Called with the lock held.
func (b *Bridge) transmit(loop *climateLoop, now time.Time) {
	prev := loop.last
	cmd := loop.est.Tick(now)
	loop.last = cmd
	if !cmd.Active {
		return
	}
	if cmd.Degraded && !prev.Degraded {
		log.Printf("Climate %v: sensor stale, holding valve at %.1f%%", loop.cfg.Name, cmd.Valve)
	}

	sender := b.gw.BaseID().Offset(uint32(loop.cfg.Channel))
	payload := []byte{0x00, 0x1F, cmd.Setpoint, 0x08}
	if err := b.gw.SendRadio(esp3.RORG4BS, payload, sender, 0x00, esp3.Broadcast); err != nil {
		log.Printf("Climate %v: send failed: %v", loop.cfg.Name, err)
	}
}

// sendFrostSwitch emulates a rocker press and release toward the
// valve actuator when frost protection toggles, the way a physical
// on/off wall switch would. Called with the lock held.
func (b *Bridge) sendFrostSwitch(loop *climateLoop, on bool) {
	action := eep.RockerAI
	if on {
		action = eep.RockerAO
	}
	sender := b.gw.BaseID().Offset(uint32(loop.cfg.Channel))

	payload, status := eep.RockerPress(action)
	if err := b.gw.SendRadio(esp3.RORGRPS, []byte{payload}, sender, status, esp3.Broadcast); err != nil {
		log.Printf("Climate %v: frost switch press failed: %v", loop.cfg.Name, err)
		return
	}
	payload, status = eep.RockerRelease()
	if err := b.gw.SendRadio(esp3.RORGRPS, []byte{payload}, sender, status, esp3.Broadcast); err != nil {
		log.Printf("Climate %v: frost switch release failed: %v", loop.cfg.Name, err)
	}
}

// Snapshot returns the current device and climate state for the HTTP
// endpoint.
func (b *Bridge) Snapshot() ([]DeviceState, []ClimateState) {
	b.mu.Lock()
	defer b.mu.Unlock()

	devices := make([]DeviceState, 0, len(b.state))
	for _, s := range b.state {
		devices = append(devices, s)
	}

	climates := make([]ClimateState, 0, len(b.loops))
	for _, l := range b.loops {
		climates = append(climates, ClimateState{
			Name:     l.cfg.Name,
			Mode:     l.est.Mode().String(),
			Target:   l.est.Target(),
			Valve:    l.last.Valve,
			Degraded: l.last.Degraded,
		})
	}
	return devices, climates
}
