// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Esper Authors

// Package gateway drives an ESP3 transceiver module over any byte
// stream. It owns the read loop, routes RESPONSE packets back to the
// command that caused them, and serializes writes so concurrent
// senders cannot interleave frames on the wire.
package gateway

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/esper-home/esper/pkg/esp3"
)

// Handler receives every decoded non-response telegram, in arrival
// order, from the gateway's read loop goroutine.
type Handler func(*esp3.Telegram)

// ErrClosed is returned by operations on a gateway that has been shut
// down.
var ErrClosed = fmt.Errorf("gateway closed")

// DefaultResponseTimeout bounds how long a common command waits for
// the module's RESPONSE packet.
const DefaultResponseTimeout = 2 * time.Second

// Connection is the byte stream to the transceiver, serial or
// anything else that carries ESP3 frames.
type Connection interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// Gateway multiplexes one ESP3 transceiver between radio traffic and
// request/response common commands.
type Gateway struct {
	conn    Connection
	framer  *esp3.Framer
	handler Handler

	writeMu sync.Mutex

	respCh chan *esp3.Telegram
	doneCh chan struct{}

	closeOnce sync.Once
	wg        sync.WaitGroup

	mu     sync.Mutex
	baseID esp3.DeviceID
	closed bool
}

// New wraps a connection. The read loop does not run until Start.
func New(conn Connection) *Gateway {
	return &Gateway{
		conn:   conn,
		framer: esp3.NewFramer(),
		respCh: make(chan *esp3.Telegram, 1),
		doneCh: make(chan struct{}),
	}
}

// OnTelegram installs the radio telegram handler. Must be called
// before Start.
func (g *Gateway) OnTelegram(h Handler) {
	g.handler = h
}

// Start launches the read loop.
func (g *Gateway) Start() {
	g.wg.Add(1)
	go g.readLoop()
}

// Close shuts the connection down and waits for the read loop to
// drain.
func (g *Gateway) Close() error {
	var err error
	g.closeOnce.Do(func() {
		g.mu.Lock()
		g.closed = true
		g.mu.Unlock()
		close(g.doneCh)
		err = g.conn.Close()
		g.wg.Wait()
	})
	return err
}

func (g *Gateway) readLoop() {
	defer g.wg.Done()

	buf := make([]byte, 256)
	for {
		n, err := g.conn.Read(buf)
		if err != nil {
			select {
			case <-g.doneCh:
				return
			default:
			}
			log.Printf("gateway: read error: %v", err)
			return
		}

		for _, r := range g.framer.Feed(buf[:n]) {
			if r.Err != nil {
				// Dropped candidates are routine on a noisy line.
				log.Printf("gateway: %v", r.Err)
				continue
			}
			tg, err := esp3.Decode(*r.Frame)
			if err != nil {
				log.Printf("gateway: %v", err)
				continue
			}
			g.dispatch(tg)
		}
	}
}

func (g *Gateway) dispatch(tg *esp3.Telegram) {
	if tg.Type == esp3.PacketResponse {
		// Replace any stale response; only one command is ever in
		// flight at a time.
		select {
		case <-g.respCh:
		default:
		}
		g.respCh <- tg
		return
	}
	if g.handler != nil {
		g.handler(tg)
	}
}

// Send writes a complete wire frame. Writes are serialized so two
// goroutines can never interleave their bytes.
func (g *Gateway) Send(wire []byte) error {
	g.mu.Lock()
	closed := g.closed
	g.mu.Unlock()
	if closed {
		return ErrClosed
	}

	g.writeMu.Lock()
	defer g.writeMu.Unlock()
	_, err := g.conn.Write(wire)
	return err
}

// SendRadio builds and sends one radio telegram addressed via the
// sub-telegram optional section.
func (g *Gateway) SendRadio(rorg esp3.RORG, payload []byte, sender esp3.DeviceID, status byte, destination esp3.DeviceID) error {
	wire, err := esp3.BuildRadio(rorg, payload, sender, status, esp3.SubTelegramInfo(destination))
	if err != nil {
		return err
	}
	return g.Send(wire)
}

// Request sends a common command frame and waits for the module's
// RESPONSE packet.
func (g *Gateway) Request(wire []byte, timeout time.Duration) (*esp3.Telegram, error) {
	// Hold the write lock across the wait so responses cannot be
	// claimed by a second concurrent command.
	g.writeMu.Lock()
	defer g.writeMu.Unlock()

	// Drain a response left over from an earlier timeout.
	select {
	case <-g.respCh:
	default:
	}

	if _, err := g.conn.Write(wire); err != nil {
		return nil, err
	}

	select {
	case tg := <-g.respCh:
		if rc := tg.ReturnCode(); rc != esp3.RetOK {
			return tg, fmt.Errorf("module returned 0x%02X", rc)
		}
		return tg, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("no response within %v", timeout)
	case <-g.doneCh:
		return nil, ErrClosed
	}
}

// ReadBaseID queries the module for its sender base ID. The result is
// cached; derived sender addresses come from BaseID().Offset.
func (g *Gateway) ReadBaseID() (esp3.DeviceID, error) {
	wire, err := esp3.BuildCommonCommand(esp3.CmdRdIDBase)
	if err != nil {
		return esp3.DeviceID{}, err
	}
	tg, err := g.Request(wire, DefaultResponseTimeout)
	if err != nil {
		return esp3.DeviceID{}, err
	}
	if len(tg.Data) < 5 {
		return esp3.DeviceID{}, fmt.Errorf("short base ID response: % X", tg.Data)
	}

	var id esp3.DeviceID
	copy(id[:], tg.Data[1:5])
	g.mu.Lock()
	g.baseID = id
	g.mu.Unlock()
	return id, nil
}

// BaseID returns the cached base ID from the last ReadBaseID call.
func (g *Gateway) BaseID() esp3.DeviceID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.baseID
}

// Version is the module identification from CO_RD_VERSION.
type Version struct {
	App         [4]byte
	API         [4]byte
	ChipID      [4]byte
	Description string
}

func (v Version) String() string {
	return fmt.Sprintf("%s app %d.%d.%d.%d api %d.%d.%d.%d chip %02X%02X%02X%02X",
		v.Description,
		v.App[0], v.App[1], v.App[2], v.App[3],
		v.API[0], v.API[1], v.API[2], v.API[3],
		v.ChipID[0], v.ChipID[1], v.ChipID[2], v.ChipID[3])
}

// ReadVersion queries the module for its firmware identification.
func (g *Gateway) ReadVersion() (*Version, error) {
	wire, err := esp3.BuildCommonCommand(esp3.CmdRdVersion)
	if err != nil {
		return nil, err
	}
	tg, err := g.Request(wire, DefaultResponseTimeout)
	if err != nil {
		return nil, err
	}
	// Return code, three 4-byte versions, chip ID, then a zero padded
	// ASCII description.
	if len(tg.Data) < 17 {
		return nil, fmt.Errorf("short version response: % X", tg.Data)
	}

	v := &Version{}
	copy(v.App[:], tg.Data[1:5])
	copy(v.API[:], tg.Data[5:9])
	copy(v.ChipID[:], tg.Data[9:13])
	if len(tg.Data) > 17 {
		desc := tg.Data[17:]
		for i, b := range desc {
			if b == 0 {
				desc = desc[:i]
				break
			}
		}
		v.Description = string(desc)
	}
	return v, nil
}
