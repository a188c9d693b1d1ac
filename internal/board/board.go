// Package board ties the whole controller together: topology, storage,
// strip, waves and the scheduler, all owned by one Controller and
// mutated from one goroutine. Command handlers live here so direct,
// scheduled and boot-time paths all run the same code.
package board

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"

	"strandctl/internal/eeprom"
	"strandctl/internal/proto"
	"strandctl/internal/sched"
	"strandctl/internal/strip"
	"strandctl/internal/topology"
	"strandctl/internal/wave"
)

// Firmware is the version reported by discovery and the beacon.
const Firmware = "1.2.0"

// Caps is the capability list reported by discovery and the beacon.
const Caps = "MAP8,WAVE,SYNC,EEPROM"

// DefaultBeaconMS is the identity beacon interval.
const DefaultBeaconMS = 5000

// Options configures a Controller. Zero fields get working defaults:
// a simulated strip, an in-memory settings device and a discarding
// transport writer.
type Options struct {
	ID       string
	BeaconMS uint32
	Store    *topology.Store
	Strip    *strip.Strip
	Device   eeprom.Device
	Out      io.Writer
	Clock    sched.Clock
}

// Controller owns all board state. It is not safe for concurrent use;
// the control loop is its single caller.
type Controller struct {
	id    string
	out   io.Writer
	clock sched.Clock

	store *topology.Store
	remap topology.Remap
	table *topology.Table
	stale bool

	dev   eeprom.Device
	strip *strip.Strip
	waves *wave.Engine
	timer *sched.Scheduler
	disp  *proto.Dispatcher

	beaconEvery uint32
	lastBeacon  uint32
}

// New assembles a Controller, loads whatever valid records the
// settings device holds and builds the first lookup table.
func New(o Options) *Controller {
	c := &Controller{
		id:          o.ID,
		out:         o.Out,
		clock:       o.Clock,
		store:       o.Store,
		dev:         o.Device,
		strip:       o.Strip,
		remap:       topology.IdentityRemap(),
		waves:       wave.NewEngine(),
		beaconEvery: o.BeaconMS,
	}
	if c.id == "" {
		c.id = "strand0"
	}
	if c.out == nil {
		c.out = io.Discard
	}
	if c.clock == nil {
		c.clock = sched.Millis()
	}
	if c.store == nil {
		c.store = topology.NewStore()
	}
	if c.dev == nil {
		c.dev = eeprom.NewMem(eeprom.ImageSize)
	}
	if c.strip == nil {
		c.strip = strip.New(topology.TotalPixels, strip.NewSim())
	}
	if c.beaconEvery == 0 {
		c.beaconEvery = DefaultBeaconMS
	}

	c.timer = sched.New(c.clock, c.fireScheduled)
	c.bootLoad()
	c.table = topology.Build(c.store, c.remap)
	c.stale = false
	c.lastBeacon = c.clock()
	c.disp = proto.NewDispatcher()
	c.register()
	return c
}

// bootLoad restores persisted records without complaint. A blank or
// damaged image just means defaults.
func (c *Controller) bootLoad() {
	if payload, err := eeprom.RemapRecord.Load(c.dev); err == nil {
		if rm, err := topology.RemapFromBytes(payload); err == nil {
			c.remap = rm
		} else {
			log.Warn().Err(err).Msg("remap record rejected; keeping identity")
		}
	} else if !errors.Is(err, eeprom.ErrNoRecord) {
		log.Debug().Err(err).Msg("remap record unreadable")
	}
	if payload, err := eeprom.ProfileRecord.Load(c.dev); err == nil {
		c.store.SetAlt(payload[0] != 0)
	} else if !errors.Is(err, eeprom.ErrNoRecord) {
		log.Debug().Err(err).Msg("profile record unreadable")
	}
}

// ID returns the board identifier.
func (c *Controller) ID() string { return c.id }

// Identity is the discovery reply line.
func (c *Controller) Identity() string {
	return fmt.Sprintf("ID %s FW %s CAPS %s", c.id, Firmware, Caps)
}

func (c *Controller) beaconLine() string {
	return fmt.Sprintf("HELLO %s %s CAPS %s", c.id, Firmware, Caps)
}

// tickBeacon emits the periodic identity beacon when its interval has
// elapsed, command traffic or not.
func (c *Controller) tickBeacon() {
	now := c.clock()
	if !sched.Due(now, c.lastBeacon+c.beaconEvery) {
		return
	}
	fmt.Fprintln(c.out, c.beaconLine())
	c.lastBeacon = now
}

// fireScheduled replays a deferred action through the normal command
// dispatch. The phase rewind first is what lines boards up: every
// board that armed the same action renders the same frames from its
// own deadline on.
func (c *Controller) fireScheduled(a sched.Action) {
	c.waves.ResetPhase()
	line := a.Name
	if len(a.Args) > 0 {
		line += " " + strings.Join(a.Args, " ")
	}
	log.Info().Str("action", line).Msg("scheduled action firing")
	c.disp.Dispatch(c.out, line)
}

// Exec runs one command line and returns its reply. The control loop
// goes through Dispatch directly; this is for tests and local tools.
func (c *Controller) Exec(line string) string {
	var b strings.Builder
	c.disp.Dispatch(&b, line)
	return b.String()
}

// Dispatch parses and runs one command line, writing replies to w.
func (c *Controller) Dispatch(w io.Writer, line string) {
	c.disp.Dispatch(w, line)
}
