package board

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"strandctl/internal/eeprom"
	"strandctl/internal/sched"
	"strandctl/internal/strip"
	"strandctl/internal/topology"
	"strandctl/internal/wave"
)

var white = strip.RGB(255, 255, 255)

func (c *Controller) register() {
	d := c.disp
	d.Handle("discover?", c.cmdDiscover)
	d.Handle("status", c.cmdStatus)
	d.Handle("map", c.cmdMap)
	d.Handle("rebuild", c.cmdRebuild)
	d.Handle("save", c.cmdSave)
	d.Handle("load", c.cmdLoad)
	d.Handle("clear", c.cmdClear)
	d.Handle("profile", c.cmdProfile)
	d.Handle("q", c.cmdQuery)
	d.Handle("px", c.cmdPixel)
	d.Handle("row0", c.cmdRow0)
	d.Handle("wave", c.cmdWave)
	d.Handle("waveall", c.cmdWaveAll)
	d.Handle("waveoff", c.cmdWaveOff)
	d.Handle("waveclear", c.cmdWaveClear)
	d.Handle("stop", c.cmdStop)
	d.Handle("sync", c.cmdSync)
	d.Handle("help", c.cmdHelp)
}

func atoi(s string) (int, bool) {
	v, err := strconv.Atoi(s)
	return v, err == nil
}

func mapID(s string) (int, bool) {
	v, ok := atoi(s)
	if !ok || v < 0 || v >= topology.Lines {
		return 0, false
	}
	return v, true
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func (c *Controller) profileLetter() string {
	if c.store.AltSelected() {
		return "b"
	}
	return "a"
}

func (c *Controller) lutState() string {
	if c.stale {
		return "stale"
	}
	return "fresh"
}

func rowsString(rows []topology.Segment) string {
	parts := make([]string, len(rows))
	for i, seg := range rows {
		parts[i] = strconv.Itoa(seg.Length) + seg.Tag.Letter()
	}
	return strings.Join(parts, ",")
}

func (c *Controller) cmdDiscover(w io.Writer, args []string) {
	fmt.Fprintln(w, c.Identity())
}

func (c *Controller) cmdStatus(w io.Writer, args []string) {
	fmt.Fprintf(w, "OK status id=%s fw=%s\n", c.id, Firmware)

	schedState := "idle"
	if a, left, ok := c.timer.Pending(); ok {
		line := a.Name
		if len(a.Args) > 0 {
			line += " " + strings.Join(a.Args, " ")
		}
		schedState = fmt.Sprintf("armed(%s in %dms)", line, left)
	}
	fmt.Fprintf(w, "profile=%s lut=%s phase=%d speed=%d sched=%s\n",
		c.profileLetter(), c.lutState(), c.waves.Phase(), c.waves.Speed(), schedState)

	for m := 0; m < topology.Lines; m++ {
		waveState := "off"
		if c.waves.ActiveMap(m) {
			waveState = fmt.Sprintf("p%d", c.waves.Period(m))
		}
		fmt.Fprintf(w, "map%d: line=%d rows=%s flip=%s wave=%s\n",
			m, c.remap.Line(m), rowsString(c.store.Rows(m)),
			onOff(c.store.Flip(m)), waveState)
	}
}

func (c *Controller) cmdMap(w io.Writer, args []string) {
	usage := func() {
		fmt.Fprintf(w, "ERR usage: map <map 0-%d> <line 0-%d>\n",
			topology.Lines-1, topology.Lines-1)
	}
	if len(args) != 2 {
		usage()
		return
	}
	m, ok1 := mapID(args[0])
	l, ok2 := mapID(args[1])
	if !ok1 || !ok2 {
		usage()
		return
	}
	c.remap[m] = uint8(l)
	c.stale = true
	fmt.Fprintf(w, "OK map %d -> line %d (stale until rebuild)\n", m, l)
}

func (c *Controller) cmdRebuild(w io.Writer, args []string) {
	c.table = topology.Build(c.store, c.remap)
	c.stale = false
	total := 0
	for m := 0; m < topology.Lines; m++ {
		total += c.table.Pixels(m)
	}
	fmt.Fprintf(w, "OK rebuilt %d px\n", total)
}

func (c *Controller) cmdSave(w io.Writer, args []string) {
	n1, err := eeprom.RemapRecord.Save(c.dev, c.remap.Bytes())
	if err != nil {
		fmt.Fprintf(w, "ERR save remap: %v\n", err)
		return
	}
	flag := byte(0)
	if c.store.AltSelected() {
		flag = 1
	}
	n2, err := eeprom.ProfileRecord.Save(c.dev, []byte{flag})
	if err != nil {
		fmt.Fprintf(w, "ERR save profile: %v\n", err)
		return
	}
	fmt.Fprintf(w, "OK saved remap+profile (%d cells)\n", n1+n2)
}

// cmdLoad is the verbose load path. It applies whatever validates and
// reports each record; the table stays stale until an explicit
// rebuild so the operator can inspect first.
func (c *Controller) cmdLoad(w io.Writer, args []string) {
	fmt.Fprintln(w, "OK load")

	if payload, err := eeprom.RemapRecord.Load(c.dev); err == nil {
		if rm, err := topology.RemapFromBytes(payload); err == nil {
			c.remap = rm
			c.stale = true
			fmt.Fprintf(w, "remap: %v\n", payload)
		} else {
			fmt.Fprintln(w, "remap: not found")
		}
	} else {
		fmt.Fprintln(w, "remap: not found")
	}

	if payload, err := eeprom.ProfileRecord.Load(c.dev); err == nil {
		c.store.SetAlt(payload[0] != 0)
		c.stale = true
		fmt.Fprintf(w, "profile: %s\n", c.profileLetter())
	} else {
		fmt.Fprintln(w, "profile: not found")
	}
}

func (c *Controller) cmdClear(w io.Writer, args []string) {
	if err := eeprom.RemapRecord.Clear(c.dev); err != nil {
		fmt.Fprintf(w, "ERR clear remap: %v\n", err)
		return
	}
	if err := eeprom.ProfileRecord.Clear(c.dev); err != nil {
		fmt.Fprintf(w, "ERR clear profile: %v\n", err)
		return
	}
	fmt.Fprintln(w, "OK cleared remap+profile records")
}

// cmdProfile switches the alternate topology and writes the selector
// straight to storage. Profile flips are rare and must survive a
// reset, so every one autosaves.
func (c *Controller) cmdProfile(w io.Writer, args []string) {
	switch {
	case len(args) == 0:
		c.store.ToggleAlt()
	case len(args) == 1 && strings.EqualFold(args[0], "a"):
		c.store.SetAlt(false)
	case len(args) == 1 && strings.EqualFold(args[0], "b"):
		c.store.SetAlt(true)
	default:
		fmt.Fprintln(w, "ERR usage: profile [a|b]")
		return
	}
	c.stale = true

	flag := byte(0)
	if c.store.AltSelected() {
		flag = 1
	}
	if _, err := eeprom.ProfileRecord.Save(c.dev, []byte{flag}); err != nil {
		fmt.Fprintf(w, "ERR profile %s not saved: %v\n", c.profileLetter(), err)
		return
	}
	fmt.Fprintf(w, "OK profile %s (saved)\n", c.profileLetter())
}

func (c *Controller) cmdQuery(w io.Writer, args []string) {
	if len(args) != 3 {
		fmt.Fprintln(w, "ERR usage: q <map> <x> <row>")
		return
	}
	m, ok1 := atoi(args[0])
	x, ok2 := atoi(args[1])
	row, ok3 := atoi(args[2])
	if !ok1 || !ok2 || !ok3 {
		fmt.Fprintln(w, "ERR usage: q <map> <x> <row>")
		return
	}
	if phys, ok := c.table.Resolve(m, x, row); ok {
		fmt.Fprintf(w, "OK q %d/%d/%d -> %d\n", m, x, row, phys)
	} else {
		fmt.Fprintf(w, "MISS %d/%d/%d\n", m, x, row)
	}
}

// stopAnimations halts every wave but keeps the phase counter, so a
// diagnostic draw does not disturb a later synchronized start.
func (c *Controller) stopAnimations() {
	for m := 0; m < topology.Lines; m++ {
		c.waves.Stop(m)
	}
}

func (c *Controller) cmdPixel(w io.Writer, args []string) {
	usage := func() {
		fmt.Fprintln(w, "ERR usage: px <map> <x> <row> [r g b]")
	}
	if len(args) != 3 && len(args) != 6 {
		usage()
		return
	}
	m, ok1 := atoi(args[0])
	x, ok2 := atoi(args[1])
	row, ok3 := atoi(args[2])
	if !ok1 || !ok2 || !ok3 {
		usage()
		return
	}
	color := white
	if len(args) == 6 {
		var ch [3]int
		for i := 0; i < 3; i++ {
			v, ok := atoi(args[3+i])
			if !ok || v < 0 || v > 255 {
				usage()
				return
			}
			ch[i] = v
		}
		color = strip.RGB(uint8(ch[0]), uint8(ch[1]), uint8(ch[2]))
	}
	c.stopAnimations()
	if phys, ok := c.table.Resolve(m, x, row); ok {
		c.strip.Set(phys, color)
		fmt.Fprintf(w, "OK px %d/%d/%d -> %d\n", m, x, row, phys)
	} else {
		fmt.Fprintf(w, "MISS %d/%d/%d\n", m, x, row)
	}
}

func (c *Controller) cmdRow0(w io.Writer, args []string) {
	if len(args) != 1 {
		fmt.Fprintf(w, "ERR usage: row0 <map 0-%d>\n", topology.Lines-1)
		return
	}
	m, ok := mapID(args[0])
	if !ok {
		fmt.Fprintf(w, "ERR usage: row0 <map 0-%d>\n", topology.Lines-1)
		return
	}
	c.stopAnimations()
	count := 0
	for x := 0; x < c.table.RowLen(m, 0); x++ {
		if phys, ok := c.table.Resolve(m, x, 0); ok {
			c.strip.Set(phys, white)
			count++
		}
	}
	fmt.Fprintf(w, "OK row0 %d (%d px)\n", m, count)
}

func (c *Controller) waveArgs(args []string) (period, speed int, ok bool) {
	period, speed = wave.DefaultPeriod, wave.DefaultSpeed
	if len(args) >= 1 {
		if period, ok = atoi(args[0]); !ok {
			return 0, 0, false
		}
	}
	if len(args) >= 2 {
		if speed, ok = atoi(args[1]); !ok {
			return 0, 0, false
		}
	}
	return period, speed, true
}

func (c *Controller) cmdWave(w io.Writer, args []string) {
	usage := func() {
		fmt.Fprintf(w, "ERR usage: wave <map 0-%d> [period] [speed]\n", topology.Lines-1)
	}
	if len(args) < 1 || len(args) > 3 {
		usage()
		return
	}
	m, ok := mapID(args[0])
	if !ok {
		usage()
		return
	}
	period, speed, ok := c.waveArgs(args[1:])
	if !ok {
		usage()
		return
	}
	p, s := c.waves.Start(m, period, speed)
	fmt.Fprintf(w, "OK wave %d period=%d speed=%d\n", m, p, s)
}

func (c *Controller) cmdWaveAll(w io.Writer, args []string) {
	if len(args) > 2 {
		fmt.Fprintln(w, "ERR usage: waveall [period] [speed]")
		return
	}
	period, speed, ok := c.waveArgs(args)
	if !ok {
		fmt.Fprintln(w, "ERR usage: waveall [period] [speed]")
		return
	}
	p, s := c.waves.StartAll(period, speed)
	fmt.Fprintf(w, "OK waveall period=%d speed=%d\n", p, s)
}

func (c *Controller) cmdWaveOff(w io.Writer, args []string) {
	if len(args) != 1 {
		fmt.Fprintf(w, "ERR usage: waveoff <map 0-%d>\n", topology.Lines-1)
		return
	}
	m, ok := mapID(args[0])
	if !ok {
		fmt.Fprintf(w, "ERR usage: waveoff <map 0-%d>\n", topology.Lines-1)
		return
	}
	c.waves.Stop(m)
	fmt.Fprintf(w, "OK waveoff %d\n", m)
}

func (c *Controller) cmdWaveClear(w io.Writer, args []string) {
	c.waves.StopAll()
	c.strip.Clear()
	fmt.Fprintln(w, "OK waveclear")
}

// cmdStop blanks everything renderable. The scheduler keeps whatever
// it holds; arming a sync stop is the way to drop a pending action.
func (c *Controller) cmdStop(w io.Writer, args []string) {
	c.waves.StopAll()
	c.strip.Clear()
	fmt.Fprintln(w, "OK stop")
}

func (c *Controller) cmdSync(w io.Writer, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(w, "ERR usage: sync <wave|waveall|row0|stop> ...")
		return
	}
	sub := strings.ToLower(args[0])
	rest := args[1:]

	arm := func(a sched.Action, delay int) {
		c.timer.Arm(a, uint32(delay))
		what := a.Name
		if len(a.Args) > 0 {
			what += " " + strings.Join(a.Args, " ")
		}
		fmt.Fprintf(w, "OK armed %s in %dms\n", what, delay)
	}

	switch sub {
	case "wave":
		if len(rest) < 2 || len(rest) > 4 {
			fmt.Fprintf(w, "ERR usage: sync wave <map 0-%d> <delay-ms> [period] [speed]\n", topology.Lines-1)
			return
		}
		m, ok1 := mapID(rest[0])
		delay, ok2 := atoi(rest[1])
		_, _, ok3 := c.waveArgs(rest[2:])
		if !ok1 || !ok2 || !ok3 || delay < 0 {
			fmt.Fprintf(w, "ERR usage: sync wave <map 0-%d> <delay-ms> [period] [speed]\n", topology.Lines-1)
			return
		}
		arm(sched.Action{Name: "wave", Args: append([]string{strconv.Itoa(m)}, rest[2:]...)}, delay)
	case "waveall":
		if len(rest) < 1 || len(rest) > 3 {
			fmt.Fprintln(w, "ERR usage: sync waveall <delay-ms> [period] [speed]")
			return
		}
		delay, ok1 := atoi(rest[0])
		_, _, ok2 := c.waveArgs(rest[1:])
		if !ok1 || !ok2 || delay < 0 {
			fmt.Fprintln(w, "ERR usage: sync waveall <delay-ms> [period] [speed]")
			return
		}
		arm(sched.Action{Name: "waveall", Args: rest[1:]}, delay)
	case "row0":
		if len(rest) != 2 {
			fmt.Fprintf(w, "ERR usage: sync row0 <map 0-%d> <delay-ms>\n", topology.Lines-1)
			return
		}
		m, ok1 := mapID(rest[0])
		delay, ok2 := atoi(rest[1])
		if !ok1 || !ok2 || delay < 0 {
			fmt.Fprintf(w, "ERR usage: sync row0 <map 0-%d> <delay-ms>\n", topology.Lines-1)
			return
		}
		arm(sched.Action{Name: "row0", Args: []string{strconv.Itoa(m)}}, delay)
	case "stop":
		if len(rest) != 1 {
			fmt.Fprintln(w, "ERR usage: sync stop <delay-ms>")
			return
		}
		delay, ok := atoi(rest[0])
		if !ok || delay < 0 {
			fmt.Fprintln(w, "ERR usage: sync stop <delay-ms>")
			return
		}
		arm(sched.Action{Name: "stop"}, delay)
	default:
		fmt.Fprintln(w, "ERR usage: sync <wave|waveall|row0|stop> ...")
	}
}

func (c *Controller) cmdHelp(w io.Writer, args []string) {
	fmt.Fprintln(w, "OK help")
	fmt.Fprintln(w, strings.Join(c.disp.Names(), " "))
}
