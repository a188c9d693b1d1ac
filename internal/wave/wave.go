// Package wave renders the travelling sine effect. Each logical map
// runs its own spatial period and a fixed phase offset so adjacent
// strands ripple instead of pulsing in unison; one global phase
// counter advances per rendered frame.
package wave

import (
	"math"

	"strandctl/internal/strip"
	"strandctl/internal/topology"
)

const (
	DefaultPeriod = 30
	MinPeriod     = 4
	MaxPeriod     = 120

	DefaultSpeed = 25
	MinSpeed     = 1
	MaxSpeed     = 2000

	// phaseStride staggers neighbouring maps along x.
	phaseStride = 3
)

// Full white overloads the supply on long strands; 200 per channel is
// the ceiling the hardware runs at.
var baseColor = strip.RGB(200, 200, 200)

// ClampPeriod bounds a requested spatial period in pixels.
func ClampPeriod(p int) int {
	if p < MinPeriod {
		return MinPeriod
	}
	if p > MaxPeriod {
		return MaxPeriod
	}
	return p
}

// ClampSpeed bounds a requested frame delay in milliseconds.
func ClampSpeed(s int) int {
	if s < MinSpeed {
		return MinSpeed
	}
	if s > MaxSpeed {
		return MaxSpeed
	}
	return s
}

type mapWave struct {
	active bool
	period int
}

// Engine holds the per-map wave flags and the shared phase counter.
// The frame delay is global: the control loop sleeps one duration per
// frame, so the latest start dictates the pace for everyone.
type Engine struct {
	maps  [topology.Lines]mapWave
	phase uint32
	speed int
}

// NewEngine returns an idle engine at the default pace.
func NewEngine() *Engine {
	return &Engine{speed: DefaultSpeed}
}

// Start activates one map's wave and returns the clamped period and
// speed that actually apply.
func (e *Engine) Start(m, period, speed int) (int, int) {
	period = ClampPeriod(period)
	speed = ClampSpeed(speed)
	if m >= 0 && m < topology.Lines {
		e.maps[m] = mapWave{active: true, period: period}
	}
	e.speed = speed
	return period, speed
}

// StartAll activates every map with one period and speed.
func (e *Engine) StartAll(period, speed int) (int, int) {
	period = ClampPeriod(period)
	speed = ClampSpeed(speed)
	for m := range e.maps {
		e.maps[m] = mapWave{active: true, period: period}
	}
	e.speed = speed
	return period, speed
}

// Stop halts one map's wave and leaves its pixels as they are.
func (e *Engine) Stop(m int) {
	if m >= 0 && m < topology.Lines {
		e.maps[m].active = false
	}
}

// StopAll halts every wave and rewinds the phase counter.
func (e *Engine) StopAll() {
	for m := range e.maps {
		e.maps[m].active = false
	}
	e.phase = 0
}

// ResetPhase rewinds the frame counter. Synchronized starts reset it
// on firing so every board renders the same frame sequence from the
// deadline on.
func (e *Engine) ResetPhase() { e.phase = 0 }

// Active reports whether any map is animating.
func (e *Engine) Active() bool {
	for _, w := range e.maps {
		if w.active {
			return true
		}
	}
	return false
}

// ActiveMap reports one map's animation flag.
func (e *Engine) ActiveMap(m int) bool {
	if m < 0 || m >= topology.Lines {
		return false
	}
	return e.maps[m].active
}

// Period returns a map's current spatial period.
func (e *Engine) Period(m int) int {
	if m < 0 || m >= topology.Lines || e.maps[m].period == 0 {
		return DefaultPeriod
	}
	return e.maps[m].period
}

// Speed returns the global frame delay in milliseconds.
func (e *Engine) Speed() int { return e.speed }

// Phase returns the frame counter.
func (e *Engine) Phase() uint32 { return e.phase }

// Step paints one frame of every active map through the lookup table
// and advances the phase. Brightness is a function of x alone, so the
// wave front crosses all of a map's rows together; coordinates the
// table cannot resolve are skipped, which keeps truncated rows dark
// past the cut.
func (e *Engine) Step(tab *topology.Table, s *strip.Strip) {
	for m := range e.maps {
		w := e.maps[m]
		if !w.active {
			continue
		}
		offset := float64(e.phase) + float64(phaseStride*m)
		width := tab.Width(m)
		rows := tab.RowCount(m)
		for x := 0; x < width; x++ {
			pos := (float64(x) + offset) / float64(w.period)
			c := baseColor.Scale((1 + math.Sin(2*math.Pi*pos)) / 2)
			for row := 0; row < rows; row++ {
				if phys, ok := tab.Resolve(m, x, row); ok {
					s.Set(phys, c)
				}
			}
		}
	}
	e.phase++
}
