// Package strip owns the physical frame buffer and the output driver
// behind it. Everything above it addresses pixels by flat physical
// index; everything below it is a display sink.
package strip

import "fmt"

// Driver abstracts an LED output sink.
type Driver interface {
	// Draw pushes a full frame to hardware.
	Draw(px []Color) error
	// Halt blanks the output and releases it.
	Halt() error
}

// Strip is the frame buffer for the whole surface. Writes only mark
// it dirty; nothing reaches the driver until Show, so a burst of
// pixel pokes costs one frame.
type Strip struct {
	px    []Color
	drv   Driver
	dirty bool
}

// New returns a black frame buffer of n pixels in front of a driver.
func New(n int, d Driver) *Strip {
	return &Strip{
		px:  make([]Color, n),
		drv: d,
	}
}

// Len returns the pixel count of the surface.
func (s *Strip) Len() int { return len(s.px) }

// Set paints one pixel. Out of range indexes are dropped.
func (s *Strip) Set(i int, c Color) {
	if i < 0 || i >= len(s.px) {
		return
	}
	if s.px[i] == c {
		return
	}
	s.px[i] = c
	s.dirty = true
}

// Pixel reads one pixel back, Black when out of range.
func (s *Strip) Pixel(i int) Color {
	if i < 0 || i >= len(s.px) {
		return Black
	}
	return s.px[i]
}

// Fill paints the whole surface one color.
func (s *Strip) Fill(c Color) {
	for i := range s.px {
		if s.px[i] != c {
			s.px[i] = c
			s.dirty = true
		}
	}
}

// Clear blanks the surface.
func (s *Strip) Clear() {
	s.Fill(Black)
}

// Dirty reports whether the buffer holds unpushed changes.
func (s *Strip) Dirty() bool { return s.dirty }

// Show pushes the frame to the driver if anything changed since the
// last push.
func (s *Strip) Show() error {
	if !s.dirty {
		return nil
	}
	if err := s.drv.Draw(s.px); err != nil {
		return fmt.Errorf("draw frame: %w", err)
	}
	s.dirty = false
	return nil
}

// Halt blanks the buffer and stops the driver.
func (s *Strip) Halt() error {
	for i := range s.px {
		s.px[i] = Black
	}
	s.dirty = false
	return s.drv.Halt()
}

// Sim is a Driver that keeps frames in memory for tests and dry runs.
type Sim struct {
	frames int
	last   []Color
	halted bool
}

// NewSim returns an in-memory driver.
func NewSim() *Sim { return &Sim{} }

func (s *Sim) Draw(px []Color) error {
	s.last = append(s.last[:0], px...)
	s.frames++
	s.halted = false
	return nil
}

func (s *Sim) Halt() error {
	s.halted = true
	return nil
}

// Frames returns how many frames were drawn.
func (s *Sim) Frames() int { return s.frames }

// Last returns the most recent frame.
func (s *Sim) Last() []Color { return s.last }

// Halted reports whether the sink was halted after the last draw.
func (s *Sim) Halted() bool { return s.halted }
