package strip

import "image/color"

// Color is a packed 0x00RRGGBB pixel value.
type Color uint32

const (
	redOffset   = 0x10
	greenOffset = 0x08
	blueOffset  = 0x00
)

// Black is the off pixel.
const Black Color = 0

func setchan(c uint32, v uint8, off uint) uint32 {
	var mask uint32 = 0xFF << off
	return (c &^ mask) | uint32(v)<<off
}

func getchan(c uint32, off uint) uint8 {
	return uint8(c >> off)
}

// RGB packs three channels into a Color.
func RGB(r, g, b uint8) Color {
	var c uint32
	c = setchan(c, r, redOffset)
	c = setchan(c, g, greenOffset)
	c = setchan(c, b, blueOffset)
	return Color(c)
}

func (c Color) R() uint8 { return getchan(uint32(c), redOffset) }
func (c Color) G() uint8 { return getchan(uint32(c), greenOffset) }
func (c Color) B() uint8 { return getchan(uint32(c), blueOffset) }

// Scale dims every channel by a factor in 0..1, rounding to nearest.
func (c Color) Scale(f float64) Color {
	if f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	return RGB(
		uint8(float64(c.R())*f+0.5),
		uint8(float64(c.G())*f+0.5),
		uint8(float64(c.B())*f+0.5),
	)
}

// NRGBA converts the pixel for the display drawer. The strip has no
// alpha channel, so it comes out opaque.
func (c Color) NRGBA() color.NRGBA {
	return color.NRGBA{R: c.R(), G: c.G(), B: c.B(), A: 255}
}
