package strip

import (
	"fmt"
	"image"

	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/extra/devices/screen"
	"periph.io/x/host/v3"
)

const refreshRate physic.Frequency = 800

// NRZ drives a WS2812 style strip over SPI. When no SPI port can be
// found it degrades to an ANSI rendering on the console, which is
// what you want on a dev box.
type NRZ struct {
	drawer display.Drawer
	n      int

	// SPI is false when the console fallback is active.
	SPI bool
}

// OpenNRZ initializes the host, opens the named SPI port (empty for
// the first one) and prepares the encoder for n pixels.
func OpenNRZ(port string, n int) (*NRZ, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	p, err := spireg.Open(port)
	if err != nil {
		return &NRZ{drawer: screen.New(n), n: n}, nil
	}
	d, err := NewNRZ(p, n)
	if err != nil {
		p.Close()
		return nil, err
	}
	return d, nil
}

// OpenTerm returns the console ANSI renderer without looking for
// hardware at all.
func OpenTerm(n int) *NRZ {
	return &NRZ{drawer: screen.New(n), n: n}
}

// NewNRZ wraps an already open SPI port. Tests feed it a playback
// port.
func NewNRZ(p spi.Port, n int) (*NRZ, error) {
	opts := nrzled.Opts{
		NumPixels: n,
		Channels:  3,
		Freq:      ((refreshRate * 3) + 100) * physic.KiloHertz,
	}
	d, err := nrzled.NewSPI(p, &opts)
	if err != nil {
		return nil, fmt.Errorf("nrzled: %w", err)
	}
	d.Halt()
	return &NRZ{drawer: d, n: n, SPI: true}, nil
}

func (d *NRZ) image(px []Color) *image.NRGBA {
	im := image.NewNRGBA(image.Rect(0, 0, d.n, 1))
	for x := 0; x < d.n && x < len(px); x++ {
		im.SetNRGBA(x, 0, px[x].NRGBA())
	}
	return im
}

func (d *NRZ) Draw(px []Color) error {
	return d.drawer.Draw(d.drawer.Bounds(), d.image(px), image.Point{})
}

func (d *NRZ) Halt() error {
	return d.drawer.Halt()
}
