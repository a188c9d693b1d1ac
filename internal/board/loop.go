package board

import (
	"bufio"
	"context"
	"io"
	"time"

	"github.com/rs/zerolog/log"

	"strandctl/internal/proto"
)

// idleTickMS paces the loop while nothing animates. Short enough to
// keep command latency low, long enough to stay off the CPU.
const idleTickMS = 5

// Poll runs the time-driven part of one loop pass: the beacon, the
// scheduler, one wave frame when animating, and the frame push.
func (c *Controller) Poll() {
	c.tickBeacon()
	c.timer.Tick()
	if c.waves.Active() {
		c.waves.Step(c.table, c.strip)
	}
	if err := c.strip.Show(); err != nil {
		log.Error().Err(err).Msg("frame push failed")
	}
}

// Run owns the controller until the context ends. A feeder goroutine
// ships transport bytes into the loop; every piece of state is only
// touched from here, between dispatches, never mid-render. The
// inter-frame sleep is a hard floor: no commands are handled during
// it, which is the latency an operator trades for wave speed.
func (c *Controller) Run(ctx context.Context, in io.Reader) error {
	rx := make(chan byte, 256)
	go feed(ctx, in, rx)

	var asm proto.Assembler
	log.Info().Str("id", c.id).Msg("controller running")
	for {
	drain:
		for {
			select {
			case b, ok := <-rx:
				if !ok {
					// Transport gone; keep rendering and beaconing.
					rx = nil
					break drain
				}
				if line, done := asm.Feed(b); done {
					c.disp.Dispatch(c.out, line)
				}
			default:
				break drain
			}
		}

		c.Poll()

		delay := idleTickMS
		if c.waves.Active() {
			delay = c.waves.Speed()
		}
		select {
		case <-ctx.Done():
			if err := c.strip.Halt(); err != nil {
				log.Warn().Err(err).Msg("strip halt failed")
			}
			log.Info().Str("id", c.id).Msg("controller stopped")
			return nil
		case <-time.After(time.Duration(delay) * time.Millisecond):
		}
	}
}

func feed(ctx context.Context, in io.Reader, out chan<- byte) {
	defer close(out)
	r := bufio.NewReader(in)
	for {
		b, err := r.ReadByte()
		if err != nil {
			return
		}
		select {
		case out <- b:
		case <-ctx.Done():
			return
		}
	}
}
