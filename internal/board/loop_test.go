package board_test

import (
	"bufio"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"strandctl/internal/board"
	"strandctl/internal/eeprom"
	"strandctl/internal/strip"
	"strandctl/internal/topology"
)

func TestRunAnswersOverTransport(t *testing.T) {
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	ctx, cancel := context.WithCancel(context.Background())

	c := board.New(board.Options{
		ID:     "bench1",
		Out:    outW,
		Device: eeprom.NewMem(eeprom.ImageSize),
	})
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, inR) }()

	if _, err := io.WriteString(inW, "discover?\r\n"); err != nil {
		t.Fatal(err)
	}
	sc := bufio.NewScanner(outR)
	if !sc.Scan() {
		t.Fatalf("no reply: %v", sc.Err())
	}
	if got := sc.Text(); got != "ID bench1 FW 1.2.0 CAPS MAP8,WAVE,SYNC,EEPROM" {
		t.Fatalf("unexpected reply %q", got)
	}

	if _, err := io.WriteString(inW, "Q 0 29 1\n"); err != nil {
		t.Fatal(err)
	}
	if !sc.Scan() {
		t.Fatalf("no reply: %v", sc.Err())
	}
	if got := sc.Text(); !strings.HasPrefix(got, "OK q 0/29/1 -> 31") {
		t.Fatalf("unexpected reply %q", got)
	}

	inW.Close()
	cancel()
	outR.Close()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestRunRendersWaves(t *testing.T) {
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	ctx, cancel := context.WithCancel(context.Background())

	sim := strip.NewSim()
	c := board.New(board.Options{
		Strip:  strip.New(topology.TotalPixels, sim),
		Out:    outW,
		Device: eeprom.NewMem(eeprom.ImageSize),
	})
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, inR) }()

	if _, err := io.WriteString(inW, "waveall 30 1\n"); err != nil {
		t.Fatal(err)
	}
	sc := bufio.NewScanner(outR)
	if !sc.Scan() {
		t.Fatalf("no reply: %v", sc.Err())
	}
	if got := sc.Text(); got != "OK waveall period=30 speed=1" {
		t.Fatalf("unexpected reply %q", got)
	}

	time.Sleep(50 * time.Millisecond)
	inW.Close()
	cancel()
	outR.Close()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}

	if sim.Frames() == 0 {
		t.Fatalf("no frames rendered")
	}
	if !sim.Halted() {
		t.Fatalf("strip not halted on shutdown")
	}
}
