// Package operator is the command side of the sync story: it scans
// USB serial ports for strand boards, reads their identity and
// broadcasts one command line to all of them back to back, so every
// board computes its deadline from nearly the same moment.
package operator

import (
	"fmt"
	"io"
	"strings"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// Baud is the serial rate every board runs at.
const Baud = 115200

// DiscoverCmd is the identity probe sent to each candidate port.
const DiscoverCmd = "DISCOVER?"

// MaxAckLines caps how many reply lines a broadcast keeps per board.
const MaxAckLines = 8

// Board is one discovered controller.
type Board struct {
	Port string
	ID   string
	FW   string
	Caps string
	Desc string
}

// ParseIDLine decodes a discovery reply of the shape
// "ID <board> FW <version> CAPS <caps...>". The FW and CAPS markers
// are located by scanning, not by position, so extra tokens between
// them are tolerated; a line missing either marker is noise.
func ParseIDLine(line string) (Board, bool) {
	parts := strings.Fields(line)
	if len(parts) < 2 || parts[0] != "ID" {
		return Board{}, false
	}
	fw, caps := -1, -1
	for i, p := range parts {
		switch p {
		case "FW":
			fw = i
		case "CAPS":
			caps = i
		}
	}
	if fw < 0 || caps < 0 || fw+1 >= len(parts) {
		return Board{}, false
	}
	b := Board{ID: parts[1], FW: parts[fw+1]}
	if caps+1 < len(parts) {
		b.Caps = strings.Join(parts[caps+1:], " ")
	}
	return b, true
}

// IsBoardPort filters the port list down to USB CDC devices that
// could be a board. Bluetooth and modem ports hang on write timeouts,
// so anything smelling of either is out even when it claims USB.
func IsBoardPort(p *enumerator.PortDetails) bool {
	product := strings.ToLower(p.Product)
	if strings.Contains(product, "teensy") {
		return true
	}
	if strings.Contains(product, "bluetooth") || strings.Contains(product, "modem") {
		return false
	}
	return p.IsUSB
}

// Filter keeps the boards whose id is in want. Empty want keeps all.
func Filter(boards []Board, want []string) []Board {
	if len(want) == 0 {
		return boards
	}
	keep := make(map[string]bool, len(want))
	for _, id := range want {
		keep[id] = true
	}
	out := make([]Board, 0, len(boards))
	for _, b := range boards {
		if keep[b.ID] {
			out = append(out, b)
		}
	}
	return out
}

// Conn is the slice of a serial port the scanner needs. The real
// serial stack satisfies it; tests swap in scripted fakes.
type Conn interface {
	io.ReadWriteCloser
	SetReadTimeout(time.Duration) error
	ResetInputBuffer() error
}

// Scanner discovers boards and talks to them. Open and List default
// to the real serial stack.
type Scanner struct {
	Open func(name string) (Conn, error)
	List func() ([]*enumerator.PortDetails, error)

	// ScanWindow bounds one discovery read; a silent port gets a
	// second window before it is written off.
	ScanWindow time.Duration
	// AckWindow is how long a broadcast listens for replies per board.
	AckWindow time.Duration
	// Settle is the pause between opening a port and probing it; USB
	// CDC ports drop the first bytes written straight after open.
	Settle time.Duration
}

// NewScanner returns a Scanner over the real serial ports.
func NewScanner() *Scanner {
	return &Scanner{
		Open:       openSerial,
		List:       enumerator.GetDetailedPortsList,
		ScanWindow: 350 * time.Millisecond,
		AckWindow:  180 * time.Millisecond,
		Settle:     50 * time.Millisecond,
	}
}

func openSerial(name string) (Conn, error) {
	p, err := serial.Open(name, &serial.Mode{BaudRate: Baud})
	if err != nil {
		return nil, err
	}
	if err := p.SetReadTimeout(50 * time.Millisecond); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

// Ports lists every serial port with its USB metadata.
func (s *Scanner) Ports() ([]*enumerator.PortDetails, error) {
	return s.List()
}

// readLines collects whatever complete lines arrive within the
// window. Timeouts keep the loop spinning; a hard read error ends it.
func readLines(c Conn, window time.Duration) []string {
	deadline := time.Now().Add(window)
	var raw []byte
	buf := make([]byte, 256)
	for time.Now().Before(deadline) {
		n, err := c.Read(buf)
		if err != nil {
			break
		}
		if n == 0 {
			continue
		}
		raw = append(raw, buf[:n]...)
	}
	var lines []string
	for _, ln := range strings.Split(string(raw), "\n") {
		if ln = strings.TrimSpace(ln); ln != "" {
			lines = append(lines, ln)
		}
	}
	return lines
}

// Discover probes every board-looking port for an identity. Ports
// that fail to open or answer are skipped, never fatal; a board seen
// on several ports collapses to its first sighting.
func (s *Scanner) Discover() ([]Board, error) {
	ports, err := s.List()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	seen := map[string]bool{}
	var boards []Board
	for _, p := range ports {
		if !IsBoardPort(p) {
			continue
		}
		b, ok := s.probe(p)
		if !ok || seen[b.ID] {
			continue
		}
		seen[b.ID] = true
		boards = append(boards, b)
	}
	return boards, nil
}

func (s *Scanner) probe(p *enumerator.PortDetails) (Board, bool) {
	c, err := s.Open(p.Name)
	if err != nil {
		return Board{}, false
	}
	defer c.Close()

	_ = c.ResetInputBuffer()
	time.Sleep(s.Settle)
	if _, err := io.WriteString(c, DiscoverCmd+"\n"); err != nil {
		return Board{}, false
	}

	// Boards beacon HELLO on their own schedule, so the first window
	// may fill with everything but the ID line; scan twice.
	for attempt := 0; attempt < 2; attempt++ {
		for _, ln := range readLines(c, s.ScanWindow) {
			if b, ok := ParseIDLine(ln); ok {
				b.Port = p.Name
				b.Desc = p.Product
				return b, true
			}
		}
	}
	return Board{}, false
}

// Ack is what one board answered after a broadcast.
type Ack struct {
	Board Board
	Lines []string
	Err   error
}

// Broadcast opens every target port first, then fires the command at
// all of them back to back; the write spacing is the skew the boards
// inherit. Port failures become warnings in the acks, never aborts.
// Each board's last few reply lines ride back for display.
func (s *Scanner) Broadcast(boards []Board, cmd string) []Ack {
	acks := make([]Ack, len(boards))
	conns := make([]Conn, len(boards))
	for i, b := range boards {
		acks[i].Board = b
		c, err := s.Open(b.Port)
		if err != nil {
			acks[i].Err = fmt.Errorf("open %s: %w", b.Port, err)
			continue
		}
		conns[i] = c
	}

	time.Sleep(s.Settle)
	payload := strings.TrimSpace(cmd) + "\n"
	for i, c := range conns {
		if c == nil {
			continue
		}
		_ = c.ResetInputBuffer()
		if _, err := io.WriteString(c, payload); err != nil {
			acks[i].Err = fmt.Errorf("write %s: %w", acks[i].Board.Port, err)
		}
	}

	for i, c := range conns {
		if c == nil {
			continue
		}
		if acks[i].Err == nil {
			lines := readLines(c, s.AckWindow)
			if len(lines) > MaxAckLines {
				lines = lines[len(lines)-MaxAckLines:]
			}
			acks[i].Lines = lines
		}
		c.Close()
	}
	return acks
}

// SyncWave builds the wire command arming one map's wave.
func SyncWave(mapID, delayMS, period, speed int) string {
	return fmt.Sprintf("sync wave %d %d %d %d", mapID, delayMS, period, speed)
}

// SyncWaveAll builds the wire command arming every map's wave.
func SyncWaveAll(delayMS, period, speed int) string {
	return fmt.Sprintf("sync waveall %d %d %d", delayMS, period, speed)
}

// SyncRow0 builds the wire command arming a static first-row draw.
func SyncRow0(mapID, delayMS int) string {
	return fmt.Sprintf("sync row0 %d %d", mapID, delayMS)
}

// SyncStop builds the wire command arming a full stop.
func SyncStop(delayMS int) string {
	return fmt.Sprintf("sync stop %d", delayMS)
}
