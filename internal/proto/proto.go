// Package proto turns a raw transport byte stream into dispatched
// commands. Lines are newline terminated ASCII, the command word is
// case insensitive, and replies go back over the same writer with an
// OK or ERR prefix.
package proto

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// BufSize is the line buffer capacity. A line that never terminates
// wraps back over its oldest bytes instead of growing.
const BufSize = 96

// Assembler accumulates transport bytes into command lines.
type Assembler struct {
	buf [BufSize]byte
	n   int
}

// Feed consumes one byte. When the byte completes a line, the line
// comes back with its terminator and any trailing carriage return
// removed, and the ok flag set.
func (a *Assembler) Feed(c byte) (string, bool) {
	if c == '\n' {
		n := a.n
		a.n = 0
		if n > 0 && a.buf[n-1] == '\r' {
			n--
		}
		return string(a.buf[:n]), true
	}
	if a.n == BufSize {
		a.n = 0
	}
	a.buf[a.n] = c
	a.n++
	return "", false
}

// Handler executes one command. args holds everything after the
// command word; replies are written to w.
type Handler func(w io.Writer, args []string)

// Dispatcher routes parsed lines to registered handlers.
type Dispatcher struct {
	handlers map[string]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

// Handle registers a handler under a lowercase command name.
func (d *Dispatcher) Handle(name string, h Handler) {
	d.handlers[strings.ToLower(name)] = h
}

// Names lists the registered commands in sorted order.
func (d *Dispatcher) Names() []string {
	names := make([]string, 0, len(d.handlers))
	for n := range d.handlers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Dispatch parses one line and runs its handler. Blank lines are
// dropped; an unknown command word earns an ERR and nothing else.
func (d *Dispatcher) Dispatch(w io.Writer, line string) {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) == 0 {
		return
	}
	name := strings.ToLower(fields[0])
	h, ok := d.handlers[name]
	if !ok {
		fmt.Fprintf(w, "ERR unknown command %s (try HELP)\n", name)
		return
	}
	h(w, fields[1:])
}
