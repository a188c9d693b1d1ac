// Package eeprom persists controller settings in a small byte
// addressable image, the way the board keeps them in its settings
// EEPROM. Records carry a magic, a length and an additive checksum so
// a half written or erased image reads back as absent instead of as
// garbage topology.
package eeprom

import (
	"fmt"
	"os"
	"sync"
)

// ImageSize is the settings image size in bytes.
const ImageSize = 64

// Erased is the value every cell holds before anything was written.
const Erased = 0xFF

// Device is a byte addressable settings store.
type Device interface {
	ReadByte(addr int) (byte, error)
	WriteByte(addr int, v byte) error
	Size() int
}

// Mem is an in-memory Device. It counts the writes it performs so
// tests can watch the wear optimization work.
type Mem struct {
	buf    []byte
	writes int
}

// NewMem returns an erased in-memory device of the given size.
func NewMem(size int) *Mem {
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = Erased
	}
	return &Mem{buf: buf}
}

func (m *Mem) ReadByte(addr int) (byte, error) {
	if addr < 0 || addr >= len(m.buf) {
		return 0, fmt.Errorf("read address %d out of range 0..%d", addr, len(m.buf)-1)
	}
	return m.buf[addr], nil
}

func (m *Mem) WriteByte(addr int, v byte) error {
	if addr < 0 || addr >= len(m.buf) {
		return fmt.Errorf("write address %d out of range 0..%d", addr, len(m.buf)-1)
	}
	m.buf[addr] = v
	m.writes++
	return nil
}

func (m *Mem) Size() int { return len(m.buf) }

// Writes returns how many byte writes the device has absorbed.
func (m *Mem) Writes() int { return m.writes }

// File is a Device backed by a small image file so settings survive a
// daemon restart. Every write goes straight through to disk.
type File struct {
	mu   sync.Mutex
	path string
	buf  []byte
}

// NewFile opens or creates an image file. A missing file starts
// erased; a short one is padded out.
func NewFile(path string, size int) (*File, error) {
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = Erased
	}
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("open settings image: %w", err)
	}
	copy(buf, data)
	return &File{path: path, buf: buf}, nil
}

func (f *File) ReadByte(addr int) (byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if addr < 0 || addr >= len(f.buf) {
		return 0, fmt.Errorf("read address %d out of range 0..%d", addr, len(f.buf)-1)
	}
	return f.buf[addr], nil
}

func (f *File) WriteByte(addr int, v byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if addr < 0 || addr >= len(f.buf) {
		return fmt.Errorf("write address %d out of range 0..%d", addr, len(f.buf)-1)
	}
	f.buf[addr] = v
	if err := os.WriteFile(f.path, f.buf, 0644); err != nil {
		return fmt.Errorf("flush settings image: %w", err)
	}
	return nil
}

func (f *File) Size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.buf)
}
