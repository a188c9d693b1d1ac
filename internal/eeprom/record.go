package eeprom

import (
	"errors"
	"fmt"
)

// ErrNoRecord means the slot's magic byte did not match: nothing was
// ever saved there, or it was cleared.
var ErrNoRecord = errors.New("no record")

// ErrCorrupt means the magic matched but the length or checksum did
// not. The stored bytes are not to be trusted.
var ErrCorrupt = errors.New("record corrupt")

// Record describes one fixed slot in the settings image: where it
// lives, the magic that marks it valid and how long its payload is.
type Record struct {
	Offset int
	Magic  byte
	Size   int
}

// Layout of the settings image.
var (
	RemapRecord   = Record{Offset: 0x00, Magic: 'M', Size: 8}
	ProfileRecord = Record{Offset: 0x20, Magic: 'P', Size: 1}
)

// Checksum is the additive sum of magic, length and payload, truncated
// to a byte.
func Checksum(magic byte, payload []byte) byte {
	sum := magic + byte(len(payload))
	for _, b := range payload {
		sum += b
	}
	return sum
}

func (r Record) span() int { return 2 + r.Size + 1 }

func (r Record) check(d Device) error {
	if r.Offset < 0 || r.Offset+r.span() > d.Size() {
		return fmt.Errorf("record at 0x%02X spans past the %d byte image", r.Offset, d.Size())
	}
	return nil
}

// writeByte skips cells already holding the target value and reports
// whether it actually wrote. EEPROM cells wear out; unchanged saves
// must cost nothing.
func writeByte(d Device, addr int, v byte) (bool, error) {
	cur, err := d.ReadByte(addr)
	if err != nil {
		return false, err
	}
	if cur == v {
		return false, nil
	}
	return true, d.WriteByte(addr, v)
}

// Save lays the record down as magic, length, payload, checksum. It
// returns how many bytes it had to touch, zero when the image already
// held exactly this payload.
func (r Record) Save(d Device, payload []byte) (int, error) {
	if err := r.check(d); err != nil {
		return 0, err
	}
	if len(payload) != r.Size {
		return 0, fmt.Errorf("payload is %d bytes, record holds %d", len(payload), r.Size)
	}
	img := make([]byte, 0, r.span())
	img = append(img, r.Magic, byte(r.Size))
	img = append(img, payload...)
	img = append(img, Checksum(r.Magic, payload))

	touched := 0
	for i, b := range img {
		wrote, err := writeByte(d, r.Offset+i, b)
		if err != nil {
			return touched, fmt.Errorf("save record at 0x%02X: %w", r.Offset, err)
		}
		if wrote {
			touched++
		}
	}
	return touched, nil
}

// Load reads the slot back and validates it. The payload is returned
// as a fresh slice; ErrNoRecord and ErrCorrupt come back wrapped so
// callers can tell absent from damaged.
func (r Record) Load(d Device) ([]byte, error) {
	if err := r.check(d); err != nil {
		return nil, err
	}
	magic, err := d.ReadByte(r.Offset)
	if err != nil {
		return nil, fmt.Errorf("load record at 0x%02X: %w", r.Offset, err)
	}
	if magic != r.Magic {
		return nil, fmt.Errorf("slot 0x%02X: %w", r.Offset, ErrNoRecord)
	}
	length, err := d.ReadByte(r.Offset + 1)
	if err != nil {
		return nil, fmt.Errorf("load record at 0x%02X: %w", r.Offset, err)
	}
	if int(length) != r.Size {
		return nil, fmt.Errorf("slot 0x%02X length %d, want %d: %w", r.Offset, length, r.Size, ErrCorrupt)
	}
	payload := make([]byte, r.Size)
	for i := range payload {
		payload[i], err = d.ReadByte(r.Offset + 2 + i)
		if err != nil {
			return nil, fmt.Errorf("load record at 0x%02X: %w", r.Offset, err)
		}
	}
	stored, err := d.ReadByte(r.Offset + 2 + r.Size)
	if err != nil {
		return nil, fmt.Errorf("load record at 0x%02X: %w", r.Offset, err)
	}
	if stored != Checksum(r.Magic, payload) {
		return nil, fmt.Errorf("slot 0x%02X checksum: %w", r.Offset, ErrCorrupt)
	}
	return payload, nil
}

// Clear stamps out the magic byte and leaves the rest of the slot
// alone. The stale payload stays behind but can never validate.
func (r Record) Clear(d Device) error {
	if err := r.check(d); err != nil {
		return err
	}
	if _, err := writeByte(d, r.Offset, Erased); err != nil {
		return fmt.Errorf("clear record at 0x%02X: %w", r.Offset, err)
	}
	return nil
}
