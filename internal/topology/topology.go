package topology

import "fmt"

const (
	// Lines is the number of logical maps and physical output lines.
	// Fixed for the lifetime of the process, like the 8 parallel outputs
	// of the controller hardware.
	Lines = 8

	// LineBudget is the pixel capacity of one physical output line.
	LineBudget = 120

	// AltMap is the one logical map that carries an alternate segment
	// profile selectable at runtime.
	AltMap = 2
)

// TotalPixels is the size of the whole frame buffer.
const TotalPixels = Lines * LineBudget

// Tag is a display hint describing how a segment is physically mounted.
// It never influences addressing.
type Tag uint8

const (
	TagVertical Tag = iota
	TagHorizontal
	TagHorizontalInv
)

func (t Tag) String() string {
	switch t {
	case TagVertical:
		return "vertical"
	case TagHorizontal:
		return "horizontal"
	case TagHorizontalInv:
		return "horizontal-inverted"
	}
	return "unknown"
}

// Letter is the compact spelling used in status dumps and config.
func (t Tag) Letter() string {
	switch t {
	case TagVertical:
		return "v"
	case TagHorizontal:
		return "h"
	case TagHorizontalInv:
		return "hi"
	}
	return "?"
}

// ParseTag maps the config spelling back to a Tag.
func ParseTag(s string) (Tag, error) {
	switch s {
	case "vertical", "v":
		return TagVertical, nil
	case "horizontal", "h":
		return TagHorizontal, nil
	case "horizontal-inverted", "hi":
		return TagHorizontalInv, nil
	}
	return TagVertical, fmt.Errorf("unknown segment tag %q", s)
}

// Segment is one serpentine row of a logical map.
type Segment struct {
	Length int
	Tag    Tag
}

// DefaultRows is the standard segment profile shared by every map.
func DefaultRows() []Segment {
	return []Segment{
		{Length: 31, Tag: TagHorizontal},
		{Length: 30, Tag: TagHorizontal},
		{Length: 29, Tag: TagHorizontal},
		{Length: 30, Tag: TagHorizontal},
	}
}

// AltRows is the alternate profile for the AltMap variant build.
func AltRows() []Segment {
	return []Segment{
		{Length: 24, Tag: TagHorizontal},
		{Length: 25, Tag: TagHorizontal},
		{Length: 25, Tag: TagHorizontal},
		{Length: 24, Tag: TagHorizontalInv},
		{Length: 22, Tag: TagHorizontalInv},
	}
}

type mapTopo struct {
	std  []Segment
	alt  []Segment // nil when the map has no variant
	flip bool
}

// Store holds the segment definitions and flip flags for every logical
// map. It is pure data: mutations happen only through explicit profile
// and flip setters, never as a side effect of addressing.
type Store struct {
	maps  [Lines]mapTopo
	altOn bool
}

// NewStore builds a Store with the built-in profiles installed.
func NewStore() *Store {
	s := &Store{}
	for m := 0; m < Lines; m++ {
		s.maps[m].std = DefaultRows()
	}
	s.maps[AltMap].alt = AltRows()
	return s
}

func validRows(rows []Segment) error {
	if len(rows) == 0 {
		return fmt.Errorf("profile needs at least one segment")
	}
	for i, seg := range rows {
		if seg.Length <= 0 || seg.Length > LineBudget {
			return fmt.Errorf("segment %d length %d out of range 1..%d", i, seg.Length, LineBudget)
		}
	}
	return nil
}

// SetRows replaces the standard profile of one map.
func (s *Store) SetRows(m int, rows []Segment) error {
	if m < 0 || m >= Lines {
		return fmt.Errorf("map %d out of range 0..%d", m, Lines-1)
	}
	if err := validRows(rows); err != nil {
		return err
	}
	s.maps[m].std = append([]Segment(nil), rows...)
	return nil
}

// SetAltRows replaces the alternate profile of one map. Passing nil
// removes the variant.
func (s *Store) SetAltRows(m int, rows []Segment) error {
	if m < 0 || m >= Lines {
		return fmt.Errorf("map %d out of range 0..%d", m, Lines-1)
	}
	if rows == nil {
		s.maps[m].alt = nil
		return nil
	}
	if err := validRows(rows); err != nil {
		return err
	}
	s.maps[m].alt = append([]Segment(nil), rows...)
	return nil
}

// SetFlip sets a map's serpentine flip override.
func (s *Store) SetFlip(m int, flip bool) error {
	if m < 0 || m >= Lines {
		return fmt.Errorf("map %d out of range 0..%d", m, Lines-1)
	}
	s.maps[m].flip = flip
	return nil
}

// Flip reports whether a map's serpentine direction is inverted.
func (s *Store) Flip(m int) bool {
	if m < 0 || m >= Lines {
		return false
	}
	return s.maps[m].flip
}

// Rows returns the active segment list of a map: the alternate profile
// when the selector is on and the map carries one, else the standard.
// The returned slice must not be mutated.
func (s *Store) Rows(m int) []Segment {
	if m < 0 || m >= Lines {
		return nil
	}
	if s.altOn && s.maps[m].alt != nil {
		return s.maps[m].alt
	}
	return s.maps[m].std
}

// RowCount returns the number of active rows of a map.
func (s *Store) RowCount(m int) int {
	return len(s.Rows(m))
}

// AltSelected reports the profile selector flag.
func (s *Store) AltSelected() bool { return s.altOn }

// SetAlt sets the profile selector flag.
func (s *Store) SetAlt(on bool) { s.altOn = on }

// ToggleAlt flips the profile selector and returns the new value.
func (s *Store) ToggleAlt() bool {
	s.altOn = !s.altOn
	return s.altOn
}

// HasAlt reports whether a map carries an alternate profile.
func (s *Store) HasAlt(m int) bool {
	if m < 0 || m >= Lines {
		return false
	}
	return s.maps[m].alt != nil
}
