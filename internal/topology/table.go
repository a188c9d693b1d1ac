package topology

import "fmt"

// Remap routes logical maps onto physical output lines. Index is the
// logical map id, value the physical line it drives. Several maps may
// share one line; that aliasing is deliberate and survives persistence.
type Remap [Lines]uint8

// IdentityRemap routes every map to the line of the same index.
func IdentityRemap() Remap {
	var r Remap
	for i := range r {
		r[i] = uint8(i)
	}
	return r
}

// Set points one logical map at a physical line.
func (r *Remap) Set(m, line int) error {
	if m < 0 || m >= Lines {
		return fmt.Errorf("map %d out of range 0..%d", m, Lines-1)
	}
	if line < 0 || line >= Lines {
		return fmt.Errorf("line %d out of range 0..%d", line, Lines-1)
	}
	r[m] = uint8(line)
	return nil
}

// Line returns the physical line a logical map drives.
func (r Remap) Line(m int) int {
	if m < 0 || m >= Lines {
		return 0
	}
	return int(r[m])
}

// Bytes returns the remap in wire order, one byte per map.
func (r Remap) Bytes() []byte {
	b := make([]byte, Lines)
	for i, v := range r {
		b[i] = v
	}
	return b
}

// RemapFromBytes validates and decodes a persisted remap payload.
func RemapFromBytes(b []byte) (Remap, error) {
	var r Remap
	if len(b) != Lines {
		return r, fmt.Errorf("remap payload is %d bytes, want %d", len(b), Lines)
	}
	for i, v := range b {
		if int(v) >= Lines {
			return r, fmt.Errorf("remap entry %d points at line %d, max %d", i, v, Lines-1)
		}
		r[i] = v
	}
	return r, nil
}

type mapTable struct {
	rowOff []int
	rowLen []int
	cells  []int32
}

// Table is the derived (map,row,x) to physical pixel lookup. It is
// rebuilt whole from a Store and Remap and never patched in place.
type Table struct {
	maps [Lines]mapTable
}

// Build derives a fresh Table from the store's active profiles, the
// flip flags and the remap. Rows that would run past the line budget
// are shortened without complaint, so resolving past the cut reports
// the pixel as absent rather than bleeding into a neighbour line.
func Build(st *Store, rm Remap) *Table {
	t := &Table{}
	for m := 0; m < Lines; m++ {
		rows := st.Rows(m)
		base := rm.Line(m) * LineBudget
		mt := mapTable{
			rowOff: make([]int, len(rows)),
			rowLen: make([]int, len(rows)),
		}
		consumed := 0
		for ri, seg := range rows {
			length := seg.Length
			if left := LineBudget - consumed; length > left {
				length = left
			}
			if length < 0 {
				length = 0
			}
			mt.rowOff[ri] = len(mt.cells)
			mt.rowLen[ri] = length
			reversed := ri%2 == 1
			if st.Flip(m) {
				reversed = !reversed
			}
			for x := 0; x < length; x++ {
				phys := base + consumed + x
				if reversed {
					phys = base + consumed + (length - 1 - x)
				}
				mt.cells = append(mt.cells, int32(phys))
			}
			consumed += length
		}
		t.maps[m] = mt
	}
	return t
}

// Resolve translates a logical coordinate into a physical pixel index.
// The second return is false for anything off the table: bad map, bad
// row, or an x past the row's (possibly truncated) extent.
func (t *Table) Resolve(m, x, row int) (int, bool) {
	if t == nil || m < 0 || m >= Lines {
		return 0, false
	}
	mt := &t.maps[m]
	if row < 0 || row >= len(mt.rowOff) {
		return 0, false
	}
	if x < 0 || x >= mt.rowLen[row] {
		return 0, false
	}
	return int(mt.cells[mt.rowOff[row]+x]), true
}

// RowCount returns how many rows a map resolved with.
func (t *Table) RowCount(m int) int {
	if t == nil || m < 0 || m >= Lines {
		return 0
	}
	return len(t.maps[m].rowOff)
}

// RowLen returns the addressable x extent of one row after truncation.
func (t *Table) RowLen(m, row int) int {
	if t == nil || m < 0 || m >= Lines {
		return 0
	}
	mt := &t.maps[m]
	if row < 0 || row >= len(mt.rowLen) {
		return 0
	}
	return mt.rowLen[row]
}

// Width returns the widest row extent of a map. Renderers sweep x over
// this range and let Resolve drop the coordinates the narrow rows lack.
func (t *Table) Width(m int) int {
	if t == nil || m < 0 || m >= Lines {
		return 0
	}
	w := 0
	for _, l := range t.maps[m].rowLen {
		if l > w {
			w = l
		}
	}
	return w
}

// Pixels returns how many physical pixels a map actually occupies.
func (t *Table) Pixels(m int) int {
	if t == nil || m < 0 || m >= Lines {
		return 0
	}
	return len(t.maps[m].cells)
}
