package topology_test

import (
	"strconv"
	"testing"

	. "strandctl/internal/topology"

	"github.com/stretchr/testify/assert"
)

var TestSerpentineResolvesToExpectedPixel = []struct {
	Map    int
	X      int
	Row    int
	Expect int
}{
	{0, 0, 0, 0},
	{0, 30, 0, 30},
	{0, 29, 1, 31},
	{0, 0, 1, 60},
	{0, 0, 2, 61},
	{0, 28, 2, 89},
	{0, 29, 3, 90},
	{0, 0, 3, 119},
	{1, 0, 0, 120},
	{1, 29, 1, 151},
	{4, 0, 1, 4*120 + 60},
}

var TestOffTableCoordinates = []struct {
	Map int
	X   int
	Row int
}{
	{-1, 0, 0},
	{8, 0, 0},
	{0, 31, 0},
	{0, 30, 1},
	{0, 0, 4},
	{0, -1, 0},
	{0, 0, -1},
}

func TestResolveSerpentine(t *testing.T) {
	tab := Build(NewStore(), IdentityRemap())
	for k, v := range TestSerpentineResolvesToExpectedPixel {
		t.Run("Given coordinate "+strconv.Itoa(k), func(t *testing.T) {
			got, ok := tab.Resolve(v.Map, v.X, v.Row)
			assert.True(t, ok, "should resolve")
			assert.Equal(t, got, v.Expect, "should be same pixel")
		})
	}
}

func TestResolveOffTable(t *testing.T) {
	tab := Build(NewStore(), IdentityRemap())
	for k, v := range TestOffTableCoordinates {
		t.Run("Given coordinate "+strconv.Itoa(k), func(t *testing.T) {
			_, ok := tab.Resolve(v.Map, v.X, v.Row)
			assert.False(t, ok, "should be absent")
		})
	}
}

func TestFlipInvertsRowDirections(t *testing.T) {
	st := NewStore()
	if err := st.SetFlip(0, true); err != nil {
		t.Fatal(err)
	}
	tab := Build(st, IdentityRemap())

	got, ok := tab.Resolve(0, 0, 0)
	assert.True(t, ok)
	assert.Equal(t, got, 30, "even row should run backwards when flipped")

	got, ok = tab.Resolve(0, 0, 1)
	assert.True(t, ok)
	assert.Equal(t, got, 31, "odd row should run forwards when flipped")
}

func TestRemapMovesWholeMap(t *testing.T) {
	rm := IdentityRemap()
	if err := rm.Set(3, 5); err != nil {
		t.Fatal(err)
	}
	tab := Build(NewStore(), rm)

	got, ok := tab.Resolve(3, 0, 0)
	assert.True(t, ok)
	assert.Equal(t, got, 5*120, "map 3 should start on line 5")

	// Line 3 has no owner now; nothing else moved.
	got, ok = tab.Resolve(4, 0, 0)
	assert.True(t, ok)
	assert.Equal(t, got, 4*120, "map 4 should be untouched")
}

func TestRemapAliasingIsAllowed(t *testing.T) {
	rm := IdentityRemap()
	if err := rm.Set(1, 0); err != nil {
		t.Fatal(err)
	}
	tab := Build(NewStore(), rm)

	a, ok := tab.Resolve(0, 5, 0)
	assert.True(t, ok)
	b, ok := tab.Resolve(1, 5, 0)
	assert.True(t, ok)
	assert.Equal(t, a, b, "aliased maps should share pixels")
}

func TestRebuildIsIdempotent(t *testing.T) {
	st := NewStore()
	rm := IdentityRemap()
	first := Build(st, rm)
	second := Build(st, rm)
	for m := 0; m < Lines; m++ {
		for r := 0; r < first.RowCount(m); r++ {
			for x := 0; x < first.RowLen(m, r); x++ {
				a, _ := first.Resolve(m, x, r)
				b, _ := second.Resolve(m, x, r)
				if a != b {
					t.Fatalf("map %d row %d x %d drifted between builds: %d vs %d", m, r, x, a, b)
				}
			}
		}
	}
}

func TestPixelsAreUniquePerLine(t *testing.T) {
	for _, flip := range []bool{false, true} {
		st := NewStore()
		for m := 0; m < Lines; m++ {
			if err := st.SetFlip(m, flip); err != nil {
				t.Fatal(err)
			}
		}
		tab := Build(st, IdentityRemap())
		for m := 0; m < Lines; m++ {
			seen := map[int]bool{}
			for r := 0; r < tab.RowCount(m); r++ {
				for x := 0; x < tab.RowLen(m, r); x++ {
					p, ok := tab.Resolve(m, x, r)
					if !ok {
						t.Fatalf("flip=%v map %d row %d x %d missing", flip, m, r, x)
					}
					if p < m*LineBudget || p >= (m+1)*LineBudget {
						t.Fatalf("flip=%v map %d pixel %d outside its line", flip, m, p)
					}
					if seen[p] {
						t.Fatalf("flip=%v map %d pixel %d assigned twice", flip, m, p)
					}
					seen[p] = true
				}
			}
		}
	}
}

func TestTagsNeverAffectAddressing(t *testing.T) {
	plain := NewStore()
	tagged := NewStore()
	rows := DefaultRows()
	for i := range rows {
		rows[i].Tag = TagHorizontalInv
	}
	if err := tagged.SetRows(0, rows); err != nil {
		t.Fatal(err)
	}

	a := Build(plain, IdentityRemap())
	b := Build(tagged, IdentityRemap())
	for r := 0; r < a.RowCount(0); r++ {
		for x := 0; x < a.RowLen(0, r); x++ {
			pa, _ := a.Resolve(0, x, r)
			pb, _ := b.Resolve(0, x, r)
			if pa != pb {
				t.Fatalf("row %d x %d moved with the tag: %d vs %d", r, x, pa, pb)
			}
		}
	}
}

func TestOverflowingRowsTruncate(t *testing.T) {
	st := NewStore()
	rows := []Segment{
		{Length: 100, Tag: TagHorizontal},
		{Length: 100, Tag: TagHorizontal},
		{Length: 100, Tag: TagHorizontal},
	}
	if err := st.SetRows(0, rows); err != nil {
		t.Fatal(err)
	}
	tab := Build(st, IdentityRemap())

	assert.Equal(t, tab.RowLen(0, 0), 100, "first row fits")
	assert.Equal(t, tab.RowLen(0, 1), 20, "second row cut at the budget")
	assert.Equal(t, tab.RowLen(0, 2), 0, "third row starved")
	assert.Equal(t, tab.Pixels(0), 120, "line holds exactly its budget")

	_, ok := tab.Resolve(0, 20, 1)
	assert.False(t, ok, "pixels past the cut are absent")

	// Nothing may escape onto the neighbour line.
	for r := 0; r < tab.RowCount(0); r++ {
		for x := 0; x < tab.RowLen(0, r); x++ {
			p, _ := tab.Resolve(0, x, r)
			if p >= 120 {
				t.Fatalf("row %d x %d escaped its line: pixel %d", r, x, p)
			}
		}
	}
}

func TestAltProfileSwitchesRows(t *testing.T) {
	st := NewStore()
	assert.Equal(t, st.RowCount(AltMap), 4, "standard profile active at start")

	st.SetAlt(true)
	assert.Equal(t, st.RowCount(AltMap), 5, "alternate profile has five rows")
	assert.Equal(t, st.RowCount(0), 4, "other maps keep the standard profile")

	tab := Build(st, IdentityRemap())
	assert.Equal(t, tab.Pixels(AltMap), 24+25+25+24+22)

	st.SetAlt(false)
	tab = Build(st, IdentityRemap())
	assert.Equal(t, tab.Pixels(AltMap), 120, "standard profile back after toggle")
}

func TestRemapFromBytesRejectsBadLines(t *testing.T) {
	_, err := RemapFromBytes([]byte{0, 1, 2, 3, 4, 5, 6, 9})
	assert.Error(t, err, "line 9 does not exist")

	_, err = RemapFromBytes([]byte{0, 1, 2})
	assert.Error(t, err, "short payload")

	rm, err := RemapFromBytes([]byte{7, 6, 5, 4, 3, 2, 1, 0})
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, rm.Line(0), 7, "should decode in order")
}
