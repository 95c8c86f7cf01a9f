// Package period converts between Amiga hardware periods and canonical note
// indices. Note 13 is C-1 (period 856); every octave above halves the
// period. Formats that store note+octave directly instead of a period get a
// named affine transform into the same note space, so the constant each
// format shifts by is a documented contract rather than a magic number in
// its parser.
package period

import "github.com/spotUP/DEViLBOX-sub001/internal/song"

// octave1 is the classic ProTracker fine-tune-0 table, C-1..B-1.
var octave1 = [12]int{856, 808, 762, 720, 678, 640, 604, 570, 538, 508, 480, 453}

// table holds the period for every playable note, indexed by note-1.
var table [song.NoteMax]int

func init() {
	for n := 1; n <= song.NoteMax; n++ {
		oct := (n - 1) / 12
		key := (n - 1) % 12
		// Octave 0 is the doubled base table; higher octaves shift down
		// with rounding.
		p := octave1[key] * 2
		if oct > 0 {
			p = (p + (1 << (oct - 1))) >> oct
		}
		table[n-1] = p
	}
}

// NoteToPeriod returns the canonical period for a note index, or 0 for
// empty and for the cut/release codes.
func NoteToPeriod(note int) int {
	if note < song.NoteMin || note > song.NoteMax {
		return 0
	}
	return table[note-1]
}

// PeriodToNote returns the note index whose canonical period is nearest to
// p. Zero and negative periods map to the empty note. Periods sharper than
// the highest table entry clamp to NoteMax, flatter than the lowest to
// NoteMin.
func PeriodToNote(p int) int {
	if p <= 0 {
		return song.NoteEmpty
	}
	// table is strictly descending over the musically meaningful range;
	// scan for the first entry at or below p and pick the nearer neighbour.
	for i := 0; i < len(table); i++ {
		if table[i] <= p {
			if i == 0 {
				return 1
			}
			if table[i-1]-p < p-table[i] {
				return i // note i-1+1
			}
			return i + 1
		}
	}
	return song.NoteMax
}

// Per-format note transforms. Each format stores pitch in its own integer
// space; the offset into the canonical space is part of that format's
// contract.

// FromOkt maps an Oktalyzer note (1..36, three octaves from C-1) into the
// canonical space: offset +12. Values outside 1..36 map to empty.
func FromOkt(n int) int {
	if n <= 0 || n > 36 {
		return song.NoteEmpty
	}
	return n + 12
}

// FromAHX maps an AHX track note (1..60, five octaves from C-1) into the
// canonical space: offset +12. Transposition can push a stored note past
// either end of the range; those map to empty.
func FromAHX(n int) int {
	if n <= 0 || n > 60 {
		return song.NoteEmpty
	}
	return n + 12
}

// FromOctaveKey maps a signed octave plus key 0..11 (Furnace-style) into
// the canonical space: offset +13 so that octave 0, key 0 lands on C-1.
func FromOctaveKey(octave, key int) int {
	n := octave*12 + key + 13
	if n < song.NoteMin || n > song.NoteMax {
		return song.NoteEmpty
	}
	return n
}
