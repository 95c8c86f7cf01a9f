package fur

import (
	"github.com/spotUP/DEViLBOX-sub001/internal/effects"
	"github.com/spotUP/DEViLBOX-sub001/internal/format"
	"github.com/spotUP/DEViLBOX-sub001/internal/song"
)

// The Furnace effect vocabulary already is the canonical one for the low
// codes; the table only repacks the few codes whose canonical shape
// differs. Furnace-specific high codes pass through untouched.
var effectTable = effects.Table{
	0x09: {Policy: effects.Direct, Type: effects.SetSpeed},
	0xE5: {Policy: effects.Split, Type: effects.Extended, Sub: effects.ExFinetune},
	0xEC: {Policy: effects.Split, Type: effects.Extended, Sub: effects.ExNoteCut},
	0xED: {Policy: effects.Split, Type: effects.Extended, Sub: effects.ExNoteDelay},
}

// Native note codes. Pitches count semitones from five octaves below the
// canonical origin, so canonical = native - 59.
const (
	noteBase        = 59
	noteOffNative   = 180
	noteRelNative   = 181
	noteMacroNative = 182
)

func (f *Format) canonicalNote(n int) int {
	switch n {
	case noteOffNative:
		return song.NoteCut
	case noteRelNative:
		return song.NoteRelease
	case noteMacroNative:
		return song.NoteMacroRelease
	}
	v := n - noteBase
	if v < song.NoteMin || v > song.NoteMax {
		f.log.Warn("note outside canonical range", "native", n)
		return song.NoteEmpty
	}
	return v
}

// patKey identifies a native pattern: Furnace stores one pattern per
// (channel, index) pair, referenced by the orders matrix.
type patKey struct {
	channel int
	index   int
}

type furPattern struct {
	name  string
	cells []song.Cell
}

// parsePATN decodes the modern row-masked pattern block. Each stored row
// begins with a presence mask; a set top bit run-length-skips empty rows
// and 0xFF ends the stream early.
func (f *Format) parsePATN(d []byte, ptr int, inf *info, pats map[patKey]*furPattern) error {
	r, _, err := openBlock(d, ptr, "PATN")
	if err != nil {
		return err
	}
	subsong := r.U8()
	channel := r.U8()
	index := r.U16LE()
	name := r.CString()
	if channel >= inf.channels {
		return format.Malformed("fur", ptr, "pattern for channel %d of %d", channel, inf.channels)
	}
	if subsong != 0 {
		// Extra subsongs keep their patterns in native form only.
		return nil
	}

	cells := make([]song.Cell, inf.patternLen)
	row := 0
	for row < inf.patternLen {
		mask := r.U8()
		if r.Truncated() {
			return format.Malformed("fur", ptr, "pattern (%d,%d) truncated at row %d", channel, index, row)
		}
		if mask == 0xFF {
			break
		}
		if mask&0x80 != 0 {
			row += mask&0x7F + 2
			continue
		}

		var present, valued [song.MaxEffects]bool
		present[0] = mask&0x08 != 0
		valued[0] = mask&0x10 != 0
		if mask&0x20 != 0 {
			ext := r.U8()
			for i := 0; i < 4; i++ {
				present[i] = present[i] || ext&(1<<(i*2)) != 0
				valued[i] = valued[i] || ext&(1<<(i*2+1)) != 0
			}
		}
		if mask&0x40 != 0 {
			ext := r.U8()
			for i := 0; i < 4; i++ {
				present[4+i] = ext&(1<<(i*2)) != 0
				valued[4+i] = ext&(1<<(i*2+1)) != 0
			}
		}

		cell := &cells[row]
		if mask&0x01 != 0 {
			cell.Note = f.canonicalNote(r.U8())
		}
		if mask&0x02 != 0 {
			cell.Instrument = r.U8() + 1
		}
		if mask&0x04 != 0 {
			cell.Volume = r.U8() + 1
		}
		slot := 0
		for i := 0; i < song.MaxEffects; i++ {
			if !present[i] && !valued[i] {
				continue
			}
			var code, param int
			if present[i] {
				code = r.U8()
			}
			if valued[i] {
				param = r.U8()
			}
			if !present[i] {
				continue
			}
			res := effectTable.Apply(code, param)
			if slot < song.MaxEffects {
				cell.Effects[slot] = song.Effect{Type: res.Type, Param: res.Param}
				slot++
			}
		}
		row++
	}
	if r.Truncated() {
		return format.Malformed("fur", ptr, "pattern (%d,%d) truncated", channel, index)
	}

	pats[patKey{channel, index}] = &furPattern{name: name, cells: cells}
	return nil
}

// Legacy row field conventions.
const (
	legacyNoteOff      = 100
	legacyNoteRelease  = 101
	legacyMacroRelease = 102
)

// parsePATR decodes the legacy fixed-stride pattern block: every row stores
// signed 16-bit note, octave, instrument and volume fields plus the
// channel's effect columns, -1 meaning absent.
func (f *Format) parsePATR(d []byte, ptr int, inf *info, pats map[patKey]*furPattern) error {
	r, _, err := openBlock(d, ptr, "PATR")
	if err != nil {
		return err
	}
	channel := r.U16LE()
	index := r.U16LE()
	subsong := r.U16LE()
	r.Skip(2)
	if channel >= inf.channels {
		return format.Malformed("fur", ptr, "pattern for channel %d of %d", channel, inf.channels)
	}

	cells := make([]song.Cell, inf.patternLen)
	cols := inf.effectCols[channel]
	for row := range cells {
		note := r.S16LE()
		octave := r.S16LE()
		ins := r.S16LE()
		vol := r.S16LE()

		cell := &cells[row]
		cell.Note = f.legacyNote(note, octave)
		if ins >= 0 {
			cell.Instrument = ins + 1
		}
		if vol >= 0 {
			cell.Volume = vol + 1
		}

		slot := 0
		for c := 0; c < cols; c++ {
			code := r.S16LE()
			param := r.S16LE()
			if code < 0 {
				continue
			}
			if param < 0 {
				param = 0
			}
			res := effectTable.Apply(code, param)
			if slot < song.MaxEffects {
				cell.Effects[slot] = song.Effect{Type: res.Type, Param: res.Param}
				slot++
			}
		}
	}
	name := r.CString()
	if r.Truncated() {
		return format.Malformed("fur", ptr, "pattern (%d,%d) truncated", channel, index)
	}
	if subsong != 0 {
		return nil
	}

	pats[patKey{channel, index}] = &furPattern{name: name, cells: cells}
	return nil
}

// legacyNote folds the legacy note/octave pair into the canonical index:
// octave counts from the canonical origin and note 12 is the C of the next
// octave up, so C-1 is (12, 0).
func (f *Format) legacyNote(note, octave int) int {
	switch note {
	case legacyNoteOff:
		return song.NoteCut
	case legacyNoteRelease:
		return song.NoteRelease
	case legacyMacroRelease:
		return song.NoteMacroRelease
	}
	if note == 0 && octave == 0 {
		return song.NoteEmpty
	}
	// The octave byte is stored as an unsigned cast of a signed value.
	if octave > 127 {
		octave -= 256
	}
	v := octave*12 + note + 1
	if v < song.NoteMin || v > song.NoteMax {
		f.log.Warn("note outside canonical range", "note", note, "octave", octave)
		return song.NoteEmpty
	}
	return v
}
