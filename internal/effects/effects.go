// Package effects defines the canonical pattern-effect vocabulary and the
// declarative remap tables format parsers use to translate their native
// effect codes. The canonical set is the ProTracker/FastTracker one, since
// that is what the playback engine speaks.
package effects

// Canonical effect types.
const (
	Arpeggio      = 0x00
	PortaUp       = 0x01
	PortaDown     = 0x02
	TonePorta     = 0x03
	Vibrato       = 0x04
	TonePortaVol  = 0x05
	VibratoVol    = 0x06
	Tremolo       = 0x07
	SetPanning    = 0x08
	SampleOffset  = 0x09
	VolumeSlide   = 0x0A
	PositionJump  = 0x0B
	SetVolume     = 0x0C
	PatternBreak  = 0x0D
	Extended      = 0x0E
	SetSpeed      = 0x0F
	GlobalVolume  = 0x10
	PanningSlide  = 0x19
	Retrigger     = 0x1B
	NoteCutAtTick = 0x1D
)

// Extended (0xE) sub-commands, carried in the high nibble of the parameter.
const (
	ExFilter       = 0x0
	ExFinePortaUp  = 0x1
	ExFinePortaDn  = 0x2
	ExGlissando    = 0x3
	ExVibratoWave  = 0x4
	ExFinetune     = 0x5
	ExPatternLoop  = 0x6
	ExTremoloWave  = 0x7
	ExRetrigger    = 0x9
	ExFineVolUp    = 0xA
	ExFineVolDown  = 0xB
	ExNoteCut      = 0xC
	ExNoteDelay    = 0xD
	ExPatternDelay = 0xE
)

// Policy says how a native code maps into the canonical cell.
type Policy int

const (
	// Direct passes the mapped type through with the parameter unchanged.
	Direct Policy = iota
	// Split re-encodes a composite native code as Extended plus a
	// sub-command nibble packed over the low parameter nibble.
	Split
	// Relocate moves the semantic out of the effect slot into the cell's
	// volume column.
	Relocate
)

// Mapping is one row of a format's remap table.
type Mapping struct {
	Policy Policy
	Type   int
	// Sub is the Extended sub-command for Split entries.
	Sub int
}

// Table maps a format-native effect code to its canonical translation.
// Codes not present in the table pass through unchanged, so downstream
// consumers can still react to format-specific effects they understand.
type Table map[int]Mapping

// Result of applying a table entry to one native (code, param) pair.
type Result struct {
	Type  int
	Param int
	// Volume is 1+value when the mapping relocated a volume semantic into
	// the volume column; 0 means untouched.
	Volume int
}

// Apply translates one native effect. Unmapped codes pass through.
func (t Table) Apply(code, param int) Result {
	m, ok := t[code]
	if !ok {
		return Result{Type: code, Param: param}
	}
	switch m.Policy {
	case Split:
		return Result{Type: m.Type, Param: m.Sub<<4 | param&0x0F}
	case Relocate:
		return Result{Volume: param + 1}
	default:
		return Result{Type: m.Type, Param: param}
	}
}
