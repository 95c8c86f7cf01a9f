// Package song defines the canonical in-memory representation that every
// format parser converges on. A Song is built once per successful parse and
// is never touched by the importer again; the editor and playback engine own
// it from then on.
package song

import "time"

// Note values share one code space across all formats.
const (
	NoteEmpty        = 0  // no event on this row
	NoteMin          = 1  // lowest playable pitch
	NoteMax          = 96 // highest playable pitch
	NoteCut          = 97 // stop the voice dead
	NoteRelease      = 98 // trigger the release phase
	NoteMacroRelease = 99 // release macros but keep the voice running

	// MaxEffects is the number of paired effect slots a cell can carry.
	MaxEffects = 8
)

// PitchMode says how note values were derived and how the player should
// interpret slides: Amiga-period arithmetic or linear frequency steps.
type PitchMode int

const (
	PitchAmiga PitchMode = iota
	PitchLinear
)

// Song is the top-level canonical model.
type Song struct {
	Name        string
	Author      string
	Comment     string
	Format      string // registry name of the source format
	Patterns    []*Pattern
	Instruments []*Instrument

	// SongPositions is the play order: each entry indexes Patterns.
	SongPositions   []int
	RestartPosition int // index into SongPositions for loop-back

	Channels  int
	Tempo     int // initial tempo (BPM driver)
	Speed     int // initial ticks per row
	PitchMode PitchMode

	// Subsongs is non-empty only for multi-subsong containers.
	Subsongs []Subsong

	// NativeBlob is an opaque payload for a native chip replayer. It is
	// preserved byte-for-byte and never interpreted here. A Song with no
	// patterns must carry one.
	NativeBlob []byte

	Provenance Provenance
}

// SongLength returns the length of the play order.
func (s *Song) SongLength() int { return len(s.SongPositions) }

// Subsong describes one entry of a multi-song container.
type Subsong struct {
	Name       string
	StartOrder int
	EndOrder   int
	Tempo      int
	Speed      int
}

// Provenance records where a song or pattern came from. It is kept for
// round-trip fidelity and diagnostics; playback never reads it.
type Provenance struct {
	SourceFormat    string
	SourceFile      string
	ImportedAt      time.Time
	OrigChannels    int
	OrigPatterns    int
	OrigInstruments int
}

// Pattern is a grid of rows across channels.
type Pattern struct {
	ID         int
	Name       string
	Length     int // row count
	Channels   []*ChannelData
	Provenance Provenance
}

// ChannelData is one channel's column of a pattern.
type ChannelData struct {
	ID   int
	Name string

	Muted     bool
	Solo      bool
	Collapsed bool

	DefaultVolume     int
	DefaultPan        int
	DefaultInstrument int // 0 = none, else 1-based

	Cells []Cell
}

// Cell is one row of one channel.
type Cell struct {
	Note       int // 0 empty, 1..96 pitch, 97..99 cut/release codes
	Instrument int // 0 = none, else 1-based index into Song.Instruments
	Volume     int // volume column, 0 = unset
	Effects    [MaxEffects]Effect
}

// Effect is one (type, parameter) pair.
type Effect struct {
	Type  int
	Param int
}

// HasNote reports whether the cell triggers or releases anything.
func (c *Cell) HasNote() bool { return c.Note != NoteEmpty }

// LoopKind enumerates sample loop behaviour.
type LoopKind int

const (
	LoopNone LoopKind = iota
	LoopForward
	LoopPingPong
)

// InstrumentKind discriminates the instrument variant. The set is closed:
// adding an engine means adding a constant here, and every switch over the
// kind is checkable for exhaustiveness.
type InstrumentKind int

const (
	KindSample InstrumentKind = iota
	KindSynth
)

// Instrument is a tagged variant: either a PCM sample or a synthesis
// engine configuration.
type Instrument struct {
	Name string
	Kind InstrumentKind

	Sample *SampleData // set when Kind == KindSample
	Synth  *SynthData  // set when Kind == KindSynth
}

// SampleData is normalized PCM with an optional loop window.
type SampleData struct {
	PCM        []byte // signed 8-bit frames, or little-endian 16-bit pairs
	SixteenBit bool
	Rate       int
	Volume     int // 0..64

	Loop      LoopKind
	LoopStart int // sample frames
	LoopEnd   int // sample frames, exclusive
}

// Frames returns the PCM length in sample frames.
func (s *SampleData) Frames() int {
	if s.SixteenBit {
		return len(s.PCM) / 2
	}
	return len(s.PCM)
}

// Macro is one decoded synthesis macro (sequence of engine parameter values
// stepped per tick). Engines that define richer semantics keep the rest in
// SynthData.Config.
type Macro struct {
	Code    int
	Loop    int // -1 = no loop
	Release int // -1 = no release point
	Delay   int
	Speed   int
	Values  []int
}

// SynthData names the synthesis engine and carries its configuration. Config
// is the raw engine-specific bytes, stored but never interpreted here.
type SynthData struct {
	Engine   string
	Macros   []Macro
	Envelope *Envelope
	Config   []byte
}

// Envelope is a shared ADSR-ish description used by the synth engines that
// have one (AHX and friends).
type Envelope struct {
	AttackFrames  int
	AttackVolume  int
	DecayFrames   int
	DecayVolume   int
	SustainFrames int
	ReleaseFrames int
	ReleaseVolume int
}
