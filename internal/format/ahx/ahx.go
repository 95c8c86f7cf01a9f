// Package ahx imports AHX (Abyss' Highest eXperience) modules. AHX is a
// pure synthesis format: instruments are ADSR envelopes, filter and square
// modulation ranges and a per-instrument macro playlist, so they map onto
// the canonical synth variant. The whole file is also retained as the
// native-playback payload for the original replayer.
//
// Two header eras exist: revision 0 (AHX0) has no speed multiplier,
// revision 1 packs it into the flags byte.
package ahx

import (
	"github.com/spotUP/DEViLBOX-sub001/internal/effects"
	"github.com/spotUP/DEViLBOX-sub001/internal/format"
	"github.com/spotUP/DEViLBOX-sub001/internal/period"
	"github.com/spotUP/DEViLBOX-sub001/internal/song"
)

const (
	headerLen = 14
	voices    = 4

	// macro codes for the decoded playlist columns
	macroNote     = 0
	macroWaveform = 1
)

var effectTable = effects.Table{
	0x1: {Policy: effects.Direct, Type: effects.PortaUp},
	0x2: {Policy: effects.Direct, Type: effects.PortaDown},
	0x3: {Policy: effects.Direct, Type: effects.TonePorta},
	0xA: {Policy: effects.Direct, Type: effects.VolumeSlide},
	0xB: {Policy: effects.Direct, Type: effects.PositionJump},
	0xC: {Policy: effects.Relocate},
	0xD: {Policy: effects.Direct, Type: effects.PatternBreak},
	0xF: {Policy: effects.Direct, Type: effects.SetSpeed},
}

type Format struct{}

func New() *Format { return &Format{} }

func (*Format) Name() string { return "ahx" }

func (*Format) Detect(data []byte, _ string) bool {
	return len(data) >= headerLen &&
		data[0] == 'T' && data[1] == 'H' && data[2] == 'X' &&
		data[3] <= 1
}

type position struct {
	track     [voices]int
	transpose [voices]int
}

type step struct {
	note, instrument, fx, fxParam int
}

func (f *Format) Parse(data []byte, filename string) (*song.Song, error) {
	name := f.Name()
	revision := int(data[3])

	nameOffset := int(data[4])<<8 | int(data[5])

	// Byte 6: bit 7 = track 0 left out of the file, bits 6-5 = speed
	// multiplier (revision 1 only), bits 3-0 = position count high bits.
	flags := data[6]
	track0Elided := flags&0x80 != 0
	speedMult := 1
	if revision >= 1 {
		speedMult = int(flags>>5&3) + 1
	}

	positionNr := int(flags&0x0F)<<8 | int(data[7])
	restart := int(data[8])<<8 | int(data[9])
	trackLen := int(data[10])
	trackNr := int(data[11])
	instrumentNr := int(data[12])
	subsongNr := int(data[13])

	if positionNr == 0 || trackLen == 0 || trackLen > 64 {
		return nil, format.Malformed(name, 6, "implausible header: %d positions, track length %d", positionNr, trackLen)
	}

	pos := headerLen

	subsongs := make([]int, subsongNr)
	for i := range subsongs {
		if pos+2 > len(data) {
			return nil, format.Malformed(name, pos, "subsong list truncated")
		}
		subsongs[i] = int(data[pos])<<8 | int(data[pos+1])
		pos += 2
	}

	positions := make([]position, positionNr)
	for i := range positions {
		if pos+8 > len(data) {
			return nil, format.Malformed(name, pos, "position list truncated")
		}
		for v := 0; v < voices; v++ {
			positions[i].track[v] = int(data[pos])
			positions[i].transpose[v] = int(int8(data[pos+1]))
			pos += 2
		}
	}

	// Track 0 may be elided from the file; it is implicitly all zeroes.
	tracks := make([][]step, trackNr+1)
	for i := range tracks {
		tracks[i] = make([]step, trackLen)
		if i == 0 && track0Elided {
			continue
		}
		for j := 0; j < trackLen; j++ {
			if pos+3 > len(data) {
				return nil, format.Malformed(name, pos, "track %d truncated", i)
			}
			tracks[i][j] = unpackStep(data[pos : pos+3])
			pos += 3
		}
	}

	// Names live in a string pool at nameOffset: song name first, then one
	// per instrument.
	names := readNames(data, nameOffset, instrumentNr+1)

	instruments := make([]*song.Instrument, instrumentNr)
	for i := 1; i <= instrumentNr; i++ {
		if pos+22 > len(data) {
			return nil, format.Malformed(name, pos, "instrument %d truncated", i)
		}
		ins, consumed, err := decodeInstrument(name, data[pos:], names[i])
		if err != nil {
			return nil, err
		}
		ins.Name = song.InstrumentName(ins.Name, i)
		instruments[i-1] = ins
		pos += consumed
	}

	if restart >= positionNr {
		restart = 0
	}

	patterns := make([]*song.Pattern, positionNr)
	orders := make([]int, positionNr)
	for i, p := range positions {
		pat, err := materializePattern(name, i, p, tracks, trackLen, instrumentNr)
		if err != nil {
			return nil, err
		}
		patterns[i] = pat
		orders[i] = i
	}

	s := &song.Song{
		Name:            names[0],
		Format:          name,
		Patterns:        patterns,
		Instruments:     instruments,
		SongPositions:   orders,
		RestartPosition: restart,
		Channels:        voices,
		Tempo:           125 * speedMult,
		Speed:           6,
		PitchMode:       song.PitchAmiga,
		NativeBlob:      append([]byte(nil), data...),
		Provenance: song.Provenance{
			SourceFormat:    name,
			SourceFile:      filename,
			OrigChannels:    voices,
			OrigPatterns:    trackNr + 1,
			OrigInstruments: instrumentNr,
		},
	}

	for i, start := range subsongs {
		if start >= positionNr {
			continue
		}
		s.Subsongs = append(s.Subsongs, song.Subsong{
			Name:       song.PatternName("", i+1),
			StartOrder: start,
			EndOrder:   positionNr - 1,
		})
	}
	return s, nil
}

// unpackStep splits the 3-byte track row: six note bits, six instrument
// bits straddling the byte boundary, four effect bits and the parameter.
func unpackStep(b []byte) step {
	return step{
		note:       int(b[0]) >> 2 & 0x3F,
		instrument: int(b[0])&0x03<<4 | int(b[1])>>4,
		fx:         int(b[1]) & 0x0F,
		fxParam:    int(b[2]),
	}
}

// materializePattern renders one song position into a canonical pattern by
// resolving its per-voice track references and transposes.
func materializePattern(name string, id int, p position, tracks [][]step, trackLen, numIns int) (*song.Pattern, error) {
	pat := song.NewPattern(id, trackLen, voices)
	for v := 0; v < voices; v++ {
		if p.track[v] >= len(tracks) {
			return nil, format.Malformed(name, 0, "position %d voice %d references track %d of %d", id, v, p.track[v], len(tracks))
		}
		src := tracks[p.track[v]]
		for row := 0; row < trackLen; row++ {
			st := src[row]
			cell := &pat.Channels[v].Cells[row]

			if st.note > 0 {
				n := period.FromAHX(st.note + p.transpose[v])
				if n != song.NoteEmpty {
					cell.Note = n
				}
				if st.instrument > 0 && st.instrument <= numIns {
					cell.Instrument = st.instrument
				}
			}

			if st.fx != 0 || st.fxParam != 0 {
				res := effectTable.Apply(st.fx, st.fxParam)
				if res.Volume > 0 {
					cell.Volume = res.Volume
				} else {
					cell.Effects[0] = song.Effect{Type: res.Type, Param: res.Param}
				}
			}
		}
	}
	return pat, nil
}

// decodeInstrument reads one 22-byte instrument record plus its macro
// playlist, returning the synth variant and the bytes consumed.
func decodeInstrument(name string, data []byte, insName string) (*song.Instrument, int, error) {
	env := &song.Envelope{
		AttackFrames:  int(data[2]),
		AttackVolume:  int(data[3]),
		DecayFrames:   int(data[4]),
		DecayVolume:   int(data[5]),
		SustainFrames: int(data[6]),
		ReleaseFrames: int(data[7]),
		ReleaseVolume: int(data[8]),
	}

	plistSpeed := int(data[20])
	plistLen := int(data[21])
	consumed := 22 + plistLen*4
	if consumed > len(data) {
		return nil, 0, format.Malformed(name, 0, "instrument %q playlist truncated", insName)
	}

	noteMacro := song.Macro{Code: macroNote, Loop: -1, Release: -1, Speed: plistSpeed}
	waveMacro := song.Macro{Code: macroWaveform, Loop: -1, Release: -1, Speed: plistSpeed}
	for j := 0; j < plistLen; j++ {
		v := uint32(data[22+j*4])<<24 | uint32(data[23+j*4])<<16 | uint32(data[24+j*4])<<8 | uint32(data[25+j*4])
		noteMacro.Values = append(noteMacro.Values, int(v>>16&0x3F))
		waveMacro.Values = append(waveMacro.Values, int(v>>23&0x7))
	}

	return &song.Instrument{
		Name: insName,
		Kind: song.KindSynth,
		Synth: &song.SynthData{
			Engine:   "ahx",
			Macros:   []song.Macro{noteMacro, waveMacro},
			Envelope: env,
			// The replayer needs every modulation field; keep the raw
			// record rather than re-encoding it.
			Config: append([]byte(nil), data[:consumed]...),
		},
	}, consumed, nil
}

// readNames reads count NUL-terminated strings starting at offset; missing
// strings come back empty.
func readNames(data []byte, offset, count int) []string {
	names := make([]string, count)
	pos := offset
	for i := 0; i < count; i++ {
		if pos < 0 || pos >= len(data) {
			break
		}
		start := pos
		for pos < len(data) && data[pos] != 0 {
			pos++
		}
		names[i] = string(data[start:pos])
		pos++
	}
	return names
}
