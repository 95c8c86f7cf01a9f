// Package mod imports ProTracker modules and their ancestors: the flat
// 4-channel Amiga binary with a signature at offset 1080, the multi-channel
// xCHN/xxCH offshoots, and the original 15-instrument Ultimate SoundTracker
// layout that carries no signature at all and has to be recognized purely by
// field plausibility.
package mod

import (
	"github.com/spotUP/DEViLBOX-sub001/internal/effects"
	"github.com/spotUP/DEViLBOX-sub001/internal/format"
	"github.com/spotUP/DEViLBOX-sub001/internal/pcm"
	"github.com/spotUP/DEViLBOX-sub001/internal/period"
	"github.com/spotUP/DEViLBOX-sub001/internal/song"
)

const (
	titleLen     = 20
	sampleRecLen = 30
	rowsPerPat   = 64
	cellLen      = 4

	// noteCutPeriod is the reserved 12-bit pattern meaning "cut the voice"
	// instead of a pitch.
	noteCutPeriod = 0xFFF

	amigaPALRate = 8287
)

// effectTable translates ProTracker effects. Most codes already are the
// canonical vocabulary; set-volume relocates into the volume column.
var effectTable = effects.Table{
	0xC: {Policy: effects.Relocate},
}

// ProTracker is the signature-bearing 31-instrument family.
type ProTracker struct{}

func New() *ProTracker { return &ProTracker{} }

func (*ProTracker) Name() string { return "mod" }

func (*ProTracker) Detect(data []byte, _ string) bool {
	return len(data) >= 1084 && channelsFromTag(data[1080:1084]) > 0
}

// channelsFromTag returns the channel count for a known signature, else 0.
func channelsFromTag(tag []byte) int {
	switch string(tag) {
	case "M.K.", "M!K!", "FLT4":
		return 4
	case "FLT8":
		return 8
	}
	if tag[1] == 'C' && tag[2] == 'H' && tag[3] == 'N' && tag[0] >= '1' && tag[0] <= '9' {
		return int(tag[0] - '0')
	}
	if tag[2] == 'C' && tag[3] == 'H' && tag[0] >= '1' && tag[0] <= '9' && tag[1] >= '0' && tag[1] <= '9' {
		return int(tag[0]-'0')*10 + int(tag[1]-'0')
	}
	return 0
}

func (f *ProTracker) Parse(data []byte, filename string) (*song.Song, error) {
	channels := channelsFromTag(data[1080:1084])
	return parseMOD(f.Name(), data, filename, layout{
		instruments: 31,
		orderTable:  950,
		patternBase: 1084,
		channels:    channels,
	})
}

// SoundTracker is the 15-instrument variant with no signature. Its detector
// is a pure structural heuristic and sits last in the registry.
type SoundTracker struct{}

func NewSoundTracker() *SoundTracker { return &SoundTracker{} }

func (*SoundTracker) Name() string { return "soundtracker" }

func (*SoundTracker) Detect(data []byte, _ string) bool {
	// Header: 20-byte title, 15 sample records, order count, a "restart"
	// byte, 128 order entries.
	if len(data) < 600 {
		return false
	}

	orderCount := int(data[470])
	if orderCount == 0 || orderCount > 128 {
		return false // an all-zero buffer dies here
	}

	maxPat := 0
	for i := 0; i < 128; i++ {
		pat := int(data[472+i])
		if pat > 63 {
			return false
		}
		if pat > maxPat {
			maxPat = pat
		}
	}

	sampleBytes := 0
	for i := 0; i < 15; i++ {
		rec := data[titleLen+i*sampleRecLen:]
		length := int(rec[22])<<8 | int(rec[23])
		volume := int(rec[25])
		if rec[24] != 0 || volume > 64 {
			return false
		}
		sampleBytes += length * 2
	}
	if sampleBytes == 0 {
		return false
	}

	// The declared layout must fit the buffer: a little short is a clipped
	// final sample, a little long is trailing ripper junk.
	need := 600 + (maxPat+1)*rowsPerPat*4*cellLen + sampleBytes
	return need <= len(data)+256 && len(data) <= need+1024
}

func (f *SoundTracker) Parse(data []byte, filename string) (*song.Song, error) {
	return parseMOD(f.Name(), data, filename, layout{
		instruments: 15,
		orderTable:  470,
		patternBase: 600,
		channels:    4,
	})
}

// layout captures what differs between the two header eras.
type layout struct {
	instruments int
	orderTable  int
	patternBase int
	channels    int
}

type sampleRec struct {
	name      string
	length    int // bytes
	volume    int
	loopStart int // bytes
	loopLen   int // bytes
}

func parseMOD(name string, data []byte, filename string, l layout) (*song.Song, error) {
	if len(data) < l.patternBase {
		return nil, format.Malformed(name, len(data), "file shorter than header")
	}

	s := &song.Song{
		Name:      readName(data[:titleLen]),
		Format:    name,
		Channels:  l.channels,
		Tempo:     125,
		Speed:     6,
		PitchMode: song.PitchAmiga,
	}

	// Sample directory. PCM payloads follow the patterns and are read last.
	recs := make([]sampleRec, l.instruments)
	for i := range recs {
		rec := data[titleLen+i*sampleRecLen:]
		recs[i] = sampleRec{
			name:      readName(rec[:22]),
			length:    (int(rec[22])<<8 | int(rec[23])) * 2,
			volume:    int(rec[25]),
			loopStart: (int(rec[26])<<8 | int(rec[27])) * 2,
			loopLen:   (int(rec[28])<<8 | int(rec[29])) * 2,
		}
	}

	orderCount := int(data[l.orderTable]) & 0x7F
	if orderCount == 0 {
		return nil, format.Malformed(name, l.orderTable, "empty order list")
	}
	restart := int(data[l.orderTable+1]) & 0x7F

	numPatterns := 0
	orders := make([]int, orderCount)
	for i := 0; i < 128; i++ {
		pat := int(data[l.orderTable+2+i]) & 0x7F
		if i < orderCount {
			orders[i] = pat
		}
		// Patterns beyond the played range still occupy file space.
		if pat >= numPatterns {
			numPatterns = pat + 1
		}
	}
	if restart >= orderCount {
		restart = 0
	}

	pos := l.patternBase
	patterns := make([]*song.Pattern, numPatterns)
	for p := 0; p < numPatterns; p++ {
		need := rowsPerPat * l.channels * cellLen
		if pos+need > len(data) {
			return nil, format.Malformed(name, pos, "pattern %d truncated", p)
		}
		patterns[p] = decodePattern(p, data[pos:pos+need], l.channels, l.instruments)
		pos += need
	}

	instruments := make([]*song.Instrument, l.instruments)
	for i, rec := range recs {
		length := rec.length
		if pos+length > len(data) {
			// Rippers clip the last sample short surprisingly often.
			length = len(data) - pos
			if length < 0 {
				length = 0
			}
		}

		loop := pcm.LoopNone
		if rec.loopLen > 2 {
			loop = pcm.LoopForward
		}
		ins, err := pcm.Build(pcm.Spec{
			Name:      song.InstrumentName(rec.name, i+1),
			Data:      data[pos : pos+length],
			Rate:      amigaPALRate,
			Volume:    rec.volume,
			Loop:      loop,
			LoopStart: rec.loopStart,
			LoopLen:   rec.loopLen,
		})
		if err != nil {
			return nil, format.Malformed(name, pos, "sample %d: %v", i+1, err)
		}
		instruments[i] = ins
		pos += length
	}

	s.Patterns = patterns
	s.Instruments = instruments
	s.SongPositions = orders
	s.RestartPosition = restart
	s.Provenance = song.Provenance{
		SourceFormat:    name,
		SourceFile:      filename,
		OrigChannels:    l.channels,
		OrigPatterns:    numPatterns,
		OrigInstruments: l.instruments,
	}
	return s, nil
}

// decodePattern unpacks one pattern's fixed 4-byte cells.
func decodePattern(id int, data []byte, channels, numIns int) *song.Pattern {
	p := song.NewPattern(id, rowsPerPat, channels)
	pos := 0
	for row := 0; row < rowsPerPat; row++ {
		for ch := 0; ch < channels; ch++ {
			cell := &p.Channels[ch].Cells[row]
			decodeCell(cell, data[pos:pos+cellLen], numIns)
			pos += cellLen
		}
	}
	return p
}

// decodeCell unpacks the classic packed cell: 12-bit period straddling the
// first two bytes, the instrument split across two nibbles, a 4-bit effect
// sharing a byte with the instrument's low nibble, and an 8-bit parameter.
func decodeCell(cell *song.Cell, b []byte, numIns int) {
	per := int(b[0]&0x0F)<<8 | int(b[1])
	ins := int(b[0]&0xF0) | int(b[2])>>4
	eff := int(b[2] & 0x0F)
	par := int(b[3])

	switch per {
	case 0:
		cell.Note = song.NoteEmpty
	case noteCutPeriod:
		cell.Note = song.NoteCut
	default:
		cell.Note = period.PeriodToNote(per)
	}
	// Garbage in the instrument nibbles must not leak into the model.
	if ins > numIns {
		ins = 0
	}
	cell.Instrument = ins

	if eff != 0 || par != 0 {
		res := effectTable.Apply(eff, par)
		if res.Volume > 0 {
			cell.Volume = res.Volume
		} else {
			cell.Effects[0] = song.Effect{Type: res.Type, Param: res.Param}
		}
	}
}

// readName trims a fixed-width header string.
func readName(b []byte) string {
	end := len(b)
	for end > 0 && (b[end-1] == 0 || b[end-1] == ' ') {
		end--
	}
	for i := 0; i < end; i++ {
		if b[i] == 0 {
			return string(b[:i])
		}
	}
	return string(b[:end])
}
