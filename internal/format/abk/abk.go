// Package abk imports AMOS music banks. The container is the AMOS
// general-purpose bank format pressed into service for music: an "AmBk"
// header, a "Music   " bank signature found by forward scan, and a body
// whose instrument, arpeggio and pattern tables are addressed by
// compressed sign/continuation indices.
package abk

import (
	"github.com/spotUP/DEViLBOX-sub001/internal/binio"
	"github.com/spotUP/DEViLBOX-sub001/internal/effects"
	"github.com/spotUP/DEViLBOX-sub001/internal/format"
	"github.com/spotUP/DEViLBOX-sub001/internal/pcm"
	"github.com/spotUP/DEViLBOX-sub001/internal/song"
)

const (
	bankMagic     = "AmBk"
	bankSignature = "Music   "
	scanWindow    = 64

	instrRecordLen = 32
	maxChannels    = 8
	maxRows        = 128

	// Control token prefixing a step with an effect.
	tokControl = 0x7F
	// Step token layout: bit 7 gate, bits 0..6 note (0 = no pitch).
	stepGate = 0x80
	stepNote = 0x7F

	defaultRate = 8363
)

// Native effect codes carried by control tokens.
const (
	fxVolume   = 1
	fxSpeed    = 2
	fxArpeggio = 3
	fxPortaUp  = 4
	fxPortaDn  = 5
)

var effectTable = effects.Table{
	fxVolume:   {Policy: effects.Relocate},
	fxSpeed:    {Policy: effects.Direct, Type: effects.SetSpeed},
	fxArpeggio: {Policy: effects.Direct, Type: effects.Arpeggio},
	fxPortaUp:  {Policy: effects.Direct, Type: effects.PortaUp},
	fxPortaDn:  {Policy: effects.Direct, Type: effects.PortaDown},
}

type Format struct{}

func New() *Format { return &Format{} }

func (*Format) Name() string { return "abk" }

func (*Format) Detect(data []byte, _ string) bool {
	_, ok := locateBody(data)
	return ok
}

// locateBody finds the end of the "Music   " signature. AMOS tools pad the
// header differently between versions, so the signature position floats.
func locateBody(data []byte) (int, bool) {
	if len(data) < len(bankMagic)+len(bankSignature) {
		return 0, false
	}
	if string(data[:4]) != bankMagic {
		return 0, false
	}
	limit := len(data) - len(bankSignature)
	if limit > scanWindow {
		limit = scanWindow
	}
	for off := 4; off <= limit; off++ {
		if string(data[off:off+len(bankSignature)]) == bankSignature {
			return off + len(bankSignature), true
		}
	}
	return 0, false
}

func (f *Format) Parse(data []byte, filename string) (*song.Song, error) {
	name := f.Name()
	base, ok := locateBody(data)
	if !ok {
		return nil, format.Malformed(name, 0, "bank signature %q not found", bankSignature)
	}
	body := data[base:]

	// The three table indices sit right after the signature. They are read
	// speculatively: a truncated bank decodes them to zero and fails the
	// bounds checks below instead of crashing the scan.
	pos := 0
	instrOff, pos := binio.ReadVLQ(body, pos)
	arpOff, pos := binio.ReadVLQ(body, pos)
	pattOff, pos := binio.ReadVLQ(body, pos)
	if instrOff <= 0 || arpOff <= 0 || pattOff <= 0 {
		return nil, format.Malformed(name, base, "non-positive table index")
	}

	r := binio.NewReader(body)
	r.Seek(pos)
	title := r.CString()

	instruments, err := parseInstruments(body, instrOff)
	if err != nil {
		return nil, err
	}
	arps, err := parseArpeggios(body, arpOff)
	if err != nil {
		return nil, err
	}

	s := &song.Song{
		Name:        title,
		Format:      name,
		Instruments: instruments,
		Tempo:       125,
		Speed:       6,
		PitchMode:   song.PitchAmiga,
		Provenance: song.Provenance{
			SourceFormat:    name,
			SourceFile:      filename,
			OrigInstruments: len(instruments),
		},
	}
	if err := parsePatterns(s, body, pattOff, arps); err != nil {
		return nil, err
	}
	s.Provenance.OrigChannels = s.Channels
	s.Provenance.OrigPatterns = len(s.Patterns)
	return s, nil
}

func parseInstruments(body []byte, off int) ([]*song.Instrument, error) {
	r := binio.NewReader(body)
	r.Seek(off)
	count := r.U16BE()
	if r.Truncated() {
		return nil, format.Malformed("abk", off, "instrument table truncated")
	}

	instruments := make([]*song.Instrument, 0, count)
	for i := 0; i < count; i++ {
		recName := r.FixedString(16)
		sampleOff := r.U32BE()
		sampleLen := r.U32BE()
		loopStart := r.U16BE()
		loopLen := r.U16BE()
		volume := r.U16BE()
		r.Skip(2)
		if r.Truncated() {
			return nil, format.Malformed("abk", off, "instrument record %d truncated", i+1)
		}
		if sampleOff+sampleLen > len(body) {
			return nil, format.Malformed("abk", sampleOff, "sample %d extends past the bank", i+1)
		}

		loop := pcm.LoopNone
		if loopLen > 2 {
			loop = pcm.LoopForward
		}
		ins, err := pcm.Build(pcm.Spec{
			Name:      song.InstrumentName(recName, i+1),
			Data:      body[sampleOff : sampleOff+sampleLen],
			Rate:      defaultRate,
			Volume:    volume,
			Loop:      loop,
			LoopStart: loopStart,
			LoopLen:   loopLen,
		})
		if err != nil {
			return nil, format.Malformed("abk", sampleOff, "sample %d: %v", i+1, err)
		}
		instruments = append(instruments, ins)
	}
	return instruments, nil
}

// parseArpeggios reads the packed x/y offset pairs the arpeggio control
// token indexes into.
func parseArpeggios(body []byte, off int) ([]int, error) {
	r := binio.NewReader(body)
	r.Seek(off)
	count := r.U16BE()
	arps := make([]int, 0, count)
	for i := 0; i < count; i++ {
		a := r.U8() & 0x0F
		b := r.U8() & 0x0F
		arps = append(arps, a<<4|b)
	}
	if r.Truncated() {
		return nil, format.Malformed("abk", off, "arpeggio table truncated")
	}
	return arps, nil
}

func parsePatterns(s *song.Song, body []byte, off int, arps []int) error {
	r := binio.NewReader(body)
	r.Seek(off)
	channels := r.U16BE()
	patternCount := r.U16BE()
	orderCount := r.U16BE()
	restart := r.U16BE()
	if r.Truncated() {
		return format.Malformed("abk", off, "pattern table truncated")
	}
	if channels < 1 || channels > maxChannels {
		return format.Malformed("abk", off, "implausible channel count %d", channels)
	}
	if patternCount < 1 || orderCount < 1 || restart >= orderCount {
		return format.Malformed("abk", off, "inconsistent order table")
	}

	s.Channels = channels
	for i := 0; i < orderCount; i++ {
		entry := r.U16BE()
		if entry >= patternCount {
			return format.Malformed("abk", off, "order %d references pattern %d of %d", i, entry, patternCount)
		}
		s.SongPositions = append(s.SongPositions, entry)
	}
	s.RestartPosition = restart

	streamOffs := make([]int, patternCount)
	pos := r.Pos()
	for i := range streamOffs {
		streamOffs[i], pos = binio.ReadVLQ(body, pos)
	}
	if r.Truncated() || pos > len(body) {
		return format.Malformed("abk", off, "pattern index truncated")
	}

	for i, streamOff := range streamOffs {
		p, err := decodePattern(body, i, streamOff, channels, arps, len(s.Instruments))
		if err != nil {
			return err
		}
		s.Patterns = append(s.Patterns, p)
	}
	return nil
}

// decodePattern walks one token stream. Steps are channel-major: all rows
// of channel 0, then channel 1, and so on. A control token applies its
// effect to the step token that follows it.
func decodePattern(body []byte, id, off, channels int, arps []int, numInstruments int) (*song.Pattern, error) {
	if off <= 0 || off >= len(body) {
		return nil, format.Malformed("abk", off, "pattern %d stream outside the bank", id)
	}
	r := binio.NewReader(body)
	r.Seek(off)
	rows := r.U8()
	if rows < 1 || rows > maxRows {
		return nil, format.Malformed("abk", off, "pattern %d has %d rows", id, rows)
	}

	p := song.NewPattern(id, rows, channels)
	for ch := 0; ch < channels; ch++ {
		gated := false
		for row := 0; row < rows; row++ {
			cell := &p.Channels[ch].Cells[row]

			tok := r.U8()
			slot := 0
			for tok == tokControl {
				code := r.U8()
				res := effectTable.Apply(code, r.U8())
				if code == fxArpeggio {
					if res.Param >= len(arps) {
						return nil, format.Malformed("abk", off, "arpeggio %d of %d", res.Param, len(arps))
					}
					res.Param = arps[res.Param]
				}
				switch {
				case res.Volume != 0:
					cell.Volume = res.Volume
				case slot < song.MaxEffects:
					cell.Effects[slot] = song.Effect{Type: res.Type, Param: res.Param}
					slot++
				}
				tok = r.U8()
			}

			note := tok & stepNote
			switch {
			case note != 0:
				// Bank note 1 is C-1.
				canonical := note + 12
				if canonical > song.NoteMax {
					return nil, format.Malformed("abk", off, "pattern %d step note %d out of range", id, note)
				}
				ins := r.U8()
				if ins > numInstruments {
					return nil, format.Malformed("abk", off, "pattern %d references instrument %d of %d", id, ins, numInstruments)
				}
				cell.Note = canonical
				cell.Instrument = ins
				gated = tok&stepGate != 0
			case gated:
				// A rest cutting off a held note, not a hold-over.
				cell.Note = song.NoteCut
				gated = false
			default:
				cell.Note = song.NoteEmpty
			}
		}
	}
	if r.Truncated() {
		return nil, format.Malformed("abk", off, "pattern %d stream truncated", id)
	}
	return p, nil
}
