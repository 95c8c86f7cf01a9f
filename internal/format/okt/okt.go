// Package okt imports Oktalyzer modules: an IFF-style chunked container
// behind an "OKTASONG" envelope. Chunk order is format-specific, sample
// PCM sits in SBOD chunks, and when a ripper has merged them into one
// chunk the per-sample boundaries come from the SAMP directory lengths.
package okt

import (
	"github.com/spotUP/DEViLBOX-sub001/internal/binio"
	"github.com/spotUP/DEViLBOX-sub001/internal/effects"
	"github.com/spotUP/DEViLBOX-sub001/internal/format"
	"github.com/spotUP/DEViLBOX-sub001/internal/pcm"
	"github.com/spotUP/DEViLBOX-sub001/internal/period"
	"github.com/spotUP/DEViLBOX-sub001/internal/song"
)

const (
	magic      = "OKTASONG"
	maxSamples = 36
	recLen     = 32

	amigaPALRate = 8287
)

// effectTable: Oktalyzer's own small vocabulary into the canonical one.
// Codes missing here pass through for consumers that know them.
var effectTable = effects.Table{
	1:  {Policy: effects.Direct, Type: effects.PortaDown},
	2:  {Policy: effects.Direct, Type: effects.PortaUp},
	11: {Policy: effects.Direct, Type: effects.Arpeggio},
	15: {Policy: effects.Split, Type: effects.Extended, Sub: effects.ExFilter},
	17: {Policy: effects.Direct, Type: effects.VolumeSlide},
	25: {Policy: effects.Direct, Type: effects.PositionJump},
	28: {Policy: effects.Direct, Type: effects.SetSpeed},
	31: {Policy: effects.Relocate},
}

type Format struct{}

func New() *Format { return &Format{} }

func (*Format) Name() string { return "okt" }

func (*Format) Detect(data []byte, _ string) bool {
	return len(data) > len(magic)+8 && string(data[:len(magic)]) == magic
}

type sampleRec struct {
	name     string
	length   int // bytes
	repStart int // words
	repLen   int // words
	volume   int
}

func (f *Format) Parse(data []byte, filename string) (*song.Song, error) {
	name := f.Name()
	body := data[len(magic):]

	var (
		channels  int
		speed     = 6
		patCount  int
		posCount  int
		positions []int
		recs      []sampleRec
		patBodies [][]byte
		sbod      [][]byte
	)

	binio.WalkChunks(body, func(c binio.Chunk) bool {
		r := binio.NewReader(c.Data)
		switch c.Tag {
		case "CMOD":
			// Four voice-split flags; a split voice plays on two channels.
			channels = 4
			for i := 0; i < 4; i++ {
				if r.U16BE() != 0 {
					channels++
				}
			}
		case "SAMP":
			for r.Remaining() >= recLen {
				var rec sampleRec
				rec.name = r.FixedString(20)
				rec.length = r.U32BE()
				rec.repStart = r.U16BE()
				rec.repLen = r.U16BE()
				r.Skip(1) // pad
				rec.volume = r.U8()
				r.Skip(2) // pad
				recs = append(recs, rec)
			}
		case "SPEE":
			speed = r.U16BE()
		case "SLEN":
			patCount = r.U16BE()
		case "PLEN":
			posCount = r.U16BE()
		case "PATT":
			positions = make([]int, 0, len(c.Data))
			for _, b := range c.Data {
				positions = append(positions, int(b))
			}
		case "PBOD":
			patBodies = append(patBodies, c.Data)
		case "SBOD":
			sbod = append(sbod, c.Data)
		}
		return true
	})

	if channels == 0 {
		return nil, format.Malformed(name, 0, "missing CMOD chunk")
	}
	if patCount == 0 || len(patBodies) < patCount {
		return nil, format.Malformed(name, 0, "expected %d pattern bodies, found %d", patCount, len(patBodies))
	}
	if posCount == 0 || posCount > len(positions) {
		return nil, format.Malformed(name, 0, "position count %d exceeds table of %d", posCount, len(positions))
	}
	if len(recs) > maxSamples {
		recs = recs[:maxSamples]
	}

	patterns := make([]*song.Pattern, patCount)
	for i := 0; i < patCount; i++ {
		p, err := decodePattern(name, i, patBodies[i], channels, len(recs))
		if err != nil {
			return nil, err
		}
		patterns[i] = p
	}

	orders := make([]int, posCount)
	for i := 0; i < posCount; i++ {
		if positions[i] >= patCount {
			return nil, format.Malformed(name, 0, "position %d references pattern %d of %d", i, positions[i], patCount)
		}
		orders[i] = positions[i]
	}

	instruments, err := buildSamples(name, recs, sbod)
	if err != nil {
		return nil, err
	}

	if speed < 1 {
		speed = 6
	}

	s := &song.Song{
		Name:          trimExt(filename), // the container stores no title
		Format:        name,
		Patterns:      patterns,
		Instruments:   instruments,
		SongPositions: orders,
		Channels:      channels,
		Tempo:         125,
		Speed:         speed,
		PitchMode:     song.PitchAmiga,
		Provenance: song.Provenance{
			SourceFormat:    name,
			SourceFile:      filename,
			OrigChannels:    channels,
			OrigPatterns:    patCount,
			OrigInstruments: len(recs),
		},
	}
	return s, nil
}

// decodePattern reads one PBOD chunk: a row count then fixed 4-byte cells.
func decodePattern(name string, id int, body []byte, channels, numIns int) (*song.Pattern, error) {
	r := binio.NewReader(body)
	rows := r.U16BE()
	if rows == 0 || rows > 128 {
		return nil, format.Malformed(name, 0, "pattern %d declares %d rows", id, rows)
	}
	if r.Remaining() < rows*channels*4 {
		return nil, format.Malformed(name, r.Pos(), "pattern %d truncated", id)
	}

	p := song.NewPattern(id, rows, channels)
	for row := 0; row < rows; row++ {
		for ch := 0; ch < channels; ch++ {
			note := r.U8()
			ins := r.U8()
			eff := r.U8()
			par := r.U8()

			cell := &p.Channels[ch].Cells[row]
			if note > 0 && note <= 36 {
				cell.Note = period.FromOkt(note)
				if ins < numIns {
					cell.Instrument = ins + 1
				}
			}
			if eff != 0 {
				res := effectTable.Apply(eff, par)
				if res.Volume > 0 {
					cell.Volume = res.Volume
				} else {
					cell.Effects[0] = song.Effect{Type: res.Type, Param: res.Param}
				}
			}
		}
	}
	return p, nil
}

// buildSamples resolves SBOD payloads against the SAMP directory. One SBOD
// per sample is the common case; a single merged SBOD holds every payload
// back-to-back, sized only by the directory lengths.
func buildSamples(name string, recs []sampleRec, sbod [][]byte) ([]*song.Instrument, error) {
	nonEmpty := 0
	for _, rec := range recs {
		if rec.length > 0 {
			nonEmpty++
		}
	}

	var pool []byte
	merged := false
	if len(sbod) == 1 && nonEmpty > 1 {
		pool = sbod[0]
		merged = true
	}

	instruments := make([]*song.Instrument, len(recs))
	next := 0 // next SBOD chunk, or offset into the merged pool
	for i, rec := range recs {
		var payload []byte
		if rec.length > 0 {
			if merged {
				end := next + rec.length
				if end > len(pool) {
					end = len(pool)
				}
				if next < len(pool) {
					payload = pool[next:end]
				}
				next = end
			} else if next < len(sbod) {
				payload = sbod[next]
				if len(payload) > rec.length {
					payload = payload[:rec.length]
				}
				next++
			}
		}

		loop := pcm.LoopNone
		if rec.repLen > 1 {
			loop = pcm.LoopForward
		}
		ins, err := pcm.Build(pcm.Spec{
			Name:      song.InstrumentName(rec.name, i+1),
			Data:      payload,
			Rate:      amigaPALRate,
			Volume:    rec.volume,
			Loop:      loop,
			LoopUnit:  pcm.Words,
			LoopStart: rec.repStart,
			LoopLen:   rec.repLen,
		})
		if err != nil {
			return nil, format.Malformed(name, 0, "sample %d: %v", i+1, err)
		}
		instruments[i] = ins
	}
	return instruments, nil
}

// trimExt derives a title from the filename: directory and extension
// stripped.
func trimExt(filename string) string {
	base := filename
	for i := len(filename) - 1; i >= 0; i-- {
		if filename[i] == '/' || filename[i] == '\\' {
			base = filename[i+1:]
			break
		}
	}
	for i := len(base) - 1; i > 0; i-- {
		if base[i] == '.' {
			return base[:i]
		}
	}
	return base
}
