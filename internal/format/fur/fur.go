// Package fur imports Furnace modules: a versioned block container,
// optionally zlib-wrapped, whose layout changed across releases. Two block
// eras are handled: the legacy INST/PATR blocks and the modern INS2/PATN
// feature-block layout.
package fur

import (
	"bytes"
	"compress/zlib"
	"io"
	"log/slog"
	"math"

	"github.com/spotUP/DEViLBOX-sub001/internal/binio"
	"github.com/spotUP/DEViLBOX-sub001/internal/format"
	"github.com/spotUP/DEViLBOX-sub001/internal/song"
)

const (
	magic     = "-Furnace module-"
	headerLen = 32

	// featureVersion is the first file version using INS2/PATN blocks.
	featureVersion = 157
	// subsongVersion is the first file version carrying a subsong list.
	subsongVersion = 95

	maxOrders = 256
	maxRows   = 256
	// maxInflated bounds the zlib unwrap so a hostile stream cannot balloon.
	maxInflated = 64 << 20
)

// chipChannels maps the chip ids the importer can voice to their channel
// counts. A module using any other chip is recognized but not decoded.
var chipChannels = map[int]int{
	0x02: 10, // Sega Genesis
	0x03: 4,  // SN76489
	0x04: 4,  // Game Boy
	0x05: 6,  // PC Engine
	0x06: 5,  // NES
	0x07: 3,  // C64
	0x80: 3,  // AY-3-8910
	0x81: 4,  // Amiga
	0x82: 8,  // YM2151
	0x83: 6,  // YM2612
	0x84: 2,  // TIA
}

type Format struct {
	log *slog.Logger
}

// Option configures the importer.
type Option func(*Format)

// WithLogger injects a structured logger for decode diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(f *Format) { f.log = l }
}

func New(opts ...Option) *Format {
	f := &Format{log: format.DiscardLogger()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (*Format) Name() string { return "fur" }

func (*Format) Detect(data []byte, _ string) bool {
	_, ok := peekHeader(data)
	return ok
}

// peekHeader reads the 32-byte file header, inflating just enough of a
// zlib-wrapped module to see the magic.
func peekHeader(data []byte) ([]byte, bool) {
	if len(data) >= headerLen && string(data[:len(magic)]) == magic {
		return data[:headerLen], true
	}
	if len(data) < 2 || data[0] != 0x78 {
		return nil, false
	}
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, false
	}
	defer zr.Close()
	buf := make([]byte, headerLen)
	if _, err := io.ReadFull(zr, buf); err != nil {
		return nil, false
	}
	if string(buf[:len(magic)]) != magic {
		return nil, false
	}
	return buf, true
}

// unwrap inflates a zlib-wrapped module, or returns the buffer as-is.
func unwrap(data []byte) ([]byte, error) {
	if len(data) == 0 || data[0] != 0x78 {
		return data, nil
	}
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(io.LimitReader(zr, maxInflated))
}

func (f *Format) Parse(data []byte, filename string) (*song.Song, error) {
	name := f.Name()
	d, err := unwrap(data)
	if err != nil {
		return nil, format.Malformed(name, 0, "zlib unwrap: %v", err)
	}
	if len(d) < headerLen || string(d[:len(magic)]) != magic {
		return nil, format.Malformed(name, 0, "missing container magic")
	}

	r := binio.NewReader(d)
	r.Seek(len(magic))
	version := r.U16LE()
	r.Skip(2)
	infoPtr := r.U32LE()

	inf, err := f.parseInfo(d, infoPtr, version)
	if err != nil {
		return nil, err
	}

	samples := make([]*song.Instrument, 0, len(inf.samplePtr))
	for i, ptr := range inf.samplePtr {
		smp, err := f.parseSample(d, ptr, i)
		if err != nil {
			return nil, err
		}
		samples = append(samples, smp)
	}

	var instruments []*song.Instrument
	for i, ptr := range inf.insPtr {
		var ins *song.Instrument
		if version >= featureVersion {
			ins, err = f.parseINS2(d, ptr, i, samples)
		} else {
			ins, err = f.parseINST(d, ptr, i)
		}
		if err != nil {
			return nil, err
		}
		instruments = append(instruments, ins)
	}
	if len(instruments) == 0 {
		// Sample-only modules: every sample stands in as an instrument.
		instruments = samples
	}

	pats := make(map[patKey]*furPattern, len(inf.patternPtr))
	for _, ptr := range inf.patternPtr {
		if version >= featureVersion {
			err = f.parsePATN(d, ptr, inf, pats)
		} else {
			err = f.parsePATR(d, ptr, inf, pats)
		}
		if err != nil {
			return nil, err
		}
	}

	var subsongs []song.Subsong
	for _, ptr := range inf.subsongPtr {
		ss, err := f.parseSubsong(d, ptr)
		if err != nil {
			return nil, err
		}
		subsongs = append(subsongs, ss)
	}

	s := &song.Song{
		Name:        inf.name,
		Author:      inf.author,
		Comment:     inf.comment,
		Format:      name,
		Instruments: instruments,
		Channels:    inf.channels,
		Tempo:       tempoFromHz(inf.hz),
		Speed:       inf.speed1,
		PitchMode:   inf.pitchMode,
		Subsongs:    subsongs,
		Provenance: song.Provenance{
			SourceFormat:    name,
			SourceFile:      filename,
			OrigChannels:    inf.channels,
			OrigPatterns:    inf.patternCount,
			OrigInstruments: len(instruments),
		},
	}
	materialize(s, inf, pats)
	return s, nil
}

// materialize flattens the per-channel orders matrix: canonical pattern k is
// order row k, each channel holding its native pattern for that row. Rows
// the file never stored stay empty.
func materialize(s *song.Song, inf *info, pats map[patKey]*furPattern) {
	for k := 0; k < inf.ordersLen; k++ {
		p := song.NewPattern(k, inf.patternLen, inf.channels)
		for ch := 0; ch < inf.channels; ch++ {
			col := p.Channels[ch]
			if inf.channelNames[ch] != "" {
				col.Name = inf.channelNames[ch]
			}
			col.Collapsed = inf.channelCollapse[ch]
			col.Muted = !inf.channelShow[ch]
			if fp, ok := pats[patKey{ch, inf.orders[ch][k]}]; ok {
				copy(col.Cells, fp.cells)
			}
		}
		s.Patterns = append(s.Patterns, p)
		s.SongPositions = append(s.SongPositions, k)
	}
}

// openBlock positions a reader after the 8-byte block header at ptr.
func openBlock(d []byte, ptr int, tag string) (*binio.Reader, int, error) {
	if ptr < 0 || ptr+8 > len(d) {
		return nil, 0, format.Malformed("fur", ptr, "block pointer outside the file")
	}
	if string(d[ptr:ptr+4]) != tag {
		return nil, 0, format.Malformed("fur", ptr, "expected %s block, found %q", tag, d[ptr:ptr+4])
	}
	r := binio.NewReader(d)
	r.Seek(ptr + 4)
	size := r.U32LE()
	end := r.Pos() + size
	if end > len(d) {
		end = len(d)
	}
	return r, end, nil
}

func tempoFromHz(hz float64) int {
	// 50 Hz is the 125 BPM baseline.
	return int(math.Round(hz * 2.5))
}
