package fur

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/spotUP/DEViLBOX-sub001/internal/effects"
	"github.com/spotUP/DEViLBOX-sub001/internal/format"
	"github.com/spotUP/DEViLBOX-sub001/internal/song"
)

// Little-endian fixture writer.
type w struct{ b []byte }

func (x *w) u8(v int) { x.b = append(x.b, byte(v)) }
func (x *w) u16(v int) { x.b = binary.LittleEndian.AppendUint16(x.b, uint16(v)) }
func (x *w) u32(v int) { x.b = binary.LittleEndian.AppendUint32(x.b, uint32(v)) }
func (x *w) f32(v float64) {
	x.b = binary.LittleEndian.AppendUint32(x.b, math.Float32bits(float32(v)))
}
func (x *w) str(s string) { x.b = append(append(x.b, s...), 0) }
func (x *w) raw(p ...byte) { x.b = append(x.b, p...) }
func (x *w) zeros(n int) { x.b = append(x.b, make([]byte, n)...) }

func furBlock(tag string, body []byte) []byte {
	out := &w{b: []byte(tag)}
	out.u32(len(body))
	return append(out.b, body...)
}

// assemble lays the file out as header, INFO, then blocks in order, running
// the INFO builder twice so it can embed the final block pointers.
func assemble(version int, mkInfo func(ptrs []int) []byte, blocks ...[]byte) []byte {
	infoBlock := furBlock("INFO", mkInfo(make([]int, len(blocks))))

	ptrs := make([]int, len(blocks))
	off := headerLen + len(infoBlock)
	for i, blk := range blocks {
		ptrs[i] = off
		off += len(blk)
	}
	infoBlock = furBlock("INFO", mkInfo(ptrs))

	hdr := &w{b: []byte(magic)}
	hdr.u16(version)
	hdr.u16(0)
	hdr.u32(headerLen)
	hdr.zeros(8)

	file := append(hdr.b, infoBlock...)
	for _, blk := range blocks {
		file = append(file, blk...)
	}
	return file
}

// buildModern assembles a version-157 module: one Amiga chip, one sample,
// a sample instrument plus a synth instrument, two native patterns on
// channel 0, and one extra subsong.
//
// Block order: SMP2, INS2 sample, INS2 synth, PATN 0, PATN 1, SONG.
func buildModern() []byte {
	smp := &w{}
	smp.str("kick")
	smp.u32(4)    // frames
	smp.u32(0)    // compat rate
	smp.u32(8363) // center rate
	smp.u8(8)     // depth
	smp.u8(0)     // loop direction
	smp.u16(0)    // flags
	smp.u32(1)    // loop start
	smp.u32(3)    // loop end
	smp.zeros(16)
	smp.raw(1, 2, 3, 4)

	insSample := &w{}
	insSample.u16(157) // feature format version
	insSample.u16(4)   // sample type
	insSample.raw('N', 'A')
	insSample.u16(9)
	insSample.str("kick ins")
	insSample.raw('S', 'M')
	insSample.u16(4)
	insSample.raw(0, 0, 0, 0)
	insSample.raw('E', 'N')

	insSynth := &w{}
	insSynth.u16(157)
	insSynth.u16(2) // Game Boy type
	ma := &w{}
	ma.u16(2) // header length
	ma.raw(0, 3, 255, 255, 0, 0x00, 0, 1, 1, 2, 3)
	ma.raw(1, 2, 0, 255, 0, 0x80, 2, 1)
	ma.u16(-100 & 0xFFFF)
	ma.u16(200)
	ma.raw(255)
	insSynth.raw('M', 'A')
	insSynth.u16(len(ma.b))
	insSynth.raw(ma.b...)
	insSynth.raw('Z', 'Z')
	insSynth.u16(3)
	insSynth.raw(9, 9, 9)
	insSynth.raw('E', 'N')

	pat0 := &w{}
	pat0.u8(0) // subsong
	pat0.u8(0) // channel
	pat0.u16(0)
	pat0.str("intro")
	pat0.raw(0x1F, 72, 0, 40, 0xEC, 3) // full row: C-1, ins 1, vol, note-cut fx
	pat0.raw(0x80)                     // skip two rows
	pat0.raw(0x21, 0x0C, 180, 0x09, 4) // note off + second effect column
	pat0.raw(0xFF)

	pat1 := &w{}
	pat1.u8(0)
	pat1.u8(0)
	pat1.u16(1)
	pat1.str("")
	pat1.raw(0x06, 1, 10) // instrument and volume only
	pat1.raw(0xFF)

	sub := &w{}
	sub.u8(0) // time base
	sub.u8(3) // speed 1
	sub.u8(3)
	sub.u8(0)
	sub.f32(60)
	sub.u16(8)
	sub.u16(1)
	sub.u8(0)
	sub.u8(0)
	sub.str("bonus stage")
	sub.str("")

	mkInfo := func(ptrs []int) []byte {
		inf := &w{}
		inf.u8(0) // time base
		inf.u8(6) // speed 1
		inf.u8(6)
		inf.u8(0)
		inf.f32(50)
		inf.u16(8) // pattern length
		inf.u16(2) // orders length
		inf.u8(0)
		inf.u8(0)
		inf.u16(2) // instruments
		inf.u16(0) // wavetables
		inf.u16(1) // samples
		inf.u32(2) // patterns
		chips := make([]byte, 32)
		chips[0] = 0x81 // Amiga
		inf.raw(chips...)
		inf.zeros(32 + 32 + 128)
		inf.str("electric sunset")
		inf.str("jazzcat")
		inf.f32(440)
		compat := make([]byte, 20)
		compat[1] = 1 // linear pitch
		inf.raw(compat...)
		inf.u32(ptrs[1]) // sample instrument
		inf.u32(ptrs[2]) // synth instrument
		inf.u32(ptrs[0]) // sample
		inf.u32(ptrs[3]) // patterns
		inf.u32(ptrs[4])
		inf.raw(0, 1)       // channel 0 orders
		inf.raw(0, 0)       // channel 1
		inf.raw(0, 0)       // channel 2
		inf.raw(0, 0)       // channel 3
		inf.raw(2, 1, 1, 1) // effect columns
		inf.raw(1, 1, 1, 0) // show flags
		inf.raw(0, 0, 1, 0) // collapse flags
		inf.str("bass")
		inf.str("")
		inf.str("")
		inf.str("")
		for i := 0; i < 4; i++ {
			inf.str("") // short names
		}
		inf.str("made with love")
		inf.u8(1) // one extra subsong
		inf.zeros(3)
		inf.u32(ptrs[5])
		return inf.b
	}

	return assemble(157, mkInfo,
		furBlock("SMP2", smp.b),
		furBlock("INS2", insSample.b),
		furBlock("INS2", insSynth.b),
		furBlock("PATN", pat0.b),
		furBlock("PATN", pat1.b),
		furBlock("SONG", sub.b),
	)
}

func TestDetect(t *testing.T) {
	data := buildModern()
	f := New()

	if !f.Detect(data, "sunset.fur") {
		t.Fatal("plain module not detected")
	}
	if f.Detect(nil, "") || f.Detect(make([]byte, 64), "") {
		t.Fatal("detected an empty or all-zero buffer")
	}
	if f.Detect(data[:20], "") {
		t.Fatal("detected a truncated header")
	}
	if f.Detect([]byte{0x78, 0x9C, 1, 2, 3}, "") {
		t.Fatal("detected garbage behind a zlib header")
	}
}

func TestParseModern(t *testing.T) {
	s, err := New().Parse(buildModern(), "sunset.fur")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if s.Name != "electric sunset" || s.Author != "jazzcat" || s.Comment != "made with love" {
		t.Errorf("metadata = %q / %q / %q", s.Name, s.Author, s.Comment)
	}
	if s.Channels != 4 || s.Tempo != 125 || s.Speed != 6 {
		t.Errorf("channels %d tempo %d speed %d", s.Channels, s.Tempo, s.Speed)
	}
	if s.PitchMode != song.PitchLinear {
		t.Error("linear pitch flag not honored")
	}
	if len(s.Patterns) != 2 || len(s.SongPositions) != 2 {
		t.Fatalf("%d patterns, %d positions", len(s.Patterns), len(s.SongPositions))
	}

	ch0 := s.Patterns[0].Channels[0]
	if ch0.Name != "bass" {
		t.Errorf("channel 0 name = %q", ch0.Name)
	}
	if !s.Patterns[0].Channels[3].Muted || !s.Patterns[0].Channels[2].Collapsed {
		t.Error("channel show/collapse flags not applied")
	}

	row0 := ch0.Cells[0]
	if row0.Note != 13 || row0.Instrument != 1 || row0.Volume != 41 {
		t.Errorf("row 0 = %+v", row0)
	}
	if row0.Effects[0] != (song.Effect{Type: effects.Extended, Param: 0xC3}) {
		t.Errorf("row 0 effect = %+v, want repacked note-cut", row0.Effects[0])
	}
	if ch0.Cells[1].HasNote() || ch0.Cells[2].HasNote() {
		t.Error("skipped rows are not empty")
	}
	row3 := ch0.Cells[3]
	if row3.Note != song.NoteCut {
		t.Errorf("row 3 note = %d, want cut", row3.Note)
	}
	if row3.Effects[0] != (song.Effect{Type: effects.SetSpeed, Param: 4}) {
		t.Errorf("row 3 effect = %+v", row3.Effects[0])
	}

	p1 := s.Patterns[1].Channels[0].Cells[0]
	if p1.Instrument != 2 || p1.Volume != 11 {
		t.Errorf("pattern 1 row 0 = %+v", p1)
	}

	if len(s.Subsongs) != 1 {
		t.Fatalf("%d subsongs", len(s.Subsongs))
	}
	if ss := s.Subsongs[0]; ss.Name != "bonus stage" || ss.Tempo != 150 || ss.Speed != 3 {
		t.Errorf("subsong = %+v", ss)
	}
}

func TestInstruments(t *testing.T) {
	s, err := New().Parse(buildModern(), "")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(s.Instruments) != 2 {
		t.Fatalf("%d instruments", len(s.Instruments))
	}

	kick := s.Instruments[0]
	if kick.Kind != song.KindSample || kick.Name != "kick ins" {
		t.Fatalf("instrument 1 = kind %v name %q", kick.Kind, kick.Name)
	}
	sm := kick.Sample
	if !bytes.Equal(sm.PCM, []byte{1, 2, 3, 4}) || sm.Rate != 8363 {
		t.Errorf("sample = % x at %d Hz", sm.PCM, sm.Rate)
	}
	if sm.Loop != song.LoopForward || sm.LoopStart != 1 || sm.LoopEnd != 3 {
		t.Errorf("loop %v [%d,%d)", sm.Loop, sm.LoopStart, sm.LoopEnd)
	}

	synth := s.Instruments[1]
	if synth.Kind != song.KindSynth || synth.Synth.Engine != "gb" {
		t.Fatalf("instrument 2 = kind %v engine %q", synth.Kind, synth.Synth.Engine)
	}
	macros := synth.Synth.Macros
	if len(macros) != 2 {
		t.Fatalf("%d macros", len(macros))
	}
	m0 := macros[0]
	if m0.Code != 0 || m0.Loop != -1 || m0.Release != -1 || m0.Speed != 1 {
		t.Errorf("macro 0 = %+v", m0)
	}
	if want := []int{1, 2, 3}; !equalInts(m0.Values, want) {
		t.Errorf("macro 0 values = %v", m0.Values)
	}
	m1 := macros[1]
	if m1.Loop != 0 || m1.Delay != 2 {
		t.Errorf("macro 1 = %+v", m1)
	}
	if want := []int{-100, 200}; !equalInts(m1.Values, want) {
		t.Errorf("macro 1 values = %v, want signed words", m1.Values)
	}
	if !bytes.Equal(synth.Synth.Config, []byte{'Z', 'Z', 3, 0, 9, 9, 9}) {
		t.Errorf("opaque feature not retained: % x", synth.Synth.Config)
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestZlibWrapped(t *testing.T) {
	plain := buildModern()
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(plain); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	wrapped := buf.Bytes()

	f := New()
	if !f.Detect(wrapped, "sunset.fur") {
		t.Fatal("wrapped module not detected")
	}
	s, err := f.Parse(wrapped, "sunset.fur")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s.Name != "electric sunset" {
		t.Errorf("Name = %q", s.Name)
	}
}

// buildLegacy assembles a version-100 module: Game Boy chip, one INST
// instrument, one PATR pattern, no samples.
//
// Block order: INST, PATR.
func buildLegacy() []byte {
	ins := &w{}
	ins.u16(100)
	ins.u8(2) // Game Boy type
	ins.u8(0)
	ins.str("lead")
	ins.raw(0xAA, 0xBB)

	pat := &w{}
	pat.u16(0) // channel
	pat.u16(0) // index
	pat.u16(0) // subsong
	pat.u16(0)
	writeRow := func(note, oct, ins, vol, fx, val int) {
		pat.u16(note & 0xFFFF)
		pat.u16(oct & 0xFFFF)
		pat.u16(ins & 0xFFFF)
		pat.u16(vol & 0xFFFF)
		pat.u16(fx & 0xFFFF)
		pat.u16(val & 0xFFFF)
	}
	writeRow(12, 0, 0, -1, -1, -1)  // C-1, instrument 1
	writeRow(100, 0, -1, 20, -1, -1) // note off with volume
	writeRow(0, 0, -1, -1, 0, 0x37)  // bare arpeggio
	writeRow(11, 1, -1, -1, -1, -1)  // B-1
	pat.str("legacy groove")

	mkInfo := func(ptrs []int) []byte {
		inf := &w{}
		inf.u8(0)
		inf.u8(5)
		inf.u8(5)
		inf.u8(0)
		inf.f32(50)
		inf.u16(4) // pattern length
		inf.u16(1) // orders length
		inf.u8(0)
		inf.u8(0)
		inf.u16(1) // instruments
		inf.u16(0)
		inf.u16(0) // samples
		inf.u32(1) // patterns
		chips := make([]byte, 32)
		chips[0] = 0x04 // Game Boy
		inf.raw(chips...)
		inf.zeros(32 + 32 + 128)
		inf.str("gameboy jam")
		inf.str("")
		inf.f32(440)
		inf.zeros(20)
		inf.u32(ptrs[0])
		inf.u32(ptrs[1])
		inf.raw(0)          // channel 0 orders
		inf.raw(0, 0, 0)    // channels 1-3
		inf.raw(1, 1, 1, 1) // effect columns
		inf.raw(1, 1, 1, 1) // show
		inf.zeros(4)        // collapse
		for i := 0; i < 8; i++ {
			inf.str("") // names and short names
		}
		inf.str("") // comment
		inf.u8(0)   // no extra subsongs
		inf.zeros(3)
		return inf.b
	}

	return assemble(100, mkInfo,
		furBlock("INST", ins.b),
		furBlock("PATR", pat.b),
	)
}

func TestParseLegacy(t *testing.T) {
	s, err := New().Parse(buildLegacy(), "jam.fur")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if s.Name != "gameboy jam" || s.Channels != 4 || s.Speed != 5 {
		t.Errorf("header = %q %d channels speed %d", s.Name, s.Channels, s.Speed)
	}

	ins := s.Instruments[0]
	if ins.Kind != song.KindSynth || ins.Name != "lead" || ins.Synth.Engine != "gb" {
		t.Fatalf("instrument = %+v", ins)
	}
	if !bytes.Equal(ins.Synth.Config, []byte{0xAA, 0xBB}) {
		t.Errorf("legacy config = % x", ins.Synth.Config)
	}

	cells := s.Patterns[0].Channels[0].Cells
	if cells[0].Note != 13 || cells[0].Instrument != 1 {
		t.Errorf("row 0 = %+v", cells[0])
	}
	if cells[1].Note != song.NoteCut || cells[1].Volume != 21 {
		t.Errorf("row 1 = %+v", cells[1])
	}
	if cells[2].HasNote() {
		t.Errorf("row 2 note = %d", cells[2].Note)
	}
	if cells[2].Effects[0] != (song.Effect{Type: effects.Arpeggio, Param: 0x37}) {
		t.Errorf("row 2 effect = %+v", cells[2].Effects[0])
	}
	if cells[3].Note != 24 {
		t.Errorf("row 3 note = %d, want 24", cells[3].Note)
	}
}

func TestUnsupportedChip(t *testing.T) {
	data := buildModern()
	// First chip id lives 24 bytes into the INFO body.
	data[headerLen+8+24] = 0x99
	_, err := New().Parse(data, "")
	if !errors.Is(err, format.ErrUnsupportedVariant) {
		t.Fatalf("err = %v, want ErrUnsupportedVariant", err)
	}
}

func TestMalformed(t *testing.T) {
	cases := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"info tag corrupt", func(b []byte) []byte {
			copy(b[headerLen:], "NOPE")
			return b
		}},
		{"zero pattern length", func(b []byte) []byte {
			b[headerLen+8+8] = 0
			b[headerLen+8+9] = 0
			return b
		}},
		{"truncated info", func(b []byte) []byte { return b[:100] }},
		{"empty chip list", func(b []byte) []byte {
			b[headerLen+8+24] = 0
			return b
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New().Parse(tc.mutate(buildModern()), "")
			if !errors.Is(err, format.ErrMalformed) {
				t.Fatalf("err = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestBadSampleDepth(t *testing.T) {
	data := buildModern()
	// The SMP2 block is the first one after INFO; depth sits after the
	// name and three u32 fields.
	infoLen := int(binary.LittleEndian.Uint32(data[headerLen+4:]))
	depthOff := headerLen + 8 + infoLen + 8 + len("kick") + 1 + 12
	data[depthOff] = 4
	_, err := New().Parse(data, "")
	if !errors.Is(err, format.ErrUnsupportedVariant) {
		t.Fatalf("err = %v, want ErrUnsupportedVariant", err)
	}
}
