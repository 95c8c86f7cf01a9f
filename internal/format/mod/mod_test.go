package mod

import (
	"testing"

	"github.com/spotUP/DEViLBOX-sub001/internal/song"
)

// buildMK assembles a minimal two-pattern M.K. module with one sample.
func buildMK(t *testing.T) []byte {
	t.Helper()
	sampleLen := 16 // bytes
	data := make([]byte, 1084+2*1024+sampleLen)

	copy(data, "axel f")

	// Sample 1: 8 words, volume 48, loop words [2,6).
	rec := data[20:]
	copy(rec, "bass")
	rec[23] = 8  // length in words
	rec[25] = 48 // volume
	rec[27] = 2  // loop start words
	rec[29] = 4  // loop length words

	data[950] = 2 // order count
	data[951] = 1 // restart
	data[952] = 0
	data[953] = 1
	copy(data[1080:], "M.K.")

	// Pattern 0, row 0, channel 0: period 856 (C-1), instrument 1, effect
	// 0xC param 32 (set volume).
	cell := data[1084:]
	cell[0] = 0x03 // period high nibble | instrument high nibble (0)
	cell[1] = 0x58 // 0x358 = 856
	cell[2] = 0x1C // instrument low nibble 1, effect 0xC
	cell[3] = 32

	// Pattern 0, row 1, channel 2: note-cut sentinel.
	cut := data[1084+(1*4+2)*4:]
	cut[0] = 0x0F
	cut[1] = 0xFF

	// Pattern 1, row 0, channel 3: arpeggio x37 with period 428 (C-2).
	c2 := data[1084+1024+3*4:]
	c2[0] = 0x01
	c2[1] = 0xAC // 0x1AC = 428
	c2[2] = 0x00
	c2[3] = 0x37

	return data
}

func TestProTrackerDetect(t *testing.T) {
	f := New()
	data := buildMK(t)
	if !f.Detect(data, "") {
		t.Fatal("fixture not detected")
	}
	if f.Detect(data[:1000], "") {
		t.Error("truncated buffer detected")
	}
	if f.Detect(nil, "") {
		t.Error("empty buffer detected")
	}
	if f.Detect(make([]byte, len(data)), "") {
		t.Error("all-zero buffer detected")
	}
}

func TestProTrackerParse(t *testing.T) {
	f := New()
	data := buildMK(t)
	s, err := f.Parse(data, "axelf.mod")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("invalid model: %v", err)
	}

	if s.Name != "axel f" {
		t.Errorf("name = %q", s.Name)
	}
	if s.Channels != 4 || len(s.Patterns) != 2 {
		t.Errorf("channels=%d patterns=%d", s.Channels, len(s.Patterns))
	}
	if s.SongLength() != 2 || s.RestartPosition != 1 {
		t.Errorf("positions=%v restart=%d", s.SongPositions, s.RestartPosition)
	}

	cell := s.Patterns[0].Channels[0].Cells[0]
	if cell.Note != 13 {
		t.Errorf("period 856 decoded to note %d, want 13 (C-1)", cell.Note)
	}
	if cell.Instrument != 1 {
		t.Errorf("instrument = %d, want 1", cell.Instrument)
	}
	// Set-volume relocated to the volume column, effect slot left empty.
	if cell.Volume != 33 {
		t.Errorf("volume column = %d, want 33", cell.Volume)
	}
	if cell.Effects[0] != (song.Effect{}) {
		t.Errorf("effect slot should be empty, got %+v", cell.Effects[0])
	}

	if got := s.Patterns[0].Channels[2].Cells[1].Note; got != song.NoteCut {
		t.Errorf("reserved period pattern decoded to %d, want note-cut", got)
	}

	c2 := s.Patterns[1].Channels[3].Cells[0]
	if c2.Note != 25 {
		t.Errorf("period 428 decoded to note %d, want 25 (C-2)", c2.Note)
	}
	if c2.Effects[0].Type != 0 || c2.Effects[0].Param != 0x37 {
		t.Errorf("arpeggio = %+v", c2.Effects[0])
	}
}

func TestInstrumentNibbleGarbage(t *testing.T) {
	f := New()
	data := buildMK(t)

	// Pattern 0, row 0, channel 1: period 856 with both instrument nibbles
	// maxed (0xF0 | 0xF = 255, far past the 31 sample records).
	cell := data[1084+4:]
	cell[0] = 0xF3
	cell[1] = 0x58
	cell[2] = 0xF0

	s, err := f.Parse(data, "")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("garbage instrument leaked into the model: %v", err)
	}

	c := s.Patterns[0].Channels[1].Cells[0]
	if c.Instrument != 0 {
		t.Errorf("instrument = %d, want 0", c.Instrument)
	}
	if c.Note != 13 {
		t.Errorf("note = %d, want 13 (the period still decodes)", c.Note)
	}
}

func TestProTrackerSample(t *testing.T) {
	s, err := New().Parse(buildMK(t), "")
	if err != nil {
		t.Fatal(err)
	}
	ins := s.Instruments[0]
	if ins.Name != "bass" {
		t.Errorf("name = %q", ins.Name)
	}
	sd := ins.Sample
	if len(sd.PCM) != 16 {
		t.Errorf("pcm len = %d, want 16", len(sd.PCM))
	}
	if sd.Volume != 48 {
		t.Errorf("volume = %d", sd.Volume)
	}
	if sd.Loop != song.LoopForward || sd.LoopStart != 4 || sd.LoopEnd != 12 {
		t.Errorf("loop = %v [%d,%d), want forward [4,12)", sd.Loop, sd.LoopStart, sd.LoopEnd)
	}

	// Unnamed samples get the deterministic placeholder.
	if got := s.Instruments[1].Name; got != "Sample 2" {
		t.Errorf("placeholder name = %q", got)
	}
	if s.Instruments[1].Sample.Loop != song.LoopNone {
		t.Error("zero loop length means no loop for this format")
	}
}

func TestProTrackerTruncatedPattern(t *testing.T) {
	data := buildMK(t)
	if _, err := New().Parse(data[:1500], ""); err == nil {
		t.Fatal("truncated pattern data should fail")
	}
}

func TestChannelTags(t *testing.T) {
	cases := map[string]int{
		"M.K.": 4, "M!K!": 4, "FLT4": 4, "FLT8": 8,
		"6CHN": 6, "8CHN": 8, "12CH": 12, "28CH": 28,
		"XXXX": 0, "0CHN": 0,
	}
	for tag, want := range cases {
		if got := channelsFromTag([]byte(tag)); got != want {
			t.Errorf("channelsFromTag(%q) = %d, want %d", tag, got, want)
		}
	}
}

// buildST15 assembles a minimal 15-instrument SoundTracker module.
func buildST15(t *testing.T) []byte {
	t.Helper()
	sampleLen := 32
	data := make([]byte, 600+1024+sampleLen)

	copy(data, "old school")
	rec := data[20:]
	rec[23] = 16 // words
	rec[25] = 64

	data[470] = 1 // order count
	data[472] = 0 // single pattern

	// One audible row so the pattern isn't empty.
	data[600] = 0x02
	data[601] = 0xD0 // period 720 = D#1-ish
	data[602] = 0x10 // instrument 1
	return data
}

func TestSoundTrackerHeuristic(t *testing.T) {
	f := NewSoundTracker()
	data := buildST15(t)

	if !f.Detect(data, "") {
		t.Fatal("fixture not detected")
	}

	t.Run("AllZeroSameSize", func(t *testing.T) {
		if f.Detect(make([]byte, len(data)), "") {
			t.Error("an all-zero buffer of plausible size must be rejected")
		}
	})

	t.Run("ImplausibleVolume", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		bad[20+25] = 200
		if f.Detect(bad, "") {
			t.Error("volume above 64 should fail the heuristic")
		}
	})

	t.Run("SizeMismatch", func(t *testing.T) {
		if f.Detect(data[:700], "") {
			t.Error("declared layout larger than the buffer should be rejected")
		}
	})

	s, err := f.Parse(data, "st.mod")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Validate(); err != nil {
		t.Fatal(err)
	}
	if len(s.Instruments) != 15 {
		t.Errorf("instruments = %d, want 15", len(s.Instruments))
	}
	if got := s.Patterns[0].Channels[0].Cells[0].Note; got == song.NoteEmpty {
		t.Error("row 0 should carry a note")
	}
}
