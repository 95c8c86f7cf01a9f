package fur

import (
	"github.com/spotUP/DEViLBOX-sub001/internal/binio"
	"github.com/spotUP/DEViLBOX-sub001/internal/format"
	"github.com/spotUP/DEViLBOX-sub001/internal/song"
)

// info is the decoded INFO block: global song parameters plus the pointer
// tables every other block hangs off.
type info struct {
	version int

	timeBase int
	speed1   int
	speed2   int
	hz       float64

	patternLen   int
	ordersLen    int
	patternCount int
	channels     int
	pitchMode    song.PitchMode

	name    string
	author  string
	comment string

	insPtr     []int
	wavePtr    []int
	samplePtr  []int
	patternPtr []int
	subsongPtr []int

	orders          [][]int // [channel][order row]
	effectCols      []int
	channelShow     []bool
	channelCollapse []bool
	channelNames    []string
}

func (f *Format) parseInfo(d []byte, ptr, version int) (*info, error) {
	r, _, err := openBlock(d, ptr, "INFO")
	if err != nil {
		return nil, err
	}

	inf := &info{version: version}
	inf.timeBase = r.U8()
	inf.speed1 = r.U8()
	inf.speed2 = r.U8()
	r.Skip(1) // initial arpeggio time
	inf.hz = r.F32LE()
	inf.patternLen = r.U16LE()
	inf.ordersLen = r.U16LE()
	r.Skip(2) // row highlights

	insCount := r.U16LE()
	waveCount := r.U16LE()
	sampleCount := r.U16LE()
	inf.patternCount = r.U32LE()

	chips := r.Bytes(32)
	r.Skip(32 + 32 + 128) // chip volumes, panning, flag pointers
	if r.Truncated() {
		return nil, format.Malformed("fur", ptr, "song info truncated")
	}

	if inf.patternLen < 1 || inf.patternLen > maxRows {
		return nil, format.Malformed("fur", ptr, "pattern length %d", inf.patternLen)
	}
	if inf.ordersLen < 1 || inf.ordersLen > maxOrders {
		return nil, format.Malformed("fur", ptr, "orders length %d", inf.ordersLen)
	}
	if inf.hz <= 0 {
		return nil, format.Malformed("fur", ptr, "non-positive tick rate %v", inf.hz)
	}

	for _, chip := range chips {
		if chip == 0 {
			break
		}
		n, ok := chipChannels[int(chip)]
		if !ok {
			return nil, format.Unsupported("fur", "chip 0x%02X has no importer voice map", chip)
		}
		inf.channels += n
	}
	if inf.channels == 0 {
		return nil, format.Malformed("fur", ptr, "empty chip list")
	}

	inf.name = r.CString()
	inf.author = r.CString()
	r.Skip(4) // A-4 tuning

	compat := r.Bytes(20)
	if len(compat) == 20 && compat[1] != 0 {
		inf.pitchMode = song.PitchLinear
	}

	inf.insPtr = readPointers(r, insCount)
	inf.wavePtr = readPointers(r, waveCount)
	inf.samplePtr = readPointers(r, sampleCount)
	inf.patternPtr = readPointers(r, inf.patternCount)

	inf.orders = make([][]int, inf.channels)
	for ch := range inf.orders {
		inf.orders[ch] = make([]int, inf.ordersLen)
		for k := range inf.orders[ch] {
			inf.orders[ch][k] = r.U8()
		}
	}

	inf.effectCols = make([]int, inf.channels)
	for ch := range inf.effectCols {
		cols := r.U8()
		if cols > song.MaxEffects {
			f.log.Warn("clamping effect columns", "channel", ch, "columns", cols)
			cols = song.MaxEffects
		}
		if cols < 1 {
			cols = 1
		}
		inf.effectCols[ch] = cols
	}

	inf.channelShow = make([]bool, inf.channels)
	for ch := range inf.channelShow {
		inf.channelShow[ch] = r.U8() != 0
	}
	inf.channelCollapse = make([]bool, inf.channels)
	for ch := range inf.channelCollapse {
		inf.channelCollapse[ch] = r.U8() != 0
	}
	inf.channelNames = make([]string, inf.channels)
	for ch := range inf.channelNames {
		inf.channelNames[ch] = r.CString()
	}
	for ch := 0; ch < inf.channels; ch++ {
		r.CString() // short names
	}
	inf.comment = r.CString()

	if version >= subsongVersion {
		count := r.U8()
		r.Skip(3)
		inf.subsongPtr = readPointers(r, count)
	}

	if r.Truncated() {
		return nil, format.Malformed("fur", ptr, "song info truncated")
	}
	return inf, nil
}

func readPointers(r *binio.Reader, count int) []int {
	ptrs := make([]int, count)
	for i := range ptrs {
		ptrs[i] = r.U32LE()
	}
	return ptrs
}

// parseSubsong decodes one SONG block into subsong metadata. The extra
// subsongs keep their native orders in the file; only the first subsong's
// orders are materialized into the canonical pattern list.
func (f *Format) parseSubsong(d []byte, ptr int) (song.Subsong, error) {
	r, _, err := openBlock(d, ptr, "SONG")
	if err != nil {
		return song.Subsong{}, err
	}
	r.Skip(1) // time base
	speed1 := r.U8()
	r.Skip(2) // speed 2, arpeggio time
	hz := r.F32LE()
	r.Skip(6) // pattern length, orders length, highlights
	name := r.CString()
	if r.Truncated() {
		return song.Subsong{}, format.Malformed("fur", ptr, "subsong block truncated")
	}
	return song.Subsong{
		Name:  name,
		Tempo: tempoFromHz(hz),
		Speed: speed1,
	}, nil
}
