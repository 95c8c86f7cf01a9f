package fur

import (
	"github.com/spotUP/DEViLBOX-sub001/internal/binio"
	"github.com/spotUP/DEViLBOX-sub001/internal/format"
	"github.com/spotUP/DEViLBOX-sub001/internal/song"
)

// Instrument type ids, mapped to the synthesis engines the player knows.
var engineNames = map[int]string{
	0: "std",
	1: "fm",
	2: "gb",
	3: "c64",
	4: "sample",
	5: "pce",
	6: "ay",
}

func engineName(typ int) string {
	if name, ok := engineNames[typ]; ok {
		return name
	}
	return "unknown"
}

// parseINS2 decodes the modern feature-block instrument: a sequence of
// 2-char feature codes, each with a u16 length. Known features are fitted
// into the closed instrument variant; everything else is kept opaquely in
// the synth config so nothing the file says is lost.
func (f *Format) parseINS2(d []byte, ptr, index int, samples []*song.Instrument) (*song.Instrument, error) {
	r, end, err := openBlock(d, ptr, "INS2")
	if err != nil {
		return nil, err
	}
	r.Skip(2) // format version
	typ := r.U16LE()

	var (
		name      string
		macros    []song.Macro
		config    []byte
		sampleIdx = -1
	)

	for r.Pos()+4 <= end {
		code := string(r.Bytes(2))
		if code == "EN" {
			break
		}
		flen := r.U16LE()
		body := r.Bytes(flen)
		if r.Truncated() {
			return nil, format.Malformed("fur", ptr, "instrument %d: feature %q truncated", index+1, code)
		}
		switch code {
		case "NA":
			name = binio.NewReader(body).CString()
		case "MA":
			macros, err = parseMacros(body)
			if err != nil {
				return nil, format.Malformed("fur", ptr, "instrument %d: %v", index+1, err)
			}
		case "SM":
			sampleIdx = binio.NewReader(body).U16LE()
		default:
			// Unknown feature: keep the raw block, header included.
			config = append(config, code...)
			config = append(config, byte(flen), byte(flen>>8))
			config = append(config, body...)
			f.log.Debug("retaining opaque instrument feature", "feature", code, "bytes", flen)
		}
	}

	name = song.InstrumentName(name, index+1)

	if sampleIdx >= 0 {
		if sampleIdx >= len(samples) {
			return nil, format.Malformed("fur", ptr, "instrument %d binds sample %d of %d", index+1, sampleIdx, len(samples))
		}
		bound := samples[sampleIdx]
		return &song.Instrument{
			Name:   name,
			Kind:   song.KindSample,
			Sample: bound.Sample,
		}, nil
	}

	return &song.Instrument{
		Name: name,
		Kind: song.KindSynth,
		Synth: &song.SynthData{
			Engine: engineName(typ),
			Macros: macros,
			Config: config,
		},
	}, nil
}

// Macro word sizes, from the top two bits of the macro's open/type byte.
func macroWordSize(open int) int {
	switch open >> 6 {
	case 2:
		return 2
	case 3:
		return 4
	default:
		return 1
	}
}

const macroListEnd = 255

// parseMacros decodes the MA feature body: a u16 header length, then
// macros terminated by code 255. Values are stored per the word size
// declared in each macro's open byte.
func parseMacros(body []byte) ([]song.Macro, error) {
	r := binio.NewReader(body)
	r.Skip(2) // header length

	var macros []song.Macro
	for {
		code := r.U8()
		if code == macroListEnd || r.Truncated() {
			break
		}
		length := r.U8()
		loop := r.U8()
		release := r.U8()
		r.Skip(1) // mode
		open := r.U8()
		delay := r.U8()
		speed := r.U8()

		m := song.Macro{
			Code:    code,
			Loop:    loopPoint(loop),
			Release: loopPoint(release),
			Delay:   delay,
			Speed:   speed,
		}
		word := macroWordSize(open)
		for i := 0; i < length; i++ {
			var v int
			switch word {
			case 4:
				v = int(int32(uint32(r.U32LE())))
			case 2:
				v = r.S16LE()
			default:
				v = r.S8()
			}
			m.Values = append(m.Values, v)
		}
		if r.Truncated() {
			return nil, format.Malformed("fur", 0, "macro %d truncated", code)
		}
		macros = append(macros, m)
	}
	return macros, nil
}

// loopPoint maps the on-disk "255 = none" convention to the model's -1.
func loopPoint(v int) int {
	if v == 255 {
		return -1
	}
	return v
}

// parseINST decodes the legacy monolithic instrument block: name and type
// up front, the rest carried as opaque engine config.
func (f *Format) parseINST(d []byte, ptr, index int) (*song.Instrument, error) {
	r, end, err := openBlock(d, ptr, "INST")
	if err != nil {
		return nil, err
	}
	r.Skip(2) // format version
	typ := r.U8()
	r.Skip(1)
	name := r.CString()
	if r.Truncated() {
		return nil, format.Malformed("fur", ptr, "instrument %d truncated", index+1)
	}

	var config []byte
	if rest := end - r.Pos(); rest > 0 {
		config = append([]byte(nil), r.Bytes(rest)...)
	}

	return &song.Instrument{
		Name: song.InstrumentName(name, index+1),
		Kind: song.KindSynth,
		Synth: &song.SynthData{
			Engine: engineName(typ),
			Config: config,
		},
	}, nil
}
