// Package pcm builds canonical sampler instruments out of the raw PCM
// conventions the source formats use: byte or word counted lengths, signed
// or unsigned payloads, leading-byte trims, and the format-specific loop
// sentinels for "no loop" and "loop everything".
package pcm

import (
	"fmt"

	"github.com/spotUP/DEViLBOX-sub001/internal/song"
)

// LoopKind is the caller's explicit statement about the loop field. The
// zero values some formats write mean "no loop" and in others mean "loop the
// whole payload"; the parser must resolve its own sentinel and say which.
type LoopKind int

const (
	LoopNone LoopKind = iota
	LoopForward
	LoopPingPong
	// LoopAll loops the entire payload regardless of the window fields.
	LoopAll
)

// Unit says what the loop window fields count in.
type Unit int

const (
	Bytes Unit = iota
	// Words doubles loop figures: the source format counts 16-bit words.
	Words
)

// Spec describes one raw sample as the source format stored it.
type Spec struct {
	Name string
	Data []byte
	Rate int

	SixteenBit bool
	Unsigned   bool // payload is unsigned and needs recentering

	Volume int // 0..64; out-of-range values clamp

	Loop      LoopKind
	LoopUnit  Unit
	LoopStart int
	LoopLen   int

	// TrimStart drops leading payload bytes (a data start offset). Loop
	// points shift down by the same amount before clipping.
	TrimStart int
}

// Build normalizes spec into a canonical sample instrument.
func Build(spec Spec) (*song.Instrument, error) {
	data := spec.Data
	if spec.TrimStart > 0 {
		if spec.TrimStart >= len(data) {
			data = nil
		} else {
			data = data[spec.TrimStart:]
		}
	}

	if spec.SixteenBit && len(data)%2 != 0 {
		return nil, fmt.Errorf("16-bit sample %q has odd payload length %d", spec.Name, len(data))
	}

	pcm := data
	if spec.Unsigned {
		pcm = recenter(data, spec.SixteenBit)
	} else {
		// Parsers hand in sub-slices of the input buffer; the model owns
		// its bytes.
		pcm = append([]byte(nil), data...)
	}

	vol := spec.Volume
	if vol < 0 {
		vol = 0
	}
	if vol > 64 {
		vol = 64
	}

	s := &song.SampleData{
		PCM:        pcm,
		SixteenBit: spec.SixteenBit,
		Rate:       spec.Rate,
		Volume:     vol,
	}

	frames := s.Frames()
	switch spec.Loop {
	case LoopNone:
		// leave window zeroed
	case LoopAll:
		if frames > 0 {
			s.Loop = song.LoopForward
			s.LoopStart = 0
			s.LoopEnd = frames
		}
	case LoopForward, LoopPingPong:
		start, end := loopWindow(spec, frames)
		if end > start {
			if spec.Loop == LoopPingPong {
				s.Loop = song.LoopPingPong
			} else {
				s.Loop = song.LoopForward
			}
			s.LoopStart = start
			s.LoopEnd = end
		}
	}

	return &song.Instrument{
		Name:   spec.Name,
		Kind:   song.KindSample,
		Sample: s,
	}, nil
}

// loopWindow converts the spec's loop figures to a clipped frame window.
func loopWindow(spec Spec, frames int) (int, int) {
	start := spec.LoopStart
	length := spec.LoopLen
	if spec.LoopUnit == Words {
		start *= 2
		length *= 2
	}

	// Loop points are byte offsets into the untrimmed payload.
	start -= spec.TrimStart
	if start < 0 {
		length += start
		start = 0
	}

	if spec.SixteenBit {
		start /= 2
		length /= 2
	}

	end := start + length
	if start > frames {
		start = frames
	}
	if end > frames {
		end = frames
	}
	return start, end
}

// recenter converts unsigned PCM to the signed canonical form.
func recenter(data []byte, sixteenBit bool) []byte {
	out := make([]byte, len(data))
	if sixteenBit {
		for i := 0; i+1 < len(data); i += 2 {
			v := int(data[i]) | int(data[i+1])<<8
			v -= 32768
			out[i] = byte(v)
			out[i+1] = byte(v >> 8)
		}
		return out
	}
	for i, b := range data {
		out[i] = b ^ 0x80
	}
	return out
}
