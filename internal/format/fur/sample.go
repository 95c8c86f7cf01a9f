package fur

import (
	"github.com/spotUP/DEViLBOX-sub001/internal/format"
	"github.com/spotUP/DEViLBOX-sub001/internal/pcm"
	"github.com/spotUP/DEViLBOX-sub001/internal/song"
)

const loopNone = 0xFFFFFFFF

// parseSample decodes one SMP2 block into a canonical sample instrument.
func (f *Format) parseSample(d []byte, ptr, index int) (*song.Instrument, error) {
	r, _, err := openBlock(d, ptr, "SMP2")
	if err != nil {
		return nil, err
	}

	name := r.CString()
	frames := r.U32LE()
	r.Skip(4) // compatibility rate
	rate := r.U32LE()
	depth := r.U8()
	direction := r.U8()
	r.Skip(2) // flags
	loopStart := r.U32LE()
	loopEnd := r.U32LE()
	r.Skip(16) // chip memory flags
	if r.Truncated() {
		return nil, format.Malformed("fur", ptr, "sample %d header truncated", index+1)
	}

	var sixteen bool
	switch depth {
	case 8:
	case 16:
		sixteen = true
	default:
		return nil, format.Unsupported("fur", "sample %d depth %d", index+1, depth)
	}

	byteLen := frames
	bytesPerFrame := 1
	if sixteen {
		byteLen *= 2
		bytesPerFrame = 2
	}
	payload := r.Bytes(byteLen)
	if r.Truncated() {
		return nil, format.Malformed("fur", ptr, "sample %d payload truncated", index+1)
	}

	loop := pcm.LoopNone
	if loopStart != loopNone && loopEnd > loopStart {
		if direction == 2 {
			loop = pcm.LoopPingPong
		} else {
			loop = pcm.LoopForward
		}
	}

	return pcm.Build(pcm.Spec{
		Name:       song.InstrumentName(name, index+1),
		Data:       payload,
		Rate:       rate,
		SixteenBit: sixteen,
		Volume:     64,
		Loop:       loop,
		LoopStart:  loopStart * bytesPerFrame,
		LoopLen:    (loopEnd - loopStart) * bytesPerFrame,
	})
}
