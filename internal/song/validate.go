package song

import "fmt"

// Validate checks the structural invariants every parser must uphold before
// handing a Song to a caller. It returns a descriptive error naming the
// first violation, or nil.
func (s *Song) Validate() error {
	if len(s.Patterns) == 0 {
		// Native-only songs carry no structural transcription.
		if len(s.NativeBlob) == 0 {
			return fmt.Errorf("song %q has no patterns and no native payload", s.Name)
		}
		if len(s.SongPositions) != 0 {
			return fmt.Errorf("song %q has positions but no patterns", s.Name)
		}
		if s.RestartPosition != 0 {
			return fmt.Errorf("song %q: restart position %d with empty order list", s.Name, s.RestartPosition)
		}
		return nil
	}

	for i, pos := range s.SongPositions {
		if pos < 0 || pos >= len(s.Patterns) {
			return fmt.Errorf("position %d references pattern %d of %d", i, pos, len(s.Patterns))
		}
	}
	if s.RestartPosition < 0 || s.RestartPosition >= len(s.SongPositions) {
		return fmt.Errorf("restart position %d outside order list of %d", s.RestartPosition, len(s.SongPositions))
	}
	if s.Channels < 1 {
		return fmt.Errorf("song %q has %d channels", s.Name, s.Channels)
	}

	for _, p := range s.Patterns {
		if err := p.validate(len(s.Instruments)); err != nil {
			return err
		}
	}

	for i, ins := range s.Instruments {
		if err := ins.validate(); err != nil {
			return fmt.Errorf("instrument %d (%q): %w", i+1, ins.Name, err)
		}
	}
	return nil
}

func (p *Pattern) validate(numInstruments int) error {
	if p.Length < 1 {
		return fmt.Errorf("pattern %d has length %d", p.ID, p.Length)
	}
	for _, ch := range p.Channels {
		if len(ch.Cells) != p.Length {
			return fmt.Errorf("pattern %d channel %d: %d cells for %d rows", p.ID, ch.ID, len(ch.Cells), p.Length)
		}
		for row := range ch.Cells {
			c := &ch.Cells[row]
			if c.Note < NoteEmpty || c.Note > NoteMacroRelease {
				return fmt.Errorf("pattern %d channel %d row %d: note %d out of range", p.ID, ch.ID, row, c.Note)
			}
			if c.Instrument < 0 || c.Instrument > numInstruments {
				return fmt.Errorf("pattern %d channel %d row %d: instrument %d of %d", p.ID, ch.ID, row, c.Instrument, numInstruments)
			}
		}
	}
	return nil
}

func (ins *Instrument) validate() error {
	switch ins.Kind {
	case KindSample:
		if ins.Sample == nil {
			return fmt.Errorf("sample variant without sample data")
		}
		s := ins.Sample
		if s.Volume < 0 || s.Volume > 64 {
			return fmt.Errorf("volume %d outside 0..64", s.Volume)
		}
		if s.Loop != LoopNone {
			if s.LoopStart > s.LoopEnd || s.LoopEnd > s.Frames() {
				return fmt.Errorf("loop [%d,%d) outside %d frames", s.LoopStart, s.LoopEnd, s.Frames())
			}
		}
	case KindSynth:
		if ins.Synth == nil {
			return fmt.Errorf("synth variant without engine data")
		}
		if ins.Synth.Engine == "" {
			return fmt.Errorf("synth variant with unnamed engine")
		}
	default:
		return fmt.Errorf("unknown instrument kind %d", ins.Kind)
	}
	return nil
}
