package song

import "fmt"

// Placeholder names for metadata the source file does not carry. Absence of
// optional metadata is expected, not an error, so these are deterministic.

// InstrumentName returns name, or "Sample N" when name is empty.
func InstrumentName(name string, n int) string {
	if name != "" {
		return name
	}
	return fmt.Sprintf("Sample %d", n)
}

// PatternName returns name, or "Pattern N" when name is empty.
func PatternName(name string, n int) string {
	if name != "" {
		return name
	}
	return fmt.Sprintf("Pattern %d", n)
}

// ChannelName returns name, or "Channel N" when name is empty.
func ChannelName(name string, n int) string {
	if name != "" {
		return name
	}
	return fmt.Sprintf("Channel %d", n)
}

// NewPattern allocates a pattern with rows×channels empty cells and
// placeholder channel names.
func NewPattern(id, rows, channels int) *Pattern {
	p := &Pattern{
		ID:       id,
		Name:     PatternName("", id),
		Length:   rows,
		Channels: make([]*ChannelData, channels),
	}
	for ch := 0; ch < channels; ch++ {
		p.Channels[ch] = &ChannelData{
			ID:            ch,
			Name:          ChannelName("", ch+1),
			DefaultVolume: 64,
			Cells:         make([]Cell, rows),
		}
	}
	return p
}
