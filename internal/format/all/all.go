// Package all wires every importer into one registry. Order matters:
// unambiguous magic strings come first, and the magic-less SoundTracker
// heuristic goes last so it can never shadow a real signature.
package all

import (
	"github.com/spotUP/DEViLBOX-sub001/internal/format"
	"github.com/spotUP/DEViLBOX-sub001/internal/format/abk"
	"github.com/spotUP/DEViLBOX-sub001/internal/format/ahx"
	"github.com/spotUP/DEViLBOX-sub001/internal/format/fur"
	"github.com/spotUP/DEViLBOX-sub001/internal/format/mod"
	"github.com/spotUP/DEViLBOX-sub001/internal/format/okt"
	"github.com/spotUP/DEViLBOX-sub001/internal/format/tfmx"
)

// Formats returns the full importer roster in detection priority order.
func Formats() []format.Format {
	return []format.Format{
		fur.New(),
		okt.New(),
		ahx.New(),
		tfmx.New(),
		abk.New(),
		mod.New(),
		mod.NewSoundTracker(),
	}
}

// NewRegistry builds a registry over the full roster.
func NewRegistry(opts ...format.Option) *format.Registry {
	return format.NewRegistry(Formats(), opts...)
}
