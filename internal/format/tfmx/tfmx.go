// Package tfmx recognizes TFMX song files. The payload alone is ambiguous
// with other "TFMX"-prefixed containers, so detection also requires the
// conventional "mdat." filename prefix, a deliberate heuristic inherited
// from the Amiga ecosystem, where the paired sample file carries the same
// name under an "smpl." prefix.
//
// TFMX playback is driven by a macro language the native replayer
// interprets; the importer transcribes the header metadata and subsong
// table and hands the whole file through as the native-playback payload.
package tfmx

import (
	"fmt"
	"strings"

	"github.com/spotUP/DEViLBOX-sub001/internal/binio"
	"github.com/spotUP/DEViLBOX-sub001/internal/format"
	"github.com/spotUP/DEViLBOX-sub001/internal/song"
)

const (
	textOffset   = 0x10
	textLines    = 6
	textLineLen  = 40
	startTable   = 0x100
	endTable     = 0x140
	tempoTable   = 0x180
	headerNeeded = 0x1D0
	maxSubsongs  = 32
	filenameHint = "mdat."
	packedMagic  = "TFHD"
)

type Format struct{}

func New() *Format { return &Format{} }

func (*Format) Name() string { return "tfmx" }

func (*Format) Detect(data []byte, filename string) bool {
	base := strings.ToLower(baseName(filename))
	if !strings.HasPrefix(base, filenameHint) {
		return false
	}
	if len(data) < headerNeeded {
		return false
	}
	head := string(data[:4])
	return head == "TFMX" || head == packedMagic
}

func (f *Format) Parse(data []byte, filename string) (*song.Song, error) {
	name := f.Name()

	if string(data[:4]) == packedMagic {
		// The packed one-file variant bundles samples and song; it is
		// deferred entirely to the native player stack.
		return nil, format.Unsupported(name, "packed TFHD variant is not decoded")
	}

	r := binio.NewReader(data)
	r.Seek(textOffset)
	var lines []string
	for i := 0; i < textLines; i++ {
		if line := r.FixedString(textLineLen); line != "" {
			lines = append(lines, line)
		}
	}
	title := ""
	if len(lines) > 0 {
		title = lines[0]
	}

	var subsongs []song.Subsong
	for i := 0; i < maxSubsongs; i++ {
		r.Seek(startTable + i*2)
		start := r.U16BE()
		r.Seek(endTable + i*2)
		end := r.U16BE()
		r.Seek(tempoTable + i*2)
		tempo := r.U16BE()

		if i > 0 && start == 0 && end == 0 {
			break
		}
		if end < start {
			continue
		}
		subsongs = append(subsongs, song.Subsong{
			Name:       subsongName(lines, i),
			StartOrder: start,
			EndOrder:   end,
			Tempo:      tempo,
		})
	}
	if len(subsongs) == 0 {
		return nil, format.Malformed(name, startTable, "no playable subsongs in table")
	}

	s := &song.Song{
		Name:       title,
		Format:     name,
		Channels:   4,
		Tempo:      125,
		Speed:      6,
		PitchMode:  song.PitchAmiga,
		Subsongs:   subsongs,
		NativeBlob: append([]byte(nil), data...),
		Provenance: song.Provenance{
			SourceFormat: name,
			SourceFile:   filename,
			OrigChannels: 4,
		},
	}
	if s.Name == "" {
		s.Name = baseName(filename)
	}
	return s, nil
}

func subsongName(lines []string, i int) string {
	if i+1 < len(lines) {
		return lines[i+1]
	}
	return fmt.Sprintf("Song %d", i+1)
}

func baseName(filename string) string {
	for i := len(filename) - 1; i >= 0; i-- {
		switch filename[i] {
		case '/', '\\':
			return filename[i+1:]
		}
	}
	return filename
}
