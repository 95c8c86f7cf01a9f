package binio

// Chunk is one tagged block of an IFF-style container: a 4-byte tag, a
// 32-bit big-endian length, then the payload, padded to an even offset.
type Chunk struct {
	Tag    string
	Offset int // offset of the payload within the walked buffer
	Data   []byte
}

// Truncated reports whether the chunk's declared length ran past the end of
// the buffer and Data was clamped.
func (c *Chunk) Truncated(declared int) bool { return len(c.Data) < declared }

// WalkChunks iterates tag/length/payload blocks starting at data[0] and
// calls fn for each. A declared length past the end of the buffer is clamped
// to what remains; the walk then stops. fn returning false stops the walk
// early. Chunks may appear in any order; callers dispatch on tag.
func WalkChunks(data []byte, fn func(c Chunk) bool) {
	pos := 0
	for pos+8 <= len(data) {
		tag := string(data[pos : pos+4])
		length := int(data[pos+4])<<24 | int(data[pos+5])<<16 | int(data[pos+6])<<8 | int(data[pos+7])
		pos += 8

		end := pos + length
		clamped := false
		if length < 0 || end > len(data) {
			end = len(data)
			clamped = true
		}

		if !fn(Chunk{Tag: tag, Offset: pos, Data: data[pos:end]}) {
			return
		}
		if clamped {
			return
		}

		pos = end
		if pos&1 == 1 { // word alignment
			pos++
		}
	}
}

// FindChunk walks data for the first chunk with the given tag.
func FindChunk(data []byte, tag string) (Chunk, bool) {
	var found Chunk
	ok := false
	WalkChunks(data, func(c Chunk) bool {
		if c.Tag == tag {
			found = c
			ok = true
			return false
		}
		return true
	})
	return found, ok
}
