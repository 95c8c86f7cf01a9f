// Package binio holds the byte-level primitives shared by all format
// parsers: bounds-checked big/little-endian reads, IFF-style chunk walking
// and the variable-length signed index codec. Everything here operates on a
// plain []byte; nothing reads past the end of the buffer.
package binio

import "math"

// Reader is a forward cursor over a byte buffer. Reads past the end return
// zero and set the truncated flag instead of panicking, so parsers can
// bounds-check once at a structural level and report a single malformed
// offset.
type Reader struct {
	data      []byte
	pos       int
	truncated bool
}

// NewReader wraps data with the cursor at offset 0.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Pos returns the current cursor offset.
func (r *Reader) Pos() int { return r.pos }

// Len returns the total buffer length.
func (r *Reader) Len() int { return len(r.data) }

// Remaining returns the bytes left to read.
func (r *Reader) Remaining() int {
	if r.pos >= len(r.data) {
		return 0
	}
	return len(r.data) - r.pos
}

// Truncated reports whether any read ran off the end of the buffer.
func (r *Reader) Truncated() bool { return r.truncated }

// Seek moves the cursor to an absolute offset. Seeking past the end pins the
// cursor there and marks the reader truncated.
func (r *Reader) Seek(off int) {
	if off < 0 {
		off = 0
	}
	if off > len(r.data) {
		off = len(r.data)
		r.truncated = true
	}
	r.pos = off
}

// Skip advances the cursor by n bytes.
func (r *Reader) Skip(n int) { r.Seek(r.pos + n) }

func (r *Reader) take(n int) []byte {
	if r.pos+n > len(r.data) {
		r.truncated = true
		r.pos = len(r.data)
		return nil
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b
}

// U8 reads one byte.
func (r *Reader) U8() int {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return int(b[0])
}

// S8 reads one signed byte.
func (r *Reader) S8() int {
	return int(int8(r.U8()))
}

// U16BE reads a big-endian 16-bit value.
func (r *Reader) U16BE() int {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return int(b[0])<<8 | int(b[1])
}

// U16LE reads a little-endian 16-bit value.
func (r *Reader) U16LE() int {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return int(b[0]) | int(b[1])<<8
}

// S16LE reads a little-endian signed 16-bit value.
func (r *Reader) S16LE() int {
	return int(int16(r.U16LE()))
}

// U32BE reads a big-endian 32-bit value.
func (r *Reader) U32BE() int {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return int(b[0])<<24 | int(b[1])<<16 | int(b[2])<<8 | int(b[3])
}

// U32LE reads a little-endian 32-bit value.
func (r *Reader) U32LE() int {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return int(b[0]) | int(b[1])<<8 | int(b[2])<<16 | int(b[3])<<24
}

// F32LE reads a little-endian IEEE-754 float.
func (r *Reader) F32LE() float64 {
	bits := uint32(r.U32LE())
	return float64(math.Float32frombits(bits))
}

// Bytes reads n raw bytes. The returned slice aliases the input buffer.
func (r *Reader) Bytes(n int) []byte {
	return r.take(n)
}

// FixedString reads n bytes and trims trailing NULs and spaces.
func (r *Reader) FixedString(n int) string {
	b := r.take(n)
	if b == nil {
		return ""
	}
	end := len(b)
	for end > 0 && (b[end-1] == 0 || b[end-1] == ' ') {
		end--
	}
	// Some editors pad names with NULs in the middle too; cut at the first.
	for i := 0; i < end; i++ {
		if b[i] == 0 {
			return string(b[:i])
		}
	}
	return string(b[:end])
}

// CString reads a NUL-terminated string and consumes the terminator. A
// missing terminator consumes the rest of the buffer.
func (r *Reader) CString() string {
	start := r.pos
	for r.pos < len(r.data) && r.data[r.pos] != 0 {
		r.pos++
	}
	s := string(r.data[start:r.pos])
	if r.pos < len(r.data) {
		r.pos++ // terminator
	} else {
		r.truncated = true
	}
	return s
}
