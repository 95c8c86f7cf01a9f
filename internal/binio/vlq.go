package binio

// Variable-length signed integer codec used by the AMOS-style bank tables.
// The first byte holds a sign bit (0x80), a continuation bit (0x40) and six
// value bits; each continuation byte holds a continuation bit (0x80) and
// seven more value bits, most significant first.

// vlqMaxShifts bounds the read so a corrupt run of continuation bits cannot
// walk the whole buffer.
const vlqMaxShifts = 4

// ReadVLQ decodes one compressed index at pos and returns the value and the
// new cursor. Index fields are read speculatively while scanning, so a
// cursor at or past the end of the buffer decodes to zero with the cursor
// unchanged, and a sequence truncated mid-continuation yields the bits read
// so far with the cursor left at end-of-buffer.
func ReadVLQ(data []byte, pos int) (int, int) {
	if pos < 0 || pos >= len(data) {
		return 0, pos
	}

	b := data[pos]
	pos++
	negative := b&0x80 != 0
	value := int(b & 0x3F)
	more := b&0x40 != 0

	for shifts := 0; more && shifts < vlqMaxShifts; shifts++ {
		if pos >= len(data) {
			break
		}
		b = data[pos]
		pos++
		value = value<<7 | int(b&0x7F)
		more = b&0x80 != 0
	}

	if negative {
		value = -value
	}
	return value, pos
}

// AppendVLQ encodes value with the same scheme, used by tests and fixture
// builders.
func AppendVLQ(dst []byte, value int) []byte {
	sign := byte(0)
	if value < 0 {
		sign = 0x80
		value = -value
	}

	// n continuation bytes carry 7 bits each below the first byte's six.
	n := 0
	for n < vlqMaxShifts && value>>(6+7*n) != 0 {
		n++
	}

	first := sign | byte(value>>(7*n))&0x3F
	if n > 0 {
		first |= 0x40
	}
	dst = append(dst, first)
	for i := n - 1; i >= 0; i-- {
		b := byte(value>>(7*i)) & 0x7F
		if i > 0 {
			b |= 0x80
		}
		dst = append(dst, b)
	}
	return dst
}
