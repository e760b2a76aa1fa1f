package midifile

// MaxVarint is the largest value the MIDI variable-length quantity can
// carry: 28 bits, four 7-bit groups.
const MaxVarint = 0x0FFFFFFF

// ReadVarint decodes a MIDI variable-length quantity: 7 bits per byte, high
// bit set on every byte except the last.
func ReadVarint(c *Cursor) uint32 {
	var v uint32
	for {
		b := c.ReadU8()
		v = v<<7 | uint32(b&0x7F)
		if b&0x80 == 0 {
			return v
		}
	}
}

// VarintLen returns the encoded byte count for a value: 1 below 0x80, 2
// below 0x4000, 3 below 0x200000, 4 below 0x10000000.
func VarintLen(v uint32) int {
	switch {
	case v < 0x80:
		return 1
	case v < 0x4000:
		return 2
	case v < 0x200000:
		return 3
	default:
		return 4
	}
}

// AppendVarint appends the variable-length encoding of v. Values above
// MaxVarint are a caller bug; callers validate lengths before encoding.
func AppendVarint(dst []byte, v uint32) []byte {
	v &= MaxVarint
	n := VarintLen(v)
	for i := n - 1; i >= 1; i-- {
		dst = append(dst, byte(v>>(7*uint(i)))|0x80)
	}
	return append(dst, byte(v&0x7F))
}
