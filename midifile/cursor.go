package midifile

import (
	"go-seqfile/debug"
)

// Cursor is a bounds-checked forward reader over an in-memory file buffer.
// Reads past the end return zero and set a sticky truncation flag instead of
// panicking; only the first overrun is logged so a garbage file cannot flood
// the log. SMF multi-byte reads are big-endian; the LE variants exist solely
// for WRK chunk bodies, which are little-endian.
type Cursor struct {
	data      []byte
	pos       int
	truncated bool
}

// NewCursor wraps a byte buffer.
func NewCursor(data []byte) *Cursor {
	return &Cursor{data: data}
}

// Pos returns the current read offset.
func (c *Cursor) Pos() int { return c.pos }

// Len returns the total buffer length.
func (c *Cursor) Len() int { return len(c.data) }

// EOF reports whether the cursor is at or past the end.
func (c *Cursor) EOF() bool { return c.pos >= len(c.data) }

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int {
	if c.EOF() {
		return 0
	}
	return len(c.data) - c.pos
}

// Truncated reports whether any read ran past the end of the buffer.
func (c *Cursor) Truncated() bool { return c.truncated }

// Seek moves the cursor to an absolute offset, clamped to the buffer.
func (c *Cursor) Seek(pos int) {
	if pos < 0 {
		pos = 0
	}
	if pos > len(c.data) {
		pos = len(c.data)
	}
	c.pos = pos
}

// SeekBack rewinds by n bytes. Used by the legacy-count recovery path.
func (c *Cursor) SeekBack(n int) {
	c.Seek(c.pos - n)
}

// Skip advances past n bytes without reading them.
func (c *Cursor) Skip(n int) {
	if n < 0 {
		return
	}
	if c.pos+n > len(c.data) {
		c.overrun()
		c.pos = len(c.data)
		return
	}
	c.pos += n
}

func (c *Cursor) overrun() {
	if !c.truncated {
		debug.Log("midifile", "read past end of buffer at offset %d (length %d)", c.pos, len(c.data))
	}
	c.truncated = true
}

// ReadU8 reads one byte.
func (c *Cursor) ReadU8() byte {
	if c.pos >= len(c.data) {
		c.overrun()
		return 0
	}
	b := c.data[c.pos]
	c.pos++
	return b
}

// PeekU8 returns the next byte without consuming it. This is the one-token
// lookahead the running-status decode relies on.
func (c *Cursor) PeekU8() byte {
	if c.pos >= len(c.data) {
		c.overrun()
		return 0
	}
	return c.data[c.pos]
}

// ReadU16 reads a big-endian 16-bit value.
func (c *Cursor) ReadU16() uint16 {
	hi := uint16(c.ReadU8())
	lo := uint16(c.ReadU8())
	return hi<<8 | lo
}

// ReadU24 reads a big-endian 24-bit value (Set Tempo payloads).
func (c *Cursor) ReadU24() uint32 {
	v := uint32(c.ReadU8()) << 16
	v |= uint32(c.ReadU8()) << 8
	v |= uint32(c.ReadU8())
	return v
}

// ReadU32 reads a big-endian 32-bit value.
func (c *Cursor) ReadU32() uint32 {
	v := uint32(c.ReadU8()) << 24
	v |= uint32(c.ReadU8()) << 16
	v |= uint32(c.ReadU8()) << 8
	v |= uint32(c.ReadU8())
	return v
}

// ReadU16LE reads a little-endian 16-bit value (WRK only).
func (c *Cursor) ReadU16LE() uint16 {
	lo := uint16(c.ReadU8())
	hi := uint16(c.ReadU8())
	return hi<<8 | lo
}

// ReadU24LE reads a little-endian 24-bit value (WRK event times).
func (c *Cursor) ReadU24LE() uint32 {
	v := uint32(c.ReadU8())
	v |= uint32(c.ReadU8()) << 8
	v |= uint32(c.ReadU8()) << 16
	return v
}

// ReadU32LE reads a little-endian 32-bit value (WRK chunk lengths).
func (c *Cursor) ReadU32LE() uint32 {
	v := uint32(c.ReadU8())
	v |= uint32(c.ReadU8()) << 8
	v |= uint32(c.ReadU8()) << 16
	v |= uint32(c.ReadU8()) << 24
	return v
}

// ReadBytes returns a copy of the next n bytes, or as many as remain.
func (c *Cursor) ReadBytes(n int) []byte {
	if n <= 0 {
		return nil
	}
	if c.pos+n > len(c.data) {
		c.overrun()
		n = len(c.data) - c.pos
		if n <= 0 {
			return nil
		}
	}
	out := make([]byte, n)
	copy(out, c.data[c.pos:c.pos+n])
	c.pos += n
	return out
}

// Writer is the deferred-write output side: a growable big-endian byte sink.
type Writer struct {
	buf []byte
}

// Bytes returns the accumulated output.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

// PutU8 appends one byte.
func (w *Writer) PutU8(b byte) {
	w.buf = append(w.buf, b)
}

// PutU16 appends a big-endian 16-bit value.
func (w *Writer) PutU16(v uint16) {
	w.buf = append(w.buf, byte(v>>8), byte(v))
}

// PutU24 appends a big-endian 24-bit value.
func (w *Writer) PutU24(v uint32) {
	w.buf = append(w.buf, byte(v>>16), byte(v>>8), byte(v))
}

// PutU32 appends a big-endian 32-bit value.
func (w *Writer) PutU32(v uint32) {
	w.buf = append(w.buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// PutBytes appends a byte slice verbatim.
func (w *Writer) PutBytes(b []byte) {
	w.buf = append(w.buf, b...)
}
