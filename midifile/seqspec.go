package midifile

import (
	"go-seqfile/debug"
	"go-seqfile/perform"
)

// Sequencer-specific control tags. Most appear in the proprietary footer;
// the per-sequence ones (bus, channel, triggers, musical overrides) also
// appear inside tracks wrapped as FF 7F meta events.
const (
	tagMidiBus         uint32 = 0x24240001
	tagMidiChannel     uint32 = 0x24240002
	tagMidiClocks      uint32 = 0x24240003
	tagTriggers        uint32 = 0x24240004
	tagNotes           uint32 = 0x24240005
	tagTimeSig         uint32 = 0x24240006
	tagBPM             uint32 = 0x24240007
	tagTriggersNew     uint32 = 0x24240008
	tagMuteGroups      uint32 = 0x24240009
	tagMidiControl     uint32 = 0x24240010
	tagMusicKey        uint32 = 0x24240011
	tagMusicScale      uint32 = 0x24240012
	tagBackSequence    uint32 = 0x24240013
	tagTranspose       uint32 = 0x24240014
	tagPerfBeatsPerBar uint32 = 0x24240015
	tagPerfBeatWidth   uint32 = 0x24240016
	tagTempoTrack      uint32 = 0x24240017
	tagSeqColor        uint32 = 0x24240018
)

// footerTrackName names the synthetic footer track in the new format.
const footerTrackName = "go-seqfile-data"

// footerSeqNumber is the bogus-but-recognized sequence number that marks the
// synthetic footer track.
const footerSeqNumber = 0x3FFF

// muteGroupFlags is the flat size of the mute-group table on the wire.
const muteGroupFlags = perform.MuteGroupCount * perform.SeqsPerScreenSet

// maxPlausibleControls bounds the control-section count; anything above it
// is the known legacy writer bug (see readCountWithRecovery).
const maxPlausibleControls = perform.MaxSequences + 96

// readPropHeader reads one footer entry header. New-format entries look like
// a meta event (00 FF 7F <varint len> <tag>); legacy entries are a bare
// tag. Returns the tag and the payload length, or -1 when the length is
// implied by the tag's own structure (legacy format).
func readPropHeader(c *Cursor) (tag uint32, payloadLen int) {
	v := c.ReadU32()
	if v&0xFFFFFF00 == 0x00FF7F00 {
		c.SeekBack(1) // the last byte was the start of the length varint
		n := int(ReadVarint(c))
		return c.ReadU32(), n - 4
	}
	return v, -1
}

// expectTag looks for one expected footer tag at the cursor. Footer entries
// come in a fixed order but any of them may be absent in older files, so a
// mismatch just rewinds and lets the caller try the next expected tag.
func expectTag(c *Cursor, want uint32) (payloadLen int, ok bool) {
	if c.Remaining() < 4 {
		return 0, false
	}
	start := c.Pos()
	tag, plen := readPropHeader(c)
	if tag != want {
		c.Seek(start)
		return 0, false
	}
	return plen, true
}

// readCountWithRecovery reads a 4-byte count that a known-buggy old writer
// sometimes emitted out of range. An implausible value means the count was
// really a single byte: back up the whole read and take one byte instead.
func readCountWithRecovery(c *Cursor, max int) int {
	n := int(c.ReadU32())
	if n > max {
		c.SeekBack(4)
		n = int(c.ReadU8())
	}
	return n
}

// decodeFooter parses the proprietary trailing section into the performance.
// Partial footers are normal (older writers), so every tag is independently
// optional. Tag-level problems are recovered by skipping; they never abort
// the parse.
func (d *Decoder) decodeFooter(c *Cursor, p *perform.Performance) error {
	if c.Remaining() < 4 {
		return nil
	}

	// New format frames the footer as a synthetic MTrk with a marker
	// sequence number and a fixed name; skip that preamble.
	if c.PeekU8() == 'M' {
		start := c.Pos()
		if c.ReadU32() == magicMTrk {
			c.ReadU32() // declared length; entries are self-describing
			d.skipFooterPreamble(c)
		} else {
			c.Seek(start)
		}
	}

	if plen, ok := expectTag(c, tagMidiControl); ok {
		d.readMidiControl(c, p, plen)
	}
	if plen, ok := expectTag(c, tagMidiClocks); ok {
		d.readMidiClocks(c, p, plen)
	}
	if plen, ok := expectTag(c, tagNotes); ok {
		d.readNotes(c, p, plen)
	}
	if _, ok := expectTag(c, tagBPM); ok {
		raw := c.ReadU32()
		bpm := float64(raw)
		// New writers scale by 1000 for sub-integer precision; the scaled
		// range starts past any legal plain BPM.
		if bpm > perform.MaxBPM {
			bpm /= perform.BPMScaleFactor
		}
		p.SetBPM(bpm)
	}
	if plen, ok := expectTag(c, tagMuteGroups); ok {
		d.readMuteGroups(c, p, plen)
	}
	if _, ok := expectTag(c, tagMusicKey); ok {
		p.MusicalKey = int(c.ReadU8())
	}
	if _, ok := expectTag(c, tagMusicScale); ok {
		p.MusicalScale = int(c.ReadU8())
	}
	if _, ok := expectTag(c, tagBackSequence); ok {
		p.BackgroundSequence = int(int32(c.ReadU32()))
	}
	if _, ok := expectTag(c, tagPerfBeatsPerBar); ok {
		if v := int(c.ReadU32()); v > 0 {
			p.BeatsPerBar = v
		}
	}
	if _, ok := expectTag(c, tagPerfBeatWidth); ok {
		if v := int(c.ReadU32()); v > 0 {
			p.BeatWidth = v
		}
	}
	if _, ok := expectTag(c, tagTempoTrack); ok {
		p.TempoTrack = int(c.ReadU32())
	}
	return nil
}

// skipFooterPreamble consumes the marker sequence-number and track-name meta
// events at the start of a new-format footer track, stopping at the first
// sequencer-specific entry (or End of Track).
func (d *Decoder) skipFooterPreamble(c *Cursor) {
	for !c.EOF() {
		start := c.Pos()
		ReadVarint(c) // delta, always 0 here
		if c.ReadU8() != perform.StatusMeta {
			c.Seek(start)
			return
		}
		mt := c.ReadU8()
		if mt == perform.MetaSeqSpec || mt == perform.MetaEndOfTrack {
			c.Seek(start)
			return
		}
		c.Skip(int(ReadVarint(c)))
	}
}

func (d *Decoder) readMidiControl(c *Cursor, p *perform.Performance, payloadLen int) {
	end := -1
	if payloadLen >= 0 {
		end = c.Pos() + payloadLen
	}
	count := readCountWithRecovery(c, maxPlausibleControls)
	for i := 0; i < count && !c.EOF(); i++ {
		ctrl := p.ControlFor(i)
		readControlSpec(c, &ctrl.Toggle)
		readControlSpec(c, &ctrl.On)
		readControlSpec(c, &ctrl.Off)
	}
	if end >= 0 {
		c.Seek(end)
	}
}

func readControlSpec(c *Cursor, spec *perform.ControlSpec) {
	spec.Active = c.ReadU8()
	spec.Inverse = c.ReadU8()
	spec.Status = c.ReadU8()
	spec.Data = c.ReadU8()
	spec.Min = c.ReadU8()
	spec.Max = c.ReadU8()
}

func (d *Decoder) readMidiClocks(c *Cursor, p *perform.Performance, payloadLen int) {
	end := -1
	if payloadLen >= 0 {
		end = c.Pos() + payloadLen
	}
	busses := readCountWithRecovery(c, perform.MaxBusses)
	for b := 0; b < busses && !c.EOF(); b++ {
		mode := c.ReadU8()
		if b < perform.MaxBusses {
			p.BusClockModes[b] = mode
		}
	}
	if end >= 0 {
		c.Seek(end)
	}
}

func (d *Decoder) readNotes(c *Cursor, p *perform.Performance, payloadLen int) {
	end := -1
	if payloadLen >= 0 {
		end = c.Pos() + payloadLen
	}
	sets := int(c.ReadU32())
	for s := 0; s < sets && !c.EOF(); s++ {
		n := int(c.ReadU16())
		text := string(c.ReadBytes(n))
		if s < perform.MaxScreenSets {
			p.Notes[s] = text
		}
	}
	if end >= 0 {
		c.Seek(end)
	}
}

func (d *Decoder) readMuteGroups(c *Cursor, p *perform.Performance, payloadLen int) {
	end := -1
	if payloadLen >= 0 {
		end = c.Pos() + payloadLen
	}
	flags := readCountWithRecovery(c, muteGroupFlags)
	groups := flags / perform.SeqsPerScreenSet
	if groups*perform.SeqsPerScreenSet != flags || groups > perform.MuteGroupCount {
		debug.Log("midifile", "mute-group table size %d not usable; section skipped", flags)
		if end >= 0 {
			c.Seek(end)
		}
		return
	}
	for g := 0; g < groups && !c.EOF(); g++ {
		group := int(c.ReadU32())
		for s := 0; s < perform.SeqsPerScreenSet; s++ {
			on := c.ReadU32() != 0
			if group >= 0 && group < perform.MuteGroupCount {
				p.MuteGroups[group][s] = on
			}
		}
	}
	if end >= 0 {
		c.Seek(end)
	}
}

// --- write side ---

// writePropTag emits one footer entry: wrapped as a meta event in the new
// format, bare tag+payload in the legacy format. One format is chosen per
// footer and used consistently.
func writePropTag(w *Writer, legacy bool, tag uint32, payload []byte) {
	if legacy {
		w.PutU32(tag)
		w.PutBytes(payload)
		return
	}
	w.PutU8(0)
	w.PutU8(perform.StatusMeta)
	w.PutU8(perform.MetaSeqSpec)
	w.buf = AppendVarint(w.buf, uint32(4+len(payload)))
	w.PutU32(tag)
	w.PutBytes(payload)
}

// encodeFooter emits the proprietary trailing section in the fixed tag
// order the reader expects.
func (e *Encoder) encodeFooter(w *Writer, p *perform.Performance) {
	legacy := e.opts.LegacyFormat
	body := &Writer{}

	if !legacy {
		// Marker sequence number and a fixed name make the synthetic track
		// recognizable (and harmless to other readers).
		body.PutBytes([]byte{0x00, perform.StatusMeta, perform.MetaSequenceNumber, 0x02})
		body.PutU16(footerSeqNumber)
		body.PutBytes([]byte{0x00, perform.StatusMeta, perform.MetaTrackName, byte(len(footerTrackName))})
		body.PutBytes([]byte(footerTrackName))
	}

	ctrl := &Writer{}
	ctrl.PutU32(uint32(len(p.Controls)))
	for i := range p.Controls {
		writeControlSpec(ctrl, &p.Controls[i].Toggle)
		writeControlSpec(ctrl, &p.Controls[i].On)
		writeControlSpec(ctrl, &p.Controls[i].Off)
	}
	writePropTag(body, legacy, tagMidiControl, ctrl.Bytes())

	clocks := &Writer{}
	clocks.PutU32(perform.MaxBusses)
	for b := 0; b < perform.MaxBusses; b++ {
		clocks.PutU8(p.BusClockModes[b])
	}
	writePropTag(body, legacy, tagMidiClocks, clocks.Bytes())

	notes := &Writer{}
	notes.PutU32(perform.MaxScreenSets)
	for s := 0; s < perform.MaxScreenSets; s++ {
		notes.PutU16(uint16(len(p.Notes[s])))
		notes.PutBytes([]byte(p.Notes[s]))
	}
	writePropTag(body, legacy, tagNotes, notes.Bytes())

	bpm := &Writer{}
	bpm.PutU32(uint32(p.BPM()*perform.BPMScaleFactor + 0.5))
	writePropTag(body, legacy, tagBPM, bpm.Bytes())

	// The 4KB table is only worth writing when something is actually muted.
	if p.AnyMuteSet() {
		mutes := &Writer{}
		mutes.PutU32(muteGroupFlags)
		for g := 0; g < perform.MuteGroupCount; g++ {
			mutes.PutU32(uint32(g))
			for s := 0; s < perform.SeqsPerScreenSet; s++ {
				if p.MuteGroups[g][s] {
					mutes.PutU32(1)
				} else {
					mutes.PutU32(0)
				}
			}
		}
		writePropTag(body, legacy, tagMuteGroups, mutes.Bytes())
	}

	if e.opts.GlobalBackgroundSequence {
		writePropTag(body, legacy, tagMusicKey, []byte{byte(p.MusicalKey)})
		writePropTag(body, legacy, tagMusicScale, []byte{byte(p.MusicalScale)})
		back := &Writer{}
		back.PutU32(uint32(int32(p.BackgroundSequence)))
		writePropTag(body, legacy, tagBackSequence, back.Bytes())
	}

	bpb := &Writer{}
	bpb.PutU32(uint32(p.BeatsPerBar))
	writePropTag(body, legacy, tagPerfBeatsPerBar, bpb.Bytes())

	bw := &Writer{}
	bw.PutU32(uint32(p.BeatWidth))
	writePropTag(body, legacy, tagPerfBeatWidth, bw.Bytes())

	tt := &Writer{}
	tt.PutU32(uint32(p.TempoTrack))
	writePropTag(body, legacy, tagTempoTrack, tt.Bytes())

	if legacy {
		w.PutBytes(body.Bytes())
		return
	}
	body.PutBytes([]byte{0x00, perform.StatusMeta, perform.MetaEndOfTrack, 0x00})
	w.PutU32(magicMTrk)
	w.PutU32(uint32(body.Len()))
	w.PutBytes(body.Bytes())
}

func writeControlSpec(w *Writer, spec *perform.ControlSpec) {
	w.PutU8(spec.Active)
	w.PutU8(spec.Inverse)
	w.PutU8(spec.Status)
	w.PutU8(spec.Data)
	w.PutU8(spec.Min)
	w.PutU8(spec.Max)
}
