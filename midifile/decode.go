package midifile

import (
	"os"

	"github.com/pkg/errors"

	"go-seqfile/debug"
	"go-seqfile/perform"
)

// Chunk signatures.
const (
	magicMThd = 0x4D546864 // "MThd"
	magicMTrk = 0x4D54726B // "MTrk"
)

// Options control one decode or encode pass.
type Options struct {
	// TargetPPQN rescales event times to this resolution. 0 means use the
	// file's own PPQN verbatim, no rescale.
	TargetPPQN int

	// VerifyOnly parses into a throwaway performance and discards it; used
	// to validate playlist entries.
	VerifyOnly bool

	// Import skips the proprietary footer, for merging a file's tracks into
	// an existing performance without clobbering its global state.
	Import bool

	// LegacyFormat writes the footer as bare tag/payload pairs instead of
	// wrapping each entry as a meta event inside a framed track.
	LegacyFormat bool

	// GlobalBackgroundSequence enables the musical key/scale/background
	// sequence globals in the footer.
	GlobalBackgroundSequence bool

	// CaptureSysex keeps sysex payloads as events instead of skipping them.
	CaptureSysex bool

	// ScreenSetOffset shifts registered slots by whole screen-sets.
	ScreenSetOffset int
}

// Decoder parses SMF format 0/1 files (and, via DecodeWRK, Cakewalk WRK
// files) into a Performance.
type Decoder struct {
	opts       Options
	filePPQN   int
	targetPPQN int
	format     int
	splitter   smfSplitter
	wrkPPQN    int
}

// NewDecoder creates a decoder with the given options.
func NewDecoder(opts Options) *Decoder {
	return &Decoder{opts: opts}
}

// Decode reads a whole file into memory and parses it into p. Use IsFatal on
// the returned error: a non-fatal error means the tracks that did decode are
// installed and usable.
func (d *Decoder) Decode(path string, p *perform.Performance) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	return d.DecodeBytes(data, p)
}

// DecodeBytes parses an in-memory SMF image into p.
func (d *Decoder) DecodeBytes(data []byte, p *perform.Performance) error {
	if d.opts.VerifyOnly {
		p = perform.NewPerformance(d.opts.TargetPPQN)
	}
	d.splitter.reset()

	c := NewCursor(data)
	if c.ReadU32() != magicMThd {
		return errAt(c, ErrBadMagic, "not a MIDI file (no MThd)")
	}
	hlen := int(c.ReadU32())
	if hlen < 6 {
		return errAt(c, ErrMalformedLength, "header length %d", hlen)
	}
	d.format = int(c.ReadU16())
	ntracks := int(c.ReadU16())
	division := c.ReadU16()
	c.Skip(hlen - 6)

	if d.format != 0 && d.format != 1 {
		return errAt(c, ErrUnsupportedFormat, "SMF format %d", d.format)
	}
	if division&0x8000 != 0 {
		return errAt(c, ErrUnsupportedFormat, "SMPTE division %04X", division)
	}
	if division == 0 {
		return errAt(c, ErrMalformedLength, "zero division")
	}
	d.filePPQN = int(division)
	d.targetPPQN = d.opts.TargetPPQN
	if d.targetPPQN <= 0 {
		d.targetPPQN = d.filePPQN
	}
	if p.PPQN <= 0 {
		p.PPQN = d.targetPPQN
	}

	base := d.opts.ScreenSetOffset * perform.SeqsPerScreenSet
	seqNum := 0
	for i := 0; i < ntracks; i++ {
		if c.Remaining() < 8 {
			return NonFatal(errAt(c, ErrTruncated, "expected %d tracks, got %d", ntracks, i))
		}
		id := c.ReadU32()
		length := int(c.ReadU32())
		if id != magicMTrk {
			if i == 0 {
				return errAt(c, ErrBadMagic, "first chunk is not MTrk (id %08X)", id)
			}
			debug.Log("midifile", "skipping unknown chunk %08X (%d bytes)", id, length)
			c.Skip(length)
			continue
		}

		seq, err := d.decodeTrack(c, p, length, seqNum == 0)
		if err != nil {
			return err
		}

		if d.format == 0 {
			d.splitter.main = seq
		} else {
			if err := p.Register(base+seqNum, seq); err != nil {
				return err
			}
		}
		seqNum++
	}

	if d.format == 0 {
		if err := d.splitter.split(p, base); err != nil {
			return err
		}
	}

	if !d.opts.Import {
		if err := d.decodeFooter(c, p); err != nil {
			return err
		}
	}

	if c.Truncated() {
		return NonFatal(errAt(c, ErrTruncated, "file ended mid-read"))
	}
	return nil
}

// rescale converts the accumulated file-clock time to the target resolution.
// Rescaling the running total, rather than each delta, keeps rounding error
// from accumulating.
func (d *Decoder) rescale(fileTime uint64) uint32 {
	if d.targetPPQN == d.filePPQN {
		return uint32(fileTime)
	}
	return uint32(fileTime * uint64(d.targetPPQN) / uint64(d.filePPQN))
}

// decodeTrack runs the event state machine over one MTrk body and returns a
// fully-formed sequence.
func (d *Decoder) decodeTrack(c *Cursor, p *perform.Performance, length int, firstTrack bool) (*perform.Sequence, error) {
	trackEnd := c.Pos() + length
	seq := perform.NewSequence(d.targetPPQN)

	var fileTime uint64
	var runningStatus byte

	for c.Pos() < trackEnd && !c.EOF() {
		fileTime += uint64(ReadVarint(c))
		tick := d.rescale(fileTime)

		status := runningStatus
		if c.PeekU8()&0x80 != 0 {
			status = c.ReadU8()
			if status < 0xF0 {
				runningStatus = status
			}
		} else if runningStatus == 0 {
			return nil, errAt(c, ErrUnsupportedFormat, "data byte %02X with no running status", c.PeekU8())
		}

		switch {
		case status >= 0x80 && status < 0xF0:
			ev := perform.Event{Tick: tick, Status: status}
			ev.D0 = c.ReadU8()
			if perform.DataSize(status) == 2 {
				ev.D1 = c.ReadU8()
			}
			// Note On with velocity 0 is a Note Off in disguise; normalize
			// so consumers see one form. The normalized form is what gets
			// re-encoded.
			if status&0xF0 == perform.StatusNoteOn && ev.D1 == 0 {
				ev.Status = perform.StatusNoteOff | status&0x0F
			}
			if d.format == 0 {
				d.splitter.markSeen(int(status & 0x0F))
			}
			seq.AddEvent(ev)

		case status == perform.StatusMeta:
			done, err := d.decodeMeta(c, p, seq, tick, firstTrack)
			if err != nil {
				return nil, err
			}
			if done {
				seq.Finalize(tick)
				c.Seek(trackEnd)
				return seq, nil
			}

		case status == perform.StatusSysex || status == perform.StatusSysexEnd:
			if err := d.decodeSysex(c, seq, tick, status); err != nil {
				return nil, err
			}

		default:
			return nil, errAt(c, ErrUnsupportedFormat, "status byte %02X", status)
		}
	}

	// Track body ended without an End of Track; tolerate it.
	debug.Log("midifile", "track ended without End of Track meta")
	seq.Finalize(d.rescale(fileTime))
	c.Seek(trackEnd)
	return seq, nil
}

// decodeMeta handles one meta event (status byte already consumed). Returns
// done=true on End of Track.
func (d *Decoder) decodeMeta(c *Cursor, p *perform.Performance, seq *perform.Sequence, tick uint32, firstTrack bool) (bool, error) {
	mt := c.ReadU8()
	mlen := int(ReadVarint(c))
	if mlen > c.Remaining() {
		return false, errAt(c, ErrMalformedLength, "meta %02X length %d exceeds remaining %d", mt, mlen, c.Remaining())
	}

	switch mt {
	case perform.MetaEndOfTrack:
		c.Skip(mlen)
		return true, nil

	case perform.MetaTrackName:
		seq.SetName(string(c.ReadBytes(mlen)))

	case perform.MetaSetTempo:
		if mlen < 3 {
			return false, errAt(c, ErrMalformedLength, "tempo meta length %d", mlen)
		}
		payload := c.ReadBytes(mlen)
		us := uint32(payload[0])<<16 | uint32(payload[1])<<8 | uint32(payload[2])
		// Only the first tempo of the first track sets the global; every
		// tempo event is still preserved in its sequence.
		if firstTrack && !p.TempoKnown() {
			p.SetTempoMicros(us)
		}
		seq.AddEvent(perform.Event{Tick: tick, Status: perform.StatusMeta, Meta: mt, Payload: payload})

	case perform.MetaTimeSignature:
		if mlen < 4 {
			return false, errAt(c, ErrMalformedLength, "time signature meta length %d", mlen)
		}
		payload := c.ReadBytes(mlen)
		num := int(payload[0])
		den := 1 << payload[1]
		p.SetTimeSignature(num, den) // first encountered wins
		if seq.BeatsPerBar == perform.DefaultBeatsPerBar && seq.BeatWidth == perform.DefaultBeatWidth {
			seq.BeatsPerBar = num
			seq.BeatWidth = den
		}
		seq.AddEvent(perform.Event{Tick: tick, Status: perform.StatusMeta, Meta: mt, Payload: payload})

	case perform.MetaSeqSpec:
		d.decodeTrackSeqSpec(c, p, seq, mlen)

	default:
		// Sequence Number, Lyric, Marker, Cue Point, Key Signature, SMPTE
		// Offset, the obsolete channel/port tags, anything future: preserved
		// opaque so nothing is lost on round trip.
		seq.AddEvent(perform.Event{Tick: tick, Status: perform.StatusMeta, Meta: mt, Payload: c.ReadBytes(mlen)})
	}
	return false, nil
}

// decodeTrackSeqSpec handles a sequencer-specific meta event inside a track:
// a 4-byte control tag followed by a tag-specific payload. Unconsumed bytes
// are skipped so future payload growth stays readable; unknown tags are
// logged and skipped whole.
func (d *Decoder) decodeTrackSeqSpec(c *Cursor, p *perform.Performance, seq *perform.Sequence, mlen int) {
	end := c.Pos() + mlen
	if mlen < 4 {
		c.Seek(end)
		return
	}
	tag := c.ReadU32()

	switch tag {
	case tagMidiBus:
		seq.Bus = int(c.ReadU8())

	case tagMidiChannel:
		ch := int(c.ReadU8())
		if ch > 15 {
			ch = perform.ChannelNone
		}
		seq.Channel = ch

	case tagTimeSig:
		seq.BeatsPerBar = int(c.ReadU8())
		seq.BeatWidth = int(c.ReadU8())
		// The proprietary tag claims the global before any standard Time
		// Signature meta later in the stream can.
		p.SetTimeSignature(seq.BeatsPerBar, seq.BeatWidth)

	case tagTriggers:
		for c.Pos()+8 <= end {
			start := c.ReadU32()
			stop := c.ReadU32()
			seq.AddTrigger(perform.Trigger{Start: start, End: stop})
		}

	case tagTriggersNew:
		for c.Pos()+12 <= end {
			start := c.ReadU32()
			stop := c.ReadU32()
			offset := c.ReadU32()
			seq.AddTrigger(perform.Trigger{Start: start, End: stop, Offset: offset})
		}

	case tagMusicKey:
		seq.MusicalKey = int(c.ReadU8())

	case tagMusicScale:
		seq.MusicalScale = int(c.ReadU8())

	case tagBackSequence:
		seq.BackgroundSequence = int(int32(c.ReadU32()))

	case tagTranspose:
		seq.Transposable = c.ReadU8() != 0

	case tagSeqColor:
		seq.Color = int(c.ReadU8())

	default:
		debug.Log("midifile", "unknown sequencer-specific tag %08X (%d bytes), skipped", tag, mlen-4)
	}

	c.Seek(end)
}

// decodeSysex handles a sysex event. Some encoders emit a bogus extension ID
// byte (0x7D-0x7F) where the length belongs; reading it as a varint would
// desync the stream, so that case degrades to an empty passthrough.
func (d *Decoder) decodeSysex(c *Cursor, seq *perform.Sequence, tick uint32, status byte) error {
	b := c.PeekU8()
	if b >= 0x7D && b <= 0x7F {
		c.ReadU8()
		debug.Log("midifile", "sysex with extension ID %02X instead of length, ignored", b)
		return nil
	}
	slen := int(ReadVarint(c))
	if slen > c.Remaining() {
		return errAt(c, ErrMalformedLength, "sysex length %d exceeds remaining %d", slen, c.Remaining())
	}
	payload := c.ReadBytes(slen)
	if slen > 0 && payload[len(payload)-1] != perform.StatusSysexEnd {
		debug.Log("midifile", "sysex at tick %d not terminated with F7", tick)
	}
	if d.opts.CaptureSysex {
		seq.AddEvent(perform.Event{Tick: tick, Status: status, Payload: payload})
	}
	return nil
}
