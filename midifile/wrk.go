package midifile

import (
	"fmt"
	"os"
	"sort"

	"github.com/pkg/errors"

	"go-seqfile/debug"
	"go-seqfile/perform"
)

// Cakewalk WRK chunk types. Multi-byte numbers inside WRK chunk bodies are
// little-endian, unlike SMF.
const (
	wrkChunkTrack    = 0x01 // old-style track header: number, names, channel
	wrkChunkStream   = 0x02 // packed event stream for one track
	wrkChunkVars     = 0x03 // global song variables
	wrkChunkTempo    = 0x04 // tempo map
	wrkChunkMeter    = 0x05 // time signature map
	wrkChunkSysex    = 0x06 // sysex banks
	wrkChunkMemRgn   = 0x07
	wrkChunkComments = 0x08 // free-form song comment text
	wrkChunkTrkOffs  = 0x09
	wrkChunkTimebase = 0x0A // pulses per quarter note
	wrkChunkTimeFmt  = 0x0B
	wrkChunkTrkReps  = 0x0C
	wrkChunkTrkPatch = 0x0E
	wrkChunkNewTrack = 0x24 // newer track header variant
	wrkChunkEnd      = 0xFF
)

const wrkMagic = "CAKEWALK"

// wrkDefaultPPQN applies until a Timebase chunk says otherwise.
const wrkDefaultPPQN = 120

// wrkTrack accumulates one WRK track's state across its header and stream
// chunks before it becomes a Sequence.
type wrkTrack struct {
	seq     *perform.Sequence
	endTime uint64 // in file (WRK) pulses
}

// DecodeWRKFile reads and parses a Cakewalk WRK file into p.
func (d *Decoder) DecodeWRKFile(path string, p *perform.Performance) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	return d.DecodeWRK(data, p)
}

// DecodeWRK demultiplexes the WRK chunk stream into the same sequence model
// the SMF decoder fills. Unknown chunk types are skipped by their declared
// length.
func (d *Decoder) DecodeWRK(data []byte, p *perform.Performance) error {
	if d.opts.VerifyOnly {
		p = perform.NewPerformance(d.opts.TargetPPQN)
	}

	c := NewCursor(data)
	magic := string(c.ReadBytes(len(wrkMagic)))
	if magic != wrkMagic || c.ReadU8() != 0x1A {
		return errAt(c, ErrBadMagic, "not a WRK file")
	}
	verMinor := c.ReadU8()
	verMajor := c.ReadU8()
	debug.Log("midifile", "WRK version %d.%d", verMajor, verMinor)

	d.wrkPPQN = wrkDefaultPPQN
	d.targetPPQN = d.opts.TargetPPQN
	if d.targetPPQN <= 0 {
		d.targetPPQN = perform.DefaultPPQN
	}
	if p.PPQN <= 0 {
		p.PPQN = d.targetPPQN
	}

	tracks := make(map[int]*wrkTrack)

	for !c.EOF() {
		id := c.ReadU8()
		if id == wrkChunkEnd {
			break
		}
		length := int(c.ReadU32LE())
		if length > c.Remaining() {
			return NonFatal(errAt(c, ErrTruncated, "chunk %02X length %d exceeds remaining %d", id, length, c.Remaining()))
		}
		chunkEnd := c.Pos() + length

		switch id {
		case wrkChunkTimebase:
			if tb := int(c.ReadU16LE()); tb > 0 {
				d.wrkPPQN = tb
			}
		case wrkChunkTrack:
			d.wrkReadTrack(c, tracks)
		case wrkChunkNewTrack:
			d.wrkReadNewTrack(c, tracks)
		case wrkChunkStream:
			d.wrkReadStream(c, chunkEnd, tracks)
		case wrkChunkTempo:
			d.wrkReadTempo(c, chunkEnd, p)
		case wrkChunkMeter:
			d.wrkReadMeter(c, chunkEnd, p)
		case wrkChunkComments:
			if p.Notes[0] == "" {
				p.Notes[0] = string(c.ReadBytes(length))
			}
		default:
			debug.Log("midifile", "WRK chunk %02X (%d bytes) skipped", id, length)
		}

		c.Seek(chunkEnd)
	}

	// Register in track-number order so slots are stable.
	base := d.opts.ScreenSetOffset * perform.SeqsPerScreenSet
	nums := make([]int, 0, len(tracks))
	for n := range tracks {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	for _, n := range nums {
		t := tracks[n]
		if len(t.seq.Events) == 0 {
			continue
		}
		t.seq.Finalize(d.wrkRescale(t.endTime))
		slot := base + n
		if slot >= perform.MaxSequences {
			debug.Log("midifile", "WRK track %d exceeds the slot grid, dropped", n)
			continue
		}
		if err := p.Register(slot, t.seq); err != nil {
			return err
		}
	}

	if c.Truncated() {
		return NonFatal(errAt(c, ErrTruncated, "file ended mid-read"))
	}
	return nil
}

func (d *Decoder) wrkRescale(fileTime uint64) uint32 {
	if d.targetPPQN == d.wrkPPQN {
		return uint32(fileTime)
	}
	return uint32(fileTime * uint64(d.targetPPQN) / uint64(d.wrkPPQN))
}

func (d *Decoder) wrkTrackFor(tracks map[int]*wrkTrack, number int) *wrkTrack {
	t, ok := tracks[number]
	if !ok {
		t = &wrkTrack{seq: perform.NewSequence(d.targetPPQN)}
		tracks[number] = t
	}
	return t
}

// readPascalString reads a length-prefixed WRK string.
func readPascalString(c *Cursor) string {
	n := int(c.ReadU8())
	return string(c.ReadBytes(n))
}

func (d *Decoder) wrkReadTrack(c *Cursor, tracks map[int]*wrkTrack) {
	number := int(c.ReadU16LE())
	t := d.wrkTrackFor(tracks, number)
	name1 := readPascalString(c)
	name2 := readPascalString(c)
	name := name1
	if name == "" {
		name = name2
	}
	if name != "" {
		t.seq.SetName(name)
	} else {
		t.seq.SetName(fmt.Sprintf("Track %d", number+1))
	}
	channel := int(int8(c.ReadU8()))
	if channel >= 0 && channel <= 15 {
		t.seq.Channel = channel
	}
	// pitch offset, velocity offset, port, mute flags: not modeled
}

func (d *Decoder) wrkReadNewTrack(c *Cursor, tracks map[int]*wrkTrack) {
	number := int(c.ReadU16LE())
	t := d.wrkTrackFor(tracks, number)
	if name := readPascalString(c); name != "" {
		t.seq.SetName(name)
	}
	channel := int(int8(c.ReadU8()))
	if channel >= 0 && channel <= 15 {
		t.seq.Channel = channel
	}
}

// wrkReadStream decodes one track's packed event stream: 24-bit LE time,
// status, two data bytes, 16-bit LE duration. Note events carry a duration
// rather than a paired Note Off, so the Note Off is synthesized here.
func (d *Decoder) wrkReadStream(c *Cursor, chunkEnd int, tracks map[int]*wrkTrack) {
	number := int(c.ReadU16LE())
	t := d.wrkTrackFor(tracks, number)
	count := int(c.ReadU16LE())

	for i := 0; i < count && c.Pos()+8 <= chunkEnd; i++ {
		when := uint64(c.ReadU24LE())
		status := c.ReadU8()
		d0 := c.ReadU8()
		d1 := c.ReadU8()
		dur := uint64(c.ReadU16LE())

		if status < 0x80 || status >= 0xF0 {
			continue
		}
		tick := d.wrkRescale(when)
		if status&0xF0 == perform.StatusNoteOn {
			off := when + dur
			t.seq.AddEvent(perform.Event{Tick: tick, Status: status, D0: d0, D1: d1})
			t.seq.AddEvent(perform.Event{
				Tick:   d.wrkRescale(off),
				Status: perform.StatusNoteOff | status&0x0F,
				D0:     d0,
			})
			if off > t.endTime {
				t.endTime = off
			}
			continue
		}
		ev := perform.Event{Tick: tick, Status: status, D0: d0}
		if perform.DataSize(status) == 2 {
			ev.D1 = d1
		}
		t.seq.AddEvent(ev)
		if when > t.endTime {
			t.endTime = when
		}
	}
}

// wrkReadTempo takes the first tempo-map record as the global tempo; the
// codec does not model a full tempo map.
func (d *Decoder) wrkReadTempo(c *Cursor, chunkEnd int, p *perform.Performance) {
	if p.TempoKnown() || c.Pos()+12 > chunkEnd {
		return
	}
	c.ReadU32LE() // tick of the tempo change
	c.ReadU32LE() // reserved
	centiBPM := int(c.ReadU16LE())
	if centiBPM > 0 {
		p.SetBPM(float64(centiBPM) / 100.0)
	}
}

// wrkReadMeter takes the first meter record as the global time signature.
func (d *Decoder) wrkReadMeter(c *Cursor, chunkEnd int, p *perform.Performance) {
	count := int(c.ReadU16LE())
	for i := 0; i < count && c.Pos()+6 <= chunkEnd; i++ {
		c.ReadU16LE() // measure number
		num := int(c.ReadU8())
		den := int(c.ReadU8())
		c.Skip(2)
		if num > 0 && den > 0 {
			p.SetTimeSignature(num, den) // first wins
		}
	}
}
