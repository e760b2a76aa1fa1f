package midifile

import (
	"os"

	"github.com/pkg/errors"

	"golang.org/x/text/transform"

	"go-seqfile/perform"
)

// Encoder serializes a Performance back to a Standard MIDI File (format 1)
// with the proprietary footer appended.
type Encoder struct {
	opts Options

	// NameTransformer, when set, re-encodes track names on output (e.g. to
	// a legacy charset). Nil writes names verbatim.
	NameTransformer transform.Transformer

	// NewContainer picks the byte-accumulation strategy for track bodies.
	// Both strategies produce identical output; this exists as a
	// performance knob. Defaults to NewVectorContainer.
	NewContainer func() Container
}

// NewEncoder creates an encoder with the given options.
func NewEncoder(opts Options) *Encoder {
	return &Encoder{opts: opts}
}

// Encode serializes p to a file. The performance lock is held for the whole
// write: a realtime input thread may otherwise mutate the sequence grid
// mid-serialization. A failed write can leave a truncated file behind;
// callers wanting atomicity should write to a temp path and rename.
func (e *Encoder) Encode(p *perform.Performance, path string) error {
	data, err := e.EncodeBytes(p)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}

// EncodeBytes serializes p to an in-memory SMF image, holding the
// performance lock for the duration.
func (e *Encoder) EncodeBytes(p *perform.Performance) ([]byte, error) {
	p.Lock()
	defer p.Unlock()

	slots := p.ActiveSlots()
	w := &Writer{}
	w.PutU32(magicMThd)
	w.PutU32(6)
	w.PutU16(1) // always written as format 1, even if the source was SMF-0
	w.PutU16(uint16(len(slots)))
	w.PutU16(uint16(p.PPQN))

	for _, slot := range slots {
		seq := p.Get(slot)
		cont := e.newContainer()
		if err := e.FillContainer(cont, seq); err != nil {
			return nil, errors.Wrapf(err, "sequence %d", slot)
		}
		w.PutU32(magicMTrk)
		w.PutU32(uint32(cont.Size()))
		for !cont.Done() {
			w.PutU8(cont.Get())
		}
	}

	e.encodeFooter(w, p)
	return w.Bytes(), nil
}

func (e *Encoder) newContainer() Container {
	if e.NewContainer != nil {
		return e.NewContainer()
	}
	return NewVectorContainer()
}

func putVarint(c Container, v uint32) {
	for _, b := range AppendVarint(nil, v) {
		c.Put(b)
	}
}

func putBytes(c Container, data []byte) {
	for _, b := range data {
		c.Put(b)
	}
}

// FillContainer writes one sequence's track body into a container: name,
// delta-timed events, the per-sequence proprietary tags, and End of Track.
// The fill order is fixed, so both container strategies yield byte-identical
// tracks.
func (e *Encoder) FillContainer(c Container, seq *perform.Sequence) error {
	seq.Sort()

	if seq.Name != "" {
		name := []byte(seq.Name)
		if e.NameTransformer != nil {
			converted, _, err := transform.Bytes(e.NameTransformer, name)
			if err != nil {
				return errors.Wrap(err, "track name transform")
			}
			name = converted
		}
		c.Put(0)
		c.Put(perform.StatusMeta)
		c.Put(perform.MetaTrackName)
		putVarint(c, uint32(len(name)))
		putBytes(c, name)
	}

	var prev uint32
	for i := range seq.Events {
		ev := &seq.Events[i]
		delta := ev.Tick - prev
		prev = ev.Tick
		if delta > MaxVarint {
			return errors.Wrapf(ErrMalformedLength, "delta time %d", delta)
		}
		putVarint(c, delta)

		switch {
		case ev.IsChannel():
			c.Put(ev.Status)
			c.Put(ev.D0)
			if perform.DataSize(ev.Status) == 2 {
				c.Put(ev.D1)
			}
		case ev.Status == perform.StatusMeta:
			c.Put(ev.Status)
			c.Put(ev.Meta)
			putVarint(c, uint32(len(ev.Payload)))
			putBytes(c, ev.Payload)
		case ev.Status == perform.StatusSysex || ev.Status == perform.StatusSysexEnd:
			c.Put(ev.Status)
			putVarint(c, uint32(len(ev.Payload)))
			putBytes(c, ev.Payload)
		default:
			return errors.Wrapf(ErrUnsupportedFormat, "event status %02X", ev.Status)
		}
	}

	e.fillSequenceTags(c, seq)

	// End of Track
	c.Put(0)
	c.Put(perform.StatusMeta)
	c.Put(perform.MetaEndOfTrack)
	c.Put(0)
	return nil
}

// putSeqTag writes one per-sequence proprietary tag as a zero-delta
// sequencer-specific meta event.
func putSeqTag(c Container, tag uint32, payload []byte) {
	c.Put(0)
	c.Put(perform.StatusMeta)
	c.Put(perform.MetaSeqSpec)
	putVarint(c, uint32(4+len(payload)))
	c.Put(byte(tag >> 24))
	c.Put(byte(tag >> 16))
	c.Put(byte(tag >> 8))
	c.Put(byte(tag))
	putBytes(c, payload)
}

func (e *Encoder) fillSequenceTags(c Container, seq *perform.Sequence) {
	if len(seq.Triggers) > 0 {
		payload := make([]byte, 0, 12*len(seq.Triggers))
		for _, t := range seq.Triggers {
			payload = appendU32(payload, t.Start)
			payload = appendU32(payload, t.End)
			payload = appendU32(payload, t.Offset)
		}
		putSeqTag(c, tagTriggersNew, payload)
	}

	putSeqTag(c, tagMidiBus, []byte{byte(seq.Bus)})
	putSeqTag(c, tagTimeSig, []byte{byte(seq.BeatsPerBar), byte(seq.BeatWidth)})

	ch := byte(0xFF) // channel none
	if seq.Channel != perform.ChannelNone {
		ch = byte(seq.Channel)
	}
	putSeqTag(c, tagMidiChannel, []byte{ch})

	if seq.MusicalKey != perform.KeyUnset {
		putSeqTag(c, tagMusicKey, []byte{byte(seq.MusicalKey)})
	}
	if seq.MusicalScale != perform.ScaleUnset {
		putSeqTag(c, tagMusicScale, []byte{byte(seq.MusicalScale)})
	}
	if seq.BackgroundSequence != perform.BackgroundNone {
		putSeqTag(c, tagBackSequence, appendU32(nil, uint32(int32(seq.BackgroundSequence))))
	}
	if !seq.Transposable {
		putSeqTag(c, tagTranspose, []byte{0})
	}
	if seq.Color != perform.ColorNone {
		putSeqTag(c, tagSeqColor, []byte{byte(seq.Color)})
	}
}

func appendU32(dst []byte, v uint32) []byte {
	return append(dst, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}
