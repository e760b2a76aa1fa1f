package perform

import (
	"errors"
	"fmt"
	"sync"
)

// Layout constants for the slot grid.
const (
	SeqsPerScreenSet = 32
	MaxScreenSets    = 32
	MaxSequences     = SeqsPerScreenSet * MaxScreenSets
	MaxBusses        = 32
	MuteGroupCount   = 32
)

// Tempo limits. BPM is stored internally as microseconds per quarter note;
// footer values above MaxBPM are the x1000-scaled encoding.
const (
	MinBPM         = 1.0
	MaxBPM         = 600.0
	DefaultBPM     = 120.0
	BPMScaleFactor = 1000
	DefaultUsPerQN = 500000 // 120 BPM
)

// ErrSlotInUse is returned by Register when the slot already holds a
// sequence; the caller decides whether to pick another slot or fail.
var ErrSlotInUse = errors.New("sequence slot already in use")

// ControlSpec is one 6-byte MIDI-control record: whether the mapping is
// active/inverted and the status/data/value range it matches.
type ControlSpec struct {
	Active  byte
	Inverse byte
	Status  byte
	Data    byte
	Min     byte
	Max     byte
}

// SeqControl is the toggle/on/off control triple stored per sequence slot.
type SeqControl struct {
	Toggle ControlSpec
	On     ControlSpec
	Off    ControlSpec
}

// Performance holds everything one loaded session contains: the sparse slot
// grid of sequences plus the global state the proprietary footer carries.
// The write path locks the whole container for the duration of one file
// serialization; a realtime input thread may otherwise be mutating it.
type Performance struct {
	mu   sync.Mutex
	seqs [MaxSequences]*Sequence

	PPQN       int
	usPerQN    uint32
	tempoKnown bool

	BeatsPerBar  int
	BeatWidth    int
	timesigKnown bool

	MuteGroups    [MuteGroupCount][SeqsPerScreenSet]bool
	BusClockModes [MaxBusses]byte
	Controls      []SeqControl
	Notes         [MaxScreenSets]string

	MusicalKey         int
	MusicalScale       int
	BackgroundSequence int

	TempoTrack int
}

// NewPerformance creates an empty performance at the given resolution.
func NewPerformance(ppqn int) *Performance {
	if ppqn <= 0 {
		ppqn = DefaultPPQN
	}
	return &Performance{
		PPQN:               ppqn,
		usPerQN:            DefaultUsPerQN,
		BeatsPerBar:        DefaultBeatsPerBar,
		BeatWidth:          DefaultBeatWidth,
		MusicalKey:         KeyUnset,
		MusicalScale:       ScaleUnset,
		BackgroundSequence: BackgroundNone,
	}
}

// Lock takes the serialization lock. The encoder holds it for a whole write.
func (p *Performance) Lock() { p.mu.Lock() }

// Unlock releases the serialization lock.
func (p *Performance) Unlock() { p.mu.Unlock() }

// Register installs a fully-formed sequence at a slot. A collision is an
// error, never a silent overwrite.
func (p *Performance) Register(slot int, s *Sequence) error {
	if slot < 0 || slot >= MaxSequences {
		return fmt.Errorf("sequence slot %d out of range", slot)
	}
	if p.seqs[slot] != nil {
		return fmt.Errorf("slot %d: %w", slot, ErrSlotInUse)
	}
	p.seqs[slot] = s
	return nil
}

// Get returns the sequence at a slot, or nil.
func (p *Performance) Get(slot int) *Sequence {
	if slot < 0 || slot >= MaxSequences {
		return nil
	}
	return p.seqs[slot]
}

// Remove clears a slot and returns what it held.
func (p *Performance) Remove(slot int) *Sequence {
	if slot < 0 || slot >= MaxSequences {
		return nil
	}
	s := p.seqs[slot]
	p.seqs[slot] = nil
	return s
}

// FirstFreeSlot returns the first empty slot at or after from, or -1 when
// the grid is full.
func (p *Performance) FirstFreeSlot(from int) int {
	if from < 0 {
		from = 0
	}
	for i := from; i < MaxSequences; i++ {
		if p.seqs[i] == nil {
			return i
		}
	}
	return -1
}

// ActiveSlots returns the occupied slot numbers in ascending order.
func (p *Performance) ActiveSlots() []int {
	var out []int
	for i, s := range p.seqs {
		if s != nil {
			out = append(out, i)
		}
	}
	return out
}

// HighestSlot returns the largest occupied slot number, or -1 when empty.
func (p *Performance) HighestSlot() int {
	for i := MaxSequences - 1; i >= 0; i-- {
		if p.seqs[i] != nil {
			return i
		}
	}
	return -1
}

// SetTempoMicros installs the global tempo from a Set Tempo meta event's
// microseconds-per-quarter-note value.
func (p *Performance) SetTempoMicros(us uint32) {
	if us == 0 {
		return
	}
	p.usPerQN = us
	p.tempoKnown = true
}

// TempoMicros returns the stored microseconds per quarter note.
func (p *Performance) TempoMicros() uint32 {
	return p.usPerQN
}

// SetBPM installs the global tempo in beats per minute, clamped to the legal
// range.
func (p *Performance) SetBPM(bpm float64) {
	if bpm < MinBPM {
		bpm = MinBPM
	}
	if bpm > MaxBPM {
		bpm = MaxBPM
	}
	p.usPerQN = uint32(60000000.0/bpm + 0.5)
	p.tempoKnown = true
}

// BPM returns the global tempo in beats per minute.
func (p *Performance) BPM() float64 {
	if p.usPerQN == 0 {
		return DefaultBPM
	}
	return 60000000.0 / float64(p.usPerQN)
}

// TempoKnown reports whether any source has set the global tempo yet. The
// decoder uses this for its first-tempo-event-wins rule.
func (p *Performance) TempoKnown() bool { return p.tempoKnown }

// SetTimeSignature installs the global time signature once; later calls are
// ignored so the first event (or an earlier proprietary tag) wins.
func (p *Performance) SetTimeSignature(beatsPerBar, beatWidth int) {
	if p.timesigKnown || beatsPerBar <= 0 || beatWidth <= 0 {
		return
	}
	p.BeatsPerBar = beatsPerBar
	p.BeatWidth = beatWidth
	p.timesigKnown = true
}

// TimeSignatureKnown reports whether the global signature has been set.
func (p *Performance) TimeSignatureKnown() bool { return p.timesigKnown }

// AnyMuteSet reports whether at least one mute-group flag is on; the footer
// writer skips the whole 4KB table otherwise.
func (p *Performance) AnyMuteSet() bool {
	for g := range p.MuteGroups {
		for s := range p.MuteGroups[g] {
			if p.MuteGroups[g][s] {
				return true
			}
		}
	}
	return false
}

// ControlFor returns the control triple for a slot, growing the table as
// needed so footer decode can fill arbitrary slots.
func (p *Performance) ControlFor(slot int) *SeqControl {
	for slot >= len(p.Controls) {
		p.Controls = append(p.Controls, SeqControl{})
	}
	return &p.Controls[slot]
}

// Clear drops every sequence and resets the global state to defaults.
func (p *Performance) Clear() {
	for i := range p.seqs {
		p.seqs[i] = nil
	}
	p.usPerQN = DefaultUsPerQN
	p.tempoKnown = false
	p.BeatsPerBar = DefaultBeatsPerBar
	p.BeatWidth = DefaultBeatWidth
	p.timesigKnown = false
	p.MuteGroups = [MuteGroupCount][SeqsPerScreenSet]bool{}
	p.BusClockModes = [MaxBusses]byte{}
	p.Controls = nil
	p.Notes = [MaxScreenSets]string{}
	p.MusicalKey = KeyUnset
	p.MusicalScale = ScaleUnset
	p.BackgroundSequence = BackgroundNone
	p.TempoTrack = 0
}
