package perform

import (
	"fmt"
	"sort"
)

// ChannelNone marks a sequence with no single MIDI channel (e.g. the unsplit
// original of an SMF-0 file).
const ChannelNone = -1

// MaxTrackName caps track names read from files; longer names are truncated.
const MaxTrackName = 256

// Unset values for the optional musical overrides.
const (
	KeyUnset           = -1
	ScaleUnset         = -1
	BackgroundNone     = -1
	ColorNone          = -1
	DefaultPPQN        = 192
	DefaultBeatsPerBar = 4
	DefaultBeatWidth   = 4
)

// Trigger is one song-arrangement segment of a sequence. Start and End are
// absolute ticks; Offset shifts the pattern content within the segment.
type Trigger struct {
	Start  uint32
	End    uint32
	Offset uint32
}

// Sequence is one MIDI track: a time-ordered event list plus the per-track
// state the file format carries for it.
type Sequence struct {
	Name        string
	Channel     int // 0-15 or ChannelNone
	Bus         int
	PPQN        int
	BeatsPerBar int
	BeatWidth   int
	Length      uint32 // in ticks, at least one measure
	Events      []Event
	Triggers    []Trigger

	MusicalKey         int
	MusicalScale       int
	BackgroundSequence int
	Transposable       bool
	Color              int

	sorted bool
}

// NewSequence creates an empty sequence at the given resolution.
func NewSequence(ppqn int) *Sequence {
	if ppqn <= 0 {
		ppqn = DefaultPPQN
	}
	return &Sequence{
		Channel:            ChannelNone,
		PPQN:               ppqn,
		BeatsPerBar:        DefaultBeatsPerBar,
		BeatWidth:          DefaultBeatWidth,
		MusicalKey:         KeyUnset,
		MusicalScale:       ScaleUnset,
		BackgroundSequence: BackgroundNone,
		Transposable:       true,
		Color:              ColorNone,
	}
}

// SetName installs a track name, truncating at MaxTrackName.
func (s *Sequence) SetName(name string) {
	if len(name) > MaxTrackName {
		name = name[:MaxTrackName]
	}
	s.Name = name
}

// AddEvent appends an event; call Sort before reading the list back.
func (s *Sequence) AddEvent(e Event) {
	s.Events = append(s.Events, e)
	s.sorted = false
}

// AddTrigger appends an arrangement segment.
func (s *Sequence) AddTrigger(t Trigger) {
	s.Triggers = append(s.Triggers, t)
}

// Sort orders the event list by tick, with the stable per-tick rank so that
// equal-tick events round-trip in a fixed order.
func (s *Sequence) Sort() {
	if s.sorted {
		return
	}
	sort.SliceStable(s.Events, func(i, j int) bool {
		return s.Events[i].Before(&s.Events[j])
	})
	s.sorted = true
}

// MeasureTicks returns the length of one measure at this sequence's
// resolution and time signature.
func (s *Sequence) MeasureTicks() uint32 {
	bw := s.BeatWidth
	if bw <= 0 {
		bw = DefaultBeatWidth
	}
	bpb := s.BeatsPerBar
	if bpb <= 0 {
		bpb = DefaultBeatsPerBar
	}
	return uint32(s.PPQN) * 4 * uint32(bpb) / uint32(bw)
}

// SetLength installs the sequence length, padding anything shorter than a
// quarter note up to one full measure.
func (s *Sequence) SetLength(ticks uint32) {
	if ticks < uint32(s.PPQN) {
		ticks = s.MeasureTicks()
	}
	s.Length = ticks
}

// LastTick returns the timestamp of the final event, or 0 when empty.
func (s *Sequence) LastTick() uint32 {
	if len(s.Events) == 0 {
		return 0
	}
	s.Sort()
	return s.Events[len(s.Events)-1].Tick
}

// Finalize sorts the events and sets the padded length from the running
// absolute time a decoder accumulated.
func (s *Sequence) Finalize(endTick uint32) {
	s.Sort()
	if last := s.LastTick(); last > endTick {
		endTick = last
	}
	s.SetLength(endTick)
}

// EventsOnChannel returns copies of the channel-voice events on one channel,
// absolute timestamps preserved.
func (s *Sequence) EventsOnChannel(channel int) []Event {
	var out []Event
	for _, e := range s.Events {
		if e.IsChannel() && e.Channel() == channel {
			out = append(out, e)
		}
	}
	return out
}

func (s *Sequence) String() string {
	ch := "none"
	if s.Channel != ChannelNone {
		ch = fmt.Sprintf("%d", s.Channel)
	}
	return fmt.Sprintf("%q ch=%s events=%d length=%d", s.Name, ch, len(s.Events), s.Length)
}
