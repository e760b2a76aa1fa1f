package perform

import "testing"

func TestSetNameTruncates(t *testing.T) {
	s := NewSequence(192)
	long := make([]byte, MaxTrackName+50)
	for i := range long {
		long[i] = 'x'
	}
	s.SetName(string(long))
	if len(s.Name) != MaxTrackName {
		t.Errorf("name length %d, want %d", len(s.Name), MaxTrackName)
	}
}

func TestSortIsStableByRank(t *testing.T) {
	s := NewSequence(192)
	s.AddEvent(Event{Tick: 100, Status: StatusNoteOn, D0: 60, D1: 100})
	s.AddEvent(Event{Tick: 100, Status: StatusNoteOff, D0: 60})
	s.AddEvent(Event{Tick: 0, Status: StatusNoteOn, D0: 60, D1: 100})
	s.AddEvent(Event{Tick: 100, Status: StatusProgramChange, D0: 3})
	s.Sort()

	if s.Events[0].Tick != 0 {
		t.Fatalf("first event at tick %d", s.Events[0].Tick)
	}
	// At tick 100: program change, then note off, then note on.
	if s.Events[1].Kind() != StatusProgramChange {
		t.Errorf("second event %02X, want program change", s.Events[1].Kind())
	}
	if !s.Events[2].IsNoteOff() {
		t.Error("note off did not sort before the re-strike")
	}
	if !s.Events[3].IsNoteOn() {
		t.Error("note on did not sort last")
	}
}

func TestMeasureTicks(t *testing.T) {
	s := NewSequence(192)
	if got := s.MeasureTicks(); got != 768 { // 4/4 at 192 PPQN
		t.Errorf("4/4 measure = %d, want 768", got)
	}
	s.BeatsPerBar = 6
	s.BeatWidth = 8
	if got := s.MeasureTicks(); got != 576 { // 6/8 at 192 PPQN
		t.Errorf("6/8 measure = %d, want 576", got)
	}
}

func TestSetLengthPadsShortSequences(t *testing.T) {
	s := NewSequence(192)
	s.SetLength(10) // under a quarter note
	if s.Length != s.MeasureTicks() {
		t.Errorf("length %d, want one measure (%d)", s.Length, s.MeasureTicks())
	}
	s.SetLength(1000)
	if s.Length != 1000 {
		t.Errorf("length %d, want 1000", s.Length)
	}
}

func TestFinalizeUsesLastEvent(t *testing.T) {
	s := NewSequence(192)
	s.AddEvent(Event{Tick: 500, Status: StatusNoteOn, D0: 60, D1: 100})
	s.AddEvent(Event{Tick: 900, Status: StatusNoteOff, D0: 60})
	s.Finalize(700) // end tick earlier than the last event
	if s.Length != 900 {
		t.Errorf("length %d, want the last event's 900", s.Length)
	}
}

func TestEventsOnChannel(t *testing.T) {
	s := NewSequence(192)
	s.AddEvent(Event{Tick: 0, Status: StatusNoteOn | 2, D0: 60, D1: 100})
	s.AddEvent(Event{Tick: 0, Status: StatusNoteOn | 5, D0: 64, D1: 100})
	s.AddEvent(Event{Tick: 10, Status: StatusMeta, Meta: MetaSetTempo, Payload: []byte{7, 0xA1, 0x20}})
	s.AddEvent(Event{Tick: 20, Status: StatusNoteOff | 2, D0: 60})

	got := s.EventsOnChannel(2)
	if len(got) != 2 {
		t.Fatalf("%d events on channel 2, want 2", len(got))
	}
	for _, e := range got {
		if e.Channel() != 2 {
			t.Errorf("event on channel %d leaked in", e.Channel())
		}
	}
	if len(s.EventsOnChannel(9)) != 0 {
		t.Error("events reported on an unused channel")
	}
}
