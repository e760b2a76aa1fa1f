package midifile

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"golang.org/x/text/transform"

	"go-seqfile/perform"
)

func performanceFixture() *perform.Performance {
	p := perform.NewPerformance(192)
	p.SetBPM(140)

	lead := perform.NewSequence(192)
	lead.SetName("lead")
	lead.Channel = 0
	lead.Bus = 1
	lead.AddEvent(perform.Event{Tick: 0, Status: perform.StatusProgramChange, D0: 5})
	lead.AddEvent(perform.Event{Tick: 0, Status: perform.StatusNoteOn, D0: 60, D1: 100})
	lead.AddEvent(perform.Event{Tick: 96, Status: perform.StatusNoteOn, D0: 64, D1: 100})
	lead.AddEvent(perform.Event{Tick: 192, Status: perform.StatusNoteOff, D0: 60, D1: 64})
	lead.AddEvent(perform.Event{Tick: 192, Status: perform.StatusNoteOff, D0: 64, D1: 64})
	lead.AddTrigger(perform.Trigger{Start: 0, End: 767, Offset: 0})
	lead.Finalize(768)

	bass := perform.NewSequence(192)
	bass.SetName("bass")
	bass.Channel = 1
	bass.BeatsPerBar = 3
	bass.BeatWidth = 4
	bass.AddEvent(perform.Event{Tick: 0, Status: perform.StatusNoteOn | 1, D0: 36, D1: 110})
	bass.AddEvent(perform.Event{Tick: 576, Status: perform.StatusNoteOff | 1, D0: 36, D1: 0})
	bass.Finalize(576)

	if err := p.Register(0, lead); err != nil {
		panic(err)
	}
	if err := p.Register(1, bass); err != nil {
		panic(err)
	}
	return p
}

func TestEncodeHeader(t *testing.T) {
	p := performanceFixture()
	data, err := NewEncoder(Options{}).EncodeBytes(p)
	if err != nil {
		t.Fatalf("EncodeBytes: %v", err)
	}

	c := NewCursor(data)
	if c.ReadU32() != magicMThd {
		t.Fatal("output does not start with MThd")
	}
	if hlen := c.ReadU32(); hlen != 6 {
		t.Errorf("header length %d", hlen)
	}
	if format := c.ReadU16(); format != 1 {
		t.Errorf("format %d, want 1", format)
	}
	if ntracks := c.ReadU16(); ntracks != 2 {
		t.Errorf("ntracks %d, want 2", ntracks)
	}
	if ppqn := c.ReadU16(); ppqn != 192 {
		t.Errorf("division %d, want 192", ppqn)
	}
	if c.ReadU32() != magicMTrk {
		t.Error("first chunk after the header is not MTrk")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	data, err := NewEncoder(Options{}).EncodeBytes(performanceFixture())
	if err != nil {
		t.Fatalf("EncodeBytes: %v", err)
	}

	q := perform.NewPerformance(0)
	if err := NewDecoder(Options{}).DecodeBytes(data, q); err != nil {
		t.Fatalf("decode pass 1: %v", err)
	}

	lead := q.Get(0)
	if lead == nil || lead.Name != "lead" {
		t.Fatalf("lead sequence missing or misnamed: %v", lead)
	}
	if lead.Channel != 0 || lead.Bus != 1 {
		t.Errorf("lead channel=%d bus=%d", lead.Channel, lead.Bus)
	}
	if len(lead.Triggers) != 1 || lead.Triggers[0].End != 767 {
		t.Errorf("lead triggers %+v", lead.Triggers)
	}
	bass := q.Get(1)
	if bass == nil || bass.BeatsPerBar != 3 {
		t.Fatalf("bass sequence missing or lost its signature: %v", bass)
	}

	// A second encode/decode cycle must be a fixed point, both at the
	// byte level and the model level.
	data2, err := NewEncoder(Options{}).EncodeBytes(q)
	if err != nil {
		t.Fatalf("re-encode: %v", err)
	}
	r := perform.NewPerformance(0)
	if err := NewDecoder(Options{}).DecodeBytes(data2, r); err != nil {
		t.Fatalf("decode pass 2: %v", err)
	}
	data3, err := NewEncoder(Options{}).EncodeBytes(r)
	if err != nil {
		t.Fatalf("re-re-encode: %v", err)
	}
	if !bytes.Equal(data2, data3) {
		t.Error("encode is not a fixed point after one decode cycle")
	}

	for _, slot := range q.ActiveSlots() {
		a, b := q.Get(slot), r.Get(slot)
		if b == nil {
			t.Errorf("slot %d lost on re-decode", slot)
			continue
		}
		if a.Name != b.Name || a.Channel != b.Channel || a.Bus != b.Bus {
			t.Errorf("slot %d: identity drifted: %v vs %v", slot, a, b)
		}
		if !reflect.DeepEqual(a.Events, b.Events) {
			t.Errorf("slot %d: events drifted", slot)
		}
		if !reflect.DeepEqual(a.Triggers, b.Triggers) {
			t.Errorf("slot %d: triggers drifted", slot)
		}
	}
	if q.BPM() != r.BPM() {
		t.Errorf("BPM drifted: %v vs %v", q.BPM(), r.BPM())
	}
}

func TestEncodeRoundTripLegacyFooter(t *testing.T) {
	opts := Options{LegacyFormat: true}
	data, err := NewEncoder(opts).EncodeBytes(performanceFixture())
	if err != nil {
		t.Fatalf("EncodeBytes: %v", err)
	}
	q := perform.NewPerformance(0)
	if err := NewDecoder(Options{}).DecodeBytes(data, q); err != nil {
		t.Fatalf("DecodeBytes: %v", err)
	}
	if got := q.BPM(); got < 139.9 || got > 140.1 {
		t.Errorf("BPM through legacy footer = %v, want 140", got)
	}
	if q.Get(0) == nil || q.Get(1) == nil {
		t.Error("sequences lost through legacy footer")
	}
}

func TestEncodeImportSkipsFooter(t *testing.T) {
	data, err := NewEncoder(Options{}).EncodeBytes(performanceFixture())
	if err != nil {
		t.Fatalf("EncodeBytes: %v", err)
	}
	q := perform.NewPerformance(0)
	q.SetBPM(99)
	if err := NewDecoder(Options{Import: true}).DecodeBytes(data, q); err != nil {
		t.Fatalf("DecodeBytes: %v", err)
	}
	// The import may pick up in-track tempo events but never the footer's
	// global BPM of 140.
	if got := q.BPM(); got > 139 && got < 141 {
		t.Errorf("import applied the footer BPM: %v", got)
	}
}

func TestEncodeDeltaOverflow(t *testing.T) {
	p := perform.NewPerformance(192)
	seq := perform.NewSequence(192)
	seq.AddEvent(perform.Event{Tick: MaxVarint + 1, Status: perform.StatusNoteOn, D0: 60, D1: 100})
	if err := p.Register(0, seq); err != nil {
		t.Fatal(err)
	}
	_, err := NewEncoder(Options{}).EncodeBytes(p)
	if !errors.Is(err, ErrMalformedLength) {
		t.Fatalf("err = %v, want ErrMalformedLength", err)
	}
}

func TestEncodeNameTransformer(t *testing.T) {
	p := perform.NewPerformance(192)
	seq := perform.NewSequence(192)
	seq.SetName("pad")
	seq.AddEvent(perform.Event{Tick: 0, Status: perform.StatusNoteOn, D0: 60, D1: 100})
	seq.Finalize(192)
	if err := p.Register(0, seq); err != nil {
		t.Fatal(err)
	}

	enc := NewEncoder(Options{})
	enc.NameTransformer = transform.Nop
	data, err := enc.EncodeBytes(p)
	if err != nil {
		t.Fatalf("EncodeBytes: %v", err)
	}

	q := perform.NewPerformance(0)
	if err := NewDecoder(Options{}).DecodeBytes(data, q); err != nil {
		t.Fatalf("DecodeBytes: %v", err)
	}
	if got := q.Get(0).Name; got != "pad" {
		t.Errorf("name %q through identity transform", got)
	}
}
