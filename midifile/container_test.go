package midifile

import (
	"bytes"
	"testing"

	"go-seqfile/perform"
)

func drain(c Container) []byte {
	out := make([]byte, 0, c.Size())
	for !c.Done() {
		out = append(out, c.Get())
	}
	return out
}

func TestContainersPreserveOrder(t *testing.T) {
	input := []byte{0x90, 0x3C, 0x64, 0x00, 0x80, 0x3C, 0x00}

	for _, tc := range []struct {
		name string
		c    Container
	}{
		{"vector", NewVectorContainer()},
		{"list", NewListContainer()},
	} {
		for _, b := range input {
			tc.c.Put(b)
		}
		if tc.c.Size() != len(input) {
			t.Errorf("%s: Size = %d, want %d", tc.name, tc.c.Size(), len(input))
		}
		got := drain(tc.c)
		if !bytes.Equal(got, input) {
			t.Errorf("%s: drained % x, want % x", tc.name, got, input)
		}
		if !tc.c.Done() {
			t.Errorf("%s: not Done after drain", tc.name)
		}
	}
}

func TestContainerStrategiesAgree(t *testing.T) {
	// Both strategies must yield byte-identical track data for the
	// same sequence.
	seq := perform.NewSequence(192)
	seq.SetName("agree")
	seq.Channel = 2
	seq.AddEvent(perform.Event{Tick: 0, Status: perform.StatusNoteOn | 2, D0: 60, D1: 100})
	seq.AddEvent(perform.Event{Tick: 96, Status: perform.StatusControlChange | 2, D0: 7, D1: 90})
	seq.AddEvent(perform.Event{Tick: 192, Status: perform.StatusNoteOff | 2, D0: 60, D1: 64})
	seq.AddTrigger(perform.Trigger{Start: 0, End: 767})
	seq.Finalize(192)

	enc := NewEncoder(Options{})

	vec := NewVectorContainer()
	if err := enc.FillContainer(vec, seq); err != nil {
		t.Fatalf("FillContainer (vector): %v", err)
	}
	lst := NewListContainer()
	if err := enc.FillContainer(lst, seq); err != nil {
		t.Fatalf("FillContainer (list): %v", err)
	}

	if !bytes.Equal(drain(vec), drain(lst)) {
		t.Fatal("vector and list containers produced different track bytes")
	}
}
