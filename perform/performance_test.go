package perform

import (
	"errors"
	"math"
	"testing"
)

func TestRegisterCollision(t *testing.T) {
	p := NewPerformance(192)
	if err := p.Register(5, NewSequence(192)); err != nil {
		t.Fatalf("first register: %v", err)
	}
	err := p.Register(5, NewSequence(192))
	if !errors.Is(err, ErrSlotInUse) {
		t.Fatalf("second register err = %v, want ErrSlotInUse", err)
	}
	if err := p.Register(-1, NewSequence(192)); err == nil {
		t.Error("negative slot accepted")
	}
	if err := p.Register(MaxSequences, NewSequence(192)); err == nil {
		t.Error("out-of-range slot accepted")
	}
}

func TestSlotQueries(t *testing.T) {
	p := NewPerformance(192)
	for _, slot := range []int{3, 17, 40} {
		if err := p.Register(slot, NewSequence(192)); err != nil {
			t.Fatal(err)
		}
	}

	if got := p.FirstFreeSlot(0); got != 0 {
		t.Errorf("FirstFreeSlot(0) = %d", got)
	}
	if got := p.FirstFreeSlot(3); got != 4 {
		t.Errorf("FirstFreeSlot(3) = %d, want 4", got)
	}
	if got := p.HighestSlot(); got != 40 {
		t.Errorf("HighestSlot = %d, want 40", got)
	}
	slots := p.ActiveSlots()
	want := []int{3, 17, 40}
	if len(slots) != len(want) {
		t.Fatalf("ActiveSlots = %v", slots)
	}
	for i := range want {
		if slots[i] != want[i] {
			t.Fatalf("ActiveSlots = %v, want %v", slots, want)
		}
	}

	if got := p.Remove(17); got == nil {
		t.Error("Remove returned nil for an occupied slot")
	}
	if p.Get(17) != nil {
		t.Error("slot still occupied after Remove")
	}
}

func TestTempoConversion(t *testing.T) {
	p := NewPerformance(192)
	if p.TempoKnown() {
		t.Error("fresh performance claims a known tempo")
	}
	if got := p.BPM(); got != DefaultBPM {
		t.Errorf("default BPM = %v", got)
	}

	p.SetTempoMicros(500000)
	if !p.TempoKnown() {
		t.Error("tempo not marked known")
	}
	if got := p.BPM(); math.Abs(got-120) > 0.001 {
		t.Errorf("500000us = %v BPM, want 120", got)
	}

	p.SetBPM(140)
	if got := p.TempoMicros(); got != 428571 { // round(60e6/140)
		t.Errorf("140 BPM = %dus", got)
	}

	p.SetBPM(10000)
	if got := p.BPM(); got > MaxBPM+0.01 {
		t.Errorf("BPM %v not clamped to %v", got, MaxBPM)
	}
	p.SetBPM(0)
	if got := p.BPM(); got < MinBPM-0.01 {
		t.Errorf("BPM %v not clamped to %v", got, MinBPM)
	}
}

func TestTimeSignatureFirstWins(t *testing.T) {
	p := NewPerformance(192)
	p.SetTimeSignature(3, 4)
	p.SetTimeSignature(7, 8) // later events must not override
	if p.BeatsPerBar != 3 || p.BeatWidth != 4 {
		t.Errorf("signature %d/%d, want the first 3/4", p.BeatsPerBar, p.BeatWidth)
	}
	if !p.TimeSignatureKnown() {
		t.Error("signature not marked known")
	}

	q := NewPerformance(192)
	q.SetTimeSignature(0, 4) // nonsense, ignored
	if q.TimeSignatureKnown() {
		t.Error("zero beats accepted")
	}
}

func TestControlForGrowsTable(t *testing.T) {
	p := NewPerformance(192)
	ctrl := p.ControlFor(10)
	ctrl.Toggle.Data = 42
	if len(p.Controls) != 11 {
		t.Errorf("table length %d, want 11", len(p.Controls))
	}
	if p.Controls[10].Toggle.Data != 42 {
		t.Error("returned control is not backed by the table")
	}
	// Asking again must not grow further.
	p.ControlFor(4)
	if len(p.Controls) != 11 {
		t.Errorf("table regrew to %d", len(p.Controls))
	}
}

func TestAnyMuteSet(t *testing.T) {
	p := NewPerformance(192)
	if p.AnyMuteSet() {
		t.Error("fresh performance claims mute flags")
	}
	p.MuteGroups[12][7] = true
	if !p.AnyMuteSet() {
		t.Error("set flag not detected")
	}
}

func TestClear(t *testing.T) {
	p := NewPerformance(192)
	if err := p.Register(0, NewSequence(192)); err != nil {
		t.Fatal(err)
	}
	p.SetBPM(150)
	p.SetTimeSignature(7, 8)
	p.MuteGroups[0][0] = true
	p.Notes[3] = "bridge"
	p.MusicalKey = 4

	p.Clear()

	if len(p.ActiveSlots()) != 0 {
		t.Error("sequences survived Clear")
	}
	if p.TempoKnown() || p.TimeSignatureKnown() {
		t.Error("tempo or signature still marked known")
	}
	if p.AnyMuteSet() || p.Notes[3] != "" || p.MusicalKey != KeyUnset {
		t.Error("global state survived Clear")
	}
}
