package midifile

import (
	"testing"

	"go-seqfile/perform"
)

func TestDecodeFormat0SplitsByChannel(t *testing.T) {
	var body trackBody
	body.event(0, perform.StatusMeta, perform.MetaTrackName, 5)
	body.PutBytes([]byte("combo"))
	body.event(0, perform.StatusNoteOn|0, 60, 100)
	body.event(0, perform.StatusNoteOn|3, 64, 100)
	body.event(0, perform.StatusNoteOn|7, 67, 100)
	body.event(192, perform.StatusNoteOff|0, 60, 0)
	body.event(0, perform.StatusNoteOff|3, 64, 0)
	body.event(0, perform.StatusNoteOff|7, 67, 0)
	body.endOfTrack()

	data := concat(smfHeader(0, 1, 192), mtrk(body.Bytes()))

	p := perform.NewPerformance(0)
	if err := NewDecoder(Options{}).DecodeBytes(data, p); err != nil {
		t.Fatalf("DecodeBytes: %v", err)
	}

	total := 0
	for _, ch := range []int{0, 3, 7} {
		seq := p.Get(ch)
		if seq == nil {
			t.Fatalf("no split sequence at slot %d", ch)
		}
		if seq.Channel != ch {
			t.Errorf("slot %d: channel %d", ch, seq.Channel)
		}
		wantName := map[int]string{0: "1: combo", 3: "4: combo", 7: "8: combo"}[ch]
		if seq.Name != wantName {
			t.Errorf("slot %d: name %q, want %q", ch, seq.Name, wantName)
		}
		if len(seq.Events) != 2 {
			t.Errorf("slot %d: %d events, want 2", ch, len(seq.Events))
		}
		for i := range seq.Events {
			if got := seq.Events[i].Channel(); got != ch {
				t.Errorf("slot %d: event on channel %d", ch, got)
			}
		}
		total += len(seq.Events)
	}

	// The combined original lands after the 16 per-channel slots.
	main := p.Get(16)
	if main == nil {
		t.Fatal("no combined sequence at slot 16")
	}
	if main.Channel != perform.ChannelNone {
		t.Errorf("combined sequence channel %d, want none", main.Channel)
	}
	if main.Name != "combo" {
		t.Errorf("combined sequence name %q", main.Name)
	}

	// Every channel event of the original appears in exactly one split.
	channelEvents := 0
	for i := range main.Events {
		if main.Events[i].IsChannel() {
			channelEvents++
		}
	}
	if total != channelEvents {
		t.Errorf("split sequences hold %d events, combined holds %d", total, channelEvents)
	}

	// No stray registrations.
	if got := len(p.ActiveSlots()); got != 4 {
		t.Errorf("%d active slots, want 4", got)
	}
}

func TestSplitterMarkSeen(t *testing.T) {
	var sp smfSplitter
	sp.markSeen(5)
	sp.markSeen(5)
	sp.markSeen(-1)
	sp.markSeen(16)
	if sp.count != 1 {
		t.Errorf("count = %d, want 1", sp.count)
	}
	if !sp.seen[5] {
		t.Error("channel 5 not marked")
	}
}
