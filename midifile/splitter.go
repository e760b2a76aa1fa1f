package midifile

import (
	"fmt"

	"go-seqfile/perform"
)

// smfSplitter tracks which channels appear during an SMF-0 decode. Channel
// membership is only knowable once the whole track has been scanned, so the
// split is a second pass over the already-decoded, already-absolute event
// list.
type smfSplitter struct {
	seen  [16]bool
	count int
	main  *perform.Sequence
}

func (sp *smfSplitter) reset() {
	*sp = smfSplitter{}
}

func (sp *smfSplitter) markSeen(channel int) {
	if channel < 0 || channel > 15 {
		return
	}
	if !sp.seen[channel] {
		sp.seen[channel] = true
		sp.count++
	}
}

// split registers one sequence per observed channel at base+channel, each a
// copy of the main sequence filtered to that channel with timestamps
// untouched, then registers the original combined sequence (channel none)
// at the next free slot after the per-channel block.
func (sp *smfSplitter) split(p *perform.Performance, base int) error {
	if sp.main == nil {
		return nil
	}

	if sp.count > 0 {
		for ch := 0; ch < 16; ch++ {
			if !sp.seen[ch] {
				continue
			}
			events := sp.main.EventsOnChannel(ch)
			if len(events) == 0 {
				continue
			}
			ns := perform.NewSequence(sp.main.PPQN)
			ns.SetName(fmt.Sprintf("%d: %s", ch+1, sp.main.Name))
			ns.Channel = ch
			ns.Bus = sp.main.Bus
			ns.BeatsPerBar = sp.main.BeatsPerBar
			ns.BeatWidth = sp.main.BeatWidth
			ns.Events = events
			ns.SetLength(events[len(events)-1].Tick)
			if err := p.Register(base+ch, ns); err != nil {
				return err
			}
		}
	}

	sp.main.Channel = perform.ChannelNone
	slot := p.FirstFreeSlot(base + 16)
	if slot < 0 {
		return fmt.Errorf("no free slot for the combined SMF-0 track")
	}
	return p.Register(slot, sp.main)
}
