// midiplay auditions a decoded file through a real MIDI output port.
package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver

	"go-seqfile/midifile"
	"go-seqfile/perform"
)

func main() {
	defer gomidi.CloseDriver()

	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "list":
		listPorts()
	case "play":
		if len(os.Args) < 3 {
			usage()
			return
		}
		portName := ""
		if len(os.Args) > 3 {
			portName = os.Args[3]
		}
		play(os.Args[2], portName)
	default:
		usage()
	}
}

func usage() {
	fmt.Println("midiplay - audition a MIDI/WRK file")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list                 - List MIDI output ports")
	fmt.Println("  play <file> [port]   - Play a file (first port by default)")
}

func listPorts() {
	outs := gomidi.GetOutPorts()
	if len(outs) == 0 {
		fmt.Println("no MIDI output ports")
		return
	}
	for i, out := range outs {
		fmt.Printf("%2d: %s\n", i, out.String())
	}
}

func openPort(name string) (drivers.Out, error) {
	outs := gomidi.GetOutPorts()
	if len(outs) == 0 {
		return nil, fmt.Errorf("no MIDI output ports")
	}
	if name == "" {
		return outs[0], nil
	}
	for _, out := range outs {
		if strings.Contains(out.String(), name) {
			return out, nil
		}
	}
	return nil, fmt.Errorf("no port matching %q", name)
}

// timedMessage is one wire message scheduled at an absolute tick.
type timedMessage struct {
	tick uint32
	msg  gomidi.Message
}

func play(path, portName string) {
	perf := perform.NewPerformance(0)
	dec := midifile.NewDecoder(midifile.Options{})

	var err error
	if strings.HasSuffix(strings.ToLower(path), ".wrk") {
		err = dec.DecodeWRKFile(path, perf)
	} else {
		err = dec.Decode(path, perf)
	}
	if err != nil && midifile.IsFatal(err) {
		fmt.Fprintf(os.Stderr, "load failed: %v\n", err)
		os.Exit(1)
	}

	out, err := openPort(portName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	send, err := gomidi.SendTo(out)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	msgs := collect(perf)
	if len(msgs) == 0 {
		fmt.Println("nothing to play")
		return
	}

	usPerTick := float64(perf.TempoMicros()) / float64(perf.PPQN)
	fmt.Printf("playing %s  %.1f bpm  %d messages\n", path, perf.BPM(), len(msgs))

	start := time.Now()
	for _, tm := range msgs {
		at := time.Duration(float64(tm.tick)*usPerTick) * time.Microsecond
		if sleep := at - time.Since(start); sleep > 0 {
			time.Sleep(sleep)
		}
		if err := send(tm.msg); err != nil {
			fmt.Fprintf(os.Stderr, "send: %v\n", err)
			return
		}
	}

	// All notes off, every channel that played.
	for ch := uint8(0); ch < 16; ch++ {
		send(gomidi.ControlChange(ch, 123, 0))
	}
}

// collect merges every sequence's channel events into one time-ordered
// message list.
func collect(p *perform.Performance) []timedMessage {
	var msgs []timedMessage
	for _, slot := range p.ActiveSlots() {
		seq := p.Get(slot)
		// The unsplit SMF-0 original duplicates the per-channel sequences.
		if seq.Channel == perform.ChannelNone && len(p.ActiveSlots()) > 1 {
			continue
		}
		for _, ev := range seq.Events {
			if !ev.IsChannel() {
				continue
			}
			ch := uint8(ev.Channel())
			var msg gomidi.Message
			switch ev.Kind() {
			case perform.StatusNoteOn:
				msg = gomidi.NoteOn(ch, ev.D0, ev.D1)
			case perform.StatusNoteOff:
				msg = gomidi.NoteOff(ch, ev.D0)
			case perform.StatusControlChange:
				msg = gomidi.ControlChange(ch, ev.D0, ev.D1)
			case perform.StatusProgramChange:
				msg = gomidi.ProgramChange(ch, ev.D0)
			case perform.StatusPitchWheel:
				bend := int16(int(ev.D1)<<7|int(ev.D0)) - 8192
				msg = gomidi.Pitchbend(ch, bend)
			default:
				continue
			}
			msgs = append(msgs, timedMessage{tick: ev.Tick, msg: msg})
		}
	}
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].tick < msgs[j].tick })
	return msgs
}
