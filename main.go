package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	charmlog "github.com/charmbracelet/log"

	"go-seqfile/config"
	"go-seqfile/debug"
	"go-seqfile/midifile"
	"go-seqfile/perform"
	"go-seqfile/theme"
	"go-seqfile/tui"
)

func main() {
	ppqn := flag.Int("ppqn", 0, "rescale to this PPQN (0 = use the config default, -1 = keep the file's own)")
	verify := flag.Bool("verify", false, "parse only, discard the result (playlist validation)")
	importOnly := flag.Bool("import", false, "skip the proprietary footer (merge mode)")
	legacy := flag.Bool("legacy", false, "write the footer in the legacy bare-tag format")
	output := flag.String("o", "", "re-encode the loaded performance to this path")
	browse := flag.Bool("tui", false, "open the performance browser after loading")
	palettePath := flag.String("palette", "", "GIMP .gpl palette for the browser")
	debugLog := flag.Bool("debug", false, "enable the debug log")
	flag.Parse()

	log := charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		ReportTimestamp: false,
		Prefix:          "go-seqfile",
	})

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: go-seqfile [flags] file.mid [more.mid ...]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Warn("config unreadable, using defaults", "err", err)
		cfg = config.DefaultConfig()
	}

	if *debugLog || cfg.UI.DebugLog {
		if err := debug.Enable(); err != nil {
			log.Warn("debug log unavailable", "err", err)
		}
		defer debug.Disable()
	}

	opts := midifile.Options{
		TargetPPQN:               cfg.File.PPQN,
		VerifyOnly:               *verify,
		Import:                   *importOnly,
		LegacyFormat:             *legacy || cfg.File.LegacyFormat,
		GlobalBackgroundSequence: cfg.File.GlobalBackgroundSequence,
		CaptureSysex:             cfg.File.CaptureSysex,
	}
	switch {
	case *ppqn > 0:
		opts.TargetPPQN = *ppqn
	case *ppqn < 0:
		opts.TargetPPQN = 0
	}

	perf := perform.NewPerformance(opts.TargetPPQN)

	lastFile := ""
	for i, path := range flag.Args() {
		// Tracks from every file after the first land in fresh screen-sets.
		opts.ScreenSetOffset = i
		dec := midifile.NewDecoder(opts)

		if strings.HasSuffix(strings.ToLower(path), ".wrk") {
			err = dec.DecodeWRKFile(path, perf)
		} else {
			err = dec.Decode(path, perf)
		}
		switch {
		case err == nil:
		case midifile.IsFatal(err):
			log.Error("load failed", "file", path, "err", err)
			os.Exit(1)
		default:
			log.Warn("loaded with problems", "file", path, "err", err)
		}
		lastFile = path
		cfg.AddRecentFile(path)
	}
	if err := cfg.Save(); err != nil {
		debug.Log("main", "config save failed: %v", err)
	}

	if *verify {
		log.Info("verify passed", "files", flag.NArg())
		return
	}

	slots := perf.ActiveSlots()
	log.Info("loaded",
		"sequences", len(slots),
		"bpm", fmt.Sprintf("%.1f", perf.BPM()),
		"timesig", fmt.Sprintf("%d/%d", perf.BeatsPerBar, perf.BeatWidth))

	if *output != "" {
		enc := midifile.NewEncoder(opts)
		if err := enc.Encode(perf, *output); err != nil {
			log.Error("save failed", "file", *output, "err", err)
			os.Exit(1)
		}
		log.Info("saved", "file", *output)
	}

	if *browse {
		th := theme.New(theme.LoadGPLOrDefault(*palettePath))
		m := tui.NewModel(perf, lastFile, th)
		p := tea.NewProgram(m, tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			log.Error("tui", "err", err)
			os.Exit(1)
		}
		return
	}

	for _, slot := range slots {
		seq := perf.Get(slot)
		fmt.Printf("  %3d  %s\n", slot, seq)
	}
}
