package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-seqfile/perform"
	"go-seqfile/theme"
)

// pane identifies which half of the browser has focus
type pane int

const (
	paneTracks pane = iota
	paneEvents
)

// eventPageSize is how many events one page of the right pane shows
const eventPageSize = 24

// Model browses one decoded performance: sequence grid on the left, the
// selected sequence's event list on the right.
type Model struct {
	Perf     *perform.Performance
	FileName string
	Theme    *theme.Theme

	slots    []int
	cursor   int // index into slots
	evOffset int // scroll offset into the selected sequence's events
	focus    pane
	quitting bool
}

func NewModel(p *perform.Performance, fileName string, th *theme.Theme) Model {
	return Model{
		Perf:     p,
		FileName: fileName,
		Theme:    th,
		slots:    p.ActiveSlots(),
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) selected() *perform.Sequence {
	if len(m.slots) == 0 || m.cursor >= len(m.slots) {
		return nil
	}
	return m.Perf.Get(m.slots[m.cursor])
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case "tab":
			if m.focus == paneTracks {
				m.focus = paneEvents
			} else {
				m.focus = paneTracks
			}

		case "j", "down":
			if m.focus == paneTracks {
				if m.cursor < len(m.slots)-1 {
					m.cursor++
					m.evOffset = 0
				}
			} else if seq := m.selected(); seq != nil {
				if m.evOffset+eventPageSize < len(seq.Events) {
					m.evOffset++
				}
			}

		case "k", "up":
			if m.focus == paneTracks {
				if m.cursor > 0 {
					m.cursor--
					m.evOffset = 0
				}
			} else if m.evOffset > 0 {
				m.evOffset--
			}

		case "pgdown", "ctrl+d":
			if seq := m.selected(); seq != nil && m.focus == paneEvents {
				m.evOffset += eventPageSize
				if max := len(seq.Events) - eventPageSize; m.evOffset > max {
					m.evOffset = max
				}
				if m.evOffset < 0 {
					m.evOffset = 0
				}
			}

		case "pgup", "ctrl+u":
			if m.focus == paneEvents {
				m.evOffset -= eventPageSize
				if m.evOffset < 0 {
					m.evOffset = 0
				}
			}

		case "g":
			m.evOffset = 0
		}
	}
	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	headerStyle := lipgloss.NewStyle().Foreground(m.Theme.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())
	cursorStyle := lipgloss.NewStyle().Foreground(m.Theme.Cursor())
	activeStyle := lipgloss.NewStyle().Foreground(m.Theme.Active())

	header := headerStyle.Render(fmt.Sprintf(
		"go-seqfile  %s  %.1fbpm  %d/%d  ppqn:%d  tracks:%d",
		m.FileName, m.Perf.BPM(), m.Perf.BeatsPerBar, m.Perf.BeatWidth,
		m.Perf.PPQN, len(m.slots)))

	left := m.viewTracks(cursorStyle, activeStyle, dimStyle)
	right := m.viewEvents(dimStyle)
	body := lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right)

	help := dimStyle.Render("j/k:move  tab:pane  ctrl+d/u:page  g:top  q:quit")

	return strings.Join([]string{"", header, "", body, "", help, ""}, "\n")
}

func (m Model) viewTracks(cursorStyle, activeStyle, dimStyle lipgloss.Style) string {
	var out strings.Builder
	out.WriteString("SEQUENCES\n")
	if len(m.slots) == 0 {
		out.WriteString(dimStyle.Render("  (none)"))
		return out.String()
	}

	for i, slot := range m.slots {
		seq := m.Perf.Get(slot)
		marker := string(m.Theme.Symbols.TrackActive)
		if len(seq.Events) == 0 {
			marker = string(m.Theme.Symbols.TrackEmpty)
		}

		ch := "--"
		if seq.Channel != perform.ChannelNone {
			ch = fmt.Sprintf("%2d", seq.Channel+1)
		}
		line := fmt.Sprintf("%s %3d  %-20.20s ch:%s  %5d ev  %6d ticks",
			marker, slot, seq.Name, ch, len(seq.Events), seq.Length)

		if i == m.cursor {
			out.WriteString(cursorStyle.Render(string(m.Theme.Symbols.Cursor) + " " + line))
		} else {
			out.WriteString(activeStyle.Render("  " + line))
		}
		out.WriteString("\n")
	}
	return out.String()
}

func (m Model) viewEvents(dimStyle lipgloss.Style) string {
	var out strings.Builder
	out.WriteString("EVENTS\n")

	seq := m.selected()
	if seq == nil || len(seq.Events) == 0 {
		out.WriteString(dimStyle.Render("  (empty)"))
		return out.String()
	}

	end := m.evOffset + eventPageSize
	if end > len(seq.Events) {
		end = len(seq.Events)
	}
	for i := m.evOffset; i < end; i++ {
		out.WriteString("  " + formatEvent(&seq.Events[i], m.Theme) + "\n")
	}
	if end < len(seq.Events) {
		out.WriteString(dimStyle.Render(fmt.Sprintf("  ... %d more", len(seq.Events)-end)))
	}
	return out.String()
}

func formatEvent(ev *perform.Event, th *theme.Theme) string {
	switch {
	case ev.IsNoteOff():
		return fmt.Sprintf("%c %7d  NoteOff ch=%d key=%d", th.Symbols.NoteOff, ev.Tick, ev.Channel()+1, ev.D0)
	case ev.Kind() == perform.StatusNoteOn:
		return fmt.Sprintf("%c %7d  NoteOn  ch=%d key=%d vel=%d", th.Symbols.NoteOn, ev.Tick, ev.Channel()+1, ev.D0, ev.D1)
	case ev.Status == perform.StatusMeta:
		return fmt.Sprintf("%c %7d  Meta %02X  % x", th.Symbols.Meta, ev.Tick, ev.Meta, ev.Payload)
	case ev.Status == perform.StatusSysex || ev.Status == perform.StatusSysexEnd:
		return fmt.Sprintf("%c %7d  SysEx (%d bytes)", th.Symbols.Meta, ev.Tick, len(ev.Payload))
	case ev.IsChannel():
		return fmt.Sprintf("  %7d  %02X ch=%d %d %d", ev.Tick, ev.Kind(), ev.Channel()+1, ev.D0, ev.D1)
	default:
		return fmt.Sprintf("  %7d  %02X", ev.Tick, ev.Status)
	}
}
