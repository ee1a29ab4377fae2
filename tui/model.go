// Package tui renders the live preview: the whole terminal becomes the
// "screen", painted with the current envelope color, with an optional
// debug overlay. Wall-clock alignment is best-effort; determinism is the
// exporter's job, not the preview's.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"midiphoria/engine"
	"midiphoria/live"
	"midiphoria/midi"
)

// render at ~30fps
const tickInterval = 33 * time.Millisecond

type tickMsg time.Time

type Model struct {
	Session *live.Session
	Events  <-chan midi.TimedEvent

	frame    engine.FrameState
	width    int
	height   int
	overlay  bool
	quitting bool
}

func NewModel(session *live.Session, events <-chan midi.TimedEvent) Model {
	return Model{
		Session: session,
		Events:  events,
		overlay: true,
	}
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		// Drain pending MIDI before computing this frame's brightness so
		// events apply in arrival order.
		for {
			select {
			case te := <-m.Events:
				m.Session.HandleEvent(te.Event)
				continue
			default:
			}
			break
		}
		m.frame = m.Session.Frame()
		return m, tick()

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			m.Session.Close()
			return m, tea.Quit

		case "d":
			m.overlay = !m.overlay

		case "l":
			m.Session.ToggleLearnMapping()

		case "n":
			m.Session.CycleTriggerMode()

		case "a":
			m.Session.ToggleLearnAddToSet()

		case "c":
			m.Session.ClearNoteSet()

		case "k":
			m.Session.ToggleColorMode()

		case "v":
			m.Session.ToggleVelocitySensitive()

		case "r":
			m.Session.ResetADSR()

		case "1":
			m.Session.AdjustADSR(func(a *engine.ADSR) { a.Attack -= 0.05 })
		case "2":
			m.Session.AdjustADSR(func(a *engine.ADSR) { a.Attack += 0.05 })
		case "3":
			m.Session.AdjustADSR(func(a *engine.ADSR) { a.Decay -= 0.05 })
		case "4":
			m.Session.AdjustADSR(func(a *engine.ADSR) { a.Decay += 0.05 })
		case "5":
			m.Session.AdjustADSR(func(a *engine.ADSR) { a.Sustain -= 0.05 })
		case "6":
			m.Session.AdjustADSR(func(a *engine.ADSR) { a.Sustain += 0.05 })
		case "7":
			m.Session.AdjustADSR(func(a *engine.ADSR) { a.Release -= 0.05 })
		case "8":
			m.Session.AdjustADSR(func(a *engine.ADSR) { a.Release += 0.05 })
		}
	}

	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "starting..."
	}

	bg := lipgloss.Color(m.frame.Color.Clamped().Hex())
	fill := lipgloss.NewStyle().Background(bg)

	if !m.overlay {
		return fillScreen(fill, m.width, m.height, nil)
	}
	return fillScreen(fill, m.width, m.height, m.overlayLines())
}

func (m Model) overlayLines() []string {
	st := m.Session.State()
	cfg := st.Config

	held := make([]string, 0, len(st.Held))
	for _, n := range st.Held {
		held = append(held, fmt.Sprintf("%d", n))
	}
	notes := make([]string, 0, len(cfg.Trigger.NoteSet))
	for _, n := range cfg.Trigger.NoteSet {
		notes = append(notes, fmt.Sprintf("%d", n))
	}

	flags := []string{}
	if st.LearnMapping {
		flags = append(flags, "LEARN")
	}
	if st.LearnAddToSet {
		flags = append(flags, "ADD-TO-SET")
	}
	if st.Recording {
		flags = append(flags, "REC")
	}
	if cfg.ColorMode {
		flags = append(flags, "color")
	}
	if cfg.VelocitySensitive {
		flags = append(flags, "vel")
	}

	lines := []string{
		fmt.Sprintf("midiphoria  mode:%s  map:%s ch=%d num=%d  %s",
			cfg.Trigger.Mode, cfg.Trigger.Mapping.Kind, cfg.Trigger.Mapping.Channel,
			cfg.Trigger.Mapping.Number, strings.Join(flags, " ")),
		fmt.Sprintf("adsr a=%.2f d=%.2f s=%.2f r=%.2f  level=%.3f",
			cfg.ADSR.Attack, cfg.ADSR.Decay, cfg.ADSR.Sustain, cfg.ADSR.Release, m.frame.Brightness),
		fmt.Sprintf("held:[%s]  set:[%s]", strings.Join(held, ","), strings.Join(notes, ",")),
		"keys: d overlay  l learn  n mode  a add  c clear  k color  v vel  r reset  1-8 adsr  q quit",
	}

	for i, entry := range st.Log {
		if i >= 8 {
			break
		}
		lines = append(lines, "  "+entry)
	}
	return lines
}

// fillScreen paints every cell with the background style, writing the
// overlay lines into the top rows.
func fillScreen(fill lipgloss.Style, width, height int, overlay []string) string {
	var out strings.Builder
	blank := fill.Render(strings.Repeat(" ", width))

	for row := 0; row < height; row++ {
		if row > 0 {
			out.WriteString("\n")
		}
		if row < len(overlay) {
			line := overlay[row]
			if len(line) > width {
				line = line[:width]
			}
			pad := width - lipgloss.Width(line)
			if pad < 0 {
				pad = 0
			}
			out.WriteString(fill.Render(line + strings.Repeat(" ", pad)))
			continue
		}
		out.WriteString(blank)
	}
	return out.String()
}
