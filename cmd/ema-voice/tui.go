package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	playback "github.com/koscakluka/ema-voice/core"
	"github.com/koscakluka/ema-voice/internal/config"
)

const (
	waveformHeight    = 8
	waveformMinHeight = 1
	defaultWidth      = 60
)

var waveformGlyphs = []rune("▁▂▃▄▅▆▇█")

type (
	modeMsg     struct{ mode playback.Mode }
	waveformMsg struct {
		bars     []uint8
		progress float64
	}
	errorMsg struct{ err error }
)

type keyMap struct {
	Record key.Binding
	Quit   key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Record, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var keys = keyMap{
	Record: key.NewBinding(key.WithKeys(" ", "r"), key.WithHelp("space", "record / send")),
	Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	subtleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	waveformStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	badgeStyle    = lipgloss.NewStyle().Padding(0, 1).Bold(true).Foreground(lipgloss.Color("230"))

	badgeColors = map[playback.Mode]lipgloss.Color{
		playback.ModeIdle:             lipgloss.Color("240"),
		playback.ModeRecording:        lipgloss.Color("160"),
		playback.ModeAwaitingResponse: lipgloss.Color("136"),
		playback.ModeSpeaking:         lipgloss.Color("29"),
		playback.ModeError:            lipgloss.Color("124"),
	}
)

type model struct {
	ctrl    *controller
	backend config.BackendConfig

	mode     playback.Mode
	bars     []uint8
	progress float64
	lastErr  error

	width   int
	spinner spinner.Model
	help    help.Model
	keys    keyMap
}

func newModel(ctrl *controller, backend config.BackendConfig) model {
	return model{
		ctrl:    ctrl,
		backend: backend,
		width:   defaultWidth,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		help:    help.New(),
		keys:    keys,
	}
}

func (m model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Record):
			if m.ctrl == nil {
				return m, nil
			}
			return m, m.ctrl.toggle()
		}
		return m, nil

	case modeMsg:
		m.mode = msg.mode
		if msg.mode == playback.ModeRecording {
			m.lastErr = nil
		}
		return m, nil

	case waveformMsg:
		m.bars = msg.bars
		m.progress = msg.progress
		return m, nil

	case errorMsg:
		m.lastErr = msg.err
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("ema-voice"))
	b.WriteString(" ")
	b.WriteString(subtleStyle.Render(fmt.Sprintf("%s · %s · %s", m.backend.SessionID, m.backend.ModelID, m.backend.VoiceID)))
	b.WriteString("\n\n")

	b.WriteString(m.badge())
	if m.mode == playback.ModeAwaitingResponse {
		b.WriteString(" ")
		b.WriteString(m.spinner.View())
	}
	b.WriteString("\n\n")

	if wave := renderWaveform(m.bars); wave != "" {
		b.WriteString(waveformStyle.Render(wave))
		b.WriteString(subtleStyle.Render(fmt.Sprintf(" %3.0f%%", 100*m.progress)))
		b.WriteString("\n\n")
	}

	if m.lastErr != nil {
		b.WriteString(errorStyle.Render(wordwrap.String(m.lastErr.Error(), max(m.width, 20))))
		b.WriteString("\n\n")
	}

	b.WriteString(m.help.View(m.keys))
	b.WriteString("\n")
	return b.String()
}

func (m model) badge() string {
	label := strings.ToUpper(strings.ReplaceAll(m.mode.String(), "_", " "))
	return badgeStyle.Background(badgeColors[m.mode]).Render(label)
}

// renderWaveform draws one glyph per level bar. Nil bars draw nothing.
func renderWaveform(bars []uint8) string {
	if bars == nil {
		return ""
	}

	heights := playback.BarHeights(bars, waveformHeight, waveformMinHeight)
	glyphs := make([]rune, len(heights))
	for i, h := range heights {
		glyphs[i] = waveformGlyphs[min(max(h, 1), len(waveformGlyphs))-1]
	}
	return string(glyphs)
}
