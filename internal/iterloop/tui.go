// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package iterloop

import (
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
)

// KeyMap is the Split/Dashboard/Help key legend.
type KeyMap struct {
	Pause      key.Binding
	Dashboard  key.Binding
	ScrollTop  key.Binding
	Quit       key.Binding
	Help       key.Binding
	Up         key.Binding
	Down       key.Binding
	PageUp     key.Binding
	PageDown   key.Binding
	Home       key.Binding
	End        key.Binding
	Tab        key.Binding
}

// DefaultKeyMap matches the §4.10 key legend.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Pause:     key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "pause/resume")),
		Dashboard: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "toggle dashboard")),
		ScrollTop: key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "scroll to top")),
		Quit:      key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
		Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Up:        key.NewBinding(key.WithKeys("up")),
		Down:      key.NewBinding(key.WithKeys("down")),
		PageUp:    key.NewBinding(key.WithKeys("pgup")),
		PageDown:  key.NewBinding(key.WithKeys("pgdown")),
		Home:      key.NewBinding(key.WithKeys("home")),
		End:       key.NewBinding(key.WithKeys("end")),
		Tab:       key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "cycle focus")),
	}
}

// DrivingEventMsg wraps a DrivingEvent for delivery through the
// bubbletea update loop, the single typed channel every producer
// (agent, forge session, rate limiter) writes onto.
type DrivingEventMsg struct{ Event DrivingEvent }

// Model is the bubbletea-driven TUI view model wrapping a Loop.
type Model struct {
	loop            *Loop
	keys            KeyMap
	width, height   int
	quitConfirming  bool
}

// NewModel builds a Model around loop.
func NewModel(loop *Loop) Model {
	return Model{loop: loop, keys: DefaultKeyMap()}
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case DrivingEventMsg:
		m.loop.Apply(msg.Event)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	s := m.loop.State
	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.loop.State.LoopState == LoopRunning && !m.quitConfirming {
			m.quitConfirming = true
			return m, nil
		}
		s.QuitRequested = true
		s.ShouldQuit = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Pause):
		if s.LoopState == LoopRunning {
			m.loop.Pause()
		} else if s.LoopState == LoopPaused {
			m.loop.Resume()
		}
		m.quitConfirming = false
		return m, nil

	case key.Matches(msg, m.keys.Dashboard):
		if s.View == ViewDashboard {
			s.View = ViewSplit
		} else {
			s.View = ViewDashboard
		}
		return m, nil

	case key.Matches(msg, m.keys.Help):
		if s.View == ViewHelp {
			s.View = ViewSplit
		} else {
			s.View = ViewHelp
		}
		return m, nil

	case key.Matches(msg, m.keys.ScrollTop):
		s.OutputScroll = 0
		s.autoFollow = false
		return m, nil

	case key.Matches(msg, m.keys.Tab):
		if s.Focused == PaneOutput {
			s.Focused = PaneTasks
		} else {
			s.Focused = PaneOutput
		}
		return m, nil

	case key.Matches(msg, m.keys.Up):
		m.scroll(-1)
		return m, nil
	case key.Matches(msg, m.keys.Down):
		m.scroll(1)
		return m, nil
	case key.Matches(msg, m.keys.PageUp):
		m.scroll(-10)
		return m, nil
	case key.Matches(msg, m.keys.PageDown):
		m.scroll(10)
		return m, nil
	case key.Matches(msg, m.keys.Home):
		s.OutputScroll = 0
		s.autoFollow = false
		return m, nil
	case key.Matches(msg, m.keys.End):
		s.OutputScroll = len(s.Output)
		s.autoFollow = true
		return m, nil
	}

	m.quitConfirming = false
	return m, nil
}

// scroll moves the focused pane's scroll position by delta lines,
// clamping to bounds and disabling auto-follow unless the result lands
// within the visible window of the most recent line.
func (m Model) scroll(delta int) {
	s := m.loop.State
	switch s.Focused {
	case PaneTasks:
		s.TaskScroll += delta
		if s.TaskScroll < 0 {
			s.TaskScroll = 0
		}
	default:
		s.OutputScroll += delta
		if s.OutputScroll < 0 {
			s.OutputScroll = 0
		}
		if s.OutputScroll > len(s.Output) {
			s.OutputScroll = len(s.Output)
		}
		visibleWindow := m.outputPaneHeight()
		s.autoFollow = len(s.Output)-s.OutputScroll <= visibleWindow
	}
}

func (m Model) outputPaneHeight() int {
	h := m.height - 6
	if h < 5 {
		return 5
	}
	return h
}

var (
	styleBorder   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder())
	styleStatus   = lipgloss.NewStyle().Faint(true)
	styleError    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	styleTool     = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	styleRedline  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	styleSelected = lipgloss.NewStyle().Reverse(true)
)

func (m Model) View() string {
	s := m.loop.State
	switch s.View {
	case ViewDashboard:
		return m.renderDashboard()
	case ViewHelp:
		return m.renderHelp()
	default:
		return m.renderSplit()
	}
}

func (m Model) renderSplit() string {
	s := m.loop.State
	var sb strings.Builder

	sb.WriteString(styleBorder.Render(m.renderTaskList()))
	sb.WriteString("\n")
	sb.WriteString(styleBorder.Render(m.renderOutput()))
	sb.WriteString("\n")
	sb.WriteString(m.renderProgress())
	sb.WriteString("\n")
	sb.WriteString(m.renderTokenGauge())
	sb.WriteString("\n")
	sb.WriteString(m.renderStatusBar())

	if m.quitConfirming {
		sb.WriteString("\n")
		sb.WriteString(styleError.Render("press q again to quit"))
	}
	_ = s
	return sb.String()
}

func (m Model) renderTaskList() string {
	s := m.loop.State
	var sb strings.Builder
	sb.WriteString("Tasks\n")
	for i, t := range s.Tasks {
		line := fmt.Sprintf("[%s] %s", statusGlyph(t.Status), t.Title)
		if i == s.SelectedTask {
			line = styleSelected.Render(line)
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}

func statusGlyph(st TaskStatus) string {
	switch st {
	case TaskCompleted:
		return "x"
	case TaskRunning:
		return "~"
	default:
		return " "
	}
}

func (m Model) renderOutput() string {
	s := m.loop.State
	lines := s.Output
	h := m.outputPaneHeight()
	start := s.OutputScroll
	if start > len(lines) {
		start = len(lines)
	}
	end := start + h
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		start = end
	}

	var sb strings.Builder
	for _, l := range lines[start:end] {
		switch l.Level {
		case LevelError:
			sb.WriteString(styleError.Render(l.Text))
		case LevelTool:
			sb.WriteString(styleTool.Render(l.Text))
		default:
			sb.WriteString(l.Text)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m Model) renderProgress() string {
	s := m.loop.State
	total := len(s.Tasks)
	return fmt.Sprintf("Progress: %d/%d specs complete · iteration %d · reboots %d · commits %d",
		s.CompletedSpec, total, s.Iteration, s.RebootCount, s.CommitCount)
}

func (m Model) renderTokenGauge() string {
	s := m.loop.State
	line := fmt.Sprintf("Tokens: %d in / %d out (%d total) · $%.4f",
		s.InputTokens, s.OutputTokens, s.TotalTokens(), s.CostUSD)
	if s.Redlined() {
		return styleRedline.Render(line + " · REDLINE")
	}
	return line
}

func (m Model) renderStatusBar() string {
	s := m.loop.State
	return styleStatus.Render(fmt.Sprintf("[%s] spec=%s  p pause  d dashboard  l top  q quit  ? help",
		s.LoopState, s.CurrentSpecID))
}

func (m Model) renderDashboard() string {
	s := m.loop.State
	elapsed := "n/a"
	if !s.SessionStart.IsZero() {
		elapsed = time.Since(s.SessionStart).Round(time.Second).String()
	}
	return styleBorder.Render(fmt.Sprintf(
		"Dashboard\n\nState: %s\nElapsed: %s\nIterations: %d\nSpecs completed: %d/%d\nReboots: %d\nCommits: %d\nTokens: %d in / %d out\nCost: $%.4f\n",
		s.LoopState, elapsed, s.Iteration, s.CompletedSpec, len(s.Tasks), s.RebootCount, s.CommitCount,
		s.InputTokens, s.OutputTokens, s.CostUSD,
	))
}

func (m Model) renderHelp() string {
	return styleBorder.Render(strings.Join([]string{
		"Help",
		"",
		"p        pause / resume",
		"d        toggle dashboard",
		"l        scroll output to top",
		"q        quit (press twice while running)",
		"?        toggle this help",
		"tab      cycle focus between task list and output",
		"arrows   scroll the focused pane",
		"pgup/dn  scroll a page at a time",
		"home/end jump to top/bottom",
	}, "\n"))
}
