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

// Package iterloop drives the bounded iteration loop that reads
// structured events from a running agent, tracks token budgets against
// a redline kill-switch, and feeds a TUI view model through a single
// typed event channel.
package iterloop

import (
	"strconv"
	"time"
)

// LoopState is the iteration loop's lifecycle state.
type LoopState string

const (
	LoopIdle     LoopState = "idle"
	LoopRunning  LoopState = "running"
	LoopPaused   LoopState = "paused"
	LoopStopping LoopState = "stopping"
	LoopStopped  LoopState = "stopped"
)

// DrivingEventKind tags the structured events the loop consumes from
// the agent.
type DrivingEventKind string

const (
	EvIterationStart DrivingEventKind = "iteration_start"
	EvToolCall       DrivingEventKind = "tool_call"
	EvToolResult     DrivingEventKind = "tool_result"
	EvText           DrivingEventKind = "text"
	EvTokenUpdate    DrivingEventKind = "token_update"
	EvSpecComplete   DrivingEventKind = "spec_complete"
	EvRedline        DrivingEventKind = "redline"
)

// DrivingEvent is one event the agent emits while the loop runs.
type DrivingEvent struct {
	Kind DrivingEventKind

	Iteration int // IterationStart

	ToolName    string // ToolCall / ToolResult
	ToolInput   string
	ToolOutput  string
	ToolSuccess bool

	Text string // Text

	InputTokens  int // TokenUpdate
	OutputTokens int

	SpecID string // SpecComplete
}

// TaskStatus is a tracked spec's completion state in the task list.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
)

// TrackedTask is one spec the loop is driving toward completion.
type TrackedTask struct {
	ID     string
	Title  string
	Status TaskStatus
}

// View selects which of the TUI's three top-level screens is visible.
type View string

const (
	ViewSplit     View = "split"
	ViewDashboard View = "dashboard"
	ViewHelp      View = "help"
)

// Pane identifies a focusable region of the Split view.
type Pane string

const (
	PaneTasks  Pane = "tasks"
	PaneOutput Pane = "output"
)

const maxOutputLines = 10000

// OutputLine is one line appended to the bounded output buffer, tagged
// with the level it should render at.
type OutputLine struct {
	Level Level
	Text  string
}

// Level is the severity a rendered output line carries.
type Level string

const (
	LevelInfo  Level = "info"
	LevelTool  Level = "tool"
	LevelError Level = "error"
)

// CostRates prices input/output tokens separately, in USD per million
// tokens, for the running-cost readout.
type CostRates struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// AppState is the TUI's event-driven application state. Every mutation
// happens on the loop's goroutine in response to a DrivingEvent or a
// key press; no other goroutine may write to it directly.
type AppState struct {
	LoopState LoopState
	View      View
	Focused   Pane

	Tasks         []TrackedTask
	SelectedTask  int
	TaskScroll    int
	CompletedSpec int

	Output       []OutputLine
	OutputScroll int
	autoFollow   bool

	CurrentSpecID string
	Iteration     int

	InputTokens  int
	OutputTokens int
	CostUSD      float64
	CostRates    CostRates

	RedlineThreshold int
	RebootCount      int
	CommitCount      int

	SessionStart time.Time

	ShouldQuit    bool
	QuitRequested bool
}

// NewAppState builds an idle AppState with the given redline threshold
// and cost rates.
func NewAppState(redlineThreshold int, rates CostRates) *AppState {
	return &AppState{
		LoopState:        LoopIdle,
		View:             ViewSplit,
		Focused:          PaneOutput,
		CostRates:        rates,
		RedlineThreshold: redlineThreshold,
		SessionStart:     time.Now(),
		autoFollow:       true,
	}
}

// TotalTokens is the invariant total = input + output.
func (a *AppState) TotalTokens() int { return a.InputTokens + a.OutputTokens }

// Redlined reports whether total tokens has reached the threshold.
func (a *AppState) Redlined() bool {
	return a.RedlineThreshold > 0 && a.TotalTokens() >= a.RedlineThreshold
}

// appendOutput pushes a line onto the bounded buffer, evicting the
// oldest line once the bound is exceeded.
func (a *AppState) appendOutput(level Level, text string) {
	a.Output = append(a.Output, OutputLine{Level: level, Text: text})
	if len(a.Output) > maxOutputLines {
		overflow := len(a.Output) - maxOutputLines
		a.Output = a.Output[overflow:]
		if a.OutputScroll > 0 {
			a.OutputScroll -= overflow
			if a.OutputScroll < 0 {
				a.OutputScroll = 0
			}
		}
	}
	if a.autoFollow {
		a.OutputScroll = len(a.Output)
	}
}

const (
	toolInputPreviewLen  = 100
	toolOutputPreviewLen = 200
)

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}

// RebootFunc restarts the agent session with a compacted context;
// supplied by the caller that owns the agent process.
type RebootFunc func(spec string, lastComplete string, rollingLog []string)

// Loop binds an AppState to a stream of DrivingEvents and drives the
// redline/reboot policy and task tracking.
type Loop struct {
	State  *AppState
	Reboot RebootFunc
}

// NewLoop builds a Loop around state.
func NewLoop(state *AppState, reboot RebootFunc) *Loop {
	return &Loop{State: state, Reboot: reboot}
}

// Apply advances the loop's state in response to ev. It is a no-op
// while the loop is Paused, except that the caller is expected to stop
// calling Apply at all while paused (callers queue events and retry
// once resumed); Apply itself does not buffer.
func (l *Loop) Apply(ev DrivingEvent) {
	s := l.State
	if s.LoopState == LoopPaused {
		return
	}

	switch ev.Kind {
	case EvIterationStart:
		s.Iteration = ev.Iteration
		s.appendOutput(LevelInfo, "iteration "+strconv.Itoa(ev.Iteration)+" started")

	case EvToolCall:
		s.appendOutput(LevelTool, "tool call: "+ev.ToolName+" "+preview(ev.ToolInput, toolInputPreviewLen))

	case EvToolResult:
		status := "ok"
		if !ev.ToolSuccess {
			status = "failed"
		}
		s.appendOutput(LevelTool, "tool result ("+status+"): "+preview(ev.ToolOutput, toolOutputPreviewLen))

	case EvText:
		s.appendOutput(LevelInfo, ev.Text)

	case EvTokenUpdate:
		s.InputTokens += ev.InputTokens
		s.OutputTokens += ev.OutputTokens
		s.CostUSD = float64(s.InputTokens)/1_000_000*s.CostRates.InputPerMillion +
			float64(s.OutputTokens)/1_000_000*s.CostRates.OutputPerMillion
		if s.Redlined() {
			l.Apply(DrivingEvent{Kind: EvRedline})
		}

	case EvSpecComplete:
		for i := range s.Tasks {
			if s.Tasks[i].ID == ev.SpecID {
				s.Tasks[i].Status = TaskCompleted
				s.CompletedSpec++
				break
			}
		}
		s.appendOutput(LevelInfo, "spec complete: "+ev.SpecID)

	case EvRedline:
		s.RebootCount++
		s.appendOutput(LevelError, "redline reached, rebooting with compacted context")
		if l.Reboot != nil {
			l.Reboot(s.CurrentSpecID, l.lastCompletedSpecID(), l.rollingLog(20))
		}
	}
}

func (l *Loop) lastCompletedSpecID() string {
	for i := len(l.State.Tasks) - 1; i >= 0; i-- {
		if l.State.Tasks[i].Status == TaskCompleted {
			return l.State.Tasks[i].ID
		}
	}
	return ""
}

// rollingLog returns the last n output lines' text, for the compacted
// context a reboot carries forward.
func (l *Loop) rollingLog(n int) []string {
	out := l.State.Output
	if len(out) > n {
		out = out[len(out)-n:]
	}
	lines := make([]string, len(out))
	for i, o := range out {
		lines[i] = o.Text
	}
	return lines
}

// Pause suspends event application while still accepting UI input.
func (l *Loop) Pause() {
	if l.State.LoopState == LoopRunning {
		l.State.LoopState = LoopPaused
	}
}

// Resume continues event application after a pause.
func (l *Loop) Resume() {
	if l.State.LoopState == LoopPaused {
		l.State.LoopState = LoopRunning
	}
}

// Start transitions Idle -> Running.
func (l *Loop) Start() {
	if l.State.LoopState == LoopIdle {
		l.State.LoopState = LoopRunning
	}
}

// RequestStop transitions to Stopping; the caller completes the
// transition to Stopped once the current primitive returns.
func (l *Loop) RequestStop() {
	if l.State.LoopState == LoopRunning || l.State.LoopState == LoopPaused {
		l.State.LoopState = LoopStopping
	}
}

// FinishStop completes a pending stop.
func (l *Loop) FinishStop() {
	if l.State.LoopState == LoopStopping {
		l.State.LoopState = LoopStopped
	}
}
