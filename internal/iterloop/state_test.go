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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputBufferNeverExceedsBound(t *testing.T) {
	s := NewAppState(0, CostRates{})
	l := NewLoop(s, nil)
	for i := 0; i < maxOutputLines+50; i++ {
		l.Apply(DrivingEvent{Kind: EvText, Text: "line"})
	}
	assert.Len(t, s.Output, maxOutputLines)
}

func TestTotalTokensInvariant(t *testing.T) {
	s := NewAppState(1000, CostRates{})
	l := NewLoop(s, nil)
	l.Apply(DrivingEvent{Kind: EvTokenUpdate, InputTokens: 10, OutputTokens: 20})
	l.Apply(DrivingEvent{Kind: EvTokenUpdate, InputTokens: 5, OutputTokens: 5})
	assert.Equal(t, s.InputTokens+s.OutputTokens, s.TotalTokens())
	assert.Equal(t, 15, s.InputTokens)
	assert.Equal(t, 25, s.OutputTokens)
}

func TestRedlineExactlyAtThreshold(t *testing.T) {
	s := NewAppState(100, CostRates{})
	l := NewLoop(s, nil)
	l.Apply(DrivingEvent{Kind: EvTokenUpdate, InputTokens: 60, OutputTokens: 40})
	assert.True(t, s.Redlined())
	assert.Equal(t, 1, s.RebootCount, "redline should have triggered exactly one reboot")
}

func TestRedlineOneBelowThresholdDoesNotFire(t *testing.T) {
	s := NewAppState(100, CostRates{})
	l := NewLoop(s, nil)
	l.Apply(DrivingEvent{Kind: EvTokenUpdate, InputTokens: 60, OutputTokens: 39})
	assert.False(t, s.Redlined())
	assert.Equal(t, 0, s.RebootCount)
}

func TestRedlinePreservesCompletedSpecs(t *testing.T) {
	s := NewAppState(50, CostRates{})
	s.Tasks = []TrackedTask{{ID: "001", Title: "Fix the thing", Status: TaskPending}}
	var rebootSpec, rebootLast string
	l := NewLoop(s, func(spec, lastComplete string, rollingLog []string) {
		rebootSpec = spec
		rebootLast = lastComplete
	})
	l.Apply(DrivingEvent{Kind: EvSpecComplete, SpecID: "001"})
	require.Equal(t, TaskCompleted, s.Tasks[0].Status)
	assert.Equal(t, 1, s.CompletedSpec)

	s.CurrentSpecID = "002"
	l.Apply(DrivingEvent{Kind: EvTokenUpdate, InputTokens: 30, OutputTokens: 25})
	assert.Equal(t, "002", rebootSpec)
	assert.Equal(t, "001", rebootLast)
	// completed specs are never reset on reboot
	assert.Equal(t, TaskCompleted, s.Tasks[0].Status)
}

func TestPauseSuspendsEventApplication(t *testing.T) {
	s := NewAppState(0, CostRates{})
	l := NewLoop(s, nil)
	l.Start()
	l.Pause()
	l.Apply(DrivingEvent{Kind: EvText, Text: "should be dropped"})
	assert.Empty(t, s.Output)
	l.Resume()
	l.Apply(DrivingEvent{Kind: EvText, Text: "should land"})
	require.Len(t, s.Output, 1)
	assert.Equal(t, "should land", s.Output[0].Text)
}

func TestLoopStateTransitions(t *testing.T) {
	s := NewAppState(0, CostRates{})
	l := NewLoop(s, nil)
	assert.Equal(t, LoopIdle, s.LoopState)
	l.Start()
	assert.Equal(t, LoopRunning, s.LoopState)
	l.RequestStop()
	assert.Equal(t, LoopStopping, s.LoopState)
	l.FinishStop()
	assert.Equal(t, LoopStopped, s.LoopState)
}

func TestToolPreviewTruncation(t *testing.T) {
	s := NewAppState(0, CostRates{})
	l := NewLoop(s, nil)
	longInput := make([]byte, 500)
	for i := range longInput {
		longInput[i] = 'x'
	}
	l.Apply(DrivingEvent{Kind: EvToolCall, ToolName: "bash", ToolInput: string(longInput)})
	require.Len(t, s.Output, 1)
	assert.LessOrEqual(t, len(s.Output[0].Text), len("tool call: bash ")+toolInputPreviewLen+len("…"))
}
