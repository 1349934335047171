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
package forge

import (
	"time"

	"github.com/google/uuid"
)

// Topic is the subject a session deliberates over.
type Topic struct {
	Title       string
	Description string
	Constraints []string
}

// RoundKind tags which stage of the pipeline a Round came from.
type RoundKind string

const (
	RoundDraft       RoundKind = "draft"
	RoundCritique    RoundKind = "critique"
	RoundSynthesis   RoundKind = "synthesis"
	RoundConvergence RoundKind = "convergence"
	RoundRefinement  RoundKind = "refinement"
)

// Vote is one participant's convergence opinion.
type Vote struct {
	Participant string
	Agrees      bool
	Reasoning   string
}

// Round is a tagged union over the five round kinds; only the fields
// relevant to Kind are populated.
type Round struct {
	Kind        RoundKind
	Participant string

	// Draft / Synthesis / Refinement
	Content   string
	Reasoning string
	Tokens    int

	// Critique
	Concerns []string
	Severity string

	// Convergence
	Votes           []Vote
	RemainingIssues []string
	Score           float64

	// Refinement
	FocusArea string
	Depth     string

	CreatedAt time.Time
}

// Status is the session's lifecycle state.
type Status string

const (
	StatusCreating  Status = "creating"
	StatusActive    Status = "active"
	StatusConverged Status = "converged"
	StatusStopped   Status = "stopped"
	StatusFailed    Status = "failed"
)

// SessionConfig bounds a session's round budget and convergence criteria.
type SessionConfig struct {
	MaxRounds            int
	ConvergenceThreshold float64
	RoundTimeout         time.Duration
}

// DefaultSessionConfig matches the original runtime's defaults.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{MaxRounds: 6, ConvergenceThreshold: 0.75, RoundTimeout: 2 * time.Minute}
}

// TokenUsage accumulates input/output token counts across a session.
type TokenUsage struct {
	Input  int
	Output int
}

// Session is one Forge deliberation: a topic, a round history, and a
// status that is append-only once terminal.
type Session struct {
	ID           string
	Topic        Topic
	Config       SessionConfig
	Rounds       []Round
	Status       Status
	FailReason   string
	Usage        TokenUsage
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewSession creates a session in the Creating state.
func NewSession(topic Topic, cfg SessionConfig) *Session {
	now := time.Now()
	return &Session{ID: uuid.NewString(), Topic: topic, Config: cfg, Status: StatusCreating, CreatedAt: now, UpdatedAt: now}
}

// AppendRound adds a round if the session is not yet terminal.
func (s *Session) AppendRound(r Round) bool {
	if s.Status == StatusConverged || s.Status == StatusFailed || s.Status == StatusStopped {
		return false
	}
	r.CreatedAt = time.Now()
	s.Rounds = append(s.Rounds, r)
	s.UpdatedAt = r.CreatedAt
	return true
}

// LastOfKind returns the most recent round of the given kind, if any.
func (s *Session) LastOfKind(kind RoundKind) (Round, bool) {
	for i := len(s.Rounds) - 1; i >= 0; i-- {
		if s.Rounds[i].Kind == kind {
			return s.Rounds[i], true
		}
	}
	return Round{}, false
}
