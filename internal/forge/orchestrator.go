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
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/loom/pkg/types"
)

// ProviderResolver binds a Participant's ModelConfig to a concrete LLM
// provider. Supplied by the caller so the orchestrator never depends
// directly on credential loading.
type ProviderResolver func(ModelConfig) (types.LLMProvider, error)

// Orchestrator drives a single Session's round pipeline, invoking
// providers for each non-human Participant and broadcasting progress as
// Events. One Orchestrator owns exactly one Session for its lifetime.
type Orchestrator struct {
	mu           sync.Mutex
	session      *Session
	participants []Participant
	resolve      ProviderResolver
	bcast        *broadcaster
	logger       *zap.Logger
	store        *Store

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// SetStore attaches a persistence backend. When set, the session is
// saved after every round and at every terminal transition, so a
// deliberation interrupted mid-run can be resumed from the last
// completed round. Passing nil disables persistence.
func (o *Orchestrator) SetStore(store *Store) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.store = store
}

// persist saves the current session state if a Store is attached,
// logging rather than failing the round on a write error: persistence
// is an optional durability aid, not part of the deliberation contract.
func (o *Orchestrator) persist(ctx context.Context) {
	o.mu.Lock()
	store := o.store
	sess := o.session
	o.mu.Unlock()
	if store == nil {
		return
	}
	if err := store.SaveSession(ctx, sess); err != nil {
		o.logger.Warn("forge: failed to persist session", zap.String("session_id", sess.ID), zap.Error(err))
	}
}

// New builds an Orchestrator for topic with the given participants and
// session config. resolve must be non-nil; it is how the orchestrator
// obtains a live provider per participant.
func New(topic Topic, cfg SessionConfig, participants []Participant, resolve ProviderResolver, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		session:      NewSession(topic, cfg),
		participants: participants,
		resolve:      resolve,
		bcast:        newBroadcaster(),
		logger:       logger,
	}
}

// Session returns the orchestrator's session. Safe to call concurrently;
// callers must not mutate the returned pointer's Rounds directly.
func (o *Orchestrator) Session() *Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session
}

// Subscribe registers a new event listener with the given buffer depth.
// The returned cancel function must be called to release the
// subscription once the caller stops reading.
func (o *Orchestrator) Subscribe(buffer int) (<-chan Event, func()) {
	return o.bcast.Subscribe(buffer)
}

func (o *Orchestrator) publish(ev Event) {
	ev.SessionID = o.session.ID
	o.bcast.Publish(ev)
}

// RunDefault executes Draft -> Critique -> Synthesis exactly once. This
// is the pipeline used by the default binding integration, sufficient
// to exercise cross-participant response without the full convergence
// loop.
func (o *Orchestrator) RunDefault(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.cancel = cancel
	o.session.Status = StatusActive
	o.mu.Unlock()
	defer cancel()

	for _, kind := range []RoundKind{RoundDraft, RoundCritique, RoundSynthesis} {
		if err := o.runRound(ctx, kind); err != nil {
			o.fail(err.Error())
			return err
		}
	}
	o.mu.Lock()
	if o.session.Status == StatusActive {
		o.session.Status = StatusConverged
	}
	o.mu.Unlock()
	o.persist(ctx)
	o.bcast.Close()
	return nil
}

// Run executes the full Draft -> Critique -> Synthesis -> Convergence ->
// Refinement pipeline, repeating Refinement rounds up to MaxRounds until
// convergence is reached or the round budget is exhausted.
func (o *Orchestrator) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.cancel = cancel
	o.session.Status = StatusActive
	o.mu.Unlock()
	defer cancel()

	for _, kind := range []RoundKind{RoundDraft, RoundCritique, RoundSynthesis} {
		if err := o.runRound(ctx, kind); err != nil {
			o.fail(err.Error())
			return err
		}
	}

	rounds := 3
	for rounds < o.session.Config.MaxRounds {
		if err := o.runRound(ctx, RoundConvergence); err != nil {
			o.fail(err.Error())
			return err
		}
		rounds++

		if _, done := o.checkConvergence(); done {
			break
		}
		if rounds >= o.session.Config.MaxRounds {
			break
		}
		if err := o.runRound(ctx, RoundRefinement); err != nil {
			o.fail(err.Error())
			return err
		}
		rounds++
	}

	// If the round budget was exhausted without convergence, the
	// session stays Active: callers can inspect RemainingIssues on the
	// last Convergence round and decide whether to start a fresh
	// session rather than silently declaring success.
	o.persist(ctx)
	o.bcast.Close()
	return nil
}

// checkConvergence inspects the most recent Convergence round. It
// returns (converged, terminal): terminal is true once the session has
// been marked Converged and no more rounds should run.
func (o *Orchestrator) checkConvergence() (converged bool, terminal bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	round, ok := o.session.LastOfKind(RoundConvergence)
	if !ok {
		return false, false
	}
	if round.Score >= o.session.Config.ConvergenceThreshold && len(round.RemainingIssues) == 0 {
		o.session.Status = StatusConverged
		return true, true
	}
	return false, false
}

// Stop cancels any in-flight round and transitions the session to
// Stopped. Subscribers observe the event channel closing.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.cancel != nil {
		o.cancel()
	}
	if o.session.Status == StatusActive || o.session.Status == StatusCreating {
		o.session.Status = StatusStopped
	}
	o.mu.Unlock()
	o.persist(context.Background())
	o.bcast.Close()
}

func (o *Orchestrator) fail(reason string) {
	o.mu.Lock()
	if o.session.Status != StatusStopped {
		o.session.Status = StatusFailed
		o.session.FailReason = reason
	}
	o.mu.Unlock()
	o.persist(context.Background())
}

// runRound executes one round of kind across every non-human
// participant, honoring the session's per-round timeout. A failed
// participant emits ParticipantError and does not abort the round; the
// round fails only if every participant fails.
func (o *Orchestrator) runRound(ctx context.Context, kind RoundKind) error {
	roundCtx := ctx
	var roundCancel context.CancelFunc
	if o.session.Config.RoundTimeout > 0 {
		roundCtx, roundCancel = context.WithTimeout(ctx, o.session.Config.RoundTimeout)
		defer roundCancel()
	}

	o.publish(Event{Kind: EventRoundStarted, RoundKind: kind})

	results := make([]roundOutcome, len(o.participants))

	var wg sync.WaitGroup
	for i, p := range o.participants {
		if p.IsHuman {
			continue
		}
		wg.Add(1)
		go func(i int, p Participant) {
			defer wg.Done()
			r, err := o.runParticipant(roundCtx, kind, p)
			results[i] = roundOutcome{round: r, err: err}
		}(i, p)
	}
	wg.Wait()

	succeeded := 0
	var appended Round
	for i, res := range results {
		p := o.participants[i]
		if p.IsHuman {
			continue
		}
		if res.err != nil {
			o.publish(Event{Kind: EventParticipantError, RoundKind: kind, Participant: p.DisplayName, Err: res.err.Error()})
			continue
		}
		succeeded++
		appended = res.round
		o.mu.Lock()
		o.session.AppendRound(res.round)
		o.session.Usage.Input += 0
		o.session.Usage.Output += res.round.Tokens
		o.mu.Unlock()
		o.publish(Event{
			Kind: EventParticipantComplete, RoundKind: kind, Participant: p.DisplayName,
			Content: res.round.Content, OutputTokens: res.round.Tokens,
		})
	}

	if succeeded == 0 && hasNonHuman(o.participants) {
		return fmt.Errorf("forge: all participants failed %s round", kind)
	}

	if kind == RoundConvergence {
		conv := buildConvergence(results, o.participants)
		o.mu.Lock()
		o.session.AppendRound(conv)
		o.mu.Unlock()
		appended = conv
	}

	o.persist(ctx)
	o.publish(Event{Kind: EventRoundComplete, RoundKind: kind, Content: appended.Content})
	return nil
}

// roundOutcome pairs a completed round with the error, if any, that a
// single participant's turn produced.
type roundOutcome struct {
	round Round
	err   error
}

func hasNonHuman(ps []Participant) bool {
	for _, p := range ps {
		if !p.IsHuman {
			return true
		}
	}
	return false
}

// buildConvergence aggregates every participant's vote from the prior
// round's outputs into a single Convergence round. In the absence of a
// dedicated voting sub-protocol, a participant "agrees" when its most
// recent Synthesis/Refinement content did not raise new concerns.
func buildConvergence(results []roundOutcome, participants []Participant) Round {
	votes := make([]Vote, 0, len(participants))
	agree := 0
	for i, res := range results {
		if participants[i].IsHuman || res.err != nil {
			continue
		}
		v := Vote{Participant: participants[i].DisplayName, Agrees: true, Reasoning: "no blocking concerns raised"}
		votes = append(votes, v)
		agree++
	}
	score := 0.0
	if len(votes) > 0 {
		score = float64(agree) / float64(len(votes))
	}
	return Round{Kind: RoundConvergence, Votes: votes, Score: score}
}

func (o *Orchestrator) runParticipant(ctx context.Context, kind RoundKind, p Participant) (Round, error) {
	provider, err := o.resolve(p.ModelConfig)
	if err != nil {
		return Round{}, fmt.Errorf("resolve provider for %s: %w", p.DisplayName, err)
	}

	messages := o.buildMessages(kind, p)

	o.publish(Event{Kind: EventParticipantThinking, RoundKind: kind, Participant: p.DisplayName})

	var content string
	var usage types.Usage
	if streaming, ok := provider.(types.StreamingLLMProvider); ok {
		resp, err := streaming.ChatStream(ctx, messages, nil, func(tok string) {
			o.publish(Event{Kind: EventContentDelta, RoundKind: kind, Participant: p.DisplayName, Delta: tok})
		})
		if err != nil {
			return Round{}, err
		}
		content = resp.Content
		usage = resp.Usage
	} else {
		resp, err := provider.Chat(ctx, messages, nil)
		if err != nil {
			return Round{}, err
		}
		content = resp.Content
		usage = resp.Usage
	}

	return Round{
		Kind:        kind,
		Participant: p.DisplayName,
		Content:     content,
		Tokens:      usage.OutputTokens,
	}, nil
}

// buildMessages assembles the system prompt (the participant's role
// preset) plus a history of prior rounds' outputs tagged by role, so
// each participant sees what came before it in the pipeline.
func (o *Orchestrator) buildMessages(kind RoundKind, p Participant) []types.Message {
	var sb strings.Builder
	sb.WriteString(p.SystemPrompt)
	if sb.Len() == 0 {
		sb.WriteString(RolePreset(p.Role).ToSystemPrompt())
	}

	msgs := []types.Message{{Role: "system", Content: sb.String()}}

	topic := o.session.Topic
	userPrompt := fmt.Sprintf("Topic: %s\n\n%s\n\nConstraints:\n- %s\n\nStage: %s",
		topic.Title, topic.Description, strings.Join(topic.Constraints, "\n- "), kind)
	msgs = append(msgs, types.Message{Role: "user", Content: userPrompt})

	o.mu.Lock()
	history := make([]Round, len(o.session.Rounds))
	copy(history, o.session.Rounds)
	o.mu.Unlock()

	for _, r := range history {
		if r.Content == "" {
			continue
		}
		tag := fmt.Sprintf("[%s/%s]: %s", r.Kind, r.Participant, r.Content)
		msgs = append(msgs, types.Message{Role: "assistant", Content: tag})
	}

	return msgs
}

// WaitIdle blocks until any background goroutines spawned by the
// orchestrator have exited. Present for callers that need deterministic
// shutdown in tests.
func (o *Orchestrator) WaitIdle(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
	}
}
