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

import "sync"

// EventKind tags the taxonomy of events the orchestrator broadcasts
// while driving a session.
type EventKind string

const (
	EventRoundStarted        EventKind = "round_started"
	EventParticipantThinking EventKind = "participant_thinking"
	EventContentDelta        EventKind = "content_delta"
	EventParticipantComplete EventKind = "participant_complete"
	EventParticipantError    EventKind = "participant_error"
	EventRoundComplete       EventKind = "round_complete"
	EventError               EventKind = "error"
)

// Event is a cheap-clone record describing one step of a session's
// progress, dispatched to every subscriber through a bounded broadcast
// channel.
type Event struct {
	Kind          EventKind
	SessionID     string
	RoundKind     RoundKind
	Participant   string
	Delta         string
	Content       string
	InputTokens   int
	OutputTokens  int
	Err           string
	FinishReason  string
}

// broadcaster fans a single producer stream out to N subscriber
// channels. Each subscriber channel is bounded; when a subscriber
// can't keep up, non-terminal events (ContentDelta, ParticipantThinking)
// are dropped for that subscriber rather than blocking the producer,
// but terminal events (ParticipantComplete, RoundComplete, Error,
// ParticipantError) are delivered with a blocking send so no subscriber
// misses the shape of what happened, only the fine-grained stream.
type broadcaster struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
	closed bool
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[int]chan Event)}
}

// Subscribe returns a receive-only channel of events and a cancel
// function that unregisters and closes it.
func (b *broadcaster) Subscribe(buffer int) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan Event, buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs[id] = ch
	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

func isTerminal(kind EventKind) bool {
	switch kind {
	case EventParticipantComplete, EventRoundComplete, EventError, EventParticipantError:
		return true
	default:
		return false
	}
}

// Publish fans ev out to every live subscriber.
func (b *broadcaster) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		if isTerminal(ev.Kind) {
			ch <- ev
			continue
		}
		select {
		case ch <- ev:
		default:
			// lagging subscriber: drop this incremental chunk
		}
	}
}

// Close shuts every subscriber channel; subsequent Subscribe calls
// return a pre-closed channel.
func (b *broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
