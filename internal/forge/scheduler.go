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
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// SchedulerConfig bounds a background Scheduler's behavior.
type SchedulerConfig struct {
	Store     *Store
	Logger    *zap.Logger
	Retention time.Duration // terminal sessions older than this are compacted away
}

// DefaultRetention is how long a terminal session's row survives in
// the store before a scheduled compaction run reclaims it.
const DefaultRetention = 30 * 24 * time.Hour

// Scheduler runs periodic maintenance against a Forge Store: pruning
// terminal sessions past their retention window so the database does
// not grow unbounded across a long-lived runtime.
type Scheduler struct {
	mu         sync.Mutex
	cronEngine *cron.Cron
	entries    map[string]cron.EntryID
	store      *Store
	retention  time.Duration
	logger     *zap.Logger
}

// NewScheduler validates config and constructs a Scheduler. The cron
// engine is created but not started; call Start to begin running jobs.
func NewScheduler(config SchedulerConfig) (*Scheduler, error) {
	if config.Store == nil {
		return nil, fmt.Errorf("forge: scheduler requires a store")
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.Retention <= 0 {
		config.Retention = DefaultRetention
	}
	return &Scheduler{
		cronEngine: cron.New(),
		entries:    make(map[string]cron.EntryID),
		store:      config.Store,
		retention:  config.Retention,
		logger:     config.Logger,
	}, nil
}

// ScheduleCompaction registers a recurring compaction job on the given
// standard five-field cron spec (e.g. "0 3 * * *" for daily at 03:00).
// Returns the job's name for later removal via Unschedule.
func (s *Scheduler) ScheduleCompaction(spec string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := "compact-sessions:" + spec
	id, err := s.cronEngine.AddFunc(spec, func() {
		n, err := s.store.CompactSessions(context.Background(), time.Now().Add(-s.retention))
		if err != nil {
			s.logger.Warn("forge: session compaction failed", zap.Error(err))
			return
		}
		if n > 0 {
			s.logger.Info("forge: compacted terminal sessions", zap.Int("removed", n))
		}
	})
	if err != nil {
		return "", fmt.Errorf("forge: schedule compaction %q: %w", spec, err)
	}
	s.entries[name] = id
	return name, nil
}

// Unschedule removes a previously-scheduled job by the name
// ScheduleCompaction returned.
func (s *Scheduler) Unschedule(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.entries[name]; ok {
		s.cronEngine.Remove(id)
		delete(s.entries, name)
	}
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start() { s.cronEngine.Start() }

// Stop halts the cron engine, waiting for any in-flight job to finish.
func (s *Scheduler) Stop() {
	<-s.cronEngine.Stop().Done()
}
