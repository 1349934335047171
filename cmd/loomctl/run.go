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
package main

import (
	"context"
	"fmt"
	"os"

	tea "charm.land/bubbletea/v2"
	"github.com/spf13/cobra"

	"github.com/teradata-labs/loom/internal/config"
	"github.com/teradata-labs/loom/internal/execctx"
	"github.com/teradata-labs/loom/internal/iterloop"
	"github.com/teradata-labs/loom/internal/ratelimit"
)

var (
	watchSpecs bool
	specsDir   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the bounded iteration loop TUI against the working root",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.DefaultLoopConfig()
		if _, err := os.Stat(cfgPath); err == nil {
			loaded, err := config.LoadLoopConfig(cfgPath)
			if err != nil {
				return fmt.Errorf("run: %w", err)
			}
			cfg = loaded
		}

		ectx := execctx.New(workingRoot, execctx.DefaultLimits())
		if _, ok := ectx.IsAllowed(workingRoot); !ok {
			return fmt.Errorf("run: working root %s resolves outside its own confinement boundary", workingRoot)
		}

		limiter := ratelimit.New(ratelimit.DefaultConfig())

		redline := int(cfg.Loop.RedlineThreshold * 1_000_000)
		state := iterloop.NewAppState(redline, iterloop.CostRates{InputPerMillion: 3, OutputPerMillion: 15})

		reboot := func(spec string, lastComplete string, rollingLog []string) {
			fmt.Fprintf(os.Stderr, "reboot requested: spec=%s last_complete=%s log_tail=%d lines\n", spec, lastComplete, len(rollingLog))
		}
		loop := iterloop.NewLoop(state, reboot)
		loop.Start()

		model := iterloop.NewModel(loop)
		program := tea.NewProgram(model)

		if watchSpecs {
			dir := specsDir
			if dir == "" {
				dir = workingRoot
			}
			watcher, err := iterloop.NewSpecWatcher(dir, iterloop.SpecWatcherConfig{
				DebounceMs: 300,
				OnChange: func(path, op string) {
					// A burst of simultaneous saves (e.g. a git checkout
					// touching many spec files) is throttled the same
					// way an agent's own primitive calls are, rather
					// than flooding the loop with driving events.
					if _, err := limiter.TryAcquire("watch"); err != nil {
						return
					}
					program.Send(iterloop.DrivingEventMsg{Event: iterloop.AsDrivingEvent(path, op)})
				},
			})
			if err != nil {
				return fmt.Errorf("run: start spec watcher: %w", err)
			}
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if err := watcher.Start(ctx); err != nil {
				return fmt.Errorf("run: spec watcher: %w", err)
			}
			defer func() { _ = watcher.Stop() }()
		}

		_, err := program.Run()
		return err
	},
}

func init() {
	runCmd.Flags().BoolVar(&watchSpecs, "watch", false, "watch the specs directory and feed changes into the loop")
	runCmd.Flags().StringVar(&specsDir, "specs-dir", "", "directory to watch for spec changes (defaults to --root)")
}
