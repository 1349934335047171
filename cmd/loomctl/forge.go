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
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teradata-labs/loom/internal/forge"
)

var (
	forgeTopic  string
	forgeDBPath string
	forgeEpic   string
)

var forgeCmd = &cobra.Command{
	Use:   "forge <topic description>",
	Short: "Run a multi-participant deliberation to consensus and emit a bead task list",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		forgeTopic = args[0]
		logger, err := zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("forge: build logger: %w", err)
		}
		defer func() { _ = logger.Sync() }()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		resolve := forge.NewProviderResolver(forge.FactoryConfig{
			AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
			OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		})

		participants := []forge.Participant{
			forge.ClaudeAnalyst("architect"),
			forge.ClaudeCritic("critic"),
			forge.GPTAdvocate("advocate"),
		}

		topic := forge.Topic{Title: forgeTopic}
		orch := forge.New(topic, forge.DefaultSessionConfig(), participants, resolve, logger)

		if forgeDBPath != "" {
			if err := os.MkdirAll(filepath.Dir(forgeDBPath), 0o755); err != nil {
				return fmt.Errorf("forge: create db dir: %w", err)
			}
			store, err := forge.NewStore(ctx, forgeDBPath)
			if err != nil {
				return fmt.Errorf("forge: open session store: %w", err)
			}
			defer func() { _ = store.Close() }()
			orch.SetStore(store)
		}

		if err := orch.RunDefault(ctx); err != nil {
			return fmt.Errorf("forge: session failed: %w", err)
		}

		sess := orch.Session()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "session %s converged after %d rounds (status=%s)\n", sess.ID, len(sess.Rounds), sess.Status)

		provider, err := resolve(forge.DefaultClaudeConfig())
		if err != nil {
			return fmt.Errorf("forge: resolve beadifier provider: %w", err)
		}
		beadifier := forge.NewBeadifier(provider, forge.DefaultBeadifierConfig())

		convergence, ok := sess.LastOfKind(forge.RoundConvergence)
		if !ok {
			fmt.Fprintln(out, "no convergence round produced a consensus artifact; skipping beadification")
			return nil
		}

		tasks, err := beadifier.Decompose(ctx, convergence.Content)
		if err != nil {
			return fmt.Errorf("forge: beadify consensus: %w", err)
		}

		epic := forgeEpic
		if epic == "" {
			epic = forgeTopic
		}
		for _, cmdline := range forge.ToShellCommands(tasks, epic) {
			fmt.Fprintln(out, cmdline)
		}
		return nil
	},
}

func init() {
	forgeCmd.Flags().StringVar(&forgeDBPath, "db", "", "persist the session to this sqlite file (empty disables persistence)")
	forgeCmd.Flags().StringVar(&forgeEpic, "epic", "", "epic name for emitted bead tasks (defaults to the topic)")
}
