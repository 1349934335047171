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
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teradata-labs/loom/internal/config"
	"github.com/teradata-labs/loom/internal/ratelimit"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check credentials, config, and rate limit defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		healthy := true

		fmt.Fprintln(out, "credentials:")
		for _, status := range config.DiscoverCredentials() {
			mark := "missing"
			if status.Present {
				mark = "present"
			} else {
				healthy = false
			}
			fmt.Fprintf(out, "  %-10s %-24s %s\n", status.Backend, status.EnvVar, mark)
		}

		fmt.Fprintln(out, "config:")
		if _, err := os.Stat(cfgPath); err != nil {
			fmt.Fprintf(out, "  %s: not found (run `loomctl init`)\n", cfgPath)
		} else if cfg, err := config.LoadLoopConfig(cfgPath); err != nil {
			fmt.Fprintf(out, "  %s: invalid: %v\n", cfgPath, err)
			healthy = false
		} else {
			fmt.Fprintf(out, "  %s: valid (max_iterations=%d, redline=%.2f)\n",
				cfgPath, cfg.Loop.MaxIterations, cfg.Loop.RedlineThreshold)
		}

		limiter := ratelimit.New(ratelimit.DefaultConfig())
		status := limiter.StatusFor("bash")
		fmt.Fprintln(out, "rate limiter defaults:")
		fmt.Fprintf(out, "  global capacity=%.0f, primitive capacity=%.0f\n", status.GlobalLimit, status.PrimitiveLimit)

		if !healthy {
			return fmt.Errorf("doctor: one or more checks failed")
		}
		fmt.Fprintln(out, "all checks passed")
		return nil
	},
}
