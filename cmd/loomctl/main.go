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

// Command loomctl drives the iteration loop and Forge deliberation
// orchestrator directly against a local working tree, standing
// alongside the teacher's own `loom`/`looms` client-server pair rather
// than replacing it.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	loomconfig "github.com/teradata-labs/loom/pkg/config"

	"github.com/teradata-labs/loom/internal/version"
)

var (
	workingRoot string
	cfgPath     string
)

var rootCmd = &cobra.Command{
	Use:     "loomctl",
	Short:   "Drive the iteration loop and Forge orchestrator against a local source tree",
	Long:    `loomctl runs an autonomous spec-driven iteration loop and multi-participant Forge deliberations directly against a working directory, with no server in between.`,
	Version: version.Get(),
}

func init() {
	defaultCfgPath := fmt.Sprintf("%s/config.yaml", loomconfig.GetLoomDataDir())
	rootCmd.PersistentFlags().StringVarP(&workingRoot, "root", "r", ".", "working root the primitives may touch")
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", defaultCfgPath, "iteration loop config file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(forgeCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(initCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
