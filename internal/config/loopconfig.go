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
package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// StopCondition tags when the iteration loop should stop on its own.
type StopCondition struct {
	Redline        bool `yaml:"redline,omitempty"`
	TestFailStreak int  `yaml:"test_fail_streak,omitempty"`
	NoProgress     int  `yaml:"no_progress,omitempty"`
}

// LoopSettings is the `loop.*` section of the iteration-loop config
// file.
type LoopSettings struct {
	MaxIterations     int             `yaml:"max_iterations"`
	RedlineThreshold  float64         `yaml:"redline_threshold"`
	IterationDelayMs  int             `yaml:"iteration_delay_ms"`
	StopOn            []StopCondition `yaml:"stop_on"`
}

// PolicySettings is the `policies.*` section.
type PolicySettings struct {
	AttendedByDefault  bool `yaml:"attended_by_default"`
	AutoCommit         bool `yaml:"auto_commit"`
	AutoPush           bool `yaml:"auto_push"`
	RequireSpec        bool `yaml:"require_spec"`
	DeployRequiresTests bool `yaml:"deploy_requires_tests"`
}

// ForgeSettings is the `forge.*` section.
type ForgeSettings struct {
	MaxRounds            int     `yaml:"max_rounds"`
	ConvergenceThreshold float64 `yaml:"convergence_threshold"`
	RoundTimeoutMs       int     `yaml:"round_timeout_ms"`
}

// BackendSettings is the `backend.*` section naming the two model
// tiers the loop drives: the primary "brain" and a cheaper
// "think_tank" used for lighter-weight calls.
type BackendSettings struct {
	Brain      string `yaml:"brain"`
	ThinkTank  string `yaml:"think_tank"`
}

// LoopConfig is the full record loaded from `.<app>/config.yaml`.
type LoopConfig struct {
	Backend  BackendSettings `yaml:"backend"`
	Loop     LoopSettings    `yaml:"loop"`
	Policies PolicySettings  `yaml:"policies"`
	Forge    ForgeSettings   `yaml:"forge"`
}

// DefaultLoopConfig mirrors the spec's conservative defaults.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		Backend: BackendSettings{Brain: "anthropic:claude-sonnet-4-20250514", ThinkTank: "anthropic:claude-3-5-haiku-20241022"},
		Loop: LoopSettings{
			MaxIterations:    100,
			RedlineThreshold: 0.85,
			IterationDelayMs: 0,
		},
		Policies: PolicySettings{RequireSpec: true},
		Forge: ForgeSettings{
			MaxRounds:            6,
			ConvergenceThreshold: 0.75,
			RoundTimeoutMs:       120_000,
		},
	}
}

// envVarPattern matches ${VAR} and ${VAR:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// ExpandEnv substitutes ${VAR} and ${VAR:-default} references in raw.
// A required reference (no :- default) whose variable is unset is a
// fatal load error; a reference carrying a default falls back to it.
func ExpandEnv(raw string) (string, error) {
	var firstErr error
	expanded := envVarPattern.ReplaceAllStringFunc(raw, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		name := groups[1]
		hasDefault := groups[2] != ""
		def := groups[3]

		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		if hasDefault {
			return def
		}
		if firstErr == nil {
			firstErr = fmt.Errorf("config: required environment variable %q is not set", name)
		}
		return match
	})
	if firstErr != nil {
		return "", firstErr
	}
	return expanded, nil
}

// LoadLoopConfig reads and parses the config file at path, expanding
// environment variable references before unmarshaling. Validation
// enforces the bounds documented in the external-interface contract:
// max_iterations > 0, redline_threshold in (0,1], forge settings
// similarly bounded.
func LoadLoopConfig(path string) (LoopConfig, error) {
	cfg := DefaultLoopConfig()

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	expanded, err := ExpandEnv(string(raw))
	if err != nil {
		return cfg, err
	}

	var doc map[string]interface{}
	if err := yaml.Unmarshal([]byte(expanded), &doc); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := ValidateSchema(doc); err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate enforces the bounds the external-interface contract
// documents for loop and forge settings.
func (c LoopConfig) Validate() error {
	if c.Loop.MaxIterations <= 0 {
		return fmt.Errorf("config: loop.max_iterations must be > 0, got %d", c.Loop.MaxIterations)
	}
	if c.Loop.RedlineThreshold <= 0 || c.Loop.RedlineThreshold > 1 {
		return fmt.Errorf("config: loop.redline_threshold must be in (0,1], got %v", c.Loop.RedlineThreshold)
	}
	if c.Loop.IterationDelayMs < 0 {
		return fmt.Errorf("config: loop.iteration_delay_ms must be >= 0, got %d", c.Loop.IterationDelayMs)
	}
	if c.Forge.MaxRounds <= 0 {
		return fmt.Errorf("config: forge.max_rounds must be > 0, got %d", c.Forge.MaxRounds)
	}
	if c.Forge.ConvergenceThreshold < 0 || c.Forge.ConvergenceThreshold > 1 {
		return fmt.Errorf("config: forge.convergence_threshold must be in [0,1], got %v", c.Forge.ConvergenceThreshold)
	}
	if c.Forge.RoundTimeoutMs <= 0 {
		return fmt.Errorf("config: forge.round_timeout_ms must be > 0, got %d", c.Forge.RoundTimeoutMs)
	}
	return nil
}

// Save serializes cfg as YAML to path, for the save-then-load
// round-trip property (modulo any ${VAR} expansion already applied on
// load, which Save does not attempt to re-encode).
func (c LoopConfig) Save(path string) error {
	out, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o644)
}
