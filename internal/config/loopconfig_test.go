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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandEnvRequiredVar(t *testing.T) {
	t.Setenv("LOOM_TEST_BRAIN", "claude-opus")
	out, err := ExpandEnv("brain: ${LOOM_TEST_BRAIN}")
	require.NoError(t, err)
	assert.Equal(t, "brain: claude-opus", out)
}

func TestExpandEnvMissingRequiredVarIsFatal(t *testing.T) {
	_, err := ExpandEnv("brain: ${LOOM_DEFINITELY_UNSET_VAR}")
	assert.Error(t, err)
}

func TestExpandEnvDefaultValue(t *testing.T) {
	out, err := ExpandEnv("brain: ${LOOM_DEFINITELY_UNSET_VAR:-fallback}")
	require.NoError(t, err)
	assert.Equal(t, "brain: fallback", out)
}

func TestLoadLoopConfigDefaultsWhenAbsent(t *testing.T) {
	cfg, err := LoadLoopConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultLoopConfig(), cfg)
}

func TestLoadLoopConfigRejectsInvalidRedlineThreshold(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "loop:\n  max_iterations: 10\n  redline_threshold: 1.5\n")
	_, err := LoadLoopConfig(path)
	assert.Error(t, err)
}

func TestLoadLoopConfigRejectsZeroMaxIterations(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "loop:\n  max_iterations: 0\n  redline_threshold: 0.8\n")
	_, err := LoadLoopConfig(path)
	assert.Error(t, err)
}

func TestConfigRoundTrip(t *testing.T) {
	cfg := DefaultLoopConfig()
	cfg.Loop.MaxIterations = 42
	cfg.Forge.ConvergenceThreshold = 0.9

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, cfg.Save(path))

	loaded, err := LoadLoopConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
