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

// Package forge implements the multi-participant deliberation
// orchestrator: Draft -> Critique -> Synthesis -> Convergence ->
// Refinement rounds over a topic, streamed as events and reducible to a
// consensus summary and an atomic task list.
package forge

import (
	"github.com/google/uuid"
)

// Role is the stance a participant argues from in a round.
type Role struct {
	Kind   RoleKind
	Custom string // populated when Kind == RoleCustom
}

// RoleKind enumerates the built-in participant stances.
type RoleKind string

const (
	RoleArchitect   RoleKind = "architect"
	RoleCritic      RoleKind = "critic"
	RoleAdvocate    RoleKind = "advocate"
	RoleSynthesizer RoleKind = "synthesizer"
	RoleSpecialist  RoleKind = "specialist"
	RoleCustom      RoleKind = "custom"
)

// Provider names a remote chat backend a participant is bound to.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderOllama    Provider = "ollama"
	ProviderBedrock   Provider = "bedrock"
)

// ModelConfig is the generation configuration for one participant.
type ModelConfig struct {
	Provider    Provider
	ModelName   string
	Temperature float32
	MaxTokens   int
}

// DefaultClaudeConfig is the default participant configuration.
func DefaultClaudeConfig() ModelConfig {
	return ModelConfig{Provider: ProviderAnthropic, ModelName: "claude-sonnet-4-20250514", Temperature: 0.7, MaxTokens: 2048}
}

func noneConfig() ModelConfig { return ModelConfig{Provider: ProviderAnthropic} }

// Participant is one voice in a Forge session.
type Participant struct {
	ID           string
	DisplayName  string
	Role         Role
	ModelConfig  ModelConfig
	SystemPrompt string
	IsHuman      bool
}

// Builder constructs a Participant via a fluent interface.
type Builder struct {
	name         string
	role         Role
	modelConfig  ModelConfig
	systemPrompt string
}

// NewBuilder starts a Participant builder defaulting to a Specialist
// role on the default Claude configuration.
func NewBuilder(name string) *Builder {
	return &Builder{name: name, role: Role{Kind: RoleSpecialist}, modelConfig: DefaultClaudeConfig()}
}

func (b *Builder) WithRole(r Role) *Builder { b.role = r; return b }

func (b *Builder) Anthropic(model string) *Builder {
	b.modelConfig.Provider = ProviderAnthropic
	b.modelConfig.ModelName = model
	return b
}

func (b *Builder) OpenAI(model string) *Builder {
	b.modelConfig.Provider = ProviderOpenAI
	b.modelConfig.ModelName = model
	return b
}

func (b *Builder) Ollama(model string) *Builder {
	b.modelConfig.Provider = ProviderOllama
	b.modelConfig.ModelName = model
	return b
}

func (b *Builder) Bedrock(model string) *Builder {
	b.modelConfig.Provider = ProviderBedrock
	b.modelConfig.ModelName = model
	return b
}

func (b *Builder) Temperature(t float32) *Builder { b.modelConfig.Temperature = t; return b }
func (b *Builder) MaxTokens(n int) *Builder        { b.modelConfig.MaxTokens = n; return b }
func (b *Builder) SystemPrompt(p string) *Builder  { b.systemPrompt = p; return b }

// Build finalizes the Participant, assigning a fresh id.
func (b *Builder) Build() Participant {
	return Participant{
		ID:           uuid.NewString(),
		DisplayName:  b.name,
		Role:         b.role,
		ModelConfig:  b.modelConfig,
		SystemPrompt: b.systemPrompt,
		IsHuman:      false,
	}
}

// ClaudeAnalyst is a convenience constructor for an Architect-role
// participant on Claude Sonnet.
func ClaudeAnalyst(name string) Participant {
	return NewBuilder(name).
		WithRole(Role{Kind: RoleArchitect}).
		Anthropic("claude-sonnet-4-20250514").
		SystemPrompt("You are a systems architect. Design elegant, maintainable solutions.").
		Build()
}

// ClaudeCritic is a convenience constructor for a Critic-role
// participant with a lower temperature for more conservative review.
func ClaudeCritic(name string) Participant {
	return NewBuilder(name).
		WithRole(Role{Kind: RoleCritic}).
		Anthropic("claude-3-opus-20240229").
		Temperature(0.3).
		SystemPrompt("You are a critical reviewer. Find flaws, edge cases, and risks.").
		Build()
}

// GPTAdvocate is a convenience constructor for an Advocate-role
// participant on an OpenAI-compatible model.
func GPTAdvocate(name string) Participant {
	return NewBuilder(name).
		WithRole(Role{Kind: RoleAdvocate}).
		OpenAI("gpt-4-turbo").
		SystemPrompt("You champion practical solutions. Focus on what works.").
		Build()
}

// Human constructs a participant whose turns are supplied manually and
// never invoke an LLM.
func Human(name string, role Role) Participant {
	return Participant{
		ID:          uuid.NewString(),
		DisplayName: name,
		Role:        role,
		ModelConfig: noneConfig(),
		IsHuman:     true,
	}
}
