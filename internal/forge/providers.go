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
	"fmt"

	"github.com/teradata-labs/loom/pkg/llm/factory"
	"github.com/teradata-labs/loom/pkg/types"
)

// FactoryConfig carries the credentials and endpoints a Session's
// participants may need across every backend ModelConfig can name.
// It mirrors factory.FactoryConfig's fields one level up so callers
// building a Forge session don't need to import pkg/llm/factory
// directly.
type FactoryConfig struct {
	AnthropicAPIKey string

	BedrockRegion      string
	BedrockAccessKeyID string
	BedrockSecretKey   string
	BedrockProfile     string

	OpenAIAPIKey string

	OllamaEndpoint string
}

// NewProviderResolver adapts a pkg/llm/factory.ProviderFactory, built
// from cfg, into a ProviderResolver: the function Orchestrator calls to
// bind each Participant's ModelConfig to a concrete client on first
// use. This is the only place Forge depends on a concrete LLM
// transport; swapping it for a test double (as orchestrator_test.go
// does) requires no changes to the orchestrator itself.
func NewProviderResolver(cfg FactoryConfig) ProviderResolver {
	pf := factory.NewProviderFactory(factory.FactoryConfig{
		AnthropicAPIKey:        cfg.AnthropicAPIKey,
		BedrockRegion:          cfg.BedrockRegion,
		BedrockAccessKeyID:     cfg.BedrockAccessKeyID,
		BedrockSecretAccessKey: cfg.BedrockSecretKey,
		BedrockProfile:         cfg.BedrockProfile,
		OpenAIAPIKey:           cfg.OpenAIAPIKey,
		OllamaEndpoint:         cfg.OllamaEndpoint,
	})

	return func(mc ModelConfig) (types.LLMProvider, error) {
		raw, err := pf.CreateProvider(string(mc.Provider), mc.ModelName)
		if err != nil {
			return nil, fmt.Errorf("forge: resolve provider %s: %w", mc.Provider, err)
		}
		provider, ok := raw.(types.LLMProvider)
		if !ok {
			return nil, fmt.Errorf("forge: provider %s does not implement types.LLMProvider", mc.Provider)
		}
		return provider, nil
	}
}
