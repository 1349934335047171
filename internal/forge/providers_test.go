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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProviderResolverResolvesAnthropic(t *testing.T) {
	resolve := NewProviderResolver(FactoryConfig{AnthropicAPIKey: "sk-test-key"})

	provider, err := resolve(ModelConfig{Provider: ProviderAnthropic, ModelName: "claude-sonnet-4-5-20250929"})
	require.NoError(t, err)
	assert.NotNil(t, provider)
}

func TestNewProviderResolverErrorsWithoutCredentials(t *testing.T) {
	resolve := NewProviderResolver(FactoryConfig{})

	_, err := resolve(ModelConfig{Provider: ProviderAnthropic, ModelName: "claude-sonnet-4-5-20250929"})
	assert.Error(t, err)
}

func TestNewProviderResolverErrorsOnUnknownProvider(t *testing.T) {
	resolve := NewProviderResolver(FactoryConfig{AnthropicAPIKey: "sk-test-key"})

	_, err := resolve(ModelConfig{Provider: Provider("carrier-pigeon"), ModelName: "n/a"})
	assert.Error(t, err)
}
