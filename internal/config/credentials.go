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

	"github.com/zalando/go-keyring"
)

// credentialEnvVars are the three environment variables that select an
// LLM backend. Presence/absence is discoverable via CredentialStatus;
// values are never logged.
var credentialEnvVars = map[string]string{
	"anthropic": "ANTHROPIC_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"bedrock":   "AWS_ACCESS_KEY_ID",
}

// keyringService is the fixed service name used for OS keychain
// entries storing password- or token-class credentials.
const keyringService = "teradata-loom"

// CredentialStatus reports whether each backend's credential is
// discoverable, without ever surfacing the value itself.
type CredentialStatus struct {
	Backend   string
	EnvVar    string
	Present   bool
}

// DiscoverCredentials reports presence/absence for every known backend
// credential environment variable.
func DiscoverCredentials() []CredentialStatus {
	statuses := make([]CredentialStatus, 0, len(credentialEnvVars))
	for backend, envVar := range credentialEnvVars {
		_, present := os.LookupEnv(envVar)
		statuses = append(statuses, CredentialStatus{Backend: backend, EnvVar: envVar, Present: present})
	}
	return statuses
}

// KeychainCredential stores and retrieves a password- or token-class
// credential via the OS keychain, when one is available. SSH key
// credentials are intentionally never routed through this path; the
// caller is expected to keep those in memory only.
type KeychainCredential struct {
	account string
}

// NewKeychainCredential binds account (e.g. "anthropic") to the fixed
// keyring service name.
func NewKeychainCredential(account string) *KeychainCredential {
	return &KeychainCredential{account: account}
}

// Store saves secret under this credential's account. Returns an error
// naming the backend if the OS keychain is unavailable.
func (k *KeychainCredential) Store(secret string) error {
	if err := keyring.Set(keyringService, k.account, secret); err != nil {
		return fmt.Errorf("credentials: keychain unavailable for %s: %w", k.account, err)
	}
	return nil
}

// Load retrieves the stored secret, if any.
func (k *KeychainCredential) Load() (string, error) {
	secret, err := keyring.Get(keyringService, k.account)
	if err != nil {
		return "", fmt.Errorf("credentials: no keychain entry for %s: %w", k.account, err)
	}
	return secret, nil
}

// Delete removes the stored secret.
func (k *KeychainCredential) Delete() error {
	return keyring.Delete(keyringService, k.account)
}
