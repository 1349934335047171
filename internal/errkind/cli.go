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
package errkind

import "encoding/json"

// ExitCode maps the error kind to a process exit code. PathNotAllowed
// and Validation are caller mistakes (2); everything else that reaches
// the CLI is a runtime failure (1). Success is the caller's own 0, not
// represented here.
func (e *Error) ExitCode() int {
	switch e.Kind {
	case PathNotAllowed, Validation, TargetNotFound:
		return 2
	default:
		return 1
	}
}

// jsonError is the wire shape for --format json: {error: {code, message, hint?, suggestions?, context?}}.
type jsonError struct {
	Code        string         `json:"code"`
	Message     string         `json:"message"`
	Hint        string         `json:"hint,omitempty"`
	Suggestions []string       `json:"suggestions,omitempty"`
	Context     map[string]any `json:"context,omitempty"`
}

// MarshalJSON renders e as the CLI's structured-JSON error form, under
// the top-level "error" key.
func (e *Error) MarshalJSON() ([]byte, error) {
	je := jsonError{
		Code:    string(e.Kind),
		Message: e.Message,
		Hint:    e.Suggestion,
		Context: e.Details,
	}
	if e.Suggestion != "" {
		je.Suggestions = []string{e.Suggestion}
	}
	return json.Marshal(map[string]jsonError{"error": je})
}
