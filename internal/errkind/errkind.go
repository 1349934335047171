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

// Package errkind defines the tagged error taxonomy shared by every
// primitive and orchestrator component in the runtime.
package errkind

import "fmt"

// Kind classifies a primitive-level failure so callers can branch on it
// without string matching.
type Kind string

const (
	PathNotAllowed  Kind = "path_not_allowed"
	FileNotFound    Kind = "file_not_found"
	PermissionDeny  Kind = "permission_denied"
	IO              Kind = "io"
	FileTooLarge    Kind = "file_too_large"
	Validation      Kind = "validation"
	CommandFailed   Kind = "command_failed"
	Timeout         Kind = "timeout"
	ParseError      Kind = "parse_error"
	NotUnique       Kind = "not_unique"
	TargetNotFound  Kind = "target_not_found"
)

// Error is the common error shape returned by every primitive. Details
// carries kind-specific context (match counts, exit codes, expected vs.
// actual paths) so a caller can render a useful message without
// re-deriving it from the wrapped cause.
type Error struct {
	Kind       Kind
	Message    string
	Details    map[string]any
	Retryable  bool
	Suggestion string
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a bare Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error of the given kind around a lower-level cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithDetail attaches a detail key/value pair, lazily allocating the map.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion attaches a human-facing remediation hint.
func (e *Error) WithSuggestion(s string) *Error {
	e.Suggestion = s
	return e
}

// As reports whether err is (or wraps) an *Error of the given kind.
func As(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if ke, ok := err.(*Error); ok {
			e = ke
			break
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return e != nil && e.Kind == kind
}
