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

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAndError(t *testing.T) {
	err := New(Validation, "bad input")
	assert.Equal(t, "validation: bad input", err.Error())
}

func TestWrapIncludesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(IO, "write failed", cause)
	assert.Contains(t, err.Error(), "write failed")
	assert.Contains(t, err.Error(), "disk full")
	assert.ErrorIs(t, err, cause)
}

func TestWithDetailAndSuggestion(t *testing.T) {
	err := New(NotUnique, "ambiguous").WithDetail("count", 2).WithSuggestion("add context")
	assert.Equal(t, 2, err.Details["count"])
	assert.Equal(t, "add context", err.Suggestion)
}

func TestAsMatchesKindThroughWrapping(t *testing.T) {
	err := New(PathNotAllowed, "escapes root")
	wrapped := fmt.Errorf("primitive call failed: %w", err)
	assert.True(t, As(wrapped, PathNotAllowed))
	assert.False(t, As(wrapped, IO))
}

func TestAsFalseForPlainError(t *testing.T) {
	assert.False(t, As(errors.New("plain"), Validation))
}

func TestAsFalseForNil(t *testing.T) {
	assert.False(t, As(nil, Validation))
}
