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
package execctx

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAssignsUniqueOperationIDs(t *testing.T) {
	a := New(t.TempDir(), DefaultLimits())
	b := New(t.TempDir(), DefaultLimits())
	assert.NotEmpty(t, a.OperationID)
	assert.NotEqual(t, a.OperationID, b.OperationID)
}

func TestIsAllowedConfinesToRoot(t *testing.T) {
	root := t.TempDir()
	ctx := New(root, DefaultLimits())

	resolved, ok := ctx.IsAllowed("file.txt")
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(root, "file.txt"), resolved)

	_, ok = ctx.IsAllowed("../escape.txt")
	assert.False(t, ok)

	_, ok = ctx.IsAllowed("/etc/passwd")
	assert.False(t, ok)
}

func TestIsAllowedRootItself(t *testing.T) {
	root := t.TempDir()
	ctx := New(root, DefaultLimits())
	_, ok := ctx.IsAllowed(".")
	assert.True(t, ok)
}

func TestWithAllowOverridesPredicate(t *testing.T) {
	root := t.TempDir()
	ctx := New(root, DefaultLimits())
	relaxed := ctx.WithAllow(func(string) bool { return true })

	_, ok := relaxed.IsAllowed("/etc/passwd")
	assert.True(t, ok)

	// the original context is untouched by the copy.
	_, ok = ctx.IsAllowed("/etc/passwd")
	assert.False(t, ok)
}

func TestDefaultLimits(t *testing.T) {
	l := DefaultLimits()
	assert.Greater(t, l.MaxFileSize, int64(0))
	assert.Greater(t, l.DefaultTimeoutS, 0)
}
