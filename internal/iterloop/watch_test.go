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
package iterloop

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpecWatcherNotifiesOnWrite(t *testing.T) {
	dir := t.TempDir()
	changes := make(chan string, 4)

	w, err := NewSpecWatcher(dir, SpecWatcherConfig{
		DebounceMs: 20,
		OnChange:   func(path, op string) { changes <- op },
	})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer func() { _ = w.Stop() }()

	path := filepath.Join(dir, "001-spec.md")
	require.NoError(t, os.WriteFile(path, []byte("# spec"), 0o644))

	select {
	case op := <-changes:
		assert.Contains(t, []string{"create", "modify"}, op)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a spec change notification")
	}
}

func TestSpecWatcherIgnoresDotfiles(t *testing.T) {
	dir := t.TempDir()
	changes := make(chan string, 4)

	w, err := NewSpecWatcher(dir, SpecWatcherConfig{
		DebounceMs: 20,
		OnChange:   func(path, op string) { changes <- op },
	})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer func() { _ = w.Stop() }()

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".swp"), []byte("x"), 0o644))

	select {
	case op := <-changes:
		t.Fatalf("did not expect a notification for a dotfile, got %q", op)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestAsDrivingEventRendersFilenameAndOp(t *testing.T) {
	ev := AsDrivingEvent("/specs/002-thing.md", "modify")
	assert.Equal(t, EvText, ev.Kind)
	assert.Contains(t, ev.Text, "002-thing.md")
	assert.Contains(t, ev.Text, "modify")
}
