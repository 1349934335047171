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
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// SpecChangeCallback is invoked, already debounced, when a spec file
// under the watched directory is created, written, or removed.
type SpecChangeCallback func(path, op string)

// SpecWatcherConfig configures watch mode for the spec directory the
// iteration loop is driving against.
type SpecWatcherConfig struct {
	DebounceMs int // default 500ms, matching the artifact hot-reload default
	OnChange   SpecChangeCallback
}

// SpecWatcher notifies the TUI when a spec file changes on disk out
// from under a running loop — most commonly a human hand-editing the
// current spec while the loop is paused for review.
type SpecWatcher struct {
	watcher *fsnotify.Watcher
	dir     string
	cfg     SpecWatcherConfig

	debounceMu     sync.Mutex
	debounceTimers map[string]*time.Timer

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewSpecWatcher creates a watcher rooted at dir. Start must be called
// to begin watching.
func NewSpecWatcher(dir string, cfg SpecWatcherConfig) (*SpecWatcher, error) {
	if cfg.DebounceMs <= 0 {
		cfg.DebounceMs = 500
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("iterloop: create spec watcher: %w", err)
	}
	return &SpecWatcher{
		watcher:        w,
		dir:            dir,
		cfg:            cfg,
		debounceTimers: make(map[string]*time.Timer),
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
	}, nil
}

// Start adds dir to the watch set and begins the event loop.
func (w *SpecWatcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("iterloop: watch %s: %w", w.dir, err)
	}
	go w.loop(ctx)
	return nil
}

// Stop halts the watch loop and closes the underlying fsnotify handle.
func (w *SpecWatcher) Stop() error {
	close(w.stopCh)
	<-w.doneCh
	return w.watcher.Close()
}

func (w *SpecWatcher) loop(ctx context.Context) {
	defer close(w.doneCh)
	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.debounce(ev)
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// debounce collapses a burst of events on the same path (a common
// pattern for editors that write via a temp file then rename) into one
// callback invocation per settle period.
func (w *SpecWatcher) debounce(ev fsnotify.Event) {
	if strings.HasPrefix(filepath.Base(ev.Name), ".") {
		return
	}

	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if t, ok := w.debounceTimers[ev.Name]; ok {
		t.Stop()
	}
	w.debounceTimers[ev.Name] = time.AfterFunc(time.Duration(w.cfg.DebounceMs)*time.Millisecond, func() {
		op := opName(ev.Op)
		if w.cfg.OnChange != nil {
			w.cfg.OnChange(ev.Name, op)
		}
		w.debounceMu.Lock()
		delete(w.debounceTimers, ev.Name)
		w.debounceMu.Unlock()
	})
}

func opName(op fsnotify.Op) string {
	switch {
	case op&fsnotify.Create == fsnotify.Create:
		return "create"
	case op&fsnotify.Write == fsnotify.Write:
		return "modify"
	case op&fsnotify.Remove == fsnotify.Remove:
		return "delete"
	case op&fsnotify.Rename == fsnotify.Rename:
		return "delete"
	default:
		return "unknown"
	}
}

// AsDrivingEvent turns a spec file change into the Text driving event
// the loop's output pane already knows how to render.
func AsDrivingEvent(path, op string) DrivingEvent {
	return DrivingEvent{Kind: EvText, Text: fmt.Sprintf("spec file %s: %s", op, filepath.Base(path))}
}
