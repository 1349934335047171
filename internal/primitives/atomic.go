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
package primitives

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/teradata-labs/loom/internal/errkind"
)

func tempPath(target string) string {
	dir := filepath.Dir(target)
	name := filepath.Base(target)
	return filepath.Join(dir, fmt.Sprintf(".%s.tmp.%d", name, os.Getpid()))
}

// WriteAtomic writes content to a temp file beside target, fsyncs it,
// copies the original file's permissions (when target already exists),
// and renames it into place. On cross-filesystem rename failure it
// falls back to copy-then-remove. The temp file is always cleaned up on
// any failure path.
func WriteAtomic(target string, content []byte, perm os.FileMode) error {
	tmp := tempPath(target)

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return errkind.Wrap(errkind.IO, "create temp file", err)
	}

	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return errkind.Wrap(errkind.IO, "write temp file", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return errkind.Wrap(errkind.IO, "fsync temp file", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return errkind.Wrap(errkind.IO, "close temp file", err)
	}

	if info, err := os.Stat(target); err == nil {
		_ = os.Chmod(tmp, info.Mode())
		copyOwnership(target, tmp)
	}

	if err := os.Rename(tmp, target); err != nil {
		if isCrossDevice(err) {
			if cerr := copyAndRemove(tmp, target); cerr != nil {
				_ = os.Remove(tmp)
				return errkind.Wrap(errkind.IO, "cross-filesystem fallback failed", cerr)
			}
			return nil
		}
		_ = os.Remove(tmp)
		return errkind.Wrap(errkind.IO, "rename temp file into place", err)
	}
	return nil
}

func isCrossDevice(err error) bool {
	if errors.Is(err, syscall.EXDEV) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "cross-device")
}

func copyAndRemove(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

// AtomicWriter is a scoped resource: Write stages content, Commit
// renames it into place, and Rollback (or an unreleased writer)
// discards the temp file. Call Release in a defer immediately after
// construction so an early return never leaks the temp file.
type AtomicWriter struct {
	target    string
	temp      string
	committed bool
}

// NewAtomicWriter stages a writer for target without writing anything yet.
func NewAtomicWriter(target string) *AtomicWriter {
	return &AtomicWriter{target: target, temp: tempPath(target)}
}

// Write stages content into the temp file, fsyncing before return.
func (w *AtomicWriter) Write(content []byte, perm os.FileMode) error {
	f, err := os.OpenFile(w.temp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return errkind.Wrap(errkind.IO, "create temp file", err)
	}
	defer f.Close()
	if _, err := f.Write(content); err != nil {
		return errkind.Wrap(errkind.IO, "write temp file", err)
	}
	return f.Sync()
}

// Commit renames the temp file into place. After Commit, Release is a no-op.
func (w *AtomicWriter) Commit() error {
	if info, err := os.Stat(w.target); err == nil {
		_ = os.Chmod(w.temp, info.Mode())
		copyOwnership(w.target, w.temp)
	}
	if err := os.Rename(w.temp, w.target); err != nil {
		if isCrossDevice(err) {
			if cerr := copyAndRemove(w.temp, w.target); cerr != nil {
				return errkind.Wrap(errkind.IO, "cross-filesystem commit failed", cerr)
			}
			w.committed = true
			return nil
		}
		return errkind.Wrap(errkind.IO, "commit rename failed", err)
	}
	w.committed = true
	return nil
}

// Rollback discards the staged temp file explicitly.
func (w *AtomicWriter) Rollback() {
	if !w.committed {
		_ = os.Remove(w.temp)
	}
}

// Release is the scoped-resource cleanup hook: call it via defer right
// after construction. It removes the temp file unless Commit already
// succeeded.
func (w *AtomicWriter) Release() {
	if !w.committed {
		_ = os.Remove(w.temp)
	}
}

// FileLock is a POSIX advisory lock (flock) over an existing path, used
// to serialize concurrent edits to the same file across goroutines and
// processes.
type FileLock struct {
	f *os.File
}

// Lock opens path and applies an exclusive (or shared) flock.
func Lock(path string, exclusive bool) (*FileLock, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, errkind.Wrap(errkind.IO, "open file for locking", err)
	}
	op := syscall.LOCK_SH
	if exclusive {
		op = syscall.LOCK_EX
	}
	if err := syscall.Flock(int(f.Fd()), op); err != nil {
		_ = f.Close()
		return nil, errkind.Wrap(errkind.IO, "flock", err)
	}
	return &FileLock{f: f}, nil
}

// Unlock releases the flock and closes the underlying descriptor.
func (l *FileLock) Unlock() error {
	if err := syscall.Flock(int(l.f.Fd()), syscall.LOCK_UN); err != nil {
		_ = l.f.Close()
		return err
	}
	return l.f.Close()
}
