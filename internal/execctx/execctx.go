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

// Package execctx carries the ambient values every primitive consults:
// the working root, the path-confinement predicate, and per-operation
// defaults. A Context is immutable after construction and safe to share
// across goroutines.
package execctx

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// AllowFunc decides whether a resolved, absolute path may be touched by
// a primitive. The default implementation confines every path to the
// working root.
type AllowFunc func(resolved string) bool

// Limits bounds primitive behavior; each primitive reads the fields it
// cares about and ignores the rest.
type Limits struct {
	MaxFileSize     int64 // bytes; Read primitive default cap
	DefaultTimeoutS int   // seconds; Bash primitive default
	MaxOutputBytes  int64 // Bash stdout/stderr cap
	BlockedCommands []string
}

// DefaultLimits mirrors the original runtime's conservative defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxFileSize:     5 * 1024 * 1024,
		DefaultTimeoutS: 30,
		MaxOutputBytes:  10 * 1024 * 1024,
	}
}

// Context is the immutable execution context threaded through every
// primitive call.
type Context struct {
	Root        string
	allow       AllowFunc
	Limits      Limits
	OperationID string
}

// New builds a Context rooted at root with default path confinement
// (every resolved path must lie under root) and the given limits.
func New(root string, limits Limits) *Context {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	c := &Context{
		Root:        abs,
		Limits:      limits,
		OperationID: uuid.NewString(),
	}
	c.allow = func(resolved string) bool {
		rel, err := filepath.Rel(c.Root, resolved)
		if err != nil {
			return false
		}
		return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
	}
	return c
}

// WithAllow returns a copy of c using a custom allow predicate; used by
// tests that need to relax or tighten confinement.
func (c *Context) WithAllow(fn AllowFunc) *Context {
	cp := *c
	cp.allow = fn
	return &cp
}

// Resolve turns a possibly-relative path into an absolute one rooted at
// c.Root, without checking confinement.
func (c *Context) Resolve(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Clean(filepath.Join(c.Root, path))
}

// IsAllowed resolves path and reports whether it passes confinement.
func (c *Context) IsAllowed(path string) (resolved string, ok bool) {
	resolved = c.Resolve(path)
	return resolved, c.allow(resolved)
}
