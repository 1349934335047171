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
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/teradata-labs/loom/internal/errkind"
	"github.com/teradata-labs/loom/internal/execctx"
	"github.com/teradata-labs/loom/pkg/shuttle"
)

// ReadResult is the payload of a successful Read call.
type ReadResult struct {
	Path      string
	Content   string
	Size      int64
	Truncated bool
	Binary    bool
	StartLine int
	EndLine   int
}

// ReadTool implements the Read primitive against a fixed execution context.
type ReadTool struct {
	ctx *execctx.Context
}

// NewReadTool binds the Read primitive to ctx.
func NewReadTool(ctx *execctx.Context) *ReadTool { return &ReadTool{ctx: ctx} }

func (t *ReadTool) Name() string        { return "read" }
func (t *ReadTool) Backend() string     { return "" }
func (t *ReadTool) Description() string { return "Read a file, optionally restricted to a line range." }

func (t *ReadTool) InputSchema() *shuttle.JSONSchema {
	return shuttle.NewObjectSchema("Read primitive parameters", map[string]*shuttle.JSONSchema{
		"path":       shuttle.NewStringSchema("path to read, relative to the working root"),
		"start_line": shuttle.NewNumberSchema("1-indexed first line to include"),
		"end_line":   shuttle.NewNumberSchema("1-indexed last line to include"),
		"max_size":   shuttle.NewNumberSchema("override the default max read size, in bytes"),
	}, []string{"path"})
}

func (t *ReadTool) Execute(_ context.Context, params map[string]interface{}) (*shuttle.Result, error) {
	start := time.Now()
	path, _ := params["path"].(string)
	if path == "" {
		return failure(errkind.New(errkind.Validation, "path is required"), start)
	}

	resolved, allowed := t.ctx.IsAllowed(path)
	if !allowed {
		return failure(errkind.New(errkind.PathNotAllowed, "path escapes the working root").
			WithDetail("path", resolved), start)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return failure(errkind.Wrap(errkind.FileNotFound, "file not found", err).WithDetail("path", resolved), start)
		}
		if os.IsPermission(err) {
			return failure(errkind.Wrap(errkind.PermissionDeny, "permission denied", err).WithDetail("path", resolved), start)
		}
		return failure(errkind.Wrap(errkind.IO, "stat failed", err), start)
	}
	if info.IsDir() {
		return failure(errkind.New(errkind.Validation, "path is a directory").WithDetail("path", resolved), start)
	}

	startLine, _ := toInt(params["start_line"])
	endLine, _ := toInt(params["end_line"])
	hasRange := startLine > 0 || endLine > 0

	maxSize := t.ctx.Limits.MaxFileSize
	if maxSize <= 0 {
		maxSize = execctx.DefaultLimits().MaxFileSize
	}
	overridden := false
	if ov, ok := toInt(params["max_size"]); ok && ov > 0 {
		maxSize = int64(ov)
		overridden = true
	}

	f, err := os.Open(resolved)
	if err != nil {
		return failure(errkind.Wrap(errkind.IO, "open failed", err), start)
	}
	defer f.Close()

	sniff := make([]byte, 8192)
	n, _ := f.Read(sniff)
	isBinary := bytes.IndexByte(sniff[:n], 0) >= 0
	if isBinary {
		return result(&ReadResult{Path: resolved, Size: info.Size(), Binary: true,
			Content: "<binary file, content omitted>"}, start), nil
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return failure(errkind.Wrap(errkind.IO, "seek failed", err), start)
	}

	if !hasRange && !overridden && info.Size() > maxSize {
		return failure(errkind.New(errkind.FileTooLarge, "file exceeds the default read size limit").
			WithDetail("size", info.Size()).WithDetail("max_size", maxSize).
			WithSuggestion("pass start_line/end_line or max_size to read a bounded slice"), start)
	}

	truncated := false
	var content []byte
	if !hasRange && overridden && info.Size() > maxSize {
		content = make([]byte, maxSize)
		if _, err := io.ReadFull(f, content); err != nil {
			return failure(errkind.Wrap(errkind.IO, "read failed", err), start)
		}
		truncated = true
	} else {
		content, err = io.ReadAll(f)
		if err != nil {
			return failure(errkind.Wrap(errkind.IO, "read failed", err), start)
		}
	}

	text := string(content)
	if hasRange {
		text, startLine, endLine = sliceLines(text, startLine, endLine)
	}

	return result(&ReadResult{
		Path: resolved, Content: text, Size: info.Size(), Truncated: truncated,
		StartLine: startLine, EndLine: endLine,
	}, start), nil
}

func sliceLines(content string, start, end int) (string, int, int) {
	lines := strings.Split(content, "\n")
	if start <= 0 {
		start = 1
	}
	if end <= 0 || end > len(lines) {
		end = len(lines)
	}
	if start > len(lines) {
		return "", start, end
	}
	var b strings.Builder
	for i := start; i <= end; i++ {
		fmt.Fprintf(&b, "%6d\t%s\n", i, lines[i-1])
	}
	return b.String(), start, end
}

func result(r *ReadResult, start time.Time) *shuttle.Result {
	return success(r, start, map[string]interface{}{"path": r.Path})
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
