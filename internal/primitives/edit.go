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
	"context"
	"os"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/teradata-labs/loom/internal/errkind"
	"github.com/teradata-labs/loom/internal/execctx"
	"github.com/teradata-labs/loom/pkg/shuttle"
)

// EditResult is the payload of a successful Edit call.
type EditResult struct {
	Path       string
	MatchCount int
	Diff       string
}

// EditTool implements the atomic, uniqueness-checked Edit primitive.
type EditTool struct {
	ctx *execctx.Context
}

// NewEditTool binds the Edit primitive to ctx.
func NewEditTool(ctx *execctx.Context) *EditTool { return &EditTool{ctx: ctx} }

func (t *EditTool) Name() string    { return "edit" }
func (t *EditTool) Backend() string { return "" }
func (t *EditTool) Description() string {
	return "Replace a uniquely-identified target string in a file, atomically."
}

func (t *EditTool) InputSchema() *shuttle.JSONSchema {
	return shuttle.NewObjectSchema("Edit primitive parameters", map[string]*shuttle.JSONSchema{
		"path":           shuttle.NewStringSchema("file to edit, relative to the working root"),
		"target":         shuttle.NewStringSchema("exact string to replace; must be unique unless allow_multiple is set"),
		"replacement":    shuttle.NewStringSchema("replacement string"),
		"allow_multiple": shuttle.NewBooleanSchema("permit more than one match, disambiguated by selection"),
		"selection":      shuttle.NewStringSchema("one of first|last|index|line when allow_multiple is set"),
		"selection_index": shuttle.NewNumberSchema("match index, 0-based, when selection=index"),
		"selection_line":   shuttle.NewNumberSchema("match line, 1-based, when selection=line"),
	}, []string{"path", "target", "replacement"})
}

func (t *EditTool) Execute(_ context.Context, params map[string]interface{}) (*shuttle.Result, error) {
	start := time.Now()
	path, _ := params["path"].(string)
	target, _ := params["target"].(string)
	replacement, _ := params["replacement"].(string)
	if path == "" || target == "" {
		return failure(errkind.New(errkind.Validation, "path and target are required"), start)
	}

	resolved, allowed := t.ctx.IsAllowed(path)
	if !allowed {
		return failure(errkind.New(errkind.PathNotAllowed, "path escapes the working root").WithDetail("path", resolved), start)
	}

	raw, err := os.ReadFile(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return failure(errkind.Wrap(errkind.FileNotFound, "file not found", err).WithDetail("path", resolved), start)
		}
		return failure(errkind.Wrap(errkind.IO, "read failed", err), start)
	}
	content := string(raw)

	allowMultiple, _ := params["allow_multiple"].(bool)
	uq, verr := ValidateEditTarget(content, target, allowMultiple)
	if verr != nil {
		return failure(verr, start)
	}

	matchToUse := uq.Matches[0]
	if allowMultiple && len(uq.Matches) > 1 {
		sel := parseSelection(params)
		chosen, serr := SelectMatch(uq.Matches, sel)
		if serr != nil {
			return failure(serr, start)
		}
		matchToUse = chosen
	}

	newContent, rerr := replaceOneAt(content, target, replacement, matchToUse)
	if rerr != nil {
		return failure(rerr, start)
	}

	info, statErr := os.Stat(resolved)
	perm := os.FileMode(0o644)
	if statErr == nil {
		perm = info.Mode()
	}

	writer := NewAtomicWriter(resolved)
	defer writer.Release()
	if err := writer.Write([]byte(newContent), perm); err != nil {
		return failure(err, start)
	}
	if err := writer.Commit(); err != nil {
		return failure(err, start)
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(content, newContent, false)
	diffText := dmp.DiffPrettyText(diffs)

	return success(&EditResult{Path: resolved, MatchCount: uq.MatchCount, Diff: diffText}, start,
		map[string]interface{}{"path": resolved}), nil
}

func parseSelection(params map[string]interface{}) MatchSelection {
	kind, _ := params["selection"].(string)
	switch kind {
	case "last":
		return Last()
	case "index":
		idx, _ := toInt(params["selection_index"])
		return ByIndex(idx)
	case "line":
		line, _ := toInt(params["selection_line"])
		return ByLine(line)
	default:
		return First()
	}
}

// replaceOneAt substitutes target for replacement at the exact byte
// range m identifies, leaving everything else on the matched line (and
// file) untouched.
func replaceOneAt(content, target, replacement string, m MatchLocation) (string, error) {
	start := m.Offset + m.Column - 1
	end := start + len(target)
	if start < 0 || end > len(content) || content[start:end] != target {
		return "", errkind.New(errkind.TargetNotFound, "selected match is out of range")
	}
	return content[:start] + replacement + content[end:], nil
}
