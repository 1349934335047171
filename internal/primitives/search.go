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
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"regexp"
	"strconv"
	"time"

	"github.com/teradata-labs/loom/internal/errkind"
	"github.com/teradata-labs/loom/internal/execctx"
	"github.com/teradata-labs/loom/pkg/shuttle"
)

// SearchMatch is one hit returned by a code search.
type SearchMatch struct {
	Path          string
	Line          int
	Column        int
	LineContent   string
	ContextBefore []string
	ContextAfter  []string
}

// SearchResult is the payload of a successful Search call.
type SearchResult struct {
	Matches    []SearchMatch
	Pattern    string
	TotalCount int
	Truncated  bool
}

// SearchTool implements the Code Search primitive by shelling out to
// ripgrep (rg) and parsing its --json stream.
type SearchTool struct {
	ctx  *execctx.Context
	rgBin string
}

// NewSearchTool binds the Search primitive to ctx, using the named
// ripgrep binary (defaults to "rg" on PATH).
func NewSearchTool(ctx *execctx.Context, rgBin string) *SearchTool {
	if rgBin == "" {
		rgBin = "rg"
	}
	return &SearchTool{ctx: ctx, rgBin: rgBin}
}

func (t *SearchTool) Name() string        { return "search" }
func (t *SearchTool) Backend() string     { return "" }
func (t *SearchTool) Description() string { return "Search the working tree for a regex pattern." }

func (t *SearchTool) InputSchema() *shuttle.JSONSchema {
	return shuttle.NewObjectSchema("Code search parameters", map[string]*shuttle.JSONSchema{
		"pattern":        shuttle.NewStringSchema("regular expression to search for"),
		"path":           shuttle.NewStringSchema("directory or file to search, relative to the working root"),
		"context_before": shuttle.NewNumberSchema("lines of context before each match"),
		"context_after":  shuttle.NewNumberSchema("lines of context after each match"),
		"file_type":      shuttle.NewStringSchema("ripgrep file-type filter, e.g. 'go'"),
		"glob":           shuttle.NewStringSchema("glob filter, e.g. '*.go'"),
		"case_sensitive": shuttle.NewBooleanSchema("case-sensitive match (default: smart case)"),
		"max_count":      shuttle.NewNumberSchema("stop after this many matches"),
	}, []string{"pattern"})
}

func (t *SearchTool) Execute(ctx context.Context, params map[string]interface{}) (*shuttle.Result, error) {
	start := time.Now()
	pattern, _ := params["pattern"].(string)
	if pattern == "" {
		return failure(errkind.New(errkind.Validation, "pattern is required"), start)
	}
	if _, err := regexp.Compile(pattern); err != nil {
		return failure(errkind.Wrap(errkind.Validation, "invalid regular expression", err), start)
	}

	path, _ := params["path"].(string)
	if path == "" {
		path = "."
	}
	resolved, allowed := t.ctx.IsAllowed(path)
	if !allowed {
		return failure(errkind.New(errkind.PathNotAllowed, "path escapes the working root").WithDetail("path", resolved), start)
	}

	args := []string{"--json", "--line-number", "--column"}
	if before, ok := toInt(params["context_before"]); ok && before > 0 {
		args = append(args, "-B", strconv.Itoa(before))
	}
	if after, ok := toInt(params["context_after"]); ok && after > 0 {
		args = append(args, "-A", strconv.Itoa(after))
	}
	if ft, _ := params["file_type"].(string); ft != "" {
		args = append(args, "--type", ft)
	}
	if glob, _ := params["glob"].(string); glob != "" {
		args = append(args, "--glob", glob)
	}
	if cs, ok := params["case_sensitive"].(bool); ok {
		if cs {
			args = append(args, "--case-sensitive")
		} else {
			args = append(args, "--ignore-case")
		}
	} else {
		args = append(args, "--smart-case")
	}
	maxCount := 0
	if mc, ok := toInt(params["max_count"]); ok && mc > 0 {
		maxCount = mc
		args = append(args, "--max-count", strconv.Itoa(mc))
	}
	args = append(args, pattern, resolved)

	cmd := exec.CommandContext(ctx, t.rgBin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()

	if err != nil {
		if exitCodeOf(err) == 1 {
			return result2(&SearchResult{Pattern: pattern}, start), nil
		}
		if isNotFound(err) {
			return failure(errkind.Wrap(errkind.IO, "ripgrep (rg) not found on PATH", err).
				WithSuggestion("install ripgrep: https://github.com/BurntSushi/ripgrep"), start)
		}
		return failure(errkind.Wrap(errkind.CommandFailed, "ripgrep invocation failed", err).
			WithDetail("stderr", stderr.String()), start)
	}

	before, _ := toInt(params["context_before"])
	after, _ := toInt(params["context_after"])
	matches, total := parseRipgrepJSON(&stdout, before, after)
	truncated := maxCount > 0 && total >= maxCount

	return result2(&SearchResult{
		Matches: matches, Pattern: pattern, TotalCount: total, Truncated: truncated,
	}, start), nil
}

func result2(r *SearchResult, start time.Time) *shuttle.Result {
	return success(r, start, map[string]interface{}{"pattern": r.Pattern, "count": r.TotalCount})
}

func exitCodeOf(err error) int {
	if ee, ok := err.(*exec.ExitError); ok {
		return ee.ExitCode()
	}
	return -1
}

func isNotFound(err error) bool {
	_, ok := err.(*exec.Error)
	return ok
}

// ripgrep --json emits one JSON object per line; "match" objects carry
// the hit, "context" objects carry surrounding lines.
type rgMessage struct {
	Type string `json:"type"`
	Data struct {
		Path struct {
			Text string `json:"text"`
		} `json:"path"`
		Lines struct {
			Text string `json:"text"`
		} `json:"lines"`
		LineNumber    int `json:"line_number"`
		Submatches    []struct {
			Start int `json:"start"`
		} `json:"submatches"`
	} `json:"data"`
}

// parseRipgrepJSON groups ripgrep's --json stream into SearchMatch
// records. Context lines immediately following a match (up to afterN)
// are attributed to that match's ContextAfter; any further context
// lines are buffered (capped at beforeN) as ContextBefore for the next
// match.
func parseRipgrepJSON(r *bytes.Buffer, beforeN, afterN int) ([]SearchMatch, int) {
	var matches []SearchMatch
	var pendingBefore []string
	afterCollected := 0

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var msg rgMessage
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			continue
		}
		switch msg.Type {
		case "context":
			line := trimNewline(msg.Data.Lines.Text)
			if len(matches) > 0 && afterCollected < afterN {
				last := &matches[len(matches)-1]
				last.ContextAfter = append(last.ContextAfter, line)
				afterCollected++
				continue
			}
			pendingBefore = append(pendingBefore, line)
			if beforeN > 0 && len(pendingBefore) > beforeN {
				pendingBefore = pendingBefore[1:]
			}
		case "match":
			col := 1
			if len(msg.Data.Submatches) > 0 {
				col = byteOffsetToColumn(msg.Data.Lines.Text, msg.Data.Submatches[0].Start)
			}
			matches = append(matches, SearchMatch{
				Path:          msg.Data.Path.Text,
				Line:          msg.Data.LineNumber,
				Column:        col,
				LineContent:   trimNewline(msg.Data.Lines.Text),
				ContextBefore: pendingBefore,
			})
			pendingBefore = nil
			afterCollected = 0
		}
	}
	return matches, len(matches)
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

func byteOffsetToColumn(line string, byteOffset int) int {
	col := 1
	count := 0
	for _, r := range line {
		if count >= byteOffset {
			break
		}
		count += len(string(r))
		col++
	}
	return col
}

// SearchLiteral escapes pattern before delegating to Execute, for callers
// that want literal-string search semantics.
func (t *SearchTool) SearchLiteral(ctx context.Context, literal, path string) (*shuttle.Result, error) {
	return t.Execute(ctx, map[string]interface{}{"pattern": regexp.QuoteMeta(literal), "path": path})
}

// FindFiles lists files under path matching glob, via `rg --files --glob`.
func (t *SearchTool) FindFiles(ctx context.Context, path, glob string) ([]string, error) {
	resolved, allowed := t.ctx.IsAllowed(path)
	if !allowed {
		return nil, errkind.New(errkind.PathNotAllowed, "path escapes the working root").WithDetail("path", resolved)
	}
	args := []string{"--files"}
	if glob != "" {
		args = append(args, "--glob", glob)
	}
	args = append(args, resolved)
	cmd := exec.CommandContext(ctx, t.rgBin, args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil && exitCodeOf(err) != 1 {
		return nil, errkind.Wrap(errkind.CommandFailed, "rg --files failed", err)
	}
	var files []string
	scanner := bufio.NewScanner(&stdout)
	for scanner.Scan() {
		files = append(files, scanner.Text())
	}
	return files, nil
}
