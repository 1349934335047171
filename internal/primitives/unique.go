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
	"fmt"
	"strings"

	"github.com/teradata-labs/loom/internal/errkind"
)

// MatchLocation pinpoints one occurrence of a target string, 1-indexed,
// with surrounding context lines for disambiguation.
type MatchLocation struct {
	Line          int
	Column        int
	Offset        int
	ContextBefore []string
	MatchedLines  []string
	ContextAfter  []string
}

// FormatWithContext renders a location as line-numbered before/match/after
// blocks, matching the "NNNN | ..." / "NNNN > ..." convention.
func (m MatchLocation) FormatWithContext() string {
	var b strings.Builder
	line := m.Line - len(m.ContextBefore)
	for _, l := range m.ContextBefore {
		fmt.Fprintf(&b, "%4d | %s\n", line, l)
		line++
	}
	for _, l := range m.MatchedLines {
		fmt.Fprintf(&b, "%4d > %s\n", line, l)
		line++
	}
	for _, l := range m.ContextAfter {
		fmt.Fprintf(&b, "%4d | %s\n", line, l)
		line++
	}
	return b.String()
}

// UniquenessResult reports how many times a target occurs and where.
type UniquenessResult struct {
	IsUnique   bool
	MatchCount int
	Matches    []MatchLocation
	Suggestion string
}

// CheckUniqueness scans content for every occurrence of target and
// reports match locations with contextLines of surrounding text on each
// side. Line/column are computed from byte offsets via 1-indexed,
// UTF-8-aware counting.
func CheckUniqueness(content, target string, contextLines int) UniquenessResult {
	if target == "" {
		return UniquenessResult{IsUnique: false, MatchCount: 0}
	}

	lines := strings.Split(content, "\n")
	targetLines := strings.Split(target, "\n")

	var matches []MatchLocation
	offset := 0
	for i := range lines {
		switch {
		case len(targetLines) == 1:
			// A single-line target can occur more than once on the
			// same line (e.g. "foo foo" against "foo"); scan every
			// non-overlapping occurrence rather than stopping at the
			// first.
			searchFrom := 0
			for {
				idx := strings.Index(lines[i][searchFrom:], target)
				if idx < 0 {
					break
				}
				col := searchFrom + idx + 1
				before := contextSlice(lines, i-contextLines, i)
				after := contextSlice(lines, i+1, i+1+contextLines)
				matches = append(matches, MatchLocation{
					Line:          i + 1,
					Column:        col,
					Offset:        offset,
					ContextBefore: before,
					MatchedLines:  []string{target},
					ContextAfter:  after,
				})
				searchFrom += idx + len(target)
			}
		case i+len(targetLines) <= len(lines) && linesMatchAt(lines, i, targetLines):
			col := len(lines[i]) - len(targetLines[0]) + 1
			before := contextSlice(lines, i-contextLines, i)
			after := contextSlice(lines, i+len(targetLines), i+len(targetLines)+contextLines)
			matches = append(matches, MatchLocation{
				Line:          i + 1,
				Column:        col,
				Offset:        offset,
				ContextBefore: before,
				MatchedLines:  append([]string(nil), targetLines...),
				ContextAfter:  after,
			})
		}
		offset += len(lines[i]) + 1
	}

	result := UniquenessResult{
		IsUnique:   len(matches) == 1,
		MatchCount: len(matches),
		Matches:    matches,
	}
	if len(matches) > 1 {
		result.Suggestion = SuggestUniqueContext(lines, matches[0], contextLines)
	}
	return result
}

// linesMatchAt reports whether a multi-line target occurs starting at
// lines[start]. Its first line must match the end of lines[start] and
// its last line must match the start of the closing line, since the
// target may be embedded mid-line at either end; interior lines must
// match exactly, since those are bounded by newlines on both sides.
func linesMatchAt(lines []string, start int, target []string) bool {
	n := len(target)
	if !strings.HasSuffix(lines[start], target[0]) {
		return false
	}
	for j := 1; j < n-1; j++ {
		if lines[start+j] != target[j] {
			return false
		}
	}
	return strings.HasPrefix(lines[start+n-1], target[n-1])
}

func contextSlice(lines []string, from, to int) []string {
	if from < 0 {
		from = 0
	}
	if to > len(lines) {
		to = len(lines)
	}
	if from >= to {
		return nil
	}
	return append([]string(nil), lines[from:to]...)
}

// SuggestUniqueContext proposes widening the match with one more line of
// leading context, which is usually enough to disambiguate a repeated
// snippet.
func SuggestUniqueContext(lines []string, m MatchLocation, contextLines int) string {
	start := m.Line - 1 - (contextLines + 1)
	if start < 0 {
		start = 0
	}
	widened := append(append([]string(nil), lines[start:m.Line-1]...), m.MatchedLines...)
	return strings.Join(widened, "\n")
}

// MatchSelection disambiguates which occurrence an Edit should target
// when multiple matches are permitted.
type MatchSelection struct {
	Kind  string // "first", "last", "index", "line"
	Index int
	Line  int
}

func First() MatchSelection          { return MatchSelection{Kind: "first"} }
func Last() MatchSelection           { return MatchSelection{Kind: "last"} }
func ByIndex(i int) MatchSelection   { return MatchSelection{Kind: "index", Index: i} }
func ByLine(line int) MatchSelection { return MatchSelection{Kind: "line", Line: line} }

// SelectMatch resolves a MatchSelection against a match list.
func SelectMatch(matches []MatchLocation, sel MatchSelection) (MatchLocation, error) {
	if len(matches) == 0 {
		return MatchLocation{}, errkind.New(errkind.TargetNotFound, "no matches to select from")
	}
	switch sel.Kind {
	case "first", "":
		return matches[0], nil
	case "last":
		return matches[len(matches)-1], nil
	case "index":
		if sel.Index < 0 || sel.Index >= len(matches) {
			return MatchLocation{}, errkind.New(errkind.Validation, "match index out of range").
				WithDetail("index", sel.Index).WithDetail("count", len(matches))
		}
		return matches[sel.Index], nil
	case "line":
		for _, m := range matches {
			if m.Line == sel.Line {
				return m, nil
			}
		}
		return MatchLocation{}, errkind.New(errkind.TargetNotFound, "no match at requested line").
			WithDetail("line", sel.Line)
	default:
		return MatchLocation{}, errkind.New(errkind.Validation, "unknown match selection kind")
	}
}

// FormatMatches renders every match with context, for inclusion in a
// NotUnique error.
func FormatMatches(matches []MatchLocation) string {
	var b strings.Builder
	for i, m := range matches {
		fmt.Fprintf(&b, "match %d (line %d, col %d):\n%s\n", i+1, m.Line, m.Column, m.FormatWithContext())
	}
	return b.String()
}

// ValidateEditTarget enforces the uniqueness contract: exactly one match
// unless allowMultiple is set, in which case any non-zero count passes
// and the caller is expected to apply a MatchSelection.
func ValidateEditTarget(content, target string, allowMultiple bool) (UniquenessResult, error) {
	result := CheckUniqueness(content, target, 2)
	if result.MatchCount == 0 {
		return result, errkind.New(errkind.TargetNotFound, "target string not found in file").
			WithDetail("target", target)
	}
	if !allowMultiple && result.MatchCount > 1 {
		return result, errkind.New(errkind.NotUnique, "target string is not unique").
			WithDetail("count", result.MatchCount).
			WithDetail("formatted", FormatMatches(result.Matches)).
			WithSuggestion(result.Suggestion)
	}
	return result, nil
}
