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
// Package diff provides diff utilities.
package diff

// Unified returns a unified diff between two strings.
func Unified(a, b string) string {
	// Stub - basic diff not implemented
	return ""
}

// Lines returns a line-by-line diff.
func Lines(a, b string) []DiffLine {
	return nil
}

// DiffLine represents a line in a diff.
type DiffLine struct {
	Type    DiffType
	Content string
}

// DiffType represents the type of diff line.
type DiffType int

const (
	DiffEqual DiffType = iota
	DiffInsert
	DiffDelete
)

// GenerateDiff generates a diff between old and new content.
// Returns (diff, oldLineCount, newLineCount).
func GenerateDiff(old, new, filename string) (string, int, int) {
	// Stub - returns unified diff format
	if old == new {
		return "", 0, 0
	}
	oldLines := len(old)
	newLines := len(new)
	return "- " + old + "\n+ " + new, oldLines, newLines
}
