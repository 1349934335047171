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
package styles

const (
	CheckIcon         string = "✓"
	ErrorIcon         string = "×"
	WarningIcon       string = "⚠"
	InfoIcon          string = "ⓘ"
	HintIcon          string = "∵"
	SpinnerIcon       string = "..."
	ArrowRightIcon    string = "→"
	CenterSpinnerIcon string = "⋯"
	LoadingIcon       string = "⟳"
	DocumentIcon      string = "🖼"
	ModelIcon         string = "◇"

	// Tool call icons
	ToolPending string = "●"
	ToolSuccess string = "✓"
	ToolError   string = "×"

	BorderThin  string = "│"
	BorderThick string = "▌"

	// Todo icons
	TodoCompletedIcon string = "✓"
	TodoPendingIcon   string = "•"

	// Sidebar icons
	PatternIcon string = "◆"
)

var SelectionIgnoreIcons = []string{
	// CheckIcon,
	// ErrorIcon,
	// WarningIcon,
	// InfoIcon,
	// HintIcon,
	// SpinnerIcon,
	// LoadingIcon,
	// DocumentIcon,
	// ModelIcon,
	//
	// // Tool call icons
	// ToolPending,
	// ToolSuccess,
	// ToolError,

	BorderThin,
	BorderThick,
}
