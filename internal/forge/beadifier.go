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
package forge

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/teradata-labs/loom/pkg/types"
)

// Priority is a bead's urgency band, P0 (drop everything) through P4
// (someday).
type Priority string

const (
	PriorityP0 Priority = "P0"
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
	PriorityP3 Priority = "P3"
	PriorityP4 Priority = "P4"
)

// TaskType classifies a bead's nature for downstream tooling.
type TaskType string

const (
	TaskKindTask    TaskType = "task"
	TaskKindBug     TaskType = "bug"
	TaskKindFeature TaskType = "feature"
	TaskKindDocs    TaskType = "docs"
)

// Task (a "bead") is one atomic unit of work decomposed from a
// consensus artifact. Atomicity is an invariant enforced by Validate:
// a title may not join two actions with a compound connective.
type Task struct {
	Title        string
	Description  string
	Priority     Priority
	Type         TaskType
	Dependencies []string
}

const (
	maxTitleLen = 80
	maxDescLen  = 200
)

var compoundConnectives = []string{" and ", " then ", " also ", " plus "}

// Validate enforces the atomicity and length invariants a bead must
// satisfy before it can be accepted into a task list.
func (t Task) Validate() error {
	if t.Title == "" {
		return fmt.Errorf("bead: title is empty")
	}
	if len(t.Title) > maxTitleLen {
		return fmt.Errorf("bead: title exceeds %d characters", maxTitleLen)
	}
	if len(t.Description) > maxDescLen {
		return fmt.Errorf("bead: description exceeds %d characters", maxDescLen)
	}
	if !startsWithVerb(t.Title) {
		return fmt.Errorf("bead: title %q does not begin with a verb", t.Title)
	}
	lower := " " + strings.ToLower(t.Title) + " "
	for _, c := range compoundConnectives {
		if strings.Contains(lower, c) {
			return fmt.Errorf("bead: title %q is not atomic (contains %q)", t.Title, strings.TrimSpace(c))
		}
	}
	return nil
}

// startsWithVerb is a light heuristic: the title's first word must not
// be an article, pronoun, or other non-verb opener. It does not do
// full POS tagging; it rejects the common non-imperative mistakes.
func startsWithVerb(title string) bool {
	fields := strings.Fields(title)
	if len(fields) == 0 {
		return false
	}
	first := strings.ToLower(fields[0])
	for _, bad := range []string{"the", "a", "an", "this", "that", "it", "there"} {
		if first == bad {
			return false
		}
	}
	return true
}

// BeadifierConfig bounds a decomposition run.
type BeadifierConfig struct {
	MaxTasks int
}

// DefaultBeadifierConfig caps a run at a generous but finite number of
// beads so a misbehaving provider can't loop forever.
func DefaultBeadifierConfig() BeadifierConfig {
	return BeadifierConfig{MaxTasks: 50}
}

// doneSentinel is what a provider emits to signal there are no more
// atomic tasks left to extract.
const doneSentinel = "DONE"

// Beadifier repeatedly asks a provider for the next atomic task given
// the remaining context, validating and collecting each candidate
// until the provider signals completion or the task cap is reached.
type Beadifier struct {
	provider types.LLMProvider
	cfg      BeadifierConfig
}

// NewBeadifier binds a Beadifier to provider with cfg.
func NewBeadifier(provider types.LLMProvider, cfg BeadifierConfig) *Beadifier {
	return &Beadifier{provider: provider, cfg: cfg}
}

// Decompose turns consensus markdown into an ordered list of atomic
// tasks. Each candidate is parsed from the provider's structured line
// format and validated; invalid candidates are dropped rather than
// aborting the run.
func (b *Beadifier) Decompose(ctx context.Context, consensusMarkdown string) ([]Task, error) {
	var tasks []Task
	history := []types.Message{
		{Role: "system", Content: beadifierSystemPrompt},
		{Role: "user", Content: consensusMarkdown},
	}

	for len(tasks) < b.cfg.MaxTasks {
		resp, err := b.provider.Chat(ctx, history, nil)
		if err != nil {
			return tasks, err
		}
		content := strings.TrimSpace(resp.Content)
		if content == doneSentinel {
			break
		}

		task, ok := parseTask(content)
		if ok {
			if err := task.Validate(); err == nil {
				tasks = append(tasks, task)
			}
		}

		history = append(history,
			types.Message{Role: "assistant", Content: content},
			types.Message{Role: "user", Content: "Next atomic task, or DONE if there are none left."},
		)
	}

	return tasks, nil
}

const beadifierSystemPrompt = `You decompose a consensus document into atomic tasks.
Emit exactly one task per response in this format:

TITLE: <verb-led title, at most 80 characters>
DESC: <at most 200 characters>
PRIORITY: <P0|P1|P2|P3|P4>
TYPE: <task|bug|feature|docs>
DEPS: <comma-separated prerequisite titles, or empty>

Never join two actions in one title with "and", "then", "also", or "plus" -
split them into separate tasks instead. When there is nothing left to
extract, respond with exactly: DONE`

func parseTask(content string) (Task, bool) {
	var t Task
	t.Priority = PriorityP2
	t.Type = TaskKindTask
	found := false
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		val = strings.TrimSpace(val)
		switch strings.ToUpper(strings.TrimSpace(key)) {
		case "TITLE":
			t.Title = val
			found = true
		case "DESC":
			t.Description = val
		case "PRIORITY":
			t.Priority = Priority(strings.ToUpper(val))
		case "TYPE":
			t.Type = TaskType(strings.ToLower(val))
		case "DEPS":
			if val != "" {
				for _, d := range strings.Split(val, ",") {
					d = strings.TrimSpace(d)
					if d != "" {
						t.Dependencies = append(t.Dependencies, d)
					}
				}
			}
		}
	}
	return t, found
}

// ToShellCommands renders tasks as `bd create` invocations, one per
// line, in dependency-friendly emission order (callers should pass
// tasks already topologically sorted by Dependencies).
func ToShellCommands(tasks []Task, epic string) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		cmd := fmt.Sprintf("bd create %s -p %s --type %s", shellQuote(t.Title), priorityDigit(t.Priority), t.Type)
		if epic != "" {
			cmd += " --parent " + shellQuote(epic)
		}
		if len(t.Dependencies) > 0 {
			cmd += " # deps: " + strings.Join(t.Dependencies, ", ")
		}
		out = append(out, cmd)
	}
	return out
}

func priorityDigit(p Priority) string {
	s := strings.TrimPrefix(string(p), "P")
	if _, err := strconv.Atoi(s); err != nil {
		return "2"
	}
	return s
}

func shellQuote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

// ToMarkdownFiles renders tasks as numbered markdown spec files,
// returning a map from filename (e.g. "001-fix-the-thing.md") to
// content, suitable for writing under a specs/ directory.
func ToMarkdownFiles(tasks []Task) map[string]string {
	files := make(map[string]string, len(tasks))
	for i, t := range tasks {
		name := fmt.Sprintf("%03d-%s.md", i+1, slugify(t.Title))
		var sb strings.Builder
		fmt.Fprintf(&sb, "# %s\n\n", t.Title)
		fmt.Fprintf(&sb, "**Priority:** %s  \n**Type:** %s\n\n", t.Priority, t.Type)
		sb.WriteString(t.Description)
		sb.WriteString("\n")
		if len(t.Dependencies) > 0 {
			sb.WriteString("\n## Dependencies\n\n")
			for _, d := range t.Dependencies {
				fmt.Fprintf(&sb, "- %s\n", d)
			}
		}
		files[name] = sb.String()
	}
	return files
}

func slugify(title string) string {
	lower := strings.ToLower(title)
	var sb strings.Builder
	lastDash := false
	for _, r := range lower {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			sb.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				sb.WriteRune('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(sb.String(), "-")
}
