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
	"fmt"
	"strings"
)

// Summary is the consensus artifact extracted from a completed Session.
type Summary struct {
	Decision  string
	Rationale []string
	Dissent   []Vote
	NextSteps []string
}

// maxSummaryWords bounds the rendered markdown to the word count the
// contract promises; summaries over this are truncated with a notice.
const maxSummaryWords = 500

var defaultNextSteps = []string{
	"Review the decision with stakeholders not represented in this session",
	"Break the decision down into atomic tasks",
}

// Extract builds a Summary from s. It is meaningful only once s has
// produced at least one Synthesis or Refinement round; callers should
// check s.Status first.
func Extract(s *Session) Summary {
	var decision string
	for i := len(s.Rounds) - 1; i >= 0; i-- {
		r := s.Rounds[i]
		if r.Kind == RoundSynthesis || r.Kind == RoundRefinement {
			decision = r.Content
			break
		}
	}

	var rationale []string
	for _, r := range s.Rounds {
		if r.Kind == RoundSynthesis && r.Reasoning != "" {
			rationale = append(rationale, r.Reasoning)
		}
	}

	var dissent []Vote
	var remaining []string
	for _, r := range s.Rounds {
		if r.Kind != RoundConvergence {
			continue
		}
		for _, v := range r.Votes {
			if !v.Agrees {
				dissent = append(dissent, v)
			}
		}
		remaining = r.RemainingIssues
	}
	if len(remaining) == 0 {
		remaining = defaultNextSteps
	}

	return Summary{
		Decision:  decision,
		Rationale: rationale,
		Dissent:   dissent,
		NextSteps: remaining,
	}
}

// Render produces a markdown document for the summary, trimmed to at
// most maxSummaryWords words with a truncation notice appended when it
// runs over.
func (s Summary) Render(topic Topic) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Consensus: %s\n\n", topic.Title)
	sb.WriteString("## Decision\n\n")
	sb.WriteString(s.Decision)
	sb.WriteString("\n\n")

	if len(s.Rationale) > 0 {
		sb.WriteString("## Rationale\n\n")
		for _, r := range s.Rationale {
			fmt.Fprintf(&sb, "- %s\n", r)
		}
		sb.WriteString("\n")
	}

	if len(s.Dissent) > 0 {
		sb.WriteString("## Dissenting Views\n\n")
		for _, v := range s.Dissent {
			fmt.Fprintf(&sb, "- **%s**: %s\n", v.Participant, v.Reasoning)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Next Steps\n\n")
	for _, n := range s.NextSteps {
		fmt.Fprintf(&sb, "- %s\n", n)
	}

	return truncateWords(sb.String(), maxSummaryWords)
}

func truncateWords(text string, max int) string {
	words := strings.Fields(text)
	if len(words) <= max {
		return text
	}
	return strings.Join(words[:max], " ") + "\n\n*[truncated: summary exceeded 500 words]*"
}
