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
package teleprompter

import (
	"context"
	"fmt"

	loomv1 "github.com/teradata-labs/loom/gen/go/loom/v1"
	"github.com/teradata-labs/loom/pkg/observability"
)

// COPRO implements the Collaborative Prompt Optimizer.
//
// Status: 🚧 Stub implementation - Coming in v0.12.0
//
// Algorithm (from DSPy):
//  1. Start with baseline prompt
//  2. Iteratively:
//     a. Generate breadth candidate variations
//     b. Evaluate each candidate on trainset
//     c. Select best candidate
//     d. Refine with depth steps
//  3. Use error feedback to guide optimization
//
// Configuration:
// - num_iterations: Optimization iterations (default: 5)
// - breadth: Candidates per iteration (default: 10)
// - depth: Refinement depth (default: 3)
// - use_feedback: Use error feedback (default: true)
// - feedback_mode: "error_only" or "full_trace" (default: "error_only")
//
// References:
// - DSPy COPRO: https://github.com/stanfordnlp/dspy
type COPRO struct {
	*BaseTeleprompter
	// TODO: Add LLM provider for collaborative optimization
}

// NewCOPRO creates a new COPRO teleprompter
func NewCOPRO(tracer observability.Tracer, registry *Registry) *COPRO {
	return &COPRO{
		BaseTeleprompter: NewBaseTeleprompter(tracer, registry),
	}
}

// Compile implements the Teleprompter interface
func (c *COPRO) Compile(
	ctx context.Context,
	req *CompileRequest,
) (*CompilationResult, error) {
	// TODO: Implement COPRO compilation
	return nil, fmt.Errorf("COPRO teleprompter not yet implemented (coming in v0.12.0)")
}

// Type returns the teleprompter type
func (c *COPRO) Type() loomv1.TeleprompterType {
	return loomv1.TeleprompterType_TELEPROMPTER_COPRO
}

// Name returns a human-readable name
func (c *COPRO) Name() string {
	return "COPRO"
}

// SupportsMultiRound indicates if this teleprompter supports iterative optimization
func (c *COPRO) SupportsMultiRound() bool {
	return true
}

// SupportsTeacher indicates if this teleprompter supports teacher-student bootstrapping
func (c *COPRO) SupportsTeacher() bool {
	return false
}
