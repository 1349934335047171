// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package collaboration

import (
	"context"
	"fmt"

	loomv1 "github.com/teradata-labs/loom/gen/go/loom/v1"
)

// TeacherStudentOrchestrator manages expert-to-novice knowledge transfer.
type TeacherStudentOrchestrator struct {
	provider AgentProvider
}

// NewTeacherStudentOrchestrator creates a new teacher-student orchestrator.
func NewTeacherStudentOrchestrator(provider AgentProvider) *TeacherStudentOrchestrator {
	return &TeacherStudentOrchestrator{
		provider: provider,
	}
}

// Execute runs a teacher-student learning session.
func (t *TeacherStudentOrchestrator) Execute(ctx context.Context, config *loomv1.TeacherStudentPattern) (*loomv1.WorkflowResult, error) {
	result := &loomv1.WorkflowResult{
		PatternType:  "teacher_student",
		AgentResults: make([]*loomv1.AgentResult, 0),
		Metadata:     make(map[string]string),
		Cost:         &loomv1.WorkflowCost{AgentCostsUsd: make(map[string]float64)},
	}

	teacherStudentResult := &loomv1.TeacherStudentResult{
		Steps:            make([]*loomv1.StepResult, 0),
		ConceptsMastered: make([]string, 0),
		ImprovementAreas: make([]string, 0),
	}

	// Placeholder implementation
	result.MergedOutput = fmt.Sprintf("Learning session for objective: %s", config.Objective)

	result.CollaborationResult = &loomv1.WorkflowResult_TeacherStudentResult{
		TeacherStudentResult: teacherStudentResult,
	}

	return result, nil
}
