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
package config

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// loopConfigSchema describes the shape of a config.yaml document,
// independent of the numeric bounds LoopConfig.Validate already
// enforces: it catches the case a hand-edited file gets a field's
// *type* wrong (a string where a number belongs, an object where an
// array belongs) before that ever reaches the bounds check.
var loopConfigSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"backend": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"brain":      map[string]interface{}{"type": "string"},
				"think_tank": map[string]interface{}{"type": "string"},
			},
		},
		"loop": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"max_iterations":     map[string]interface{}{"type": "integer"},
				"redline_threshold":  map[string]interface{}{"type": "number"},
				"iteration_delay_ms": map[string]interface{}{"type": "integer"},
				"stop_on": map[string]interface{}{
					"type": "array",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"redline":           map[string]interface{}{"type": "boolean"},
							"test_fail_streak":  map[string]interface{}{"type": "integer"},
							"no_progress":       map[string]interface{}{"type": "integer"},
						},
					},
				},
			},
		},
		"policies": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"attended_by_default":   map[string]interface{}{"type": "boolean"},
				"auto_commit":           map[string]interface{}{"type": "boolean"},
				"auto_push":             map[string]interface{}{"type": "boolean"},
				"require_spec":          map[string]interface{}{"type": "boolean"},
				"deploy_requires_tests": map[string]interface{}{"type": "boolean"},
			},
		},
		"forge": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"max_rounds":            map[string]interface{}{"type": "integer"},
				"convergence_threshold": map[string]interface{}{"type": "number"},
				"round_timeout_ms":      map[string]interface{}{"type": "integer"},
			},
		},
	},
}

// ValidateSchema checks raw (already ${VAR}-expanded config.yaml
// content, parsed as YAML into a generic map) against loopConfigSchema.
// Called ahead of the strict LoopConfig.Validate bounds check so a
// type mismatch in a hand-edited file produces a field-level error
// instead of a confusing unmarshal failure or a silently zeroed field.
func ValidateSchema(doc map[string]interface{}) error {
	schemaLoader := gojsonschema.NewGoLoader(loopConfigSchema)
	docLoader := gojsonschema.NewGoLoader(doc)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return fmt.Errorf("config: schema validation failed: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, len(result.Errors()))
		for i, e := range result.Errors() {
			msgs[i] = e.String()
		}
		return fmt.Errorf("config: invalid config.yaml: %v", msgs)
	}
	return nil
}
