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

// Package primitives implements the four host-facing tools an agent
// uses to inspect and mutate a working tree: Read, Search, Edit, and
// Bash. Every primitive takes an *execctx.Context and returns a
// *shuttle.Result whose Data field holds the primitive's concrete
// payload type; failures are *errkind.Error values carrying enough
// structured detail to diagnose without re-reading logs.
package primitives

import (
	"time"

	"github.com/teradata-labs/loom/pkg/shuttle"
)

// Primitive is the interface each of Read/Search/Edit/Bash implements;
// it is shuttle.Tool verbatim so the existing tool registry can host all
// four without modification.
type Primitive interface {
	shuttle.Tool
}

func success(data any, start time.Time, meta map[string]interface{}) *shuttle.Result {
	return &shuttle.Result{
		Success:         true,
		Data:            data,
		Metadata:        meta,
		ExecutionTimeMs: time.Since(start).Milliseconds(),
	}
}

func failure(err error, start time.Time) (*shuttle.Result, error) {
	return &shuttle.Result{
		Success:         false,
		ExecutionTimeMs: time.Since(start).Milliseconds(),
	}, err
}
