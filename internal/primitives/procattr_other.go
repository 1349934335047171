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

//go:build !unix

package primitives

import (
	"os"
	"os/exec"
)

// setProcAttr is a no-op outside POSIX; there is no process-group
// concept to opt into.
func setProcAttr(cmd *exec.Cmd) {}

// killProcessGroup falls back to killing the single tracked process.
func killProcessGroup(proc *os.Process) {
	if proc != nil {
		_ = proc.Kill()
	}
}
