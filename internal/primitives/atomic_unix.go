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

//go:build unix

package primitives

import (
	"os"
	"syscall"
)

// copyOwnership best-effort copies owner/group from an existing file to
// the staged temp file. Failures (e.g. not running as root) are ignored,
// matching the original atomic-write contract.
func copyOwnership(existing, temp string) {
	info, err := os.Stat(existing)
	if err != nil {
		return
	}
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return
	}
	_ = os.Chown(temp, int(stat.Uid), int(stat.Gid))
}
