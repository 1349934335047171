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
// Package event provides event tracking stubs.
package event

// FilePickerOpened is called when the file picker is opened.
func FilePickerOpened() {
	// Stub - no telemetry in Loom
}

// SessionSwitched is called when a session is switched.
func SessionSwitched() {
	// Stub - no telemetry in Loom
}

// ModelSelected is called when a model is selected.
func ModelSelected() {
	// Stub - no telemetry in Loom
}

// CommandExecuted is called when a command is executed.
func CommandExecuted() {
	// Stub - no telemetry in Loom
}
