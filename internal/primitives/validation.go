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
package primitives

import (
	"regexp"
	"strings"

	"github.com/teradata-labs/loom/internal/errkind"
)

// CommandValidator rejects shell commands before they are ever spawned.
// It mirrors a default-deny posture: a fixed set of shell metacharacters,
// dangerous redirections, exfiltration-shaped invocations, and a
// blocklist of destructive keywords are all rejected unless explicitly
// allowed.
type CommandValidator struct {
	MaxLength              int
	BlockedPatterns        []*regexp.Regexp
	BlockedKeywords        map[string]struct{}
	AllowNetwork           bool
	AllowSystemModification bool
}

var defaultBlockedKeywords = []string{
	"rm", "rmdir", "mv", "dd", "mkfs", "fdisk", "format",
	"shutdown", "reboot", "halt", "poweroff", "init", "killall", "pkill",
}

var systemModificationKeywords = map[string]struct{}{
	"rm": {}, "rmdir": {}, "mv": {}, "dd": {}, "mkfs": {}, "fdisk": {},
	"format": {}, "shutdown": {}, "reboot": {}, "halt": {}, "poweroff": {},
	"init": {}, "killall": {}, "pkill": {},
}

var networkKeywords = map[string]struct{}{
	"nc": {}, "netcat": {}, "curl": {}, "wget": {}, "ssh": {}, "scp": {}, "telnet": {},
}

var defaultBlockedPatternSource = []string{
	`[;&|` + "`" + `$(){}]`,
	`>>\s*/etc/`,
	`>\s*/etc/`,
	`nc\s+.*\s+\d+`,
	`netcat\s+.*\s+\d+`,
	`base64\s+-d`,
}

// NewCommandValidator builds a validator with the default blocklist,
// extended with any additional blocked keywords the caller supplies.
func NewCommandValidator(extraBlocked []string) *CommandValidator {
	keywords := make(map[string]struct{}, len(defaultBlockedKeywords)+len(extraBlocked))
	for _, k := range defaultBlockedKeywords {
		keywords[k] = struct{}{}
	}
	for _, k := range extraBlocked {
		keywords[k] = struct{}{}
	}
	patterns := make([]*regexp.Regexp, 0, len(defaultBlockedPatternSource))
	for _, p := range defaultBlockedPatternSource {
		patterns = append(patterns, regexp.MustCompile(p))
	}
	return &CommandValidator{
		MaxLength:       1000,
		BlockedPatterns: patterns,
		BlockedKeywords: keywords,
	}
}

// Validate rejects a command for length, blocked patterns, blocked
// keywords, or shell-injection indicators, in that order, returning the
// first violation found.
func (v *CommandValidator) Validate(command string) error {
	if len(command) > v.MaxLength {
		return errkind.New(errkind.Validation, "command exceeds maximum length").
			WithDetail("max_length", v.MaxLength).WithDetail("actual_length", len(command))
	}

	for _, pattern := range v.BlockedPatterns {
		if pattern.MatchString(command) {
			return errkind.New(errkind.Validation, "command matches a blocked pattern").
				WithDetail("pattern", pattern.String())
		}
	}

	for _, word := range strings.Fields(command) {
		trimmed := strings.TrimLeft(word, "/.")
		// keep only the executable name if a path was given
		if idx := strings.LastIndexByte(trimmed, '/'); idx >= 0 {
			trimmed = trimmed[idx+1:]
		}
		if _, blocked := v.BlockedKeywords[trimmed]; blocked {
			if _, isSystemMod := systemModificationKeywords[trimmed]; isSystemMod && v.AllowSystemModification {
				continue
			}
			return errkind.New(errkind.Validation, "command uses a blocked keyword").
				WithDetail("keyword", trimmed)
		}
		if _, isNetwork := networkKeywords[trimmed]; isNetwork && !v.AllowNetwork {
			return errkind.New(errkind.Validation, "command uses a network-capable keyword").
				WithDetail("keyword", trimmed)
		}
	}

	if HasCommandInjection(command) {
		return errkind.New(errkind.Validation, "command contains shell injection indicators")
	}

	return nil
}

// HasCommandInjection scans for characters and substrings commonly used
// to chain or substitute additional commands.
func HasCommandInjection(command string) bool {
	for _, r := range command {
		switch r {
		case '&', '|', ';', '$', '`':
			return true
		}
	}
	return strings.Contains(command, "$(") ||
		strings.Contains(command, "${") ||
		strings.Contains(command, "``")
}

// SanitizeCommand strips shell metacharacters for safe display in logs
// and traces. It is never used to decide whether a command may execute.
func SanitizeCommand(command string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '&', '|', ';', '$', '`':
			return -1
		}
		return r
	}, command)
}
