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
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/teradata-labs/loom/internal/errkind"
	"github.com/teradata-labs/loom/internal/execctx"
	"github.com/teradata-labs/loom/pkg/shuttle"
)

// BashResult is the payload of a Bash call. A non-zero ExitCode is not
// itself an error; callers that want failure-as-error semantics should
// use BashSuccess.
type BashResult struct {
	ExitCode        int
	Stdout          string
	Stderr          string
	Truncated       bool
	TimedOut        bool
	StdoutTotalBytes int
	StderrTotalBytes int
}

// BashTool implements the sanitized shell-execution primitive.
type BashTool struct {
	ctx       *execctx.Context
	validator *CommandValidator
}

// NewBashTool binds the Bash primitive to ctx, building a validator from
// ctx's configured blocked-command list.
func NewBashTool(ctx *execctx.Context) *BashTool {
	return &BashTool{ctx: ctx, validator: NewCommandValidator(ctx.Limits.BlockedCommands)}
}

func (t *BashTool) Name() string        { return "bash" }
func (t *BashTool) Backend() string     { return "" }
func (t *BashTool) Description() string { return "Run a shell command with a timeout and output cap." }

func (t *BashTool) InputSchema() *shuttle.JSONSchema {
	return shuttle.NewObjectSchema("Bash primitive parameters", map[string]*shuttle.JSONSchema{
		"command":         shuttle.NewStringSchema("shell command to run via `bash -c`"),
		"working_dir":     shuttle.NewStringSchema("working directory, relative to the working root"),
		"timeout_seconds": shuttle.NewNumberSchema("kill the command after this many seconds (0 disables)"),
		"clear_env":       shuttle.NewBooleanSchema("start from an empty environment"),
	}, []string{"command"})
}

const maxOutputSize = 10 * 1024 * 1024

func (t *BashTool) Execute(ctx context.Context, params map[string]interface{}) (*shuttle.Result, error) {
	start := time.Now()
	command, _ := params["command"].(string)
	if command == "" {
		return failure(errkind.New(errkind.Validation, "command is required"), start)
	}
	if err := t.validator.Validate(command); err != nil {
		return failure(err, start)
	}

	workingDir := t.ctx.Root
	if wd, _ := params["working_dir"].(string); wd != "" {
		resolved, allowed := t.ctx.IsAllowed(wd)
		if !allowed {
			return failure(errkind.New(errkind.PathNotAllowed, "working_dir escapes the working root").WithDetail("path", resolved), start)
		}
		workingDir = resolved
	}

	timeout := time.Duration(t.ctx.Limits.DefaultTimeoutS) * time.Second
	if ts, ok := toInt(params["timeout_seconds"]); ok {
		timeout = time.Duration(ts) * time.Second
	}

	cmd := exec.Command("bash", "-c", command)
	cmd.Dir = workingDir
	cmd.Stdin = nil
	setProcAttr(cmd)

	if clear, _ := params["clear_env"].(bool); clear {
		cmd.Env = []string{}
	} else {
		cmd.Env = os.Environ()
	}

	stdoutBuf := &capBuffer{limit: maxOutputSize}
	stderrBuf := &capBuffer{limit: maxOutputSize}
	cmd.Stdout = stdoutBuf
	cmd.Stderr = stderrBuf

	if err := cmd.Start(); err != nil {
		return failure(errkind.Wrap(errkind.IO, "failed to start command", err), start)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var timedOut bool
	var waitErr error

	if timeout > 0 {
		select {
		case waitErr = <-done:
		case <-time.After(timeout):
			timedOut = true
			killProcessGroup(cmd.Process)
			select {
			case <-done:
			case <-time.After(2 * time.Second):
			}
		case <-ctx.Done():
			killProcessGroup(cmd.Process)
			<-done
			return failure(ctx.Err(), start)
		}
	} else {
		select {
		case waitErr = <-done:
		case <-ctx.Done():
			killProcessGroup(cmd.Process)
			<-done
			return failure(ctx.Err(), start)
		}
	}

	if timedOut {
		return success(&BashResult{
			ExitCode: -1,
			Stdout:   "",
			Stderr:   "Command timed out after " + timeout.String(),
			TimedOut: true,
		}, start, map[string]interface{}{"timed_out": true}), nil
	}

	exitCode := 0
	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return failure(errkind.Wrap(errkind.IO, "command execution failed", waitErr), start)
		}
	}

	return success(&BashResult{
		ExitCode:         exitCode,
		Stdout:           stdoutBuf.String(),
		Stderr:           stderrBuf.String(),
		Truncated:        stdoutBuf.truncated || stderrBuf.truncated,
		StdoutTotalBytes: stdoutBuf.total,
		StderrTotalBytes: stderrBuf.total,
	}, start, map[string]interface{}{"exit_code": exitCode}), nil
}

// BashSuccess runs command and returns a CommandFailed error when the
// exit code is non-zero, for callers that want failure-as-error semantics.
func (t *BashTool) BashSuccess(ctx context.Context, params map[string]interface{}) (*BashResult, error) {
	res, err := t.Execute(ctx, params)
	if err != nil {
		return nil, err
	}
	br := res.Data.(*BashResult)
	if br.ExitCode != 0 {
		return br, errkind.New(errkind.CommandFailed, "command exited non-zero").
			WithDetail("exit_code", br.ExitCode).WithDetail("stderr", br.Stderr)
	}
	return br, nil
}

// BashSequence runs commands in order via BashSuccess, stopping at the
// first failure.
func (t *BashTool) BashSequence(ctx context.Context, commands []string) ([]*BashResult, error) {
	var results []*BashResult
	for _, c := range commands {
		r, err := t.BashSuccess(ctx, map[string]interface{}{"command": c})
		if r != nil {
			results = append(results, r)
		}
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// capBuffer accumulates up to limit bytes and silently discards the
// rest, while still tracking that truncation occurred.
type capBuffer struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	limit     int
	truncated bool
	total     int
}

func (c *capBuffer) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total += len(p)
	remaining := c.limit - c.buf.Len()
	if remaining <= 0 {
		c.truncated = true
		return len(p), nil
	}
	if len(p) > remaining {
		c.buf.Write(p[:remaining])
		c.truncated = true
		return len(p), nil
	}
	c.buf.Write(p)
	return len(p), nil
}

func (c *capBuffer) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

var _ io.Writer = (*capBuffer)(nil)
