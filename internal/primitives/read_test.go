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
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/loom/internal/errkind"
	"github.com/teradata-labs/loom/internal/execctx"
)

func newTestContext(t *testing.T) (*execctx.Context, string) {
	t.Helper()
	root := t.TempDir()
	return execctx.New(root, execctx.DefaultLimits()), root
}

func writeTestFile(t *testing.T, root, name, content string) string {
	t.Helper()
	path := filepath.Join(root, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadReturnsFullContent(t *testing.T) {
	ctx, root := newTestContext(t)
	writeTestFile(t, root, "hello.txt", "hello world")

	tool := NewReadTool(ctx)
	res, err := tool.Execute(context.Background(), map[string]interface{}{"path": "hello.txt"})
	require.NoError(t, err)
	require.True(t, res.Success)

	data := res.Data.(*ReadResult)
	assert.Equal(t, "hello world", data.Content)
	assert.EqualValues(t, len("hello world"), data.Size)
	assert.False(t, data.Truncated)
}

func TestReadMissingFile(t *testing.T) {
	ctx, _ := newTestContext(t)
	tool := NewReadTool(ctx)
	_, err := tool.Execute(context.Background(), map[string]interface{}{"path": "nope.txt"})
	require.Error(t, err)
	assert.True(t, errkind.As(err, errkind.FileNotFound))
}

func TestReadPathEscapesRoot(t *testing.T) {
	ctx, _ := newTestContext(t)
	tool := NewReadTool(ctx)
	_, err := tool.Execute(context.Background(), map[string]interface{}{"path": "../escape.txt"})
	require.Error(t, err)
	assert.True(t, errkind.As(err, errkind.PathNotAllowed))
}

func TestReadFileTooLargeWithoutLineRange(t *testing.T) {
	ctx, root := newTestContext(t)
	ctx.Limits.MaxFileSize = 10
	writeTestFile(t, root, "big.txt", strings.Repeat("x", 20))

	tool := NewReadTool(ctx)
	_, err := tool.Execute(context.Background(), map[string]interface{}{"path": "big.txt"})
	require.Error(t, err)
	assert.True(t, errkind.As(err, errkind.FileTooLarge))
}

func TestReadExactlyAtMaxSizeIsNotTruncated(t *testing.T) {
	ctx, root := newTestContext(t)
	ctx.Limits.MaxFileSize = 10
	writeTestFile(t, root, "exact.txt", strings.Repeat("x", 10))

	tool := NewReadTool(ctx)
	res, err := tool.Execute(context.Background(), map[string]interface{}{"path": "exact.txt"})
	require.NoError(t, err)
	assert.False(t, res.Data.(*ReadResult).Truncated)
}

func TestReadOneByteOverMaxSizeFails(t *testing.T) {
	ctx, root := newTestContext(t)
	ctx.Limits.MaxFileSize = 10
	writeTestFile(t, root, "over.txt", strings.Repeat("x", 11))

	tool := NewReadTool(ctx)
	_, err := tool.Execute(context.Background(), map[string]interface{}{"path": "over.txt"})
	require.Error(t, err)
	assert.True(t, errkind.As(err, errkind.FileTooLarge))
}

func TestReadWithMaxSizeOverrideTruncates(t *testing.T) {
	ctx, root := newTestContext(t)
	ctx.Limits.MaxFileSize = 10
	writeTestFile(t, root, "over.txt", strings.Repeat("x", 100))

	tool := NewReadTool(ctx)
	res, err := tool.Execute(context.Background(), map[string]interface{}{"path": "over.txt", "max_size": 20})
	require.NoError(t, err)
	data := res.Data.(*ReadResult)
	assert.True(t, data.Truncated)
	assert.LessOrEqual(t, len(data.Content), 20)
	assert.EqualValues(t, 100, data.Size)
}

func TestReadLineRangeFormatsLineNumbers(t *testing.T) {
	ctx, root := newTestContext(t)
	writeTestFile(t, root, "lines.txt", "one\ntwo\nthree\nfour\nfive")

	tool := NewReadTool(ctx)
	res, err := tool.Execute(context.Background(), map[string]interface{}{
		"path": "lines.txt", "start_line": 2, "end_line": 3,
	})
	require.NoError(t, err)
	data := res.Data.(*ReadResult)
	assert.Contains(t, data.Content, "two")
	assert.Contains(t, data.Content, "three")
	assert.NotContains(t, data.Content, "one")
	assert.NotContains(t, data.Content, "four")
}

func TestReadBinaryFileIsSentinel(t *testing.T) {
	ctx, root := newTestContext(t)
	path := filepath.Join(root, "bin.dat")
	require.NoError(t, os.WriteFile(path, []byte{0x00, 0x01, 0x02, 'h', 'i'}, 0o644))

	tool := NewReadTool(ctx)
	res, err := tool.Execute(context.Background(), map[string]interface{}{"path": "bin.dat"})
	require.NoError(t, err)
	data := res.Data.(*ReadResult)
	assert.True(t, data.Binary)
	assert.False(t, data.Truncated)
	assert.NotContains(t, data.Content, "hi")
}

func TestReadRejectsDirectory(t *testing.T) {
	ctx, root := newTestContext(t)
	require.NoError(t, os.Mkdir(filepath.Join(root, "subdir"), 0o755))

	tool := NewReadTool(ctx)
	_, err := tool.Execute(context.Background(), map[string]interface{}{"path": "subdir"})
	require.Error(t, err)
	assert.True(t, errkind.As(err, errkind.Validation))
}
