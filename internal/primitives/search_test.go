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
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/loom/internal/errkind"
)

func requireRipgrep(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("rg"); err != nil {
		t.Skip("ripgrep (rg) not found on PATH")
	}
}

func TestSearchEmptyPatternIsValidation(t *testing.T) {
	ctx, _ := newTestContext(t)
	tool := NewSearchTool(ctx, "")
	_, err := tool.Execute(context.Background(), map[string]interface{}{"pattern": ""})
	require.Error(t, err)
	assert.True(t, errkind.As(err, errkind.Validation))
}

func TestSearchInvalidRegexIsValidation(t *testing.T) {
	ctx, _ := newTestContext(t)
	tool := NewSearchTool(ctx, "")
	_, err := tool.Execute(context.Background(), map[string]interface{}{"pattern": "("})
	require.Error(t, err)
	assert.True(t, errkind.As(err, errkind.Validation))
}

func TestSearchMissingBackendBinary(t *testing.T) {
	ctx, _ := newTestContext(t)
	tool := NewSearchTool(ctx, "definitely-not-a-real-binary-xyz")
	_, err := tool.Execute(context.Background(), map[string]interface{}{"pattern": "foo"})
	require.Error(t, err)
	assert.True(t, errkind.As(err, errkind.IO))
}

func TestSearchWithContextWindow(t *testing.T) {
	requireRipgrep(t)
	ctx, root := newTestContext(t)
	writeTestFile(t, root, "lines.txt", "line1\nline2\ntarget\nline4\nline5\n")

	tool := NewSearchTool(ctx, "")
	res, err := tool.Execute(context.Background(), map[string]interface{}{
		"pattern": "target", "context_before": 1, "context_after": 1,
	})
	require.NoError(t, err)
	sr := res.Data.(*SearchResult)
	require.Len(t, sr.Matches, 1)
	m := sr.Matches[0]
	assert.Equal(t, 3, m.Line)
	assert.Equal(t, []string{"line2"}, m.ContextBefore)
	assert.Equal(t, []string{"line4"}, m.ContextAfter)
}

func TestSearchZeroMatchesIsSuccess(t *testing.T) {
	requireRipgrep(t)
	ctx, root := newTestContext(t)
	writeTestFile(t, root, "f.txt", "nothing interesting here\n")

	tool := NewSearchTool(ctx, "")
	res, err := tool.Execute(context.Background(), map[string]interface{}{"pattern": "zzz_not_present"})
	require.NoError(t, err)
	sr := res.Data.(*SearchResult)
	assert.Equal(t, 0, sr.TotalCount)
}

func TestParseRipgrepJSONAssignsBeforeAndAfterContext(t *testing.T) {
	stream := `{"type":"begin","data":{}}
{"type":"context","data":{"path":{"text":"f.txt"},"lines":{"text":"line1\n"},"line_number":1}}
{"type":"context","data":{"path":{"text":"f.txt"},"lines":{"text":"line2\n"},"line_number":2}}
{"type":"match","data":{"path":{"text":"f.txt"},"lines":{"text":"target\n"},"line_number":3,"submatches":[{"start":0}]}}
{"type":"context","data":{"path":{"text":"f.txt"},"lines":{"text":"line4\n"},"line_number":4}}
{"type":"end","data":{}}
`
	matches, total := parseRipgrepJSON(bytes.NewBufferString(stream), 1, 1)
	require.Equal(t, 1, total)
	require.Len(t, matches, 1)
	assert.Equal(t, 3, matches[0].Line)
	assert.Equal(t, 1, matches[0].Column)
	assert.Equal(t, []string{"line2"}, matches[0].ContextBefore)
	assert.Equal(t, []string{"line4"}, matches[0].ContextAfter)
}

func TestByteOffsetToColumnUTF8Safe(t *testing.T) {
	assert.Equal(t, 1, byteOffsetToColumn("héllo", 0))
	assert.Equal(t, 3, byteOffsetToColumn("héllo", 2))
}
