package args

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestReconcile_Empty(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty string", raw: ""},
		{name: "whitespace only", raw: "   \t  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Reconcile(tt.raw, "", "")

			require.NoError(t, err)
			assert.Empty(t, r.AllowedTools)
			assert.Empty(t, r.DisallowedTools)
			assert.Empty(t, r.Passthrough())
		})
	}
}

func TestReconcile_MalformedQuoting(t *testing.T) {
	_, err := Reconcile(`--model "unterminated`, "", "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed argument string")
}

func TestReconcile_NonAccumulatingLastWins(t *testing.T) {
	r, err := Reconcile(`--model gpt-5 --model o3`, "", "")

	require.NoError(t, err)
	assert.Equal(t, []string{"--model", "o3"}, r.Passthrough())
}

func TestReconcile_BooleanFlag(t *testing.T) {
	r, err := Reconcile(`--full-auto --model o3`, "", "")

	require.NoError(t, err)
	assert.Equal(t, []string{"--full-auto", "--model", "o3"}, r.Passthrough())
}

func TestReconcile_QuotedValuePreserved(t *testing.T) {
	r, err := Reconcile(`--model "my model"`, "", "")

	require.NoError(t, err)
	assert.Equal(t, []string{"--model", "my model"}, r.Passthrough())
}

func TestReconcile_ToolListsAcrossOccurrences(t *testing.T) {
	// End-to-end scenario: the flag repeated twice plus a model flag.
	r, err := Reconcile(`--allowedTools "Edit,Read" --model "x" --allowedTools "Write"`, "", "")

	require.NoError(t, err)
	assert.Equal(t, []string{"Edit", "Read", "Write"}, r.AllowedTools)
	assert.Equal(t, []string{"--model", "x"}, r.Passthrough())
	assert.NotContains(t, r.Passthrough(), "--allowedTools")
}

func TestReconcile_ToolListBothSpellings(t *testing.T) {
	r, err := Reconcile(`--allowed-tools Edit --allowedTools "Read, Edit"`, "", "")

	require.NoError(t, err)
	assert.Equal(t, []string{"Edit", "Read"}, r.AllowedTools)
	assert.Empty(t, r.Passthrough())
}

func TestReconcile_ToolListOverrideMerge(t *testing.T) {
	r, err := Reconcile(`--allowedTools Edit,Read`, "Read,Write", "Bash")

	require.NoError(t, err)
	assert.Equal(t, []string{"Edit", "Read", "Write"}, r.AllowedTools)
	assert.Equal(t, []string{"Bash"}, r.DisallowedTools)
}

func TestReconcile_AccumulatingConsumesValueGroup(t *testing.T) {
	// An accumulating flag consumes all consecutive bare values, not just one.
	r, err := Reconcile(`--image a.png b.png --model o3`, "", "")

	require.NoError(t, err)
	assert.Equal(t, []string{"--image", "a.png", "--image", "b.png", "--model", "o3"}, r.Passthrough())
}

func TestReconcile_StdinMarkerIsNotAFlag(t *testing.T) {
	r, err := Reconcile(`--model o3 -`, "", "")

	require.NoError(t, err)
	assert.Equal(t, []string{"--model", "o3", "-"}, r.Passthrough())
}

func TestReconcile_ConfigFragments_InlineJSONMerge(t *testing.T) {
	raw := `--config '{"mcpServers":{"github":{"url":"http://a"}}}' ` +
		`-c '{"mcpServers":{"linear":{"url":"http://b"}}}'`

	r, err := Reconcile(raw, "", "")
	require.NoError(t, err)

	value, ok := r.Flag("config")
	require.True(t, ok)
	require.NotNil(t, value)

	var doc map[string]map[string]map[string]string
	require.NoError(t, json.Unmarshal([]byte(*value), &doc))
	assert.Equal(t, "http://a", doc["mcpServers"]["github"]["url"])
	assert.Equal(t, "http://b", doc["mcpServers"]["linear"]["url"])
}

func TestReconcile_ConfigFragments_ThreeFragments(t *testing.T) {
	raw := `-c '{"servers":{"a":{"url":"1"}}}' ` +
		`-c '{"servers":{"b":{"url":"2"}}}' ` +
		`-c '{"servers":{"c":{"url":"3"}}}'`

	r, err := Reconcile(raw, "", "")
	require.NoError(t, err)

	value, _ := r.Flag("config")
	require.NotNil(t, value)

	var doc map[string]map[string]any
	require.NoError(t, json.Unmarshal([]byte(*value), &doc))
	assert.Len(t, doc["servers"], 3)
}

func TestReconcile_ConfigFragments_LaterKeysWin(t *testing.T) {
	raw := `-c '{"mcpServers":{"github":{"url":"http://old"}}}' ` +
		`-c '{"mcpServers":{"github":{"url":"http://new"}}}'`

	r, err := Reconcile(raw, "", "")
	require.NoError(t, err)

	value, _ := r.Flag("config")
	require.NotNil(t, value)

	var doc map[string]map[string]map[string]string
	require.NoError(t, json.Unmarshal([]byte(*value), &doc))
	assert.Equal(t, "http://new", doc["mcpServers"]["github"]["url"])
}

func TestReconcile_ConfigFragments_InlineWinsOverPath(t *testing.T) {
	// A file path mixed with an inline fragment: the merged JSON wins.
	raw := `-c /etc/codex/extra.json -c '{"mcpServers":{"github":{"url":"http://a"}}}'`

	r, err := Reconcile(raw, "", "")
	require.NoError(t, err)

	value, _ := r.Flag("config")
	require.NotNil(t, value)
	assert.True(t, strings.HasPrefix(*value, "{"), "inline JSON should win over file path")
}

func TestReconcile_ConfigFragments_PathOnlyKeepsLast(t *testing.T) {
	raw := `-c /etc/codex/a.json -c /etc/codex/b.json`

	r, err := Reconcile(raw, "", "")
	require.NoError(t, err)

	value, _ := r.Flag("config")
	require.NotNil(t, value)
	assert.Equal(t, "/etc/codex/b.json", *value)
}

func TestReconcile_SingleConfigFragmentVerbatim(t *testing.T) {
	r, err := Reconcile(`-c 'sandbox_mode="read-only"'`, "", "")

	require.NoError(t, err)
	value, _ := r.Flag("config")
	require.NotNil(t, value)
	assert.Equal(t, `sandbox_mode="read-only"`, *value)
}

func TestReconcile_FlagEqualsValueForm(t *testing.T) {
	r, err := Reconcile(`--model=o3`, "", "")

	require.NoError(t, err)
	assert.Equal(t, []string{"--model", "o3"}, r.Passthrough())
}

func TestMergeToolList_DedupFirstSeenOrder(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		names := rapid.SliceOfN(rapid.StringMatching(`[A-Z][a-z]{1,8}`), 0, 12).Draw(t, "names")
		raw := strings.Join(names, ",")

		got := mergeToolList(raw, "")

		seen := make(map[string]bool)
		for _, name := range got {
			if seen[name] {
				t.Fatalf("duplicate tool %q in %v", name, got)
			}
			seen[name] = true
		}
		// Every input name must be present.
		for _, name := range names {
			if name != "" && !seen[name] {
				t.Fatalf("missing tool %q in %v", name, got)
			}
		}
	})
}
