package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/codexci/internal/args"
	"github.com/zjrosen/codexci/internal/config"
	"github.com/zjrosen/codexci/internal/environ"
	"github.com/zjrosen/codexci/internal/runner"
)

func TestValidatePrompt(t *testing.T) {
	dir := t.TempDir()
	promptPath := filepath.Join(dir, "prompt.md")
	require.NoError(t, os.WriteFile(promptPath, []byte("do the thing"), 0o600))
	emptyPath := filepath.Join(dir, "empty.md")
	require.NoError(t, os.WriteFile(emptyPath, nil, 0o600))

	tests := []struct {
		name        string
		path        string
		errContains string
	}{
		{name: "valid prompt", path: promptPath},
		{name: "unset path", path: "", errContains: "no prompt file provided"},
		{name: "missing file", path: filepath.Join(dir, "nope.md"), errContains: "nope.md"},
		{name: "empty file", path: emptyPath, errContains: "is empty"},
		{name: "directory", path: dir, errContains: "is a directory"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePrompt(tt.path)
			if tt.errContains == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestApplyConfig_WritesToolListsAndOverrides(t *testing.T) {
	home := t.TempDir()
	env := environ.Snapshot{"CODEX_HOME": home}
	reconciled, err := args.Reconcile("", "Edit,Read", "Bash")
	require.NoError(t, err)

	err = applyConfig(env, `model = "o3"`, reconciled)
	require.NoError(t, err)

	doc, err := config.Load(filepath.Join(home, "config.toml"))
	require.NoError(t, err)
	assert.Equal(t, "o3", doc["model"])

	tools, ok := doc["tools"].(map[string]any)
	require.True(t, ok, "tools table should be written")
	assert.Equal(t, []any{"Edit", "Read"}, tools["allowed"])
	assert.Equal(t, []any{"Bash"}, tools["disallowed"])
}

func TestApplyConfig_NoToolsLeavesDocUntouched(t *testing.T) {
	home := t.TempDir()
	env := environ.Snapshot{"CODEX_HOME": home}
	reconciled, err := args.Reconcile("", "", "")
	require.NoError(t, err)

	require.NoError(t, applyConfig(env, "", reconciled))

	doc, err := config.Load(filepath.Join(home, "config.toml"))
	require.NoError(t, err)
	_, hasTools := doc["tools"]
	assert.False(t, hasTools)
}

func TestApplyConfig_MergesWithExistingDocument(t *testing.T) {
	home := t.TempDir()
	env := environ.Snapshot{"CODEX_HOME": home}
	existing := map[string]any{
		"model":   "gpt-5",
		"sandbox": map[string]any{"mode": "read-only", "network": false},
	}
	require.NoError(t, config.Save(filepath.Join(home, "config.toml"), existing))

	reconciled, err := args.Reconcile("", "", "")
	require.NoError(t, err)
	require.NoError(t, applyConfig(env, `[sandbox]
mode = "workspace-write"`, reconciled))

	doc, err := config.Load(filepath.Join(home, "config.toml"))
	require.NoError(t, err)
	assert.Equal(t, "gpt-5", doc["model"])
	sandbox := doc["sandbox"].(map[string]any)
	assert.Equal(t, "workspace-write", sandbox["mode"])
	assert.Equal(t, false, sandbox["network"])
}

func TestWriteActionOutputs(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "github-output")
	env := environ.Snapshot{"GITHUB_OUTPUT": outputPath}

	writeActionOutputs(env, &runner.Outcome{
		RunID:       "run-1",
		LogPath:     "/tmp/events.json",
		LastMessage: "All tests pass now.",
	})

	data, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, "run-id=run-1\n")
	assert.Contains(t, out, "log-path=/tmp/events.json\n")
	assert.Contains(t, out, "final-message<<codexci_run-1\nAll tests pass now.\ncodexci_run-1\n")
}

func TestWriteActionOutputs_DelimiterLookingMessageStaysIntact(t *testing.T) {
	// A message containing a delimiter-looking line must not terminate the
	// heredoc early; the run ID keeps the real delimiter unique.
	outputPath := filepath.Join(t.TempDir(), "github-output")
	env := environ.Snapshot{"GITHUB_OUTPUT": outputPath}
	message := "before\nEOF\ncodexci_EOF\nafter"

	writeActionOutputs(env, &runner.Outcome{RunID: "run-3", LastMessage: message})

	data, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "final-message<<codexci_run-3\n"+message+"\ncodexci_run-3\n")
}

func TestWriteActionOutputs_NoGitHubOutputIsNoop(t *testing.T) {
	writeActionOutputs(environ.Snapshot{}, &runner.Outcome{RunID: "run-1"})
}

func TestWriteActionOutputs_SkipsFinalMessageWhenEmpty(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "github-output")
	env := environ.Snapshot{"GITHUB_OUTPUT": outputPath}

	writeActionOutputs(env, &runner.Outcome{RunID: "run-2", LogPath: "/tmp/e.json"})

	data, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "final-message")
}
