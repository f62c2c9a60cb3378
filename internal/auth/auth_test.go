package auth

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		credential string
		expected   CredentialKind
	}{
		{name: "blank", credential: "", expected: KindNone},
		{name: "whitespace only", credential: "   ", expected: KindNone},
		{name: "api key", credential: "sk-test-abc123", expected: KindAPIKey},
		{name: "auth json", credential: `{"OPENAI_API_KEY":"sk-x","tokens":null}`, expected: KindAuthJSON},
		{name: "malformed json falls back to api key", credential: `{"tokens":`, expected: KindAPIKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.credential))
		})
	}
}

func TestInstallAuthJSON(t *testing.T) {
	home := filepath.Join(t.TempDir(), ".codex")
	material := `{"OPENAI_API_KEY":"sk-x"}`

	require.NoError(t, InstallAuthJSON(home, material))

	path := filepath.Join(home, "auth.json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, material, string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
