// Package paths provides path resolution for the Codex home directory and
// run artifacts.
package paths

import (
	"os"
	"path/filepath"

	"github.com/zjrosen/codexci/internal/environ"
)

// CodexHome resolves the Codex CLI home directory.
//
// Resolution order:
//   - $CODEX_HOME when set
//   - ~/.codex otherwise
func CodexHome(env environ.Snapshot) string {
	if home := env.Get("CODEX_HOME"); home != "" {
		return filepath.Clean(home)
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		// Fall back to a relative .codex so we still have somewhere to write.
		return ".codex"
	}
	return filepath.Join(userHome, ".codex")
}

// ConfigPath returns the path of the persistent Codex config document.
func ConfigPath(env environ.Snapshot) string {
	return filepath.Join(CodexHome(env), "config.toml")
}

// AuthPath returns the path where pre-provisioned auth material is installed.
func AuthPath(env environ.Snapshot) string {
	return filepath.Join(CodexHome(env), "auth.json")
}

// DefaultLogPath returns the default destination for the execution event log.
// CI runners provide RUNNER_TEMP; outside CI the OS temp directory is used.
//
// The default is a fixed path, so concurrent invocations in one job must
// supply distinct log paths or the final write races.
func DefaultLogPath(env environ.Snapshot) string {
	tmp := env.Get("RUNNER_TEMP")
	if tmp == "" {
		tmp = os.TempDir()
	}
	return filepath.Join(tmp, "codexci-events.json")
}
