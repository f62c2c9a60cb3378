// Package auth classifies the supplied credential and installs
// pre-provisioned auth material for the Codex CLI.
package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zjrosen/codexci/internal/log"
)

// CredentialKind distinguishes the two accepted credential shapes.
type CredentialKind int

const (
	// KindNone means no usable credential was supplied.
	KindNone CredentialKind = iota
	// KindAPIKey triggers the codex login flow before execution.
	KindAPIKey
	// KindAuthJSON is pre-provisioned auth.json material installed
	// directly into the Codex home; no login subprocess runs.
	KindAuthJSON
)

// String returns a human-readable name for the credential kind.
func (k CredentialKind) String() string {
	switch k {
	case KindAPIKey:
		return "api-key"
	case KindAuthJSON:
		return "auth-json"
	default:
		return "none"
	}
}

// Classify inspects a credential string. A blank credential is KindNone.
// A JSON object is treated as auth.json material; anything else is an
// API key.
func Classify(credential string) CredentialKind {
	trimmed := strings.TrimSpace(credential)
	if trimmed == "" {
		return KindNone
	}
	if strings.HasPrefix(trimmed, "{") {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal([]byte(trimmed), &probe); err == nil {
			return KindAuthJSON
		}
	}
	return KindAPIKey
}

// InstallAuthJSON writes pre-provisioned auth material to
// <codexHome>/auth.json with owner-only permissions.
func InstallAuthJSON(codexHome, material string) error {
	if err := os.MkdirAll(codexHome, 0o750); err != nil {
		return fmt.Errorf("auth: create codex home %s: %w", codexHome, err)
	}
	path := filepath.Join(codexHome, "auth.json")
	if err := os.WriteFile(path, []byte(material), 0o600); err != nil {
		return fmt.Errorf("auth: write %s: %w", path, err)
	}
	log.Debug(log.CatAuth, "installed auth material", "path", path)
	return nil
}
