// Package config loads, deep-merges, and persists the Codex TOML
// configuration document (~/.codex/config.toml). The merge never mutates
// its inputs; loading tolerates a missing or empty file, while a supplied
// override that cannot be decoded is a fatal configuration error.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/zjrosen/codexci/internal/log"
)

// Load reads the TOML document at path. A missing or empty file yields an
// empty document, not an error.
func Load(path string) (map[string]any, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is the resolved codex config path
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return map[string]any{}, nil
	}

	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return doc, nil
}

// Resolve decodes an override supplied either as literal TOML text or as a
// path to a TOML file. Literal decoding is attempted first; on failure the
// string is treated as a file path, and a read or decode failure there is
// fatal. An empty override yields an empty document.
func Resolve(override string) (map[string]any, error) {
	if strings.TrimSpace(override) == "" {
		return map[string]any{}, nil
	}

	var doc map[string]any
	if err := toml.Unmarshal([]byte(override), &doc); err == nil {
		return doc, nil
	}

	data, err := os.ReadFile(override) //nolint:gosec // G304: override is caller-supplied config path
	if err != nil {
		return nil, fmt.Errorf("config: override is neither valid TOML nor a readable file %q: %w", override, err)
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("config: parse override file %s: %w", override, err)
	}
	return doc, nil
}

// Save serializes doc as TOML at path, creating parent directories.
func Save(path string, doc map[string]any) error {
	data, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("config: create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// LoadAndMerge loads the on-disk document at path, resolves the override,
// and returns the merged document. Nothing is written back; callers persist
// with Save once all overrides are applied.
func LoadAndMerge(path, override string) (map[string]any, error) {
	base, err := Load(path)
	if err != nil {
		return nil, err
	}
	overlay, err := Resolve(override)
	if err != nil {
		return nil, err
	}
	merged := Merge(base, overlay)
	log.Debug(log.CatConfig, "merged config",
		"path", path, "baseKeys", len(base), "overrideKeys", len(overlay))
	return merged, nil
}
