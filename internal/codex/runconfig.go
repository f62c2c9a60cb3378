package codex

import (
	"strings"

	"github.com/zjrosen/codexci/internal/environ"
)

// jsonFlag switches codex exec into structured JSONL output.
const jsonFlag = "--json"

// stdinMarker tells codex exec to read the prompt from standard input.
const stdinMarker = "-"

// originatorVar is forwarded from the action environment to the CLI under
// the name codex recognizes.
const (
	originatorVar         = "CODEX_ACTION_ORIGINATOR"
	originatorOverrideVar = "CODEX_INTERNAL_ORIGINATOR_OVERRIDE"
)

// RunConfig is the finalized codex invocation: argv, the prompt source,
// the environment overlay, and the event-log destination. Immutable after
// construction.
type RunConfig struct {
	Argv       []string
	PromptPath string
	Env        []string // KEY=VALUE overlay appended to the process environment
	LogPath    string
}

// BuildRunConfig assembles the argv for codex exec. Pass-through arguments
// come first, then the structured-output flag and the stdin marker, each
// appended only when not already present. This step is a pure data
// transformation and reports no errors.
func BuildRunConfig(promptPath string, passthrough []string, env environ.Snapshot, logPath string) RunConfig {
	argv := make([]string, 0, len(passthrough)+3)
	argv = append(argv, "exec")
	argv = append(argv, passthrough...)

	if !hasFlag(argv, jsonFlag) {
		argv = append(argv, jsonFlag)
	}
	if !hasToken(argv, stdinMarker) {
		argv = append(argv, stdinMarker)
	}

	var overlay []string
	if originator := env.Get(originatorVar); originator != "" {
		overlay = append(overlay, originatorOverrideVar+"="+originator)
	}

	return RunConfig{
		Argv:       argv,
		PromptPath: promptPath,
		Env:        overlay,
		LogPath:    logPath,
	}
}

// hasFlag reports whether argv already carries flag, in exact or
// flag=value form.
func hasFlag(argv []string, flag string) bool {
	for _, tok := range argv {
		if tok == flag || strings.HasPrefix(tok, flag+"=") {
			return true
		}
	}
	return false
}

func hasToken(argv []string, token string) bool {
	for _, tok := range argv {
		if tok == token {
			return true
		}
	}
	return false
}
