// Package args reconciles user-supplied CLI argument strings with the flags
// codexci manages itself. The raw string is tokenized with POSIX shell
// quoting rules, accumulating flags are folded together, tool lists are
// extracted and deduplicated, and the remainder is re-serialized as
// pass-through arguments for the codex invocation.
package args

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/zjrosen/codexci/internal/log"
)

// groupSep joins the values of repeated accumulating flags. The unit
// separator never appears in tool names, file paths, or TOML/JSON fragments.
const groupSep = "\x1f"

// aliases maps alternate flag spellings to their canonical name.
// Both spellings of the tool-list flags are accepted; -c is the short
// spelling of codex's --config.
var aliases = map[string]string{
	"c":                "config",
	"allowed-tools":    "allowedTools",
	"disallowed-tools": "disallowedTools",
}

// accumulating flags concatenate repeated occurrences instead of
// overwriting. Names are canonical (post-alias).
var accumulating = map[string]bool{
	"config":          true,
	"allowedTools":    true,
	"disallowedTools": true,
	"image":           true,
}

// serverKeys are the nested-map keys recognized in inline JSON config
// fragments. Maps under these keys are shallow-merged across fragments.
var serverKeys = map[string]bool{
	"mcpServers":  true,
	"mcp_servers": true,
	"servers":     true,
}

// Reconciled is the result of reconciling a raw argument string.
// Tool lists are extracted and deduplicated; everything else is preserved
// in original order for pass-through.
type Reconciled struct {
	// AllowedTools is the merged, deduplicated tool allow list.
	AllowedTools []string

	// DisallowedTools is the merged, deduplicated tool deny list.
	DisallowedTools []string

	flags       map[string]*string
	order       []string
	positionals []string
}

// Reconcile tokenizes raw with shell quoting rules and folds the token
// stream into flag assignments. Tool-list flags (both spellings) are
// extracted, comma-split, and merged with the directly supplied override
// lists. Malformed quoting fails the whole reconciliation.
func Reconcile(raw, allowedOverride, disallowedOverride string) (*Reconciled, error) {
	tokens, err := shellquote.Split(raw)
	if err != nil {
		return nil, fmt.Errorf("args: malformed argument string %q: %w", raw, err)
	}

	r := &Reconciled{flags: make(map[string]*string)}
	i := 0
	for i < len(tokens) {
		tok := tokens[i]
		if !isFlag(tok) {
			// Bare token with no preceding flag; preserved verbatim.
			r.positionals = append(r.positionals, tok)
			i++
			continue
		}

		name := strings.TrimLeft(tok, "-")
		var inlineValue *string
		if idx := strings.IndexByte(name, '='); idx >= 0 {
			v := name[idx+1:]
			name = name[:idx]
			inlineValue = &v
		}
		if canonical, ok := aliases[name]; ok {
			name = canonical
		}
		i++

		if inlineValue != nil {
			r.record(name, inlineValue)
			continue
		}

		if accumulating[name] {
			// Consume every immediately following non-flag token as one
			// delimiter-joined group.
			var group []string
			for i < len(tokens) && !isFlag(tokens[i]) {
				group = append(group, tokens[i])
				i++
			}
			if len(group) == 0 {
				r.record(name, nil)
				continue
			}
			joined := strings.Join(group, groupSep)
			r.record(name, &joined)
			continue
		}

		if i < len(tokens) && !isFlag(tokens[i]) {
			v := tokens[i]
			i++
			r.record(name, &v)
		} else {
			// Boolean flag, no value.
			r.record(name, nil)
		}
	}

	r.AllowedTools = mergeToolList(r.take("allowedTools"), allowedOverride)
	r.DisallowedTools = mergeToolList(r.take("disallowedTools"), disallowedOverride)

	if cfg, ok := r.flags["config"]; ok && cfg != nil {
		merged := mergeConfigFragments(strings.Split(*cfg, groupSep))
		r.flags["config"] = &merged
	}

	log.Debug(log.CatArgs, "reconciled arguments",
		"flags", len(r.flags),
		"allowed", len(r.AllowedTools),
		"disallowed", len(r.DisallowedTools))
	return r, nil
}

// isFlag reports whether tok starts a new flag. The bare "-" stdin marker
// and the "--" terminator are values, not flags.
func isFlag(tok string) bool {
	return strings.HasPrefix(tok, "-") && tok != "-" && tok != "--"
}

// record stores a flag assignment. Accumulating flags append to any prior
// value; everything else overwrites (last occurrence wins).
func (r *Reconciled) record(name string, value *string) {
	prior, seen := r.flags[name]
	if !seen {
		r.order = append(r.order, name)
		r.flags[name] = value
		return
	}
	if accumulating[name] && prior != nil && value != nil {
		joined := *prior + groupSep + *value
		r.flags[name] = &joined
		return
	}
	r.flags[name] = value
}

// take removes a flag assignment and returns its raw value, or "".
func (r *Reconciled) take(name string) string {
	value, ok := r.flags[name]
	if !ok {
		return ""
	}
	delete(r.flags, name)
	for idx, n := range r.order {
		if n == name {
			r.order = append(r.order[:idx], r.order[idx+1:]...)
			break
		}
	}
	if value == nil {
		return ""
	}
	return *value
}

// Flag returns the reconciled value for a flag name. The bool reports
// presence; a nil value means the flag was boolean.
func (r *Reconciled) Flag(name string) (*string, bool) {
	v, ok := r.flags[name]
	return v, ok
}

// Passthrough re-serializes the remaining assignments, in first-seen order,
// as argv tokens. Accumulating flags expand to one flag occurrence per
// grouped value.
func (r *Reconciled) Passthrough() []string {
	var out []string
	out = append(out, r.positionals...)
	for _, name := range r.order {
		if _, ok := r.flags[name]; !ok {
			continue
		}
		marker := "--" + name
		if len(name) == 1 {
			marker = "-" + name
		}
		value := r.flags[name]
		if value == nil {
			out = append(out, marker)
			continue
		}
		for _, part := range strings.Split(*value, groupSep) {
			out = append(out, marker, part)
		}
	}
	return out
}

// mergeToolList splits delimiter- and comma-separated tool names, trims
// them, and deduplicates preserving first-seen order. The override list is
// appended with the same rule.
func mergeToolList(raw, override string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(csv string) {
		for _, part := range strings.Split(csv, ",") {
			name := strings.TrimSpace(part)
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
	}
	for _, group := range strings.Split(raw, groupSep) {
		add(group)
	}
	add(override)
	return out
}

// mergeConfigFragments combines repeated config-flag fragments. Fragments
// that parse as JSON objects are shallow-merged, with maps under a
// recognized servers key merged key-by-key (later fragments win). Fragments
// that are not JSON are file-path references this process cannot read:
// the merged JSON wins whenever at least one inline fragment exists,
// otherwise the last path is kept verbatim.
func mergeConfigFragments(fragments []string) string {
	if len(fragments) <= 1 {
		if len(fragments) == 1 {
			return fragments[0]
		}
		return ""
	}

	merged := make(map[string]any)
	inline := false
	lastPath := ""
	for _, frag := range fragments {
		var doc map[string]any
		if err := json.Unmarshal([]byte(frag), &doc); err != nil {
			lastPath = frag
			continue
		}
		inline = true
		for key, value := range doc {
			newMap, newIsMap := value.(map[string]any)
			oldMap, oldIsMap := merged[key].(map[string]any)
			if serverKeys[key] && newIsMap && oldIsMap {
				for server, entry := range newMap {
					oldMap[server] = entry
				}
				continue
			}
			merged[key] = value
		}
	}

	if !inline {
		return lastPath
	}
	data, err := json.Marshal(merged)
	if err != nil {
		// Marshal of a map built from unmarshaled JSON cannot fail; keep the
		// last fragment if it somehow does.
		log.ErrorErr(log.CatArgs, "config fragment merge failed", err)
		return fragments[len(fragments)-1]
	}
	return string(data)
}
