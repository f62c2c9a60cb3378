// Package environ provides an explicit snapshot of the ambient process
// environment so components never read os.Environ ad hoc. The snapshot is
// taken once at startup and passed to anything that needs environment input,
// which keeps the run pipeline testable without mutating process state.
package environ

import (
	"os"
	"strings"
)

// Snapshot is an immutable view of environment variables.
type Snapshot map[string]string

// Capture takes a snapshot of the current process environment.
func Capture() Snapshot {
	env := os.Environ()
	snap := make(Snapshot, len(env))
	for _, kv := range env {
		if idx := strings.IndexByte(kv, '='); idx >= 0 {
			snap[kv[:idx]] = kv[idx+1:]
		}
	}
	return snap
}

// Get returns the value for key, or empty string if unset.
func (s Snapshot) Get(key string) string {
	return s[key]
}

// Lookup returns the value for key and whether it was present.
func (s Snapshot) Lookup(key string) (string, bool) {
	v, ok := s[key]
	return v, ok
}
