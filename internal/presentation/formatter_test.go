package presentation

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zjrosen/codexci/internal/codex"
)

func TestFormatter_EchoTextEvent(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(&buf)

	f.Echo(codex.ParseLine("plain output"))

	assert.Contains(t, buf.String(), "plain output")
}

func TestFormatter_EchoStructuredEvent(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(&buf)

	f.Echo(codex.ParseLine(`{"type":"thread.started","thread_id":"t-1"}`))

	out := buf.String()
	assert.Contains(t, out, "thread.started")
	assert.Contains(t, out, `"thread_id": "t-1"`)
}

func TestFormatter_NilSafe(t *testing.T) {
	var f *Formatter

	assert.NotPanics(t, func() {
		f.Echo(codex.ParseLine("anything"))
	})
}
