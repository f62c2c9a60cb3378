// Package runner executes the finalized codex invocation: it runs the
// login pre-step when needed, streams the prompt into the subprocess,
// captures the JSON event stream, persists the event log, and classifies
// the exit.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zjrosen/codexci/internal/auth"
	"github.com/zjrosen/codexci/internal/client"
	"github.com/zjrosen/codexci/internal/codex"
	"github.com/zjrosen/codexci/internal/log"
	"github.com/zjrosen/codexci/internal/presentation"
)

// Options configures a single execution.
type Options struct {
	// Executable is the codex binary. Defaults to "codex".
	Executable string

	// RunConfig is the finalized invocation from codex.BuildRunConfig.
	RunConfig codex.RunConfig

	// Credential is the raw credential string. An API-key credential
	// triggers the login pre-step; auth.json material is installed by the
	// caller before Execute and is invisible here.
	Credential string

	// Echo receives the live event echo. Defaults to os.Stdout.
	Echo io.Writer

	// Stderr receives the subprocess's stderr passthrough.
	// Defaults to os.Stderr.
	Stderr io.Writer

	// Factory substitutes the command construction for tests.
	Factory client.CommandFactoryFunc

	// Tracer records spans for the run stages. Defaults to a no-op.
	Tracer trace.Tracer
}

// Outcome is the terminal result of one execution: the ordered event
// sequence, the exit classification, and where the log was persisted.
type Outcome struct {
	RunID       string
	Events      []codex.Event
	Success     bool
	ExitCode    int
	LogPath     string
	LastMessage string
}

// Execute runs the login pre-step and the main codex invocation, returning
// the outcome. The returned error is non-nil for every failure
// classification; when the main subprocess ran at all, the outcome is
// returned alongside the error with whatever events were captured.
func Execute(ctx context.Context, opts Options) (*Outcome, error) {
	if opts.Executable == "" {
		opts.Executable = "codex"
	}
	if opts.Echo == nil {
		opts.Echo = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("codexci")
	}

	outcome := &Outcome{
		RunID:    uuid.NewString(),
		Events:   []codex.Event{},
		ExitCode: -1,
		LogPath:  opts.RunConfig.LogPath,
	}

	// Login must fully complete before the main process spawns.
	if auth.Classify(opts.Credential) == auth.KindAPIKey {
		loginCtx, span := tracer.Start(ctx, "codexci.login")
		err := login(loginCtx, opts.Executable, strings.TrimSpace(opts.Credential), opts.Factory)
		span.End()
		if err != nil {
			return nil, err
		}
	}

	promptSize(opts.RunConfig.PromptPath)
	prompt, err := os.Open(opts.RunConfig.PromptPath)
	if err != nil {
		return nil, fmt.Errorf("runner: open prompt %s: %w", opts.RunConfig.PromptPath, err)
	}

	formatter := presentation.NewFormatter(opts.Echo)
	onLine := func(line string) {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			return
		}
		ev := codex.ParseLine(trimmed)
		outcome.Events = append(outcome.Events, ev)
		formatter.Echo(ev)
	}

	execCtx, span := tracer.Start(ctx, "codexci.exec",
		trace.WithAttributes(attribute.String("run.id", outcome.RunID)))
	proc, err := client.NewSpawnBuilder(execCtx).
		WithExecutable(opts.Executable, opts.RunConfig.Argv).
		WithEnv(opts.RunConfig.Env).
		WithInput(prompt).
		WithLineHandler(onLine).
		WithStderrSink(opts.Stderr).
		WithName("codex").
		WithCommandFactory(opts.Factory).
		Build()
	if err != nil {
		span.End()
		// Spawn errors classify like exit 1, but the log is still written.
		_ = prompt.Close()
		outcome.ExitCode = 1
		persist(outcome)
		return outcome, fmt.Errorf("runner: %w", err)
	}

	status := proc.Wait()
	span.End()

	outcome.ExitCode = status.Code
	outcome.Success = status.Success()
	outcome.LastMessage = codex.LastMessage(outcome.Events)

	_, persistSpan := tracer.Start(ctx, "codexci.persist")
	persist(outcome)
	persistSpan.End()

	if outcome.Success {
		log.Info(log.CatRunner, "run completed",
			"runId", outcome.RunID, "events", len(outcome.Events))
		return outcome, nil
	}
	if status.Signaled {
		return outcome, fmt.Errorf("runner: codex terminated by signal")
	}
	return outcome, fmt.Errorf("runner: codex exited with code %d", status.Code)
}

// promptSize logs the prompt size for diagnostics. A stat failure is a
// warning, never fatal.
func promptSize(path string) {
	info, err := os.Stat(path)
	if err != nil {
		log.Warn(log.CatRunner, "could not read prompt size", "path", path, "error", err)
		return
	}
	log.Debug(log.CatRunner, "prompt ready", "path", path, "bytes", info.Size())
}

// persist writes the event log as a pretty JSON array with a trailing
// newline, overwriting any prior content. A write failure is a warning and
// never changes the run classification.
func persist(outcome *Outcome) {
	data, err := json.MarshalIndent(outcome.Events, "", "  ")
	if err != nil {
		log.Warn(log.CatRunner, "could not serialize event log", "error", err)
		return
	}
	data = append(data, '\n')
	if err := os.MkdirAll(filepath.Dir(outcome.LogPath), 0o750); err != nil {
		log.Warn(log.CatRunner, "could not create log directory",
			"path", outcome.LogPath, "error", err)
		return
	}
	if err := os.WriteFile(outcome.LogPath, data, 0o644); err != nil { //nolint:gosec // log is a CI artifact
		log.Warn(log.CatRunner, "could not persist event log",
			"path", outcome.LogPath, "error", err)
		return
	}
	log.Debug(log.CatRunner, "event log persisted",
		"path", outcome.LogPath, "events", len(outcome.Events))
}
