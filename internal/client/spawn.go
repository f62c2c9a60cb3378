package client

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/zjrosen/codexci/internal/log"
)

// CommandFactoryFunc creates an exec.Cmd. The default uses
// exec.CommandContext; tests substitute a factory that runs a fake script.
type CommandFactoryFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// SpawnBuilder provides a fluent API for spawning a subprocess with its
// stream pumps attached. It consolidates the spawn boilerplate (pipe
// creation, environment overlay, process start) in one place.
type SpawnBuilder struct {
	ctx            context.Context
	execPath       string
	args           []string
	dir            string
	env            []string
	input          io.ReadCloser
	onLine         LineHandler
	stderrSink     io.Writer
	captureStderr  bool
	name           string
	commandFactory CommandFactoryFunc
}

// NewSpawnBuilder creates a new SpawnBuilder with the given context.
func NewSpawnBuilder(ctx context.Context) *SpawnBuilder {
	return &SpawnBuilder{ctx: ctx, name: "process"}
}

// WithExecutable sets the executable path and arguments.
func (b *SpawnBuilder) WithExecutable(path string, args []string) *SpawnBuilder {
	b.execPath = path
	b.args = args
	return b
}

// WithDir sets the working directory for the process.
func (b *SpawnBuilder) WithDir(dir string) *SpawnBuilder {
	b.dir = dir
	return b
}

// WithEnv sets additional environment variables appended to os.Environ().
// Variables are in the format "KEY=VALUE".
func (b *SpawnBuilder) WithEnv(env []string) *SpawnBuilder {
	b.env = env
	return b
}

// WithInput streams the reader into the subprocess's stdin. The reader is
// closed when the pump finishes.
func (b *SpawnBuilder) WithInput(r io.ReadCloser) *SpawnBuilder {
	b.input = r
	return b
}

// WithLineHandler sets the handler invoked for each stdout line.
func (b *SpawnBuilder) WithLineHandler(fn LineHandler) *SpawnBuilder {
	b.onLine = fn
	return b
}

// WithStderrSink passes subprocess stderr through to w, line by line.
func (b *SpawnBuilder) WithStderrSink(w io.Writer) *SpawnBuilder {
	b.stderrSink = w
	return b
}

// WithStderrCapture enables stderr line capture for error messages.
func (b *SpawnBuilder) WithStderrCapture(capture bool) *SpawnBuilder {
	b.captureStderr = capture
	return b
}

// WithName sets the process name used in logs and errors.
func (b *SpawnBuilder) WithName(name string) *SpawnBuilder {
	b.name = name
	return b
}

// WithCommandFactory sets a custom command factory for testing.
// This allows unit tests to mock exec.Command without spawning real
// binaries.
func (b *SpawnBuilder) WithCommandFactory(fn CommandFactoryFunc) *SpawnBuilder {
	b.commandFactory = fn
	return b
}

// Build creates the pipes, starts the process, and launches the stream
// pumps. On error all created resources are cleaned up and a spawn error
// is returned, distinct from exit-code failures.
func (b *SpawnBuilder) Build() (*Process, error) {
	if b.execPath == "" {
		return nil, fmt.Errorf("spawn builder: executable path is required")
	}

	var cmd *exec.Cmd
	if b.commandFactory != nil {
		cmd = b.commandFactory(b.ctx, b.execPath, b.args...)
	} else {
		// #nosec G204 -- args come from the reconciled RunConfig, not raw user input
		cmd = exec.CommandContext(b.ctx, b.execPath, b.args...)
	}
	cmd.Dir = b.dir
	if len(b.env) > 0 {
		cmd.Env = append(os.Environ(), b.env...)
	}

	var stdin io.WriteCloser
	var stdout, stderr io.ReadCloser
	cleanup := func() {
		if stdin != nil {
			_ = stdin.Close()
		}
		if stdout != nil {
			_ = stdout.Close()
		}
		if stderr != nil {
			_ = stderr.Close()
		}
	}

	var err error
	if b.input != nil {
		stdin, err = cmd.StdinPipe()
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("spawn builder: failed to create stdin pipe: %w", err)
		}
	}
	stdout, err = cmd.StdoutPipe()
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("spawn builder: failed to create stdout pipe: %w", err)
	}
	stderr, err = cmd.StderrPipe()
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("spawn builder: failed to create stderr pipe: %w", err)
	}

	p := &Process{
		cmd:           cmd,
		stdin:         stdin,
		stdout:        stdout,
		stderr:        stderr,
		input:         b.input,
		name:          b.name,
		status:        StatusPending,
		onLine:        b.onLine,
		stderrSink:    b.stderrSink,
		captureStderr: b.captureStderr,
	}

	log.Debug(log.CatRunner, "spawning process",
		"process", b.name, "execPath", b.execPath, "args", len(b.args))

	if err := cmd.Start(); err != nil {
		cleanup()
		return nil, fmt.Errorf("spawn builder: failed to start %s process: %w", b.name, err)
	}

	log.Debug(log.CatRunner, "process started", "process", b.name, "pid", cmd.Process.Pid)
	p.setStatus(StatusRunning)
	p.startGoroutines()
	return p, nil
}
