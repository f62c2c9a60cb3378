// Package client provides subprocess lifecycle management for the codexci
// harness: concurrent stream pumping, incremental line splitting of stdout,
// live stderr passthrough, and exit classification.
package client

import (
	"bufio"
	"errors"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/zjrosen/codexci/internal/log"
)

// LineHandler receives each newline-delimited stdout line, in arrival
// order. The trailing unterminated line, if any, is delivered after the
// stream closes. Handlers run on the output-reader goroutine.
type LineHandler func(line string)

// Process is a spawned subprocess with its stream pumps running.
// One Process serves exactly one invocation; the line buffer and captured
// stderr are owned by that invocation and need no external locking.
type Process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser
	input  io.ReadCloser
	name   string

	status Status
	mu     sync.RWMutex
	wg     sync.WaitGroup

	onLine        LineHandler
	stderrSink    io.Writer
	captureStderr bool
	stderrLines   []string
}

// ExitStatus is the terminal classification of a process.
type ExitStatus struct {
	// Code is the numeric exit code, or -1 when unavailable (signal
	// termination or spawn failure).
	Code int
	// Signaled is true when the process was terminated by a signal and no
	// exit code exists.
	Signaled bool
	// Err is the underlying wait error for non-zero or abnormal exits.
	Err error
}

// Success reports whether the process exited cleanly with status 0.
func (s ExitStatus) Success() bool {
	return s.Err == nil && s.Code == 0
}

// Status returns the current process status. Thread-safe.
func (p *Process) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// PID returns the OS process ID, or -1 if not running.
func (p *Process) PID() int {
	if p.cmd == nil || p.cmd.Process == nil {
		return -1
	}
	return p.cmd.Process.Pid
}

// StderrLines returns captured stderr lines. Thread-safe.
func (p *Process) StderrLines() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	result := make([]string, len(p.stderrLines))
	copy(result, p.stderrLines)
	return result
}

func (p *Process) setStatus(s Status) {
	p.mu.Lock()
	p.status = s
	p.mu.Unlock()
}

// startGoroutines launches the stream pumps. The input writer and output
// reader run concurrently so a subprocess that emits output before
// draining its stdin cannot deadlock the harness.
func (p *Process) startGoroutines() {
	p.wg.Add(2)
	go p.readOutput()
	go p.readStderr()
	if p.input != nil && p.stdin != nil {
		p.wg.Add(1)
		go p.pumpInput()
	}
}

// pumpInput streams the configured input into the subprocess's stdin and
// closes it so the subprocess sees EOF. Write errors are logged, never
// fatal; only process termination ends the run.
func (p *Process) pumpInput() {
	defer p.wg.Done()
	defer func() { _ = p.stdin.Close() }()
	defer func() { _ = p.input.Close() }()

	if _, err := io.Copy(p.stdin, p.input); err != nil {
		log.Warn(log.CatRunner, "stdin write error", "process", p.name, "error", err)
	}
}

// readOutput incrementally splits stdout on newlines and hands each line
// to the handler in FIFO order. Content left in the buffer when the stream
// closes is flushed as one final line.
func (p *Process) readOutput() {
	defer p.wg.Done()

	reader := bufio.NewReader(p.stdout)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			if p.onLine != nil {
				p.onLine(strings.TrimSuffix(line, "\n"))
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Warn(log.CatRunner, "stdout read error", "process", p.name, "error", err)
			}
			return
		}
	}
}

// readStderr passes stderr through to the configured sink line by line,
// optionally capturing lines for error reporting.
func (p *Process) readStderr() {
	defer p.wg.Done()

	scanner := bufio.NewScanner(p.stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if p.stderrSink != nil {
			_, _ = io.WriteString(p.stderrSink, line+"\n")
		}
		if p.captureStderr {
			p.mu.Lock()
			p.stderrLines = append(p.stderrLines, line)
			p.mu.Unlock()
		}
	}
	if err := scanner.Err(); err != nil {
		log.Warn(log.CatRunner, "stderr read error", "process", p.name, "error", err)
	}
}

// Wait blocks until all stream pumps drain and the process exits, then
// classifies the exit. A nil exit error is success; an exit without an
// available code (signal termination) is reported with Signaled set.
func (p *Process) Wait() ExitStatus {
	p.wg.Wait()
	err := p.cmd.Wait()
	if err == nil {
		p.setStatus(StatusCompleted)
		return ExitStatus{Code: 0}
	}

	p.setStatus(StatusFailed)
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		return ExitStatus{Code: code, Signaled: code < 0, Err: err}
	}
	return ExitStatus{Code: -1, Err: err}
}
