package runner

import (
	"context"
	"fmt"
	"strings"

	"github.com/zjrosen/codexci/internal/client"
	"github.com/zjrosen/codexci/internal/log"
)

// login runs the short-lived `codex login --api-key` subprocess. It must
// exit 0 for the run to proceed; stderr lines are surfaced as warnings but
// do not themselves fail the step.
func login(ctx context.Context, executable, apiKey string, factory client.CommandFactoryFunc) error {
	proc, err := client.NewSpawnBuilder(ctx).
		WithExecutable(executable, []string{"login", "--api-key", apiKey}).
		WithStderrCapture(true).
		WithName("codex-login").
		WithCommandFactory(factory).
		Build()
	if err != nil {
		return fmt.Errorf("runner: login: %w", err)
	}

	status := proc.Wait()
	for _, line := range proc.StderrLines() {
		log.Warn(log.CatAuth, "login stderr", "line", line)
	}
	if status.Success() {
		log.Debug(log.CatAuth, "login succeeded")
		return nil
	}

	detail := strings.Join(proc.StderrLines(), "\n")
	if status.Signaled {
		if detail != "" {
			return fmt.Errorf("runner: codex login terminated by signal: %s", detail)
		}
		return fmt.Errorf("runner: codex login terminated by signal")
	}
	if detail != "" {
		return fmt.Errorf("runner: codex login failed with exit code %d: %s", status.Code, detail)
	}
	return fmt.Errorf("runner: codex login failed with exit code %d", status.Code)
}
