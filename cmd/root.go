// Package cmd wires the codexci command line. Inputs arrive as flags, as
// CODEXCI_* environment variables, or as GitHub Actions INPUT_* variables;
// flags win over the environment.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/codexci/internal/args"
	"github.com/zjrosen/codexci/internal/auth"
	"github.com/zjrosen/codexci/internal/codex"
	"github.com/zjrosen/codexci/internal/config"
	"github.com/zjrosen/codexci/internal/environ"
	"github.com/zjrosen/codexci/internal/log"
	"github.com/zjrosen/codexci/internal/paths"
	"github.com/zjrosen/codexci/internal/runner"
	"github.com/zjrosen/codexci/internal/tracing"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "codexci",
	Short: "Run the Codex CLI headlessly in CI",
	Long: `codexci authenticates, configures, and invokes the Codex CLI in a CI job:
it reconciles user-supplied arguments with the flags it manages itself,
deep-merges TOML configuration, streams the prompt into codex exec --json,
echoes the JSON event stream, and records it as a build artifact.`,
	Version:      version,
	SilenceUsage: true,
	RunE:         runAction,
}

func init() {
	cobra.OnInitialize(initEnv)

	rootCmd.Flags().StringP("prompt-file", "p", "",
		"path to the prompt file streamed into codex (required)")
	rootCmd.Flags().String("args", "",
		"extra codex arguments as a single shell-quoted string")
	rootCmd.Flags().String("allowed-tools", "",
		"comma-separated tool allow list")
	rootCmd.Flags().String("disallowed-tools", "",
		"comma-separated tool deny list")
	rootCmd.Flags().String("codex-config", "",
		"TOML config overrides, inline or a file path")
	rootCmd.Flags().String("log-path", "",
		"destination for the JSON event log (default: $RUNNER_TEMP/codexci-events.json)")
	rootCmd.Flags().String("codex-executable", "codex",
		"codex binary to invoke")
	rootCmd.Flags().Bool("debug", false,
		"enable debug logging")
	rootCmd.Flags().Bool("trace", false,
		"enable OpenTelemetry tracing")
	rootCmd.Flags().String("trace-exporter", "none",
		"trace exporter: none, stdout, file, otlp")
	rootCmd.Flags().String("trace-file", "",
		"output path for the file trace exporter")
	rootCmd.Flags().String("trace-otlp-endpoint", "",
		"OTLP gRPC collector endpoint")

	for _, name := range []string{
		"prompt-file", "args", "allowed-tools", "disallowed-tools",
		"codex-config", "log-path", "codex-executable", "debug",
		"trace", "trace-exporter", "trace-file", "trace-otlp-endpoint",
	} {
		_ = viper.BindPFlag(name, rootCmd.Flags().Lookup(name))
	}

	// GitHub Actions exposes action inputs as INPUT_<NAME>.
	_ = viper.BindEnv("prompt-file", "CODEXCI_PROMPT_FILE", "INPUT_PROMPT_FILE")
	_ = viper.BindEnv("args", "CODEXCI_ARGS", "INPUT_ARGS")
	_ = viper.BindEnv("allowed-tools", "CODEXCI_ALLOWED_TOOLS", "INPUT_ALLOWED_TOOLS")
	_ = viper.BindEnv("disallowed-tools", "CODEXCI_DISALLOWED_TOOLS", "INPUT_DISALLOWED_TOOLS")
	_ = viper.BindEnv("codex-config", "CODEXCI_CONFIG", "INPUT_CODEX_CONFIG")
	_ = viper.BindEnv("log-path", "CODEXCI_LOG_PATH", "INPUT_OUTPUT_FILE")
	_ = viper.BindEnv("codex-executable", "CODEXCI_EXECUTABLE", "INPUT_CODEX_EXECUTABLE")
	_ = viper.BindEnv("api-key", "CODEXCI_API_KEY", "INPUT_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = viper.BindEnv("debug", "CODEXCI_DEBUG", "INPUT_DEBUG")
}

func initEnv() {
	viper.SetEnvPrefix("CODEXCI")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func runAction(cmd *cobra.Command, _ []string) error {
	if viper.GetBool("debug") {
		log.SetEnabled(true)
		log.SetMinLevel(log.LevelDebug)
	}

	tracer, err := tracing.NewProvider(tracing.Config{
		Enabled:      viper.GetBool("trace"),
		Exporter:     viper.GetString("trace-exporter"),
		FilePath:     viper.GetString("trace-file"),
		OTLPEndpoint: viper.GetString("trace-otlp-endpoint"),
	})
	if err != nil {
		return fmt.Errorf("configuring tracing: %w", err)
	}
	defer func() {
		if shutdownErr := tracer.Shutdown(cmd.Context()); shutdownErr != nil {
			log.Warn(log.CatTrace, "trace shutdown failed", "error", shutdownErr)
		}
	}()

	env := environ.Capture()

	promptPath := viper.GetString("prompt-file")
	if err := validatePrompt(promptPath); err != nil {
		return err
	}

	credential := viper.GetString("api-key")
	kind := auth.Classify(credential)
	if kind == auth.KindNone {
		return fmt.Errorf("no credential provided: set CODEXCI_API_KEY or INPUT_OPENAI_API_KEY")
	}
	if kind == auth.KindAuthJSON {
		if err := auth.InstallAuthJSON(paths.CodexHome(env), credential); err != nil {
			return fmt.Errorf("installing auth.json: %w", err)
		}
		log.Info(log.CatAuth, "installed pre-provisioned auth.json")
	}

	reconciled, err := args.Reconcile(
		viper.GetString("args"),
		viper.GetString("allowed-tools"),
		viper.GetString("disallowed-tools"),
	)
	if err != nil {
		return err
	}

	if err := applyConfig(env, viper.GetString("codex-config"), reconciled); err != nil {
		return err
	}

	logPath := viper.GetString("log-path")
	if logPath == "" {
		logPath = paths.DefaultLogPath(env)
	}
	runConfig := codex.BuildRunConfig(promptPath, reconciled.Passthrough(), env, logPath)
	log.Debug(log.CatRunner, "run configuration built",
		"argv", strings.Join(runConfig.Argv, " "), "logPath", logPath)

	outcome, err := runner.Execute(cmd.Context(), runner.Options{
		Executable: viper.GetString("codex-executable"),
		RunConfig:  runConfig,
		Credential: credential,
		Tracer:     tracer.Tracer(),
	})
	if outcome != nil {
		writeActionOutputs(env, outcome)
	}
	return err
}

// validatePrompt requires the prompt file to exist and be non-empty before
// anything spawns.
func validatePrompt(path string) error {
	if path == "" {
		return fmt.Errorf("no prompt file provided: set --prompt-file or INPUT_PROMPT_FILE")
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("prompt file %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("prompt file %s is a directory", path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("prompt file %s is empty", path)
	}
	return nil
}

// applyConfig merges the override document into ~/.codex/config.toml and
// records the reconciled tool lists under the tools table.
func applyConfig(env environ.Snapshot, override string, reconciled *args.Reconciled) error {
	configPath := paths.ConfigPath(env)
	doc, err := config.LoadAndMerge(configPath, override)
	if err != nil {
		return err
	}

	if len(reconciled.AllowedTools) > 0 || len(reconciled.DisallowedTools) > 0 {
		tools, _ := doc["tools"].(map[string]any)
		if tools == nil {
			tools = make(map[string]any)
		}
		if len(reconciled.AllowedTools) > 0 {
			tools["allowed"] = reconciled.AllowedTools
		}
		if len(reconciled.DisallowedTools) > 0 {
			tools["disallowed"] = reconciled.DisallowedTools
		}
		doc["tools"] = tools
	}

	if err := config.Save(configPath, doc); err != nil {
		return err
	}
	log.Debug(log.CatConfig, "config written", "path", configPath, "keys", len(doc))
	return nil
}

// writeActionOutputs appends run results to $GITHUB_OUTPUT when running
// inside GitHub Actions. Failure to write is a warning only.
func writeActionOutputs(env environ.Snapshot, outcome *runner.Outcome) {
	outputPath := env.Get("GITHUB_OUTPUT")
	if outputPath == "" {
		return
	}
	f, err := os.OpenFile(outputPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644) // #nosec G304 -- path supplied by the CI runner
	if err != nil {
		log.Warn(log.CatRunner, "could not open GITHUB_OUTPUT", "error", err)
		return
	}
	defer f.Close()

	var b strings.Builder
	fmt.Fprintf(&b, "run-id=%s\n", outcome.RunID)
	fmt.Fprintf(&b, "log-path=%s\n", outcome.LogPath)
	if outcome.LastMessage != "" {
		// The run ID makes the heredoc delimiter unique, so a message that
		// happens to contain a delimiter-looking line cannot end the block early.
		delimiter := "codexci_" + outcome.RunID
		fmt.Fprintf(&b, "final-message<<%s\n%s\n%s\n", delimiter, outcome.LastMessage, delimiter)
	}
	if _, err := f.WriteString(b.String()); err != nil {
		log.Warn(log.CatRunner, "could not write GITHUB_OUTPUT", "error", err)
	}
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
