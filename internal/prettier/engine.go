package prettier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// Engine formats text with a merged configuration.
type Engine interface {
	Format(ctx context.Context, text string, cfg Config) (string, error)
}

// EngineFunc adapts a function to the Engine interface.
type EngineFunc func(ctx context.Context, text string, cfg Config) (string, error)

// Format calls f(ctx, text, cfg).
func (f EngineFunc) Format(ctx context.Context, text string, cfg Config) (string, error) {
	return f(ctx, text, cfg)
}

// EngineError is a failed prettier run. Message holds prettier's own output.
type EngineError struct {
	Message string
	Err     error
}

func (e *EngineError) Error() string {
	if e.Message != "" {
		return "prettier: " + e.Message
	}
	return fmt.Sprintf("prettier: %v", e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

// CLIEngine runs the prettier command line.
type CLIEngine struct {
	command []string
}

// NewCLIEngine creates an engine running command, e.g. ["npx", "prettier"].
func NewCLIEngine(command []string) *CLIEngine {
	if len(command) == 0 {
		command = []string{"npx", "prettier"}
	}
	return &CLIEngine{command: command}
}

// Format pipes text through prettier. The configuration is written to a
// temporary file; plugins are passed as flags so node resolves them from the
// file's directory rather than from the temporary directory.
func (e *CLIEngine) Format(ctx context.Context, text string, cfg Config) (string, error) {
	filePath := cfg.String("filepath")
	plugins := cfg.Strings("plugins")

	fileCfg := maps.Clone(cfg)
	delete(fileCfg, "filepath")
	delete(fileCfg, "plugins")

	configPath, err := writeTempConfig(fileCfg)
	if err != nil {
		return "", err
	}
	defer os.Remove(configPath)

	args := append([]string{}, e.command[1:]...)
	args = append(args, "--config", configPath, "--no-editorconfig")
	for _, p := range plugins {
		args = append(args, "--plugin", p)
	}
	if filePath != "" {
		args = append(args, "--stdin-filepath", filePath)
	}

	cmd := exec.CommandContext(ctx, e.command[0], args...)
	if dir := filepath.Dir(filePath); filePath != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			cmd.Dir = dir
		}
	}
	cmd.Stdin = strings.NewReader(text)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Debug().Str("file", filePath).Strs("args", args).Msg("Running prettier")

	if err := cmd.Run(); err != nil {
		return "", &EngineError{Message: strings.TrimSpace(stderr.String()), Err: err}
	}

	return stdout.String(), nil
}

func writeTempConfig(cfg Config) (string, error) {
	f, err := os.CreateTemp("", "twigfmt-*.json")
	if err != nil {
		return "", fmt.Errorf("create prettier config: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(cfg); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("write prettier config: %w", err)
	}
	return f.Name(), nil
}
