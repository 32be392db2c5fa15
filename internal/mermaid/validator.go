package mermaid

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/guilhermegouw/cdd-docs/internal/log"
)

const (
	// DefaultCommand is the mermaid CLI binary name.
	DefaultCommand = "mmdc"

	// DefaultTimeout bounds a single validation run.
	DefaultTimeout = 30 * time.Second
)

// CLIValidator checks diagram syntax by rendering it with the mermaid CLI.
type CLIValidator struct {
	Command string
	Timeout time.Duration

	logger log.Logger
}

// NewCLIValidator creates a validator. Empty command or zero timeout fall
// back to the defaults.
func NewCLIValidator(command string, timeout time.Duration, logger log.Logger) *CLIValidator {
	if command == "" {
		command = DefaultCommand
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &CLIValidator{Command: command, Timeout: timeout, logger: logger}
}

// Validate renders the diagram code. It returns an empty message when the
// diagram is valid, otherwise a human-readable description of the syntax
// error. The error return covers environment failures only; a validator
// that cannot run treats the diagram as valid.
func (v *CLIValidator) Validate(ctx context.Context, code string) (string, error) {
	if _, err := exec.LookPath(v.Command); err != nil {
		v.logger.Warn("mermaid CLI not found, skipping diagram validation",
			"command", v.Command)
		return "", nil
	}

	ctx, cancel := context.WithTimeout(ctx, v.Timeout)
	defer cancel()

	out := filepath.Join(os.TempDir(), fmt.Sprintf("mermaid-check-%d.svg", time.Now().UnixNano()))
	defer os.Remove(out)

	cmd := exec.CommandContext(ctx, v.Command, "-i", "-", "-o", out)
	cmd.Stdin = strings.NewReader(code)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return "", nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "validation timed out", nil
	}

	msg := errorLines(stderr.String())
	if msg == "" {
		msg = fmt.Sprintf("diagram failed to render: %v", err)
	}
	return msg, nil
}

// errorLines pulls the Error: lines out of mmdc's stderr, which otherwise
// buries them in puppeteer noise.
func errorLines(stderr string) string {
	var lines []string
	for _, line := range strings.Split(stderr, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "Error:") {
			lines = append(lines, trimmed)
		}
	}
	if len(lines) == 0 {
		return strings.TrimSpace(stderr)
	}
	return strings.Join(lines, "\n")
}
