package patch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ExecTool runs an external `patch` executable.
type ExecTool struct {
	// Path is the resolved executable.
	Path string
}

// NewExecTool builds an ExecTool for the executable at path.
func NewExecTool(path string) *ExecTool {
	return &ExecTool{Path: path}
}

// Args returns the command line arguments used for inv.
func (t *ExecTool) Args(inv Invocation) []string {
	return []string{
		fmt.Sprintf("-p%d", inv.Strip),
		"-i", inv.PatchFile,
		"-d", inv.WorkDir,
	}
}

// Run executes the patch program and waits for it to exit.
func (t *ExecTool) Run(ctx context.Context, inv Invocation) (Outcome, error) {
	if strings.TrimSpace(t.Path) == "" {
		return Outcome{}, errors.New("patch tool: executable path is empty")
	}

	cmd := exec.CommandContext(ctx, t.Path, t.Args(inv)...)
	var stdoutBuf bytes.Buffer
	var stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	runErr := cmd.Run()
	outcome := Outcome{
		Stdout: stdoutBuf.Bytes(),
		Stderr: stderrBuf.Bytes(),
	}

	if ctxErr := ctx.Err(); ctxErr != nil && runErr != nil {
		outcome.ExitCode = -1
		return outcome, fmt.Errorf("patch tool: %w", ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		outcome.ExitCode = exitErr.ExitCode()
		return outcome, nil
	}
	if runErr != nil {
		return outcome, fmt.Errorf("patch tool: start %s: %w", t.Path, runErr)
	}
	return outcome, nil
}
