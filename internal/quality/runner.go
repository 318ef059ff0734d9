package quality

import (
	"bytes"
	"context"
	"os/exec"
)

// ShellRunner executes gate commands via sh -c, the same CommandRunner
// shape the teacher uses to drive dependency/test checks.
type ShellRunner struct{}

func (ShellRunner) Run(ctx context.Context, workDir, command string) (string, int, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	if workDir != "" {
		cmd.Dir = workDir
	}
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return buf.String(), -1, err
		}
	}
	return buf.String(), exitCode, nil
}
