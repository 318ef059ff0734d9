// Package claude shells out to the Claude CLI and adapts it to the
// provider.Provider contract (spec §6). It is the one concrete,
// out-of-scope-per-spec-§1 integration CortexOS ships a reference for.
package claude

import (
	"os"
	"os/exec"
	"path/filepath"
)

// cortexosTmpDir is a clean temp directory for Claude CLI invocations.
// Using a dedicated directory avoids VSCode socket files that crash Claude CLI
// when --settings is used (known bug: github.com/anthropics/claude-code/issues/7624).
var cortexosTmpDir string

func init() {
	cortexosTmpDir = filepath.Join(os.TempDir(), "cortexos-claude")
	os.MkdirAll(cortexosTmpDir, 0o755)
}

// setCleanEnv configures a command to use a clean TMPDIR without VSCode sockets.
func setCleanEnv(cmd *exec.Cmd) {
	cmd.Env = os.Environ()

	found := false
	for i, env := range cmd.Env {
		if len(env) > 7 && env[:7] == "TMPDIR=" {
			cmd.Env[i] = "TMPDIR=" + cortexosTmpDir
			found = true
			break
		}
	}
	if !found {
		cmd.Env = append(cmd.Env, "TMPDIR="+cortexosTmpDir)
	}
}
