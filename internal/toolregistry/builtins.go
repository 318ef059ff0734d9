package toolregistry

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
)

// RegisterBuiltins installs the standard file and shell tools every
// agent role is allowed to reach for (spec §4.C). Paths are always
// resolved relative to the call's ToolContext.WorkingDir so a task
// confined to a worktree can never escape it via an absolute path
// from elsewhere on disk.
func RegisterBuiltins(reg *Registry) error {
	tools := []Tool{
		fileWriteTool(),
		fileReadTool(),
		fileEditTool(),
		fileDeleteTool(),
		shellTool(),
	}
	for _, t := range tools {
		if err := reg.Register(t); err != nil {
			return err
		}
	}
	return nil
}

func resolvePath(workingDir, path string) string {
	if workingDir == "" {
		return path
	}
	return filepath.Join(workingDir, path)
}

func fileWriteTool() Tool {
	return Tool{
		Name:        "file_write",
		Description: "Write content to a file, creating it (and its parent directories) if needed.",
		Schema: ParamSchema{
			Type:       "object",
			Properties: map[string]PropSchema{"path": {Type: "string"}, "content": {Type: "string"}},
			Required:   []string{"path", "content"},
		},
		Invoke: func(ctx context.Context, args map[string]any, tc ToolContext) ToolResult {
			path, _ := args["path"].(string)
			content, _ := args["content"].(string)
			full := resolvePath(tc.WorkingDir, path)

			changeType := "create"
			if _, err := os.Stat(full); err == nil {
				changeType = "modify"
			}

			if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
				return ToolResult{Success: false, Error: "create parent directory: " + err.Error()}
			}
			if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
				return ToolResult{Success: false, Error: "write file: " + err.Error()}
			}
			return ToolResult{
				Success:  true,
				Output:   "wrote " + path,
				Metadata: map[string]any{"file_change_type": changeType, "path": path},
			}
		},
	}
}

func fileReadTool() Tool {
	return Tool{
		Name:        "file_read",
		Description: "Read the full content of a file.",
		Schema: ParamSchema{
			Type:       "object",
			Properties: map[string]PropSchema{"path": {Type: "string"}},
			Required:   []string{"path"},
		},
		Invoke: func(ctx context.Context, args map[string]any, tc ToolContext) ToolResult {
			path, _ := args["path"].(string)
			full := resolvePath(tc.WorkingDir, path)
			data, err := os.ReadFile(full)
			if err != nil {
				return ToolResult{Success: false, Error: "read file: " + err.Error()}
			}
			return ToolResult{Success: true, Output: string(data)}
		},
	}
}

func fileEditTool() Tool {
	return Tool{
		Name:        "file_edit",
		Description: "Replace a file's entire content with new content.",
		Schema: ParamSchema{
			Type:       "object",
			Properties: map[string]PropSchema{"path": {Type: "string"}, "content": {Type: "string"}},
			Required:   []string{"path", "content"},
		},
		Invoke: func(ctx context.Context, args map[string]any, tc ToolContext) ToolResult {
			path, _ := args["path"].(string)
			content, _ := args["content"].(string)
			full := resolvePath(tc.WorkingDir, path)
			if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
				return ToolResult{Success: false, Error: "edit file: " + err.Error()}
			}
			return ToolResult{
				Success:  true,
				Output:   "edited " + path,
				Metadata: map[string]any{"file_change_type": "modify", "path": path},
			}
		},
	}
}

func fileDeleteTool() Tool {
	return Tool{
		Name:        "file_delete",
		Description: "Delete a file.",
		Schema: ParamSchema{
			Type:       "object",
			Properties: map[string]PropSchema{"path": {Type: "string"}},
			Required:   []string{"path"},
		},
		Invoke: func(ctx context.Context, args map[string]any, tc ToolContext) ToolResult {
			path, _ := args["path"].(string)
			full := resolvePath(tc.WorkingDir, path)
			if err := os.Remove(full); err != nil {
				return ToolResult{Success: false, Error: "delete file: " + err.Error()}
			}
			return ToolResult{
				Success:  true,
				Output:   "deleted " + path,
				Metadata: map[string]any{"file_change_type": "delete", "path": path},
			}
		},
	}
}

// shellTool runs a shell command inside the working directory,
// refusing known-dangerous commands (spec §4.C) without executing them.
func shellTool() Tool {
	return Tool{
		Name:        "shell",
		Description: "Run a shell command in the task's working directory.",
		Schema: ParamSchema{
			Type:       "object",
			Properties: map[string]PropSchema{"command": {Type: "string"}},
			Required:   []string{"command"},
		},
		Invoke: func(ctx context.Context, args map[string]any, tc ToolContext) ToolResult {
			command, _ := args["command"].(string)
			if bad, ok := IsDangerousShellCommand(command); ok {
				return ToolResult{Success: false, Error: "refused: command matches dangerous pattern " + bad}
			}

			cmd := exec.CommandContext(ctx, "sh", "-c", command)
			cmd.Dir = tc.WorkingDir
			output, err := cmd.CombinedOutput()
			if err != nil {
				return ToolResult{Success: false, Output: string(output), Error: err.Error()}
			}
			return ToolResult{Success: true, Output: string(output)}
		},
	}
}
