package toolregistry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBuiltinExecutor(t *testing.T) (*Executor, string) {
	t.Helper()
	reg := NewRegistry()
	require.NoError(t, RegisterBuiltins(reg))
	return NewExecutor(reg), t.TempDir()
}

func TestFileWriteCreatesFileAndReportsCreate(t *testing.T) {
	ex, dir := newBuiltinExecutor(t)

	res := ex.Execute(context.Background(), "file_write",
		map[string]any{"path": "README.md", "content": "hello world"},
		ToolContext{WorkingDir: dir})
	require.True(t, res.Success)
	assert.Equal(t, "create", res.Metadata["file_change_type"])

	data, err := os.ReadFile(filepath.Join(dir, "README.md"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestFileWriteNestedPathCreatesParentDirs(t *testing.T) {
	ex, dir := newBuiltinExecutor(t)

	res := ex.Execute(context.Background(), "file_write",
		map[string]any{"path": "pkg/nested/file.go", "content": "package nested"},
		ToolContext{WorkingDir: dir})
	require.True(t, res.Success)

	data, err := os.ReadFile(filepath.Join(dir, "pkg", "nested", "file.go"))
	require.NoError(t, err)
	assert.Equal(t, "package nested", string(data))
}

func TestFileWriteOnExistingFileReportsModify(t *testing.T) {
	ex, dir := newBuiltinExecutor(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.txt"), []byte("old"), 0o644))

	res := ex.Execute(context.Background(), "file_write",
		map[string]any{"path": "f.txt", "content": "new"},
		ToolContext{WorkingDir: dir})
	require.True(t, res.Success)
	assert.Equal(t, "modify", res.Metadata["file_change_type"])
}

func TestFileReadReturnsContent(t *testing.T) {
	ex, dir := newBuiltinExecutor(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("contents"), 0o644))

	res := ex.Execute(context.Background(), "file_read",
		map[string]any{"path": "a.txt"}, ToolContext{WorkingDir: dir})
	require.True(t, res.Success)
	assert.Equal(t, "contents", res.Output)
}

func TestFileReadMissingFileFails(t *testing.T) {
	ex, dir := newBuiltinExecutor(t)
	res := ex.Execute(context.Background(), "file_read",
		map[string]any{"path": "missing.txt"}, ToolContext{WorkingDir: dir})
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
}

func TestFileEditOverwritesContent(t *testing.T) {
	ex, dir := newBuiltinExecutor(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.txt"), []byte("old"), 0o644))

	res := ex.Execute(context.Background(), "file_edit",
		map[string]any{"path": "f.txt", "content": "edited"}, ToolContext{WorkingDir: dir})
	require.True(t, res.Success)
	assert.Equal(t, "modify", res.Metadata["file_change_type"])

	data, err := os.ReadFile(filepath.Join(dir, "f.txt"))
	require.NoError(t, err)
	assert.Equal(t, "edited", string(data))
}

func TestFileDeleteRemovesFile(t *testing.T) {
	ex, dir := newBuiltinExecutor(t)
	path := filepath.Join(dir, "gone.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	res := ex.Execute(context.Background(), "file_delete",
		map[string]any{"path": "gone.txt"}, ToolContext{WorkingDir: dir})
	require.True(t, res.Success)
	assert.Equal(t, "delete", res.Metadata["file_change_type"])

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestShellRunsCommandInWorkingDir(t *testing.T) {
	ex, dir := newBuiltinExecutor(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "marker.txt"), []byte("x"), 0o644))

	res := ex.Execute(context.Background(), "shell",
		map[string]any{"command": "ls"}, ToolContext{WorkingDir: dir})
	require.True(t, res.Success)
	assert.Contains(t, res.Output, "marker.txt")
}

func TestShellRefusesDangerousCommandWithoutExecuting(t *testing.T) {
	ex, dir := newBuiltinExecutor(t)

	res := ex.Execute(context.Background(), "shell",
		map[string]any{"command": "rm -rf / --no-preserve-root"}, ToolContext{WorkingDir: dir})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "refused")
}

func TestShellCommandFailureSurfacesOutputAndError(t *testing.T) {
	ex, dir := newBuiltinExecutor(t)

	res := ex.Execute(context.Background(), "shell",
		map[string]any{"command": "exit 7"}, ToolContext{WorkingDir: dir})
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
}

func TestRegisterBuiltinsInstallsAllFiveTools(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, RegisterBuiltins(reg))

	for _, name := range []string{"file_write", "file_read", "file_edit", "file_delete", "shell"} {
		_, ok := reg.Get(name)
		assert.True(t, ok, "expected tool %q to be registered", name)
	}
}
