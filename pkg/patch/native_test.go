package patch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func readFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(content)
}

func TestNativeToolAppliesPatchToDisk(t *testing.T) {
	t.Parallel()

	workDir := t.TempDir()
	mustWriteFile(t, workDir, "src/main.c", "int main(void)\n{\n\treturn 1;\n}\n")
	mustWriteFile(t, workDir, "gone.txt", "bye\n")
	mustWriteFile(t, workDir, "old.txt", "x\n")
	patchFile := mustWriteFile(t, t.TempDir(), "mixed.patch", mixedPatch)

	tool := NewNativeTool(NativeOptions{})
	outcome, err := tool.Run(context.Background(), Invocation{Strip: 1, PatchFile: patchFile, WorkDir: workDir})
	require.NoError(t, err)
	require.True(t, outcome.Success(), "stderr: %s", outcome.Stderr)

	require.Equal(t, "int main(void)\n{\n\treturn 0;\n}\n", readFile(t, filepath.Join(workDir, "src", "main.c")))
	require.Equal(t, "hello\nworld\n", readFile(t, filepath.Join(workDir, "fresh.txt")))
	require.Equal(t, "y\n", readFile(t, filepath.Join(workDir, "new.txt")))
	require.NoFileExists(t, filepath.Join(workDir, "gone.txt"))
	require.NoFileExists(t, filepath.Join(workDir, "old.txt"))

	stdout := string(outcome.Stdout)
	require.Contains(t, stdout, "creating file fresh.txt")
	require.Contains(t, stdout, "deleting file gone.txt")
	require.Contains(t, stdout, "patching file new.txt")
}

func TestNativeToolReportsHunkFailure(t *testing.T) {
	t.Parallel()

	workDir := t.TempDir()
	target := mustWriteFile(t, workDir, "dir/file.txt", "something else\n")
	patchFile := mustWriteFile(t, t.TempDir(), "fix.patch", prefixedPatch)

	outcome, err := NewNativeTool(NativeOptions{}).Run(context.Background(), Invocation{Strip: 1, PatchFile: patchFile, WorkDir: workDir})
	require.NoError(t, err)
	require.Equal(t, 1, outcome.ExitCode)
	require.Contains(t, string(outcome.Stderr), "Hunk not found in dir/file.txt.")
	require.Contains(t, string(outcome.Stderr), "Offending hunk:")
	require.Equal(t, "something else\n", readFile(t, target))
}

func TestNativeToolRejectsUnparsablePatch(t *testing.T) {
	t.Parallel()

	patchFile := mustWriteFile(t, t.TempDir(), "junk.patch", "junk\n")
	outcome, err := NewNativeTool(NativeOptions{}).Run(context.Background(), Invocation{Strip: 1, PatchFile: patchFile, WorkDir: t.TempDir()})
	require.NoError(t, err)
	require.Equal(t, 2, outcome.ExitCode)
}

func TestNativeToolRefusesToOverwriteOnCreate(t *testing.T) {
	t.Parallel()

	workDir := t.TempDir()
	mustWriteFile(t, workDir, "fresh.txt", "already here\n")
	patchFile := mustWriteFile(t, t.TempDir(), "add.patch", `--- /dev/null
+++ b/fresh.txt
@@ -0,0 +1,1 @@
+hello
`)

	outcome, err := NewNativeTool(NativeOptions{}).Run(context.Background(), Invocation{Strip: 1, PatchFile: patchFile, WorkDir: workDir})
	require.NoError(t, err)
	require.Equal(t, 1, outcome.ExitCode)
	require.Contains(t, string(outcome.Stderr), "already exists")
	require.Equal(t, "already here\n", readFile(t, filepath.Join(workDir, "fresh.txt")))
}

func TestNativeToolDryRunChainsPatchesInMemory(t *testing.T) {
	t.Parallel()

	workDir := t.TempDir()
	target := mustWriteFile(t, workDir, "notes.txt", "one\n")
	patchDir := t.TempDir()
	mustWriteFile(t, patchDir, "01.patch", `--- a/notes.txt
+++ b/notes.txt
@@ -1,1 +1,1 @@
-one
+two
`)
	mustWriteFile(t, patchDir, "02.patch", `--- a/notes.txt
+++ b/notes.txt
@@ -1,1 +1,1 @@
-two
+three
`)

	tool := NewNativeTool(NativeOptions{DryRun: true})
	err := ApplyPatches(context.Background(), tool, []string{"01.patch", "02.patch"}, workDir, patchDir)
	require.NoError(t, err)

	require.Equal(t, "one\n", readFile(t, target))
	require.Equal(t, map[string]string{"notes.txt": "three\n"}, tool.Snapshot(workDir))
}

func TestNativeToolIgnoreWhitespace(t *testing.T) {
	t.Parallel()

	workDir := t.TempDir()
	target := mustWriteFile(t, workDir, "dir/file.txt", "old   \n")
	patchFile := mustWriteFile(t, t.TempDir(), "fix.patch", prefixedPatch)

	strict, err := NewNativeTool(NativeOptions{}).Run(context.Background(), Invocation{Strip: 1, PatchFile: patchFile, WorkDir: workDir})
	require.NoError(t, err)
	require.False(t, strict.Success())

	lenient := NewNativeTool(NativeOptions{Options: Options{IgnoreWhitespace: true}})
	outcome, err := lenient.Run(context.Background(), Invocation{Strip: 1, PatchFile: patchFile, WorkDir: workDir})
	require.NoError(t, err)
	require.True(t, outcome.Success(), "stderr: %s", outcome.Stderr)
	require.Equal(t, "new\n", readFile(t, target))
}

func TestNativeToolHonoursCancellation(t *testing.T) {
	t.Parallel()

	workDir := newWorkDir(t)
	patchFile := mustWriteFile(t, t.TempDir(), "fix.patch", prefixedPatch)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewNativeTool(NativeOptions{}).Run(ctx, Invocation{Strip: 1, PatchFile: patchFile, WorkDir: workDir})
	require.ErrorIs(t, err, context.Canceled)
	require.True(t, strings.HasPrefix(readFile(t, filepath.Join(workDir, "dir", "file.txt")), "old"))
}
