package patch

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}
	path := filepath.Join(t.TempDir(), "fake-patch")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestExecToolArgs(t *testing.T) {
	t.Parallel()

	tool := NewExecTool("/usr/bin/patch")
	args := tool.Args(Invocation{Strip: 2, PatchFile: "/recipes/fix.patch", WorkDir: "/work/src"})
	require.Equal(t, []string{"-p2", "-i", "/recipes/fix.patch", "-d", "/work/src"}, args)
}

func TestExecToolCapturesSuccessfulRun(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "echo \"$@\"\n")
	outcome, err := NewExecTool(script).Run(context.Background(), Invocation{Strip: 1, PatchFile: "fix.patch", WorkDir: "work"})
	require.NoError(t, err)
	require.True(t, outcome.Success())
	require.Equal(t, "-p1 -i fix.patch -d work\n", string(outcome.Stdout))
}

func TestExecToolReportsExitStatus(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "echo partial\necho 'Hunk #1 FAILED' >&2\nexit 3\n")
	outcome, err := NewExecTool(script).Run(context.Background(), Invocation{Strip: 1, PatchFile: "fix.patch", WorkDir: "work"})
	require.NoError(t, err)
	require.False(t, outcome.Success())
	require.Equal(t, 3, outcome.ExitCode)
	require.Equal(t, "partial\n", string(outcome.Stdout))
	require.Equal(t, "Hunk #1 FAILED\n", string(outcome.Stderr))
}

func TestExecToolFailsToStart(t *testing.T) {
	t.Parallel()

	_, err := NewExecTool(filepath.Join(t.TempDir(), "does-not-exist")).Run(context.Background(), Invocation{})
	require.Error(t, err)

	_, err = NewExecTool("  ").Run(context.Background(), Invocation{})
	require.Error(t, err)
}

// TestExecToolWithSystemPatch drives a real `patch` binary through a batch
// when one is installed.
func TestExecToolWithSystemPatch(t *testing.T) {
	t.Parallel()

	patchPath, err := exec.LookPath("patch")
	if err != nil {
		t.Skip("patch executable not available")
	}

	workDir := newWorkDir(t)
	baseDir := t.TempDir()
	mustWriteFile(t, baseDir, "prefixed.patch", prefixedPatch)
	mustWriteFile(t, baseDir, "plain.patch", `--- dir/file.txt
+++ dir/file.txt
@@ -1,1 +1,1 @@
-new
+newer
`)

	provider := &stubProvider{tool: NewExecTool(patchPath)}
	err = ApplyPatches(context.Background(), provider, []string{"prefixed.patch", "plain.patch"}, workDir, baseDir)
	require.NoError(t, err)
	require.Equal(t, "newer\n", readFile(t, filepath.Join(workDir, "dir", "file.txt")))
}
