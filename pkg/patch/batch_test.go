package patch

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingTool struct {
	calls  []Invocation
	failOn map[string]Outcome
	err    error
}

func (r *recordingTool) Run(_ context.Context, inv Invocation) (Outcome, error) {
	r.calls = append(r.calls, inv)
	if r.err != nil {
		return Outcome{ExitCode: -1}, r.err
	}
	if outcome, ok := r.failOn[filepath.Base(inv.PatchFile)]; ok {
		return outcome, nil
	}
	return Outcome{}, nil
}

type stubProvider struct {
	tool  Tool
	err   error
	calls int
}

func (s *stubProvider) PatchTool() (Tool, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.tool, nil
}

func TestApplyPatchesEmptyBatchSucceeds(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{tool: &recordingTool{}}
	err := ApplyPatches(context.Background(), provider, nil, t.TempDir(), t.TempDir())
	require.NoError(t, err)
	require.Zero(t, provider.calls)
}

func TestApplyPatchesStopsAtFirstFailure(t *testing.T) {
	t.Parallel()

	workDir := newWorkDir(t)
	baseDir := t.TempDir()
	for _, name := range []string{"p1.patch", "p2.patch", "p3.patch"} {
		mustWriteFile(t, baseDir, name, prefixedPatch)
	}

	tool := &recordingTool{failOn: map[string]Outcome{
		"p2.patch": {ExitCode: 1, Stdout: []byte("patching file dir/file.txt\n"), Stderr: []byte("Hunk #1 FAILED at 1.\n")},
	}}
	provider := &stubProvider{tool: tool}

	err := ApplyPatches(context.Background(), provider, []string{"p1.patch", "p2.patch", "p3.patch"}, workDir, baseDir)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrPatchFailed)

	var appErr *ApplicationError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, filepath.Join(baseDir, "p2.patch"), appErr.PatchFile)
	require.Equal(t, 1, appErr.ExitCode)
	require.Contains(t, appErr.Stderr, "Hunk #1 FAILED")

	require.Len(t, tool.calls, 2)
	require.Equal(t, filepath.Join(baseDir, "p1.patch"), tool.calls[0].PatchFile)
	require.Equal(t, filepath.Join(baseDir, "p2.patch"), tool.calls[1].PatchFile)
}

func TestApplyPatchesReportsMissingTool(t *testing.T) {
	t.Parallel()

	workDir := newWorkDir(t)
	baseDir := t.TempDir()
	mustWriteFile(t, baseDir, "fix.patch", prefixedPatch)

	tool := &recordingTool{}
	provider := &stubProvider{err: errors.New("patch: executable file not found in $PATH")}

	err := ApplyPatches(context.Background(), provider, []string{"fix.patch", "later.patch"}, workDir, baseDir)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrToolUnavailable)
	require.Empty(t, tool.calls)
	require.Equal(t, 1, provider.calls)
}

func TestApplyPatchesWithoutProvider(t *testing.T) {
	t.Parallel()

	baseDir := t.TempDir()
	mustWriteFile(t, baseDir, "fix.patch", prefixedPatch)

	err := NewApplier(nil, ApplierOptions{}).ApplyPatches(context.Background(), []string{"fix.patch"}, newWorkDir(t), baseDir)
	require.ErrorIs(t, err, ErrToolUnavailable)
}

func TestApplyPatchesPassesInferredStripLevel(t *testing.T) {
	t.Parallel()

	workDir := newWorkDir(t)
	baseDir := t.TempDir()
	mustWriteFile(t, baseDir, "prefixed.patch", prefixedPatch)
	absolute := mustWriteFile(t, t.TempDir(), "plain.patch", plainPatch)

	tool := &recordingTool{}
	err := ApplyPatches(context.Background(), &stubProvider{tool: tool}, []string{"prefixed.patch", absolute}, workDir, baseDir)
	require.NoError(t, err)

	require.Equal(t, []Invocation{
		{Strip: 1, PatchFile: filepath.Join(baseDir, "prefixed.patch"), WorkDir: workDir},
		{Strip: 0, PatchFile: absolute, WorkDir: workDir},
	}, tool.calls)
}

func TestApplyPatchesPropagatesReadErrors(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{tool: &recordingTool{}}
	err := ApplyPatches(context.Background(), provider, []string{"missing.patch"}, t.TempDir(), t.TempDir())

	var readErr *ReadError
	require.ErrorAs(t, err, &readErr)
	require.Zero(t, provider.calls)
}

func TestApplyPatchesWrapsToolRunErrors(t *testing.T) {
	t.Parallel()

	baseDir := t.TempDir()
	mustWriteFile(t, baseDir, "fix.patch", prefixedPatch)
	cause := errors.New("exec: permission denied")
	tool := &recordingTool{err: cause}

	err := ApplyPatches(context.Background(), &stubProvider{tool: tool}, []string{"fix.patch"}, newWorkDir(t), baseDir)
	require.ErrorIs(t, err, ErrPatchFailed)
	require.ErrorIs(t, err, cause)
}

func TestApplyPatchesLogsDiagnosticsAndRecordsMetrics(t *testing.T) {
	t.Parallel()

	workDir := newWorkDir(t)
	baseDir := t.TempDir()
	mustWriteFile(t, baseDir, "ok.patch", prefixedPatch)
	mustWriteFile(t, baseDir, "bad.patch", "garbage\n")

	var logs bytes.Buffer
	metrics := NewInMemoryMetrics()
	tool := &recordingTool{failOn: map[string]Outcome{
		"bad.patch": {ExitCode: 2, Stderr: []byte("Only garbage was found in the patch input.")},
	}}
	applier := NewApplier(&stubProvider{tool: tool}, ApplierOptions{
		Logger:  NewStdLogger(LogLevelDebug, &logs),
		Metrics: metrics,
	})

	err := applier.ApplyPatches(context.Background(), []string{"ok.patch", "bad.patch"}, workDir, baseDir)
	require.ErrorIs(t, err, ErrPatchFailed)

	output := logs.String()
	require.Contains(t, output, "applied patch")
	require.Contains(t, output, "Failed to apply patch: "+filepath.Join(baseDir, "bad.patch"))
	require.Contains(t, output, "Stderr: Only garbage was found in the patch input.")
	require.Contains(t, output, "reason=")

	snapshot := metrics.Snapshot()
	require.EqualValues(t, 2, snapshot.Patches.Total)
	require.EqualValues(t, 1, snapshot.Patches.Success)
	require.EqualValues(t, 1, snapshot.Patches.Failed)
	require.EqualValues(t, 1, snapshot.Fallbacks)
	require.EqualValues(t, 2, snapshot.StripLevels[1])
}
