package patch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// NativeOptions configure the in-process engine.
type NativeOptions struct {
	Options
	// DryRun applies patches to an in-memory snapshot of the working
	// directory. Later patches of the batch see the effects of earlier ones.
	DryRun bool
}

// NativeTool applies unified diffs in process. It doubles as a ToolProvider
// that is always available.
//
// Exit codes follow GNU patch: 1 when a hunk or file operation fails, 2 when
// the patch cannot be parsed.
type NativeTool struct {
	options   NativeOptions
	snapshots map[string]*snapshot
}

type snapshot struct {
	files  map[string]string
	seeded map[string]bool
}

// NewNativeTool builds a NativeTool.
func NewNativeTool(options NativeOptions) *NativeTool {
	return &NativeTool{
		options:   options,
		snapshots: make(map[string]*snapshot),
	}
}

// PatchTool implements ToolProvider.
func (t *NativeTool) PatchTool() (Tool, error) {
	return t, nil
}

// Snapshot returns a copy of the dry-run contents recorded for workDir. Only
// files touched by applied patches are present.
func (t *NativeTool) Snapshot(workDir string) map[string]string {
	snap, ok := t.snapshots[snapshotKey(workDir)]
	if !ok {
		return nil
	}
	files := make(map[string]string, len(snap.files))
	for k, v := range snap.files {
		files[k] = v
	}
	return files
}

// Run implements Tool.
func (t *NativeTool) Run(ctx context.Context, inv Invocation) (Outcome, error) {
	text, err := os.ReadFile(inv.PatchFile)
	if err != nil {
		return Outcome{}, &ReadError{Path: inv.PatchFile, Err: err}
	}

	operations, err := ParseUnified(text, inv.Strip)
	if err != nil {
		return Outcome{ExitCode: 2, Stderr: []byte(err.Error() + "\n")}, nil
	}

	var results []Result
	if t.options.DryRun {
		results, err = t.applyToSnapshot(ctx, operations, inv.WorkDir)
	} else {
		results, err = ApplyFilesystem(ctx, operations, FilesystemOptions{
			Options:    t.options.Options,
			WorkingDir: inv.WorkDir,
		})
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Outcome{ExitCode: -1}, ctxErr
	}
	if err != nil {
		message := err.Error()
		var pe *Error
		if errors.As(err, &pe) {
			message = FormatError(pe)
		}
		return Outcome{ExitCode: 1, Stderr: []byte(message + "\n")}, nil
	}

	return Outcome{Stdout: []byte(describeResults(results, t.options.DryRun))}, nil
}

func (t *NativeTool) applyToSnapshot(ctx context.Context, operations []Operation, workDir string) ([]Result, error) {
	root := snapshotKey(workDir)
	snap, ok := t.snapshots[root]
	if !ok {
		snap = &snapshot{files: make(map[string]string), seeded: make(map[string]bool)}
		t.snapshots[root] = snap
	}

	for _, op := range operations {
		for _, path := range []string{op.Path, op.MovePath} {
			if path == "" {
				continue
			}
			if err := snap.seed(root, path); err != nil {
				return nil, err
			}
		}
	}

	updated, results, err := ApplyToMemory(ctx, operations, snap.files, t.options.Options)
	if err != nil {
		return nil, err
	}
	snap.files = updated
	return results, nil
}

// seed loads a file from disk the first time the snapshot sees it. Files that
// do not exist stay absent.
func (s *snapshot) seed(root, path string) error {
	key, err := memoryKey(path)
	if err != nil {
		return err
	}
	if s.seeded[key] {
		return nil
	}
	s.seeded[key] = true

	content, err := os.ReadFile(filepath.Join(root, key))
	switch {
	case err == nil:
		s.files[key] = string(content)
	case errors.Is(err, fs.ErrNotExist):
	default:
		return fmt.Errorf("failed to read %s: %w", key, err)
	}
	return nil
}

func snapshotKey(workDir string) string {
	if abs, err := filepath.Abs(workDir); err == nil {
		return abs
	}
	return filepath.Clean(workDir)
}

func describeResults(results []Result, dryRun bool) string {
	sorted := append([]Result(nil), results...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	var builder strings.Builder
	for _, result := range sorted {
		verb := "patching file"
		switch {
		case dryRun:
			verb = "checking file"
		case result.Status == "A":
			verb = "creating file"
		case result.Status == "D":
			verb = "deleting file"
		}
		fmt.Fprintf(&builder, "%s %s\n", verb, result.Path)
	}
	return builder.String()
}
