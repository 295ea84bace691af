package patch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FilesystemOptions augments Options with the directory that relative
// operation paths are resolved against.
type FilesystemOptions struct {
	Options
	WorkingDir string
}

// ApplyFilesystem applies operations to files under opts.WorkingDir. Nothing
// is written unless every operation succeeds.
func ApplyFilesystem(ctx context.Context, operations []Operation, opts FilesystemOptions) ([]Result, error) {
	ws, err := newFilesystemWorkspace(opts)
	if err != nil {
		return nil, err
	}
	return apply(ctx, operations, ws)
}

type filesystemWorkspace struct {
	options    Options
	workingDir string
	states     map[string]*fileState
	deletions  []string
}

func newFilesystemWorkspace(opts FilesystemOptions) (*filesystemWorkspace, error) {
	workingDir := strings.TrimSpace(opts.WorkingDir)
	if workingDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to determine working directory: %w", err)
		}
		workingDir = wd
	}
	if abs, err := filepath.Abs(workingDir); err == nil {
		workingDir = abs
	}
	return &filesystemWorkspace{
		options:    opts.Options,
		workingDir: workingDir,
		states:     make(map[string]*fileState),
	}, nil
}

func (ws *filesystemWorkspace) Ensure(path string, create bool) (*fileState, error) {
	abs, rel, err := ws.resolvePath(path)
	if err != nil {
		return nil, err
	}
	if st, ok := ws.states[abs]; ok {
		return st, nil
	}

	info, err := os.Stat(abs)
	switch {
	case err == nil && info.IsDir():
		return nil, fmt.Errorf("cannot patch directory %s", rel)
	case err == nil && create:
		return nil, &Error{Message: fmt.Sprintf("cannot create %s: file already exists", rel), Code: "FILE_EXISTS", RelativePath: rel}
	case err == nil:
		content, readErr := os.ReadFile(abs)
		if readErr != nil {
			return nil, fmt.Errorf("failed to read %s: %v", rel, readErr)
		}
		text := string(content)
		st := newFileState(abs, rel, &text, info.Mode(), ws.options)
		ws.states[abs] = st
		return st, nil
	case errors.Is(err, fs.ErrNotExist):
		if !create {
			return nil, fmt.Errorf("failed to read %s: file does not exist", rel)
		}
		st := newFileState(abs, rel, nil, 0, ws.options)
		ws.states[abs] = st
		return st, nil
	default:
		return nil, fmt.Errorf("failed to stat %s: %v", rel, err)
	}
}

// Delete checks that the file exists; removal happens on Commit.
func (ws *filesystemWorkspace) Delete(path string) error {
	abs, rel, err := ws.resolvePath(path)
	if err != nil {
		return err
	}
	info, statErr := os.Stat(abs)
	if statErr != nil || info.IsDir() {
		return &Error{Message: fmt.Sprintf("Failed to delete file %s", rel), RelativePath: rel}
	}
	delete(ws.states, abs)
	ws.deletions = append(ws.deletions, abs)
	return nil
}

func (ws *filesystemWorkspace) Commit() ([]Result, error) {
	results := make([]Result, 0, len(ws.deletions)+len(ws.states))
	for _, abs := range ws.deletions {
		rel, _ := filepath.Rel(ws.workingDir, abs)
		if err := os.Remove(abs); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, &Error{Message: fmt.Sprintf("Failed to delete file %s", rel), RelativePath: rel}
		}
		results = append(results, Result{Status: "D", Path: rel})
	}

	for _, st := range ws.states {
		if !st.touched {
			continue
		}

		writePath := st.path
		displayPath := st.relativePath
		if move := strings.TrimSpace(st.movePath); move != "" {
			abs, rel, err := ws.resolvePath(move)
			if err != nil {
				return nil, err
			}
			writePath = abs
			displayPath = rel
		}

		if err := os.MkdirAll(filepath.Dir(writePath), 0o755); err != nil {
			return nil, &Error{Message: fmt.Sprintf("failed to create directory for %s: %v", displayPath, err)}
		}

		perm := st.originalMode & fs.ModePerm
		if perm == 0 {
			perm = 0o644
		}
		if err := os.WriteFile(writePath, []byte(st.render()), perm); err != nil {
			return nil, &Error{Message: fmt.Sprintf("failed to write %s: %v", displayPath, err)}
		}

		// WriteFile leaves the mode of existing files alone and applies umask
		// to new ones, so restore the recorded mode explicitly.
		if st.originalMode != 0 {
			desired := st.originalMode & (fs.ModePerm | fs.ModeSetuid | fs.ModeSetgid | fs.ModeSticky)
			if err := os.Chmod(writePath, desired); err != nil {
				return nil, &Error{Message: fmt.Sprintf("failed to restore permissions for %s: %v", displayPath, err)}
			}
		}

		if writePath != st.path {
			if err := os.Remove(st.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return nil, &Error{Message: fmt.Sprintf("failed to remove %s after move: %v", st.relativePath, err)}
			}
		}

		status := "M"
		if st.isNew {
			status = "A"
		}
		results = append(results, Result{Status: status, Path: displayPath})
	}
	return results, nil
}

// resolvePath maps an operation path to an absolute path inside the working
// directory.
func (ws *filesystemWorkspace) resolvePath(relative string) (string, string, error) {
	rel := strings.TrimSpace(relative)
	if rel == "" {
		return "", "", fmt.Errorf("invalid patch path")
	}
	abs := filepath.Clean(filepath.Join(ws.workingDir, rel))
	cleaned, err := filepath.Rel(ws.workingDir, abs)
	if err != nil || cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", "", fmt.Errorf("patch path %q escapes the working directory", relative)
	}
	return abs, cleaned, nil
}
