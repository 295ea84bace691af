package patch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// ApplyToMemory applies operations to an in-memory document store keyed by
// relative path. The provided map is copied before mutation and the updated
// snapshot is returned.
func ApplyToMemory(ctx context.Context, operations []Operation, files map[string]string, opts Options) (map[string]string, []Result, error) {
	snapshot := make(map[string]string, len(files))
	for k, v := range files {
		snapshot[k] = v
	}
	ws := newMemoryWorkspace(snapshot, opts)
	results, err := apply(ctx, operations, ws)
	if err != nil {
		return nil, nil, err
	}
	return ws.files, results, nil
}

type memoryWorkspace struct {
	options   Options
	files     map[string]string
	states    map[string]*fileState
	deletions []Result
}

func newMemoryWorkspace(files map[string]string, opts Options) *memoryWorkspace {
	return &memoryWorkspace{
		options: opts,
		files:   files,
		states:  make(map[string]*fileState),
	}
}

func memoryKey(path string) (string, error) {
	rel := filepath.Clean(strings.TrimSpace(path))
	if rel == "" || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid patch path %q", path)
	}
	return rel, nil
}

func (ws *memoryWorkspace) Ensure(path string, create bool) (*fileState, error) {
	rel, err := memoryKey(path)
	if err != nil {
		return nil, err
	}
	if st, ok := ws.states[rel]; ok {
		return st, nil
	}

	content, exists := ws.files[rel]
	switch {
	case exists && create:
		return nil, &Error{Message: fmt.Sprintf("cannot create %s: file already exists", rel), Code: "FILE_EXISTS", RelativePath: rel}
	case exists:
		st := newFileState(rel, rel, &content, 0, ws.options)
		ws.states[rel] = st
		return st, nil
	case !create:
		return nil, fmt.Errorf("failed to read %s: file does not exist", rel)
	default:
		st := newFileState(rel, rel, nil, 0, ws.options)
		ws.states[rel] = st
		return st, nil
	}
}

func (ws *memoryWorkspace) Delete(path string) error {
	rel, err := memoryKey(path)
	if err != nil {
		return err
	}
	if _, ok := ws.files[rel]; !ok {
		return &Error{Message: fmt.Sprintf("Failed to delete file %s", rel), RelativePath: rel}
	}
	delete(ws.files, rel)
	delete(ws.states, rel)
	ws.deletions = append(ws.deletions, Result{Status: "D", Path: rel})
	return nil
}

func (ws *memoryWorkspace) Commit() ([]Result, error) {
	results := append([]Result{}, ws.deletions...)
	for key, st := range ws.states {
		if !st.touched {
			continue
		}

		writeKey := key
		if move := strings.TrimSpace(st.movePath); move != "" {
			target, err := memoryKey(move)
			if err != nil {
				return nil, err
			}
			writeKey = target
		}

		ws.files[writeKey] = st.render()
		if writeKey != key {
			delete(ws.files, key)
		}

		status := "M"
		if st.isNew {
			status = "A"
		}
		results = append(results, Result{Status: status, Path: writeKey})
	}
	return results, nil
}
