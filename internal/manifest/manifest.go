// Package manifest loads JSON batch descriptions for srcpatch.
//
// A manifest names the patches of a batch in application order together with
// the directories they are applied in:
//
//	{"work_dir": "src", "base_dir": "patches", "patches": ["0001.patch"]}
//
// Relative directories resolve against the directory holding the manifest,
// which is also the default base directory.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Manifest describes one patch batch.
type Manifest struct {
	WorkDir string   `json:"work_dir,omitempty"`
	BaseDir string   `json:"base_dir,omitempty"`
	Patches []string `json:"patches"`
}

// ValidationError lists the schema violations of a manifest document.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "manifest failed schema validation"
	}
	return "manifest failed schema validation: " + strings.Join(e.Issues, "; ")
}

// Load reads and validates the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: read %s: %w", path, err)
	}

	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("manifest: resolve %s: %w", path, err)
	}

	m, err := Parse(data, dir)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse validates data and resolves relative directories against dir.
func Parse(data []byte, dir string) (*Manifest, error) {
	if err := validate(data); err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest: decode: %w", err)
	}

	m.BaseDir = resolveDir(dir, m.BaseDir)
	if strings.TrimSpace(m.WorkDir) != "" {
		m.WorkDir = resolveDir(dir, m.WorkDir)
	} else {
		m.WorkDir = ""
	}
	return &m, nil
}

func resolveDir(root, path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return root
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(root, path)
}
