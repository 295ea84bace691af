// Package systemtools resolves the external executables srcpatch shells out
// to. Lookups go through an injectable function so tests can exercise the
// resolution without relying on tools being present on the host PATH.
package systemtools

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/asynkron/srcpatch/pkg/patch"
)

// Tool names an external executable.
type Tool string

// Patch is the line-oriented diff application utility.
const Patch Tool = "patch"

// ErrToolNotFound is returned when a tool cannot be located.
var ErrToolNotFound = errors.New("tool not found")

// SystemTools locates executables on PATH, honoring explicit overrides.
// Successful lookups are cached.
type SystemTools struct {
	lookPath  func(string) (string, error)
	mu        sync.Mutex
	overrides map[Tool]string
	found     map[Tool]string
}

// New constructs a SystemTools that resolves commands with exec.LookPath.
func New() *SystemTools {
	return &SystemTools{
		lookPath:  exec.LookPath,
		overrides: make(map[Tool]string),
		found:     make(map[Tool]string),
	}
}

// NewWithLookPath replaces the command lookup implementation.
func NewWithLookPath(lookPath func(string) (string, error)) *SystemTools {
	tools := New()
	if lookPath != nil {
		tools.lookPath = lookPath
	}
	return tools
}

// Override pins a tool to an explicit name or path. The value still goes
// through the lookup so a bare name is searched on PATH.
func (s *SystemTools) Override(tool Tool, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	path = strings.TrimSpace(path)
	if path == "" {
		delete(s.overrides, tool)
	} else {
		s.overrides[tool] = path
	}
	delete(s.found, tool)
}

// Resolve returns the executable path for tool.
func (s *SystemTools) Resolve(tool Tool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if path, ok := s.found[tool]; ok {
		return path, nil
	}

	name := string(tool)
	if override, ok := s.overrides[tool]; ok {
		name = override
	}
	if name == "" {
		return "", fmt.Errorf("%w: empty tool name", ErrToolNotFound)
	}

	path, err := s.lookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrToolNotFound, name, err)
	}
	s.found[tool] = path
	return path, nil
}

// PatchTool resolves the patch utility and wraps it in an ExecTool.
func (s *SystemTools) PatchTool() (patch.Tool, error) {
	path, err := s.Resolve(Patch)
	if err != nil {
		return nil, err
	}
	return patch.NewExecTool(path), nil
}

var _ patch.ToolProvider = (*SystemTools)(nil)
