package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/asynkron/srcpatch/internal/manifest"
	"github.com/asynkron/srcpatch/pkg/patch"
)

const (
	engineExternal = "external"
	engineNative   = "native"
)

// config is the resolved batch configuration after flags, environment and
// manifest have been merged.
type config struct {
	WorkDir          string
	BaseDir          string
	Patches          []string
	Engine           string
	PatchBin         string
	DryRun           bool
	IgnoreWhitespace bool
	LogLevel         patch.LogLevel
	Stats            bool
}

func (c *config) setDefaults() error {
	if c.WorkDir == "" || c.BaseDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to determine working directory: %w", err)
		}
		if c.WorkDir == "" {
			c.WorkDir = cwd
		}
		if c.BaseDir == "" {
			c.BaseDir = cwd
		}
	}
	if c.Engine == "" {
		c.Engine = engineExternal
	}
	if c.LogLevel == "" {
		c.LogLevel = patch.LogLevelInfo
	}
	return nil
}

func (c *config) validate() error {
	switch c.Engine {
	case engineExternal:
		if c.DryRun {
			return errors.New("-dry-run requires -engine native")
		}
		if c.IgnoreWhitespace {
			return errors.New("-ignore-whitespace requires -engine native")
		}
	case engineNative:
	default:
		return fmt.Errorf("unknown engine %q (want %s or %s)", c.Engine, engineExternal, engineNative)
	}
	return nil
}

// mergeManifest fills values that were not set explicitly on the command
// line from m.
func (c *config) mergeManifest(m *manifest.Manifest, explicit map[string]bool) {
	if len(c.Patches) == 0 {
		c.Patches = m.Patches
	}
	if !explicit["work-dir"] && m.WorkDir != "" {
		c.WorkDir = m.WorkDir
	}
	if !explicit["base-dir"] && m.BaseDir != "" {
		c.BaseDir = m.BaseDir
	}
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
