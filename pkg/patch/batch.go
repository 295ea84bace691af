package patch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"
)

// ApplierOptions configure an Applier. Zero values select the unified header
// parser, a NoOpLogger and NoOpMetrics.
type ApplierOptions struct {
	Parser  HeaderParser
	Logger  Logger
	Metrics Metrics
}

func (o *ApplierOptions) setDefaults() {
	if o.Parser == nil {
		o.Parser = UnifiedHeaderParser{}
	}
	if o.Logger == nil {
		o.Logger = &NoOpLogger{}
	}
	if o.Metrics == nil {
		o.Metrics = &NoOpMetrics{}
	}
}

// Applier applies batches of patch files in order, stopping at the first
// failure.
type Applier struct {
	tools   ToolProvider
	options ApplierOptions
}

// NewApplier builds an Applier that obtains its patch tool from tools.
func NewApplier(tools ToolProvider, options ApplierOptions) *Applier {
	options.setDefaults()
	return &Applier{tools: tools, options: options}
}

// ApplyPatches applies patches with the default options.
func ApplyPatches(ctx context.Context, tools ToolProvider, patches []string, workDir, baseDir string) error {
	return NewApplier(tools, ApplierOptions{}).ApplyPatches(ctx, patches, workDir, baseDir)
}

// ApplyPatches applies every patch to workDir in the given order. Relative
// patch paths are resolved against baseDir. The returned error is a
// *ReadError, an error matching ErrToolUnavailable, or an *ApplicationError;
// patches applied before it stay applied.
func (a *Applier) ApplyPatches(ctx context.Context, patches []string, workDir, baseDir string) error {
	for _, patch := range patches {
		if err := a.applyPatch(ctx, patch, workDir, baseDir); err != nil {
			return err
		}
	}
	return nil
}

func (a *Applier) applyPatch(ctx context.Context, patch, workDir, baseDir string) error {
	patchFile := resolvePatchPath(baseDir, patch)
	logger := a.options.Logger.WithFields(Field("patch", patchFile))

	level, outcome, err := guessStripLevel(a.options.Parser, patchFile, workDir)
	if err != nil {
		logger.Error(ctx, "failed to read patch", err)
		return err
	}
	if outcome != guessMatched {
		logger.Debug(ctx, "falling back to default strip level", Field("reason", outcome), Field("strip", level))
	}
	a.options.Metrics.RecordStripGuess(patchFile, level, outcome != guessMatched)

	if a.tools == nil {
		err := fmt.Errorf("%w: no tool provider configured", ErrToolUnavailable)
		logger.Error(ctx, "patch tool not available", err)
		return err
	}
	tool, err := a.tools.PatchTool()
	if err != nil {
		if !errors.Is(err, ErrToolUnavailable) {
			err = fmt.Errorf("%w: %w", ErrToolUnavailable, err)
		}
		logger.Error(ctx, "patch tool not available", err)
		return err
	}

	inv := Invocation{Strip: level, PatchFile: patchFile, WorkDir: workDir}
	started := time.Now()
	result, runErr := tool.Run(ctx, inv)
	a.options.Metrics.RecordPatch(patchFile, time.Since(started), runErr == nil && result.Success())

	if runErr != nil {
		logger.Error(ctx, "failed to run patch tool", runErr)
		return &ApplicationError{
			PatchFile: patchFile,
			ExitCode:  result.ExitCode,
			Stdout:    string(result.Stdout),
			Stderr:    string(result.Stderr),
			Err:       runErr,
		}
	}
	if !result.Success() {
		logger.Error(ctx, fmt.Sprintf("Failed to apply patch: %s", patchFile), nil, Field("exit_code", result.ExitCode))
		logger.Error(ctx, fmt.Sprintf("Stdout: %s", result.Stdout), nil)
		logger.Error(ctx, fmt.Sprintf("Stderr: %s", result.Stderr), nil)
		return &ApplicationError{
			PatchFile: patchFile,
			ExitCode:  result.ExitCode,
			Stdout:    string(result.Stdout),
			Stderr:    string(result.Stderr),
		}
	}

	logger.Info(ctx, "applied patch", Field("strip", level))
	return nil
}

func resolvePatchPath(baseDir, patch string) string {
	if filepath.IsAbs(patch) {
		return patch
	}
	return filepath.Join(baseDir, patch)
}
