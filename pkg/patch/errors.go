package patch

import (
	"errors"
	"fmt"
)

var (
	// ErrToolUnavailable is returned when no patch tool could be obtained for
	// the batch.
	ErrToolUnavailable = errors.New("patch tool unavailable")

	// ErrPatchFailed matches every *ApplicationError.
	ErrPatchFailed = errors.New("patch application failed")
)

// ReadError reports that the contents of a patch file could not be read.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read patch %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// ApplicationError identifies the patch that the tool refused to apply. Err is
// set when the tool could not be run at all; otherwise ExitCode, Stdout and
// Stderr describe the failed run.
type ApplicationError struct {
	PatchFile string
	ExitCode  int
	Stdout    string
	Stderr    string
	Err       error
}

func (e *ApplicationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to apply patch %s: %v", e.PatchFile, e.Err)
	}
	return fmt.Sprintf("failed to apply patch %s (exit status %d)", e.PatchFile, e.ExitCode)
}

func (e *ApplicationError) Unwrap() error { return e.Err }

// Is reports whether target is ErrPatchFailed.
func (e *ApplicationError) Is(target error) bool {
	return target == ErrPatchFailed
}

// Error is the structured failure produced by the native engine when a hunk
// or file operation cannot be carried out.
type Error struct {
	Message         string
	Code            string
	RelativePath    string
	OriginalContent string
	HunkStatuses    []HunkStatus
	FailedHunk      *FailedHunk
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return "patch error"
}

// HunkStatus tracks how a hunk was applied by the native engine.
type HunkStatus struct {
	Number int    `json:"number"`
	Status string `json:"status"`
}

// FailedHunk stores the raw lines of the hunk that could not be applied.
type FailedHunk struct {
	Number        int      `json:"number"`
	RawPatchLines []string `json:"rawPatchLines"`
}

const codeHunkNotFound = "HUNK_NOT_FOUND"
