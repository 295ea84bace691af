package patch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// OperationType identifies the kind of change a file entry describes.
type OperationType string

const (
	// OperationAdd creates a file (old name is /dev/null).
	OperationAdd OperationType = "add"
	// OperationUpdate modifies, and optionally renames, an existing file.
	OperationUpdate OperationType = "update"
	// OperationDelete removes a file (new name is /dev/null).
	OperationDelete OperationType = "delete"
)

// Operation is one file entry of a parsed patch. Paths are already stripped
// and relative to the working directory.
type Operation struct {
	Type     OperationType
	Path     string
	MovePath string
	Hunks    []Hunk
}

// Hunk is a single hunk of an Operation.
type Hunk struct {
	Header string
	// OrigStart is the recorded first line of the hunk in the original file,
	// or 0 when the position is unknown.
	OrigStart     int
	RawPatchLines []string
	Before        []string
	After         []string
	// OrigMissingNewline and NewMissingNewline record a "No newline at end
	// of file" marker on the old and new side of the hunk.
	OrigMissingNewline bool
	NewMissingNewline  bool
	// AtEOF is set when either marker is present, so the match must reach
	// the end of the file.
	AtEOF bool
}

// ParseUnified parses a unified multi-file diff and strips strip leading
// components from every recorded path.
func ParseUnified(text []byte, strip int) ([]Operation, error) {
	fileDiffs, err := diff.ParseMultiFileDiff(text)
	if err != nil {
		return nil, fmt.Errorf("parse patch: %w", err)
	}
	if len(fileDiffs) == 0 {
		return nil, errors.New("only garbage was found in the patch input")
	}

	operations := make([]Operation, 0, len(fileDiffs))
	for _, fd := range fileDiffs {
		op, err := operationFromFileDiff(fd, strip)
		if err != nil {
			return nil, err
		}
		operations = append(operations, op)
	}
	return operations, nil
}

func operationFromFileDiff(fd *diff.FileDiff, strip int) (Operation, error) {
	var op Operation
	switch {
	case fd.OrigName == devNull && fd.NewName == devNull:
		return Operation{}, errors.New("file entry has no old or new name")
	case fd.OrigName == devNull:
		path, err := StripComponents(fd.NewName, strip)
		if err != nil {
			return Operation{}, err
		}
		op = Operation{Type: OperationAdd, Path: path}
	case fd.NewName == devNull:
		path, err := StripComponents(fd.OrigName, strip)
		if err != nil {
			return Operation{}, err
		}
		op = Operation{Type: OperationDelete, Path: path}
	default:
		oldPath, err := StripComponents(fd.OrigName, strip)
		if err != nil {
			return Operation{}, err
		}
		newPath, err := StripComponents(fd.NewName, strip)
		if err != nil {
			return Operation{}, err
		}
		op = Operation{Type: OperationUpdate, Path: oldPath}
		if newPath != oldPath {
			op.MovePath = newPath
		}
	}

	if op.Type == OperationDelete {
		return op, nil
	}

	for _, h := range fd.Hunks {
		hunk, err := hunkFromDiff(h, op.Path)
		if err != nil {
			return Operation{}, err
		}
		op.Hunks = append(op.Hunks, hunk)
	}

	// Created files end with a newline unless the diff says otherwise.
	if op.Type == OperationAdd && len(op.Hunks) > 0 {
		last := &op.Hunks[len(op.Hunks)-1]
		if !last.NewMissingNewline {
			last.After = append(last.After, "")
		}
	}
	return op, nil
}

func hunkFromDiff(h *diff.Hunk, filePath string) (Hunk, error) {
	header := fmt.Sprintf("@@ -%d,%d +%d,%d @@", h.OrigStartLine, h.OrigLines, h.NewStartLine, h.NewLines)
	if h.Section != "" {
		header += " " + h.Section
	}
	hunk := Hunk{Header: header, OrigStart: int(h.OrigStartLine), OrigMissingNewline: h.OrigNoNewlineAt > 0}

	// go-diff drops the marker lines. A marker on the new side removes the
	// body's final newline.
	text := string(h.Body)
	hunk.NewMissingNewline = text != "" && !strings.HasSuffix(text, "\n")
	body := strings.TrimSuffix(text, "\n")
	var lines []string
	if body != "" {
		lines = strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n")
	}

	for _, raw := range lines {
		switch {
		case raw == "":
			// Editors often strip the single space of an empty context line.
			hunk.Before = append(hunk.Before, "")
			hunk.After = append(hunk.After, "")
		case strings.HasPrefix(raw, "+"):
			hunk.After = append(hunk.After, raw[1:])
		case strings.HasPrefix(raw, "-"):
			hunk.Before = append(hunk.Before, raw[1:])
		case strings.HasPrefix(raw, " "):
			hunk.Before = append(hunk.Before, raw[1:])
			hunk.After = append(hunk.After, raw[1:])
		default:
			return Hunk{}, fmt.Errorf("unsupported hunk line in %s: %q", filePath, raw)
		}
	}

	// A trailing context line belongs to both sides.
	if hunk.NewMissingNewline && len(lines) > 0 {
		if last := lines[len(lines)-1]; last == "" || strings.HasPrefix(last, " ") {
			hunk.OrigMissingNewline = true
		}
	}
	hunk.AtEOF = hunk.OrigMissingNewline || hunk.NewMissingNewline

	hunk.RawPatchLines = append([]string{header}, lines...)
	return hunk, nil
}
