package patch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"unicode"
)

// Options configure how the native engine matches hunks.
type Options struct {
	IgnoreWhitespace bool
}

// Result describes the outcome for a single file. Status is "A", "M" or "D".
type Result struct {
	Status string
	Path   string
}

type workspace interface {
	Ensure(path string, create bool) (*fileState, error)
	Delete(path string) error
	Commit() ([]Result, error)
}

type fileState struct {
	path                    string
	relativePath            string
	lines                   []string
	normalizedLines         []string
	originalContent         string
	originalEndsWithNewline *bool
	// endsWithNewline overrides the original convention once a hunk with a
	// "No newline at end of file" marker has been applied.
	endsWithNewline *bool
	originalMode            fs.FileMode
	touched                 bool
	cursor                  int
	// offset is the distance between recorded and current line positions
	// after the hunks applied so far.
	offset       int
	hunkStatuses []HunkStatus
	isNew        bool
	movePath     string
	options      Options
}

func newFileState(path, rel string, content *string, mode fs.FileMode, options Options) *fileState {
	st := &fileState{
		path:         path,
		relativePath: rel,
		lines:        []string{},
		originalMode: mode,
		options:      options,
		isNew:        content == nil,
	}
	if content != nil {
		normalized := strings.ReplaceAll(*content, "\r\n", "\n")
		normalized = strings.ReplaceAll(normalized, "\r", "\n")
		ends := strings.HasSuffix(normalized, "\n")
		st.lines = strings.Split(normalized, "\n")
		st.originalContent = *content
		st.originalEndsWithNewline = &ends
	}
	if options.IgnoreWhitespace {
		ensureNormalizedLines(st)
	}
	return st
}

// render joins the lines back together. The trailing newline follows the new
// side of the last end-of-file hunk, or else the original file.
func (st *fileState) render() string {
	content := strings.Join(st.lines, "\n")
	ends := st.endsWithNewline
	if ends == nil {
		ends = st.originalEndsWithNewline
	}
	if ends == nil {
		return content
	}
	if *ends && !strings.HasSuffix(content, "\n") {
		return content + "\n"
	}
	if !*ends && strings.HasSuffix(content, "\n") {
		return strings.TrimSuffix(content, "\n")
	}
	return content
}

func apply(ctx context.Context, operations []Operation, ws workspace) ([]Result, error) {
	if ws == nil {
		return nil, errors.New("nil workspace")
	}
	for _, op := range operations {
		if ctx.Err() != nil {
			return nil, &Error{Message: ctx.Err().Error()}
		}
		switch op.Type {
		case OperationDelete:
			if err := ws.Delete(op.Path); err != nil {
				return nil, asPatchError(err)
			}
		case OperationUpdate, OperationAdd:
			st, err := ws.Ensure(op.Path, op.Type == OperationAdd)
			if err != nil {
				return nil, asPatchError(err)
			}
			st.cursor = 0
			st.offset = 0
			st.hunkStatuses = nil
			for index, hunk := range op.Hunks {
				if ctx.Err() != nil {
					return nil, &Error{Message: ctx.Err().Error()}
				}
				number := index + 1
				if err := applyHunk(st, hunk); err != nil {
					return nil, enhanceHunkError(err, st, hunk, number)
				}
				st.hunkStatuses = append(st.hunkStatuses, HunkStatus{Number: number, Status: "applied"})
				st.touched = true
			}
			if move := strings.TrimSpace(op.MovePath); move != "" {
				st.movePath = move
				st.touched = true
			}
			if op.Type == OperationAdd {
				st.touched = true
			}
		default:
			return nil, &Error{Message: fmt.Sprintf("unsupported patch operation for %s: %s", op.Path, op.Type)}
		}
	}
	results, err := ws.Commit()
	if err != nil {
		return nil, asPatchError(err)
	}
	return results, nil
}

func asPatchError(err error) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	return &Error{Message: err.Error()}
}

func applyHunk(st *fileState, hunk Hunk) error {
	if st == nil {
		return errors.New("missing file state")
	}

	before := hunk.Before
	after := hunk.After
	expected, hinted := expectedIndex(st, hunk)

	if len(before) == 0 {
		index := expected
		if !hinted || index > len(st.lines) {
			index = len(st.lines)
			if index > 0 && st.lines[index-1] == "" {
				index--
			}
		}
		st.lines = splice(st.lines, index, 0, after)
		updateNormalizedLines(st, index, 0, after)
		st.cursor = index + len(after)
		recordTrailingNewline(st, hunk)
		if hinted {
			st.offset = index - (hunk.OrigStart) + len(after)
		}
		return nil
	}

	matchIndex := locate(st.lines, before, expected, hinted, st.cursor, hunk.AtEOF)
	if matchIndex == -1 && st.options.IgnoreWhitespace {
		normalizedBefore := make([]string, len(before))
		for i, line := range before {
			normalizedBefore[i] = normalizeLine(line)
		}
		matchIndex = locate(ensureNormalizedLines(st), normalizedBefore, expected, hinted, st.cursor, hunk.AtEOF)
	}

	if matchIndex == -1 {
		original := st.originalContent
		if original == "" {
			original = strings.Join(st.lines, "\n")
		}
		return &Error{
			Message:         fmt.Sprintf("Hunk not found in %s.", st.relativePath),
			Code:            codeHunkNotFound,
			RelativePath:    st.relativePath,
			OriginalContent: original,
		}
	}

	st.lines = splice(st.lines, matchIndex, len(before), after)
	updateNormalizedLines(st, matchIndex, len(before), after)
	st.cursor = matchIndex + len(after)
	recordTrailingNewline(st, hunk)
	if hinted {
		st.offset = matchIndex - (hunk.OrigStart - 1) + len(after) - len(before)
	}
	return nil
}

func recordTrailingNewline(st *fileState, hunk Hunk) {
	switch {
	case hunk.NewMissingNewline:
		ends := false
		st.endsWithNewline = &ends
	case hunk.OrigMissingNewline:
		ends := true
		st.endsWithNewline = &ends
	}
}

// expectedIndex converts the recorded hunk position into an index into the
// current lines. Pure insertions are recorded after line OrigStart.
func expectedIndex(st *fileState, hunk Hunk) (int, bool) {
	if hunk.OrigStart <= 0 {
		return 0, false
	}
	index := hunk.OrigStart - 1
	if len(hunk.Before) == 0 {
		index = hunk.OrigStart
	}
	index += st.offset
	if index < 0 {
		index = 0
	}
	return index, true
}

// locate finds needle in haystack. With a position hint the search fans out
// from the hint; without one it continues from the cursor and then wraps to
// the top.
func locate(haystack, needle []string, expected int, hinted bool, cursor int, requireEOF bool) int {
	if hinted {
		return searchOutward(haystack, needle, expected, requireEOF)
	}
	if index := findSubsequence(haystack, needle, cursor, requireEOF); index != -1 {
		return index
	}
	return findSubsequence(haystack, needle, 0, requireEOF)
}

func searchOutward(haystack, needle []string, expected int, requireEOF bool) int {
	if len(needle) == 0 {
		return -1
	}
	last := len(haystack) - len(needle)
	if last < 0 {
		return -1
	}
	if expected > last {
		expected = last
	}
	for distance := 0; expected-distance >= 0 || expected+distance <= last; distance++ {
		if i := expected - distance; i >= 0 && matchesAt(haystack, needle, i, requireEOF) {
			return i
		}
		if distance == 0 {
			continue
		}
		if i := expected + distance; i <= last && matchesAt(haystack, needle, i, requireEOF) {
			return i
		}
	}
	return -1
}

func findSubsequence(haystack, needle []string, startIndex int, requireEOF bool) int {
	if len(needle) == 0 {
		return -1
	}
	if startIndex < 0 {
		startIndex = 0
	}
	for i := startIndex; i <= len(haystack)-len(needle); i++ {
		if matchesAt(haystack, needle, i, requireEOF) {
			return i
		}
	}
	return -1
}

func matchesAt(haystack, needle []string, start int, requireEOF bool) bool {
	for j := range needle {
		if haystack[start+j] != needle[j] {
			return false
		}
	}
	return !requireEOF || matchSatisfiesEOF(haystack, start, len(needle))
}

func matchSatisfiesEOF(lines []string, start, length int) bool {
	end := start + length
	if end >= len(lines) {
		return true
	}
	for _, line := range lines[end:] {
		if line != "" {
			return false
		}
	}
	return true
}

func splice(target []string, index, deleteCount int, replacement []string) []string {
	if deleteCount == 0 && len(replacement) == 0 {
		return target
	}
	result := make([]string, 0, len(target)-deleteCount+len(replacement))
	result = append(result, target[:index]...)
	result = append(result, replacement...)
	result = append(result, target[index+deleteCount:]...)
	return result
}

func ensureNormalizedLines(st *fileState) []string {
	if st == nil {
		return nil
	}
	if !st.options.IgnoreWhitespace {
		return st.lines
	}
	if st.normalizedLines != nil {
		return st.normalizedLines
	}
	normalized := make([]string, len(st.lines))
	for i, line := range st.lines {
		normalized[i] = normalizeLine(line)
	}
	st.normalizedLines = normalized
	return normalized
}

func updateNormalizedLines(st *fileState, index, deleteCount int, replacement []string) {
	if st == nil || !st.options.IgnoreWhitespace {
		return
	}
	normalized := ensureNormalizedLines(st)
	replacementNormalized := make([]string, len(replacement))
	for i, line := range replacement {
		replacementNormalized[i] = normalizeLine(line)
	}
	st.normalizedLines = splice(normalized, index, deleteCount, replacementNormalized)
}

func normalizeLine(line string) string {
	if line == "" {
		return ""
	}
	var builder strings.Builder
	builder.Grow(len(line))
	for _, r := range line {
		if unicode.IsSpace(r) {
			continue
		}
		builder.WriteRune(r)
	}
	return builder.String()
}

func enhanceHunkError(err error, st *fileState, hunk Hunk, number int) *Error {
	pe := asPatchError(err)

	statuses := append([]HunkStatus{}, st.hunkStatuses...)
	statuses = append(statuses, pe.HunkStatuses...)
	statuses = append(statuses, HunkStatus{Number: number, Status: "no-match"})
	pe.HunkStatuses = statuses

	if pe.Code == "" {
		pe.Code = codeHunkNotFound
	}
	if pe.RelativePath == "" {
		pe.RelativePath = st.relativePath
	}
	if pe.OriginalContent == "" {
		if st.originalContent != "" {
			pe.OriginalContent = st.originalContent
		} else {
			pe.OriginalContent = strings.Join(st.lines, "\n")
		}
	}
	if pe.FailedHunk == nil {
		pe.FailedHunk = &FailedHunk{Number: number, RawPatchLines: append([]string(nil), hunk.RawPatchLines...)}
	}
	return pe
}

func describeHunkStatuses(statuses []HunkStatus) string {
	if len(statuses) == 0 {
		return ""
	}
	var applied []string
	var failed string
	for _, status := range statuses {
		if status.Status == "applied" {
			applied = append(applied, fmt.Sprintf("%d", status.Number))
			continue
		}
		if failed == "" {
			failed = fmt.Sprintf("No match for hunk %d.", status.Number)
		}
	}

	parts := make([]string, 0, 2)
	if len(applied) > 0 {
		parts = append(parts, fmt.Sprintf("Hunks applied: %s.", strings.Join(applied, ", ")))
	}
	if failed != "" {
		parts = append(parts, failed)
	}
	return strings.Join(parts, "\n")
}

// FormatError renders an engine error for operators. Hunk failures include
// the applied hunk numbers, the offending hunk and the original file content.
func FormatError(err *Error) string {
	if err == nil {
		return "Unknown error occurred."
	}
	message := err.Message
	if message == "" {
		message = "Unknown error occurred."
	}
	if err.Code != codeHunkNotFound {
		return message
	}

	displayPath := err.RelativePath
	if displayPath == "" {
		displayPath = "unknown file"
	}
	if !strings.HasPrefix(displayPath, "./") {
		displayPath = "./" + displayPath
	}
	parts := []string{message}
	if summary := describeHunkStatuses(err.HunkStatuses); summary != "" {
		parts = append(parts, "", summary)
	}
	if err.FailedHunk != nil && len(err.FailedHunk.RawPatchLines) > 0 {
		parts = append(parts, "", "Offending hunk:", strings.Join(err.FailedHunk.RawPatchLines, "\n"))
	}
	if err.OriginalContent != "" {
		parts = append(parts, "", fmt.Sprintf("Full content of file: %s::::", displayPath), err.OriginalContent)
	}
	return strings.Join(parts, "\n")
}
