package patch

import (
	"errors"

	"github.com/sourcegraph/go-diff/diff"
)

// ErrNoFileEntries is returned by UnifiedHeaderParser for text without any
// file entry.
var ErrNoFileEntries = errors.New("no file entries found in patch")

// HeaderParser extracts the old file paths recorded in a patch, in the order
// the file entries appear. An error means the text is not a patch the parser
// understands.
type HeaderParser interface {
	OldPaths(text []byte) ([]string, error)
}

// HeaderParserFunc adapts a plain function to the HeaderParser interface.
type HeaderParserFunc func(text []byte) ([]string, error)

// OldPaths calls f(text).
func (f HeaderParserFunc) OldPaths(text []byte) ([]string, error) {
	return f(text)
}

// UnifiedHeaderParser reads unified and git-style multi-file diffs. Recorded
// names are returned untouched, so `a/` prefixes survive.
type UnifiedHeaderParser struct{}

// OldPaths implements HeaderParser.
func (UnifiedHeaderParser) OldPaths(text []byte) ([]string, error) {
	fileDiffs, err := diff.ParseMultiFileDiff(text)
	if err != nil {
		return nil, err
	}
	if len(fileDiffs) == 0 {
		return nil, ErrNoFileEntries
	}
	paths := make([]string, 0, len(fileDiffs))
	for _, fd := range fileDiffs {
		paths = append(paths, fd.OrigName)
	}
	return paths, nil
}
