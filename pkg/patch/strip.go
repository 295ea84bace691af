package patch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultStripLevel is used when no recorded path can be located in the
// working directory. It matches the usual `a/` and `b/` prefixes.
const DefaultStripLevel = 1

const devNull = "/dev/null"

const rootComponent = "/"

type guessOutcome int

const (
	guessMatched guessOutcome = iota
	guessUnparsable
	guessNoMatch
)

func (g guessOutcome) String() string {
	switch g {
	case guessMatched:
		return "matched"
	case guessUnparsable:
		return "unparsable"
	case guessNoMatch:
		return "no-match"
	default:
		return "unknown"
	}
}

// GuessStripLevel infers how many leading components must be stripped from
// the paths recorded in patchFile so that they resolve inside workDir.
//
// Only a failure to read patchFile is reported. Text that does not parse, or
// paths that never resolve, yield DefaultStripLevel.
func GuessStripLevel(patchFile, workDir string) (int, error) {
	level, _, err := guessStripLevel(UnifiedHeaderParser{}, patchFile, workDir)
	return level, err
}

func guessStripLevel(parser HeaderParser, patchFile, workDir string) (int, guessOutcome, error) {
	text, err := os.ReadFile(patchFile)
	if err != nil {
		return 0, guessNoMatch, &ReadError{Path: patchFile, Err: err}
	}

	oldPaths, err := parser.OldPaths(text)
	if err != nil {
		return DefaultStripLevel, guessUnparsable, nil
	}

	for _, oldPath := range oldPaths {
		if oldPath == devNull {
			continue
		}
		components := pathComponents(oldPath)
		for level := range len(components) {
			// Level 0 of an absolute path names a host file, not one in workDir.
			if components[level] == rootComponent {
				continue
			}
			candidate, ok := joinWithin(workDir, components[level:])
			if !ok {
				continue
			}
			if _, err := os.Stat(candidate); err == nil {
				return level, guessMatched, nil
			}
		}
	}

	return DefaultStripLevel, guessNoMatch, nil
}

// StripComponents drops the first n components of a recorded patch path and
// returns the remainder using the OS separator.
func StripComponents(recorded string, n int) (string, error) {
	if n < 0 {
		return "", fmt.Errorf("invalid strip level %d", n)
	}
	components := pathComponents(recorded)
	if n >= len(components) {
		return "", fmt.Errorf("cannot strip %d components from %q", n, recorded)
	}
	return filepath.Join(components[n:]...), nil
}

// pathComponents splits a recorded path into the components `patch -pN`
// counts. A leading root ("/") and a leading "." are components of their
// own; repeated slashes and inner "." segments are not.
func pathComponents(recorded string) []string {
	normalized := filepath.ToSlash(recorded)
	segments := strings.Split(normalized, "/")
	components := make([]string, 0, len(segments)+1)
	if strings.HasPrefix(normalized, "/") {
		components = append(components, rootComponent)
	}
	for i, segment := range segments {
		if segment == "" || (segment == "." && i > 0) {
			continue
		}
		components = append(components, segment)
	}
	return components
}

// joinWithin joins components onto root and rejects results that leave root.
func joinWithin(root string, components []string) (string, bool) {
	candidate := filepath.Join(append([]string{root}, components...)...)
	rel, err := filepath.Rel(root, candidate)
	if err != nil {
		return "", false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return candidate, true
}
