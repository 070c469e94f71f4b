// Package remotepath implements the path algebra the session layer uses to
// keep its cached working directory in step with the server. Remote paths are
// always POSIX-style and '/'-separated, regardless of the local platform.
package remotepath

import (
	"path"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Root is the absolute root of the remote tree.
const Root = "/"

// ParentDir is the relative segment that moves one level up.
const ParentDir = ".."

// Separator separates segments in a remote path.
const Separator = "/"

// IsAbs reports whether p starts at the remote root.
func IsAbs(p string) bool {
	return strings.HasPrefix(p, Separator)
}

// IsRoot reports whether p names the root directory ("/" or "//" and friends).
func IsRoot(p string) bool {
	return p != "" && strings.Trim(p, Separator) == ""
}

// Equal compares two paths ignoring a trailing separator. "" and "/" are
// equal, matching servers that report an empty PWD at the root.
func Equal(a, b string) bool {
	return withTrailing(a) == withTrailing(b)
}

func withTrailing(p string) string {
	if !strings.HasSuffix(p, Separator) {
		return p + Separator
	}

	return p
}

// Split separates p into its parent portion and leaf name. Trailing
// separators are ignored. A single-segment relative path has an empty
// parent; a single-segment absolute path has parent "/".
//
//	Split("/a/b/c") = ("/a/b", "c")
//	Split("/a")     = ("/", "a")
//	Split("a/b")    = ("a", "b")
//	Split("a")      = ("", "a")
func Split(p string) (parent, leaf string) {
	if IsRoot(p) {
		return "", Root
	}

	trimmed := strings.TrimRight(p, Separator)

	idx := strings.LastIndex(trimmed, Separator)
	if idx < 0 {
		return "", trimmed
	}

	if idx == 0 {
		return Root, trimmed[1:]
	}

	return trimmed[:idx], trimmed[idx+1:]
}

// Segments breaks p into the ordered steps a directory walk takes. An
// absolute path starts with the Root segment. Empty segments are dropped and
// the remaining ones are trimmed of surrounding whitespace.
//
//	Segments("/a/b/") = ["/", "a", "b"]
//	Segments("a//b")  = ["a", "b"]
func Segments(p string) []string {
	var segs []string

	if IsAbs(p) {
		segs = append(segs, Root)
		p = strings.TrimLeft(p, Separator)
	}

	for _, s := range strings.Split(p, Separator) {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}

		segs = append(segs, s)
	}

	return segs
}

// Parent returns the directory containing p. The parent of the root is the
// root.
func Parent(p string) string {
	if IsRoot(p) || p == "" {
		return Root
	}

	parent, _ := Split(p)
	if parent == "" {
		return Root
	}

	return parent
}

// Resolve computes where a CWD to target leaves a client whose working
// directory is cwd. Absolute targets replace cwd outright; ".." drops the
// last segment (a no-op at root); anything else is appended. Relative
// targets with several segments, including "../..", follow path.Join rules,
// so the result is always absolute and clean.
func Resolve(cwd, target string) string {
	if IsAbs(target) {
		return path.Clean(target)
	}

	if target == ParentDir {
		return Parent(cwd)
	}

	return path.Join(Root, cwd, target)
}

// Join appends name to dir without cleaning either side.
func Join(dir, name string) string {
	if dir == "" {
		return name
	}

	if strings.HasSuffix(dir, Separator) {
		return dir + name
	}

	return dir + Separator + name
}

// Normalize trims surrounding whitespace and converts p to NFC so that
// names typed on macOS terminals (which may arrive decomposed) match the
// names the server lists.
func Normalize(p string) string {
	return norm.NFC.String(strings.TrimSpace(p))
}
