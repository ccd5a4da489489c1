// Package args implements the argument model shared by every wrapper: an ordered,
// duplicate-preserving sequence of command-line tokens, plus the helpers the pipeline
// and wrappers need (joining, extension/basename extraction, response-file expansion).
package args

import (
	"path/filepath"
	"strings"
)

// A List is an ordered sequence of command-line tokens. Order and duplicates are
// significant: two Lists are equal iff they have the same tokens in the same order.
type List []string

// Equal reports whether two argument lists are identical, token for token.
func (l List) Equal(other List) bool {
	if len(l) != len(other) {
		return false
	}
	for i, a := range l {
		if a != other[i] {
			return false
		}
	}
	return true
}

// Join concatenates the tokens with sep between them.
func (l List) Join(sep string) string {
	return strings.Join(l, sep)
}

// Basename returns the base name (no directory component) of the first token,
// i.e. the executable name as invoked. Returns "" for an empty list.
func (l List) Basename() string {
	if len(l) == 0 {
		return ""
	}
	return filepath.Base(l[0])
}

// Extension returns the filename extension (including the leading dot) of the
// given token, e.g. Extension("foo/bar.cpp") == ".cpp".
func Extension(arg string) string {
	return filepath.Ext(arg)
}

// Clone returns an independent copy of the list.
func (l List) Clone() List {
	out := make(List, len(l))
	copy(out, l)
	return out
}

// Append returns a new list with the given tokens appended. It does not mutate l.
func (l List) Append(tokens ...string) List {
	out := make(List, 0, len(l)+len(tokens))
	out = append(out, l...)
	out = append(out, tokens...)
	return out
}
