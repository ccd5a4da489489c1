// Package files implements the expected-files table (spec C3): the set of paths a wrapper
// declares it expects the wrapped tool to produce, keyed by a role identifier such as
// "object" or "dependency-file". Cache insertion stores whatever exists at these paths after
// a miss; cache restoration writes back to them on a hit.
package files

import "sort"

// An ExpectedFile names one output the wrapped tool is expected to leave on disk. Role is
// a wrapper-defined identifier, not a filename — the same role always refers to the same
// kind of artifact across a program's invocations, which is what lets a cache entry recorded
// on one machine be replayed correctly on another where paths may differ in unrelated ways.
type ExpectedFile struct {
	Role     string
	Path     string
	Required bool
}

// A Table holds a set of ExpectedFiles, kept sorted by Role so that iteration order is
// stable regardless of insertion order — two wrapper invocations that declare the same
// roles always walk the table identically, so anything a wrapper derives from iterating it
// is reproducible.
type Table []ExpectedFile

// Add inserts f into the table at its sorted position. If an entry with the same Role
// already exists, it is replaced.
func (t *Table) Add(f ExpectedFile) {
	i := sort.Search(len(*t), func(i int) bool { return (*t)[i].Role >= f.Role })
	if i < len(*t) && (*t)[i].Role == f.Role {
		(*t)[i] = f
		return
	}
	*t = append(*t, ExpectedFile{})
	copy((*t)[i+1:], (*t)[i:])
	(*t)[i] = f
}

// Lookup returns the entry for role, if any.
func (t Table) Lookup(role string) (ExpectedFile, bool) {
	i := sort.Search(len(t), func(i int) bool { return t[i].Role >= role })
	if i < len(t) && t[i].Role == role {
		return t[i], true
	}
	return ExpectedFile{}, false
}

// Paths returns the Path of every entry, in table order.
func (t Table) Paths() []string {
	paths := make([]string, len(t))
	for i, f := range t {
		paths[i] = f.Path
	}
	return paths
}

// RequiredMissing returns the Role of every Required entry whose Path does not exist,
// using exists to test the filesystem so callers can substitute a fake in tests.
func (t Table) RequiredMissing(exists func(path string) bool) []string {
	var missing []string
	for _, f := range t {
		if f.Required && !exists(f.Path) {
			missing = append(missing, f.Role)
		}
	}
	return missing
}
