package args

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/shlex"
)

// maxResponseFileDepth bounds recursive @file expansion so a response file that (directly
// or indirectly) references itself fails closed instead of recursing forever.
const maxResponseFileDepth = 8

// ErrBadResponseFile is returned when a response file cannot be read or tokenized, or when
// expansion recurses too deeply (a cyclic reference).
type ErrBadResponseFile struct {
	Path string
	Err  error
}

func (e *ErrBadResponseFile) Error() string {
	return fmt.Sprintf("bad response file %s: %s", e.Path, e.Err)
}

func (e *ErrBadResponseFile) Unwrap() error {
	return e.Err
}

// ExpandResponseFiles resolves any "@path" token in args into the whitespace/shell-quoted
// tokens read from the named file, recursively. wrapper.Base.ResolveArgs does not call it;
// a wrapper that accepts @file arguments calls it from its own ResolveArgs.
func ExpandResponseFiles(argv List) (List, error) {
	return expandResponseFiles(argv, 0)
}

func expandResponseFiles(argv List, depth int) (List, error) {
	if depth > maxResponseFileDepth {
		return nil, &ErrBadResponseFile{Path: argv.Join(" "), Err: fmt.Errorf("response files nested too deeply (cycle?)")}
	}
	out := make(List, 0, len(argv))
	for _, arg := range argv {
		if !strings.HasPrefix(arg, "@") || len(arg) == 1 {
			out = append(out, arg)
			continue
		}
		path := arg[1:]
		contents, err := os.ReadFile(path)
		if err != nil {
			return nil, &ErrBadResponseFile{Path: path, Err: err}
		}
		tokens, err := shlex.Split(string(contents))
		if err != nil {
			return nil, &ErrBadResponseFile{Path: path, Err: err}
		}
		expanded, err := expandResponseFiles(List(tokens), depth+1)
		if err != nil {
			return nil, err
		}
		out = append(out, expanded...)
	}
	return out, nil
}
