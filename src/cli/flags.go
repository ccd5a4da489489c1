package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/thought-machine/go-flags"
)

// ParseFlags parses appname's own flags out of args, in the same style as the teacher's
// src/output/flags.go: a named parser is built over data, and anything the parser doesn't
// consume is returned as extraArgs rather than treated as an error. bcache passes
// flags.PassAfterNonOption so that once it reaches the wrapped tool's name, everything from
// there on — including further "-" prefixed tokens — is left alone as extraArgs instead of
// being interpreted as bcache's own options.
func ParseFlags(appname string, data interface{}, args []string) (*flags.Parser, []string, error) {
	parser := flags.NewNamedParser(filepath.Base(appname), flags.HelpFlag|flags.PassDoubleDash|flags.PassAfterNonOption)
	if _, err := parser.AddGroup(appname+" options", "", data); err != nil {
		return parser, nil, err
	}
	extraArgs, err := parser.ParseArgs(args)
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			fmt.Printf("%s\n", err)
			os.Exit(0)
		}
		return parser, extraArgs, err
	}
	return parser, extraArgs, nil
}
