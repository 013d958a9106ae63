// Package buildinfo contains build information.
package buildinfo

import (
	"fmt"
	"os"

	"src.jrpc.sh/pkg/prog"
)

// Version identifies the version of jrpc.
const Version = "0.1.0"

// Program is the subprogram that handles the -version flag.
var Program prog.Program = program{}

type program struct{}

func (program) Run(fds [3]*os.File, f *prog.Flags, _ []string) error {
	if !f.Version {
		return prog.ErrNotSuitable
	}
	fmt.Fprintln(fds[1], Version)
	return nil
}
