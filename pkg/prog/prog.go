// Package prog provides the entry point to jrpc. Other packages implement
// the actual subprograms: the multiplexing server and the one-shot clients.
package prog

// This package sets up the basic environment, parses the flags shared by all
// subprograms and calls the appropriate subprogram.

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"src.jrpc.sh/pkg/logutil"
)

// Flags keeps command-line flags.
type Flags struct {
	Log     string
	Verbose bool

	Help, Version bool

	Detach   bool
	Detached bool
	RunDir   string

	CACert, BootstrapCACert, Cert, Key string
}

func newFlagSet(f *Flags) *flag.FlagSet {
	fs := flag.NewFlagSet("jrpc", flag.ContinueOnError)
	// Error and usage will be printed explicitly.
	fs.SetOutput(io.Discard)

	fs.StringVar(&f.Log, "log", "", "a file to write debug log to")
	fs.BoolVar(&f.Verbose, "v", false, "write debug log to stderr")

	fs.BoolVar(&f.Help, "help", false, "show usage help and quit")
	fs.BoolVar(&f.Version, "version", false, "show version and quit")

	fs.BoolVar(&f.Detach, "d", false, "with listen, run the server detached from the terminal")
	fs.StringVar(&f.RunDir, "run-dir", ".", "directory in which to claim the detached server's log file")
	fs.BoolVar(&f.Detached, "detached", false, "[internal flag] run as the detached server, logging to stdout")

	fs.StringVar(&f.CACert, "ca-cert", "", "CA certificate for verifying ssl: peers")
	fs.StringVar(&f.BootstrapCACert, "bootstrap-ca-cert", "",
		"like -ca-cert, but accept and save the peer's certificate if the file does not exist")
	fs.StringVar(&f.Cert, "cert", "", "certificate to present to ssl: peers")
	fs.StringVar(&f.Key, "key", "", "private key for -cert")

	return fs
}

func usage(out io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(out, "Usage: jrpc [flags] COMMAND [ARG...]")
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  listen LOCAL                  listen for connections on LOCAL")
	fmt.Fprintln(out, "  request REMOTE METHOD PARAMS  send a request, print the reply")
	fmt.Fprintln(out, "  notify REMOTE METHOD PARAMS   send a notification and exit")
	fmt.Fprintln(out, "  help                          show this message")
	fmt.Fprintln(out, "Supported flags:")
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// Run parses command-line flags and runs the first applicable subprogram. It
// returns the exit status of the program.
func Run(fds [3]*os.File, args []string, p Program) int {
	f := &Flags{}
	fs := newFlagSet(f)
	err := fs.Parse(args[1:])
	if err != nil {
		if err == flag.ErrHelp {
			// (*flag.FlagSet).Parse returns ErrHelp when -h or -help was
			// requested but *not* defined. Jrpc defines -help, but not -h; so
			// this means that -h has been requested. Handle this by printing
			// the same message as an undefined flag.
			fmt.Fprintln(fds[2], "flag provided but not defined: -h")
		} else {
			fmt.Fprintln(fds[2], err)
		}
		usage(fds[2], fs)
		return 2
	}

	if f.Detached {
		// The stdout is redirected to a unique log file (see Spawn in
		// pkg/server), so just use it for logging.
		logutil.SetOutput(fds[1])
	} else if f.Log != "" {
		err = logutil.SetOutputFile(f.Log)
		if err != nil {
			fmt.Fprintln(fds[2], err)
		}
	} else if f.Verbose {
		logutil.SetOutput(fds[2])
	}

	rest := fs.Args()
	if f.Help || (len(rest) > 0 && rest[0] == "help") {
		usage(fds[1], fs)
		return 0
	}

	err = p.Run(fds, f, rest)
	if err == nil {
		return 0
	}
	if err == ErrNotSuitable {
		if len(rest) == 0 {
			fmt.Fprintln(fds[2], "no command specified")
		} else {
			fmt.Fprintf(fds[2], "unknown command %q\n", rest[0])
		}
		usage(fds[2], fs)
		return 2
	}
	if msg := err.Error(); msg != "" {
		fmt.Fprintln(fds[2], msg)
	}
	switch err := err.(type) {
	case badUsageError:
		usage(fds[2], fs)
	case exitError:
		return err.exit
	}
	return 2
}

// Composite returns a Program that tries each of the given programs,
// terminating at the first one that doesn't return ErrNotSuitable.
func Composite(programs ...Program) Program {
	return compositeProgram(programs)
}

type compositeProgram []Program

func (cp compositeProgram) Run(fds [3]*os.File, f *Flags, args []string) error {
	for _, p := range cp {
		err := p.Run(fds, f, args)
		if err != ErrNotSuitable {
			return err
		}
	}
	// If we have reached here, all subprograms have returned ErrNotSuitable.
	return ErrNotSuitable
}

// ErrNotSuitable is a special error that may be returned by Program.Run, to
// signify that this Program should not be run. It is useful when a Program is
// used in Composite.
var ErrNotSuitable = errors.New("internal error: no suitable subprogram")

// BadUsage returns a special error that may be returned by Program.Run. It
// causes the main function to print out a message, the usage information and
// exit with 2.
func BadUsage(msg string) error { return badUsageError{msg} }

type badUsageError struct{ msg string }

func (e badUsageError) Error() string { return e.msg }

// Exit returns a special error that may be returned by Program.Run. It causes
// the main function to exit with the given code without printing any error
// messages. Exit(0) returns nil.
func Exit(exit int) error {
	if exit == 0 {
		return nil
	}
	return exitError{exit}
}

type exitError struct{ exit int }

func (e exitError) Error() string { return "" }

// Program represents a subprogram.
type Program interface {
	// Run runs the subprogram.
	Run(fds [3]*os.File, f *Flags, args []string) error
}
