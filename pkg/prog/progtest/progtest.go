// Package progtest provides utilities for testing subprograms.
//
// The entry point is Test, which runs a subprogram against Case instances
// built with ThatJrpc, capturing its output and exit status.
package progtest

import (
	"fmt"
	"os"
	"strings"
	"testing"

	"src.jrpc.sh/pkg/must"
	"src.jrpc.sh/pkg/prog"
)

// Case is a test case for Test.
type Case struct {
	args []string
	want result
}

type result struct {
	exit   int
	stdout output
	stderr output
}

type output struct {
	content string
	partial bool
}

func (o output) String() string {
	if o.partial {
		return fmt.Sprintf("text containing %q", o.content)
	}
	return fmt.Sprintf("text %q", o.content)
}

// ThatJrpc returns a new Case with the given command-line arguments.
func ThatJrpc(args ...string) Case {
	return Case{args: append([]string{"jrpc"}, args...)}
}

// DoesNothing returns c itself. It is useful to mark cases that otherwise
// require no special conditions.
func (c Case) DoesNothing() Case { return c }

// ExitsWith returns an altered Case that requires the program run to finish
// with the given exit code.
func (c Case) ExitsWith(code int) Case {
	c.want.exit = code
	return c
}

// WritesStdout returns an altered Case that requires the program run to
// produce exactly the given text on stdout.
func (c Case) WritesStdout(s string) Case {
	c.want.stdout = output{content: s}
	return c
}

// WritesStdoutContaining returns an altered Case that requires the program
// run to produce output on stdout containing the given text.
func (c Case) WritesStdoutContaining(s string) Case {
	c.want.stdout = output{content: s, partial: true}
	return c
}

// WritesStderr returns an altered Case that requires the program run to
// produce exactly the given text on stderr.
func (c Case) WritesStderr(s string) Case {
	c.want.stderr = output{content: s}
	return c
}

// WritesStderrContaining returns an altered Case that requires the program
// run to produce output on stderr containing the given text.
func (c Case) WritesStderrContaining(s string) Case {
	c.want.stderr = output{content: s, partial: true}
	return c
}

// Test runs test cases against a given program.
func Test(t *testing.T, p prog.Program, tests ...Case) {
	t.Helper()
	for _, test := range tests {
		t.Run(strings.Join(test.args[1:], " "), func(t *testing.T) {
			t.Helper()
			testOne(t, p, test)
		})
	}
}

func testOne(t *testing.T, p prog.Program, test Case) {
	t.Helper()
	exit, stdout, stderr := Run(p, test.args...)
	if exit != test.want.exit {
		t.Errorf("got exit code %v, want %v", exit, test.want.exit)
	}
	checkOutput(t, "stdout", stdout, test.want.stdout)
	checkOutput(t, "stderr", stderr, test.want.stderr)
}

func checkOutput(t *testing.T, name, got string, want output) {
	t.Helper()
	ok := got == want.content
	if want.partial {
		ok = strings.Contains(got, want.content)
	}
	if !ok {
		t.Errorf("got %s %q, want %s", name, got, want.String())
	}
}

// Run runs the program with the given command line (the first element being
// the program name), and returns its exit status and captured stdout and
// stderr.
func Run(p prog.Program, args ...string) (exit int, stdout, stderr string) {
	r0, w0 := must.Pipe()
	w0.Close()
	defer r0.Close()

	r1, w1 := must.Pipe()
	r2, w2 := must.Pipe()
	// Read the output concurrently, since the program may block when the
	// pipe buffer fills up.
	stdoutCh := readAsync(r1)
	stderrCh := readAsync(r2)

	exit = prog.Run([3]*os.File{r0, w1, w2}, args, p)
	w1.Close()
	w2.Close()
	return exit, <-stdoutCh, <-stderrCh
}

func readAsync(r *os.File) <-chan string {
	ch := make(chan string, 1)
	go func() {
		ch <- string(must.ReadAllAndClose(r))
	}()
	return ch
}
