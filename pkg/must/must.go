// Package must contains simple functions that panic on errors.
//
// It should only be used in tests and rare places where errors are provably
// impossible.
package must

import (
	"io"
	"os"
)

// OK panics if the error value is not nil. It is intended for use with
// functions that return just an error.
func OK(err error) {
	if err != nil {
		panic(err)
	}
}

// OK1 panics if the error value is not nil. It is intended for use with
// functions that return one value and an error.
func OK1[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

// OK2 panics if the error value is not nil. It is intended for use with
// functions that return two values and an error.
func OK2[T1, T2 any](v1 T1, v2 T2, err error) (T1, T2) {
	if err != nil {
		panic(err)
	}
	return v1, v2
}

// Pipe wraps os.Pipe.
func Pipe() (*os.File, *os.File) {
	return OK2(os.Pipe())
}

// ReadAllAndClose wraps io.ReadAll and io.Closer.Close.
func ReadAllAndClose(r io.ReadCloser) []byte {
	v := OK1(io.ReadAll(r))
	OK(r.Close())
	return v
}
