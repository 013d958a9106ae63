//go:build !windows && !plan9 && !js

package server

import (
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// The detached server runs with a more restrictive umask, since its log and
// socket files are not meant to be shared.
func setUmaskForDetached() {
	unix.Umask(0077)
}

func procAttrForSpawn(files []*os.File) *os.ProcAttr {
	return &os.ProcAttr{
		Dir:   "/",
		Env:   []string{},
		Files: files,
		Sys: &syscall.SysProcAttr{
			Setsid: true, // detach from current terminal
		},
	}
}
