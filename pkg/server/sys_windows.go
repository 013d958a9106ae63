package server

import (
	"os"
	"syscall"
)

// No-op on Windows.
func setUmaskForDetached() {}

// A subset of possible process creation flags, values taken from
// https://msdn.microsoft.com/en-us/library/windows/desktop/ms684863(v=vs.85).aspx
const (
	createBreakawayFromJob = 0x01000000
	createNewProcessGroup  = 0x00000200
	detachedProcess        = 0x00000008
	spawnCreationFlags     = createBreakawayFromJob | createNewProcessGroup | detachedProcess
)

func procAttrForSpawn(files []*os.File) *os.ProcAttr {
	return &os.ProcAttr{
		Dir:   `C:\`,
		Env:   []string{"SystemRoot=" + os.Getenv("SystemRoot")}, // SystemRoot is needed for net.Listen for some reason
		Files: files,
		Sys:   &syscall.SysProcAttr{CreationFlags: spawnCreationFlags},
	}
}
