//go:build plan9 || js

package server

import "os"

func setUmaskForDetached() {}

// Best effort; there is no real terminal detachment on these platforms.
func procAttrForSpawn(files []*os.File) *os.ProcAttr {
	return &os.ProcAttr{Files: files}
}
