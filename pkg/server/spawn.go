package server

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"src.jrpc.sh/pkg/fsutil"
	"src.jrpc.sh/pkg/prog"
)

// SpawnConfig keeps configurations for spawning the detached server.
type SpawnConfig struct {
	// BinPath is the path to the jrpc binary itself, used when respawning.
	// If empty, it is automatically determined with os.Executable.
	BinPath string
	// Target is the passive target to listen on.
	Target string
	// RunDir is the directory in which to place the server's log file.
	RunDir string
	// Flags are forwarded to the spawned server where relevant.
	Flags *prog.Flags
}

// Spawn respawns the server in the background by invoking BinPath with the
// -detached flag, after resolving all paths to absolute ones. The server's
// log file is claimed in RunDir, and the stdout and stderr of the server
// are redirected to the log file.
//
// A suitable ProcAttr is chosen depending on the OS and makes sure that the
// server is detached from the current terminal, so that it is not affected
// by I/O or signals in the current terminal and keeps running after the
// current process quits.
func Spawn(cfg *SpawnConfig) error {
	binPath := cfg.BinPath
	if binPath == "" {
		bin, err := os.Executable()
		if err != nil {
			return errors.New("cannot find jrpc: " + err.Error())
		}
		binPath = bin
	}

	var pathError error
	abs := func(name string, path string) string {
		if pathError != nil {
			return ""
		}
		if path == "" {
			pathError = fmt.Errorf("%s is required for spawning the server", name)
			return ""
		}
		absPath, err := filepath.Abs(path)
		if err != nil {
			pathError = fmt.Errorf("cannot resolve %s to absolute path: %s", name, err)
		}
		return absPath
	}
	binPath = abs("BinPath", binPath)
	runDir := abs("RunDir", cfg.RunDir)
	// The spawned server has / as its working directory, so a filesystem
	// target must not be relative.
	target := cfg.Target
	if strings.HasPrefix(target, "punix:") {
		target = "punix:" + abs("socket path", strings.TrimPrefix(target, "punix:"))
	}
	if pathError != nil {
		return pathError
	}

	args := []string{binPath, "-detached"}
	if f := cfg.Flags; f != nil {
		appendFlag := func(name, value string) {
			if value != "" {
				args = append(args, name, value)
			}
		}
		appendFlag("-ca-cert", f.CACert)
		appendFlag("-bootstrap-ca-cert", f.BootstrapCACert)
		appendFlag("-cert", f.Cert)
		appendFlag("-key", f.Key)
	}
	args = append(args, "listen", target)

	out, err := fsutil.ClaimFile(runDir, "jrpc-*.log")
	if err != nil {
		return err
	}
	defer out.Close()

	// The server does not read any input; open DevNull and use it for
	// stdin. We could also just close the stdin, but on Unix that would
	// make the first file opened by the server take FD 0.
	in, err := os.OpenFile(os.DevNull, os.O_RDONLY, 0)
	if err != nil {
		in = os.Stdin
	} else {
		defer in.Close()
	}

	procattrs := procAttrForSpawn([]*os.File{in, out, out})
	_, err = os.StartProcess(binPath, args, procattrs)

	return err
}
