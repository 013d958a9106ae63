// Command jrpc is a minimal JSON-RPC endpoint. It either serves many
// concurrent peers on a single thread of control (the listen command), or
// issues a single request or notification and exits (the request and notify
// commands).
package main

import (
	"os"

	"src.jrpc.sh/pkg/buildinfo"
	"src.jrpc.sh/pkg/client"
	"src.jrpc.sh/pkg/prog"
	"src.jrpc.sh/pkg/server"
)

func main() {
	os.Exit(prog.Run(
		[3]*os.File{os.Stdin, os.Stdout, os.Stderr}, os.Args,
		prog.Composite(
			buildinfo.Program, server.Program{},
			client.RequestProgram{}, client.NotifyProgram{})))
}
