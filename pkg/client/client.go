// Package client implements the one-shot request and notify subprograms.
//
// Both build a single message, validate it before touching the network,
// open the target stream synchronously and send the message. The request
// subprogram additionally blocks for exactly one reply and prints it as
// canonical JSON.
package client

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"

	"src.jrpc.sh/pkg/jsonrpc"
	"src.jrpc.sh/pkg/logutil"
	"src.jrpc.sh/pkg/prog"
	"src.jrpc.sh/pkg/stream"
)

var logger = logutil.GetLogger("[client] ")

// RequestProgram is the request subprogram.
type RequestProgram struct{}

func (RequestProgram) Run(fds [3]*os.File, f *prog.Flags, args []string) error {
	if len(args) == 0 || args[0] != "request" {
		return prog.ErrNotSuitable
	}
	if len(args) != 4 {
		return prog.BadUsage("usage: request REMOTE METHOD PARAMS")
	}
	target, method := args[1], args[2]

	params, err := parseParams(args[3])
	if err != nil {
		return err
	}
	msg := jsonrpc.NewRequest(method, params)
	if err := msg.Valid(); err != nil {
		return fmt.Errorf("not a valid JSON-RPC request: %v", err)
	}

	conn, err := open(target, f)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.Send(msg); err != nil {
		return fmt.Errorf("could not send request: %v", err)
	}
	reply, err := conn.Recv()
	if err != nil {
		return fmt.Errorf("error waiting for reply: %v", err)
	}

	indent := ""
	if isatty.IsTerminal(fds[1].Fd()) {
		indent = "  "
	}
	text, err := reply.Canonical(indent)
	if err != nil {
		return err
	}
	fmt.Fprintln(fds[1], text)
	return nil
}

// NotifyProgram is the notify subprogram.
type NotifyProgram struct{}

func (NotifyProgram) Run(fds [3]*os.File, f *prog.Flags, args []string) error {
	if len(args) == 0 || args[0] != "notify" {
		return prog.ErrNotSuitable
	}
	if len(args) != 4 {
		return prog.BadUsage("usage: notify REMOTE METHOD PARAMS")
	}
	target, method := args[1], args[2]

	params, err := parseParams(args[3])
	if err != nil {
		return err
	}
	msg := jsonrpc.NewNotification(method, params)
	if err := msg.Valid(); err != nil {
		return fmt.Errorf("not a valid JSON-RPC notification: %v", err)
	}

	conn, err := open(target, f)
	if err != nil {
		return err
	}
	defer conn.Close()

	// No reply is ever expected for a notification; send and leave.
	if err := conn.Send(msg); err != nil {
		return fmt.Errorf("could not send notification: %v", err)
	}
	return nil
}

// parseParams parses a caller-supplied JSON text. It happens before any
// connection is opened, so malformed input fails fast.
func parseParams(text string) (json.RawMessage, error) {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, fmt.Errorf("%q: %v", text, err)
	}
	return json.RawMessage(text), nil
}

func open(target string, f *prog.Flags) (*jsonrpc.Conn, error) {
	s, err := stream.Dial(target, stream.ConfigFromFlags(f))
	if err != nil {
		return nil, fmt.Errorf("could not open %q: %v", target, err)
	}
	logger.Printf("connected to %s", s.RemoteAddr())
	return jsonrpc.NewConn(s), nil
}
