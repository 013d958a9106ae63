package client_test

import (
	"path/filepath"
	"testing"
	"time"

	"src.jrpc.sh/pkg/client"
	. "src.jrpc.sh/pkg/prog/progtest"
	"src.jrpc.sh/pkg/server"
	"src.jrpc.sh/pkg/stream"
	"src.jrpc.sh/pkg/testutil"
)

func TestRequest_BadCLI(t *testing.T) {
	Test(t, client.RequestProgram{},
		ThatJrpc("request").
			ExitsWith(2).
			WritesStderrContaining("usage: request REMOTE METHOD PARAMS"),
		ThatJrpc("request", "unix:sock", "echo").
			ExitsWith(2).
			WritesStderrContaining("usage: request REMOTE METHOD PARAMS"),
	)
}

func TestRequest_RejectsParamsBeforeConnecting(t *testing.T) {
	// None of these targets exist; failing with a params error proves the
	// message was rejected before any dialing happened.
	Test(t, client.RequestProgram{},
		ThatJrpc("request", "unix:no-such-sock", "echo", "not json").
			ExitsWith(2).
			WritesStderrContaining(`"not json": invalid character`),
		ThatJrpc("request", "unix:no-such-sock", "echo", `{"a":1}`).
			ExitsWith(2).
			WritesStderrContaining("not a valid JSON-RPC request: params must be a JSON array"),
	)
}

func TestNotify_RejectsParamsBeforeConnecting(t *testing.T) {
	Test(t, client.NotifyProgram{},
		ThatJrpc("notify", "unix:no-such-sock", "shutdown", "42").
			ExitsWith(2).
			WritesStderrContaining("not a valid JSON-RPC notification: params must be a JSON array"),
	)
}

func TestRequest_CannotConnect(t *testing.T) {
	testutil.InTempDir(t)
	Test(t, client.RequestProgram{},
		ThatJrpc("request", "unix:no-such-sock", "echo", "[]").
			ExitsWith(2).
			WritesStderrContaining(`could not open "unix:no-such-sock"`),
	)
}

func TestRequest_RoundTrip(t *testing.T) {
	sock, _ := startServer(t)
	Test(t, client.RequestProgram{},
		ThatJrpc("request", "unix:"+sock, "echo", `[7,"x"]`).
			WritesStdoutContaining(`"result":[7,"x"]`),
		ThatJrpc("request", "unix:"+sock, "frobnicate", "[]").
			WritesStdoutContaining(`"error":{"error":"unknown method"}`),
	)
}

func TestNotify_ShutsDownServer(t *testing.T) {
	sock, exit := startServer(t)
	Test(t, client.NotifyProgram{},
		ThatJrpc("notify", "unix:"+sock, "shutdown", "[]").DoesNothing(),
	)
	select {
	case err := <-exit:
		if err != nil {
			t.Errorf("Serve returned %v, want nil", err)
		}
	case <-time.After(testutil.ScaledMs(5000)):
		t.Error("server did not exit after the shutdown notification")
	}
}

func startServer(t *testing.T) (string, <-chan error) {
	t.Helper()
	sock := filepath.Join(testutil.TempDir(t), "sock")
	ln, err := stream.Listen("punix:"+sock, nil)
	if err != nil {
		t.Fatal(err)
	}
	ready := make(chan struct{})
	exit := make(chan error, 1)
	go func() {
		exit <- server.Serve(ln, server.ServeOpts{Ready: ready})
	}()
	<-ready
	t.Cleanup(func() { ln.Close() })
	return sock, exit
}
