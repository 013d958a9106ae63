package server_test

import (
	"encoding/json"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"src.jrpc.sh/pkg/jsonrpc"
	"src.jrpc.sh/pkg/must"
	. "src.jrpc.sh/pkg/prog/progtest"
	"src.jrpc.sh/pkg/server"
	"src.jrpc.sh/pkg/stream"
	"src.jrpc.sh/pkg/testutil"
)

func TestServe_EchoRoundTrip(t *testing.T) {
	fix := startServer(t)
	client := fix.dial(t)

	params := raw(`[1,false,{"a":[2,null]}]`)
	msg := jsonrpc.NewRequest("echo", params)
	must.OK(client.Send(msg))

	reply := recv(t, client)
	if reply.Kind != jsonrpc.Reply {
		t.Fatalf("got %v, want reply", reply.Kind)
	}
	if string(reply.Result) != string(params) {
		t.Errorf("got result %s, want %s", reply.Result, params)
	}
	if string(reply.ID) != string(msg.ID) {
		t.Errorf("got id %s, want %s", reply.ID, msg.ID)
	}
}

func TestServe_UnknownMethodKeepsConnectionOpen(t *testing.T) {
	fix := startServer(t)
	client := fix.dial(t)

	must.OK(client.Send(jsonrpc.NewRequest("bogus", raw(`[]`))))
	reply := recv(t, client)
	if reply.Kind != jsonrpc.Error {
		t.Fatalf("got %v, want error", reply.Kind)
	}
	var errObj struct {
		Error string `json:"error"`
	}
	must.OK(json.Unmarshal(reply.Error, &errObj))
	if errObj.Error != "unknown method" {
		t.Errorf("got error %q, want %q", errObj.Error, "unknown method")
	}

	// The connection must survive an unknown method.
	must.OK(client.Send(jsonrpc.NewRequest("echo", raw(`[3]`))))
	reply = recv(t, client)
	if reply.Kind != jsonrpc.Reply || string(reply.Result) != `[3]` {
		t.Errorf("echo after unknown method -> (%v, %s), want reply [3]",
			reply.Kind, reply.Result)
	}
}

func TestServe_ShutdownWithNoPeers(t *testing.T) {
	fix := startServer(t)
	client := fix.dial(t)

	must.OK(client.Send(jsonrpc.NewNotification("shutdown", raw(`[]`))))
	client.Close()

	if err := fix.waitExit(t); err != nil {
		t.Errorf("Serve returned %v, want nil", err)
	}
}

func TestServe_ShutdownWaitsForPeers(t *testing.T) {
	fix := startServer(t)
	peers := []*jsonrpc.Conn{fix.dial(t), fix.dial(t), fix.dial(t)}

	notifier := fix.dial(t)
	must.OK(notifier.Send(jsonrpc.NewNotification("shutdown", raw(`[]`))))
	notifier.Close()

	// Existing peers are still served after the shutdown notification.
	for i, peer := range peers {
		must.OK(peer.Send(jsonrpc.NewRequest("echo", raw(`[]`))))
		if reply := recv(t, peer); reply.Kind != jsonrpc.Reply {
			t.Fatalf("peer %d got %v after shutdown, want reply", i, reply.Kind)
		}
	}

	peers[0].Close()
	peers[1].Close()
	select {
	case err := <-fix.exit:
		t.Fatalf("server exited (%v) while peers are still connected", err)
	case <-time.After(testutil.ScaledMs(50)):
	}

	peers[2].Close()
	if err := fix.waitExit(t); err != nil {
		t.Errorf("Serve returned %v, want nil", err)
	}
}

func TestServe_AcceptFailureIsFatal(t *testing.T) {
	fix := startServer(t)
	peer := fix.dial(t)

	fix.ln.Close()
	err := fix.waitExit(t)
	if err == nil || !strings.Contains(err.Error(), "accept failed") {
		t.Errorf("Serve returned %v, want an accept failure", err)
	}
	if _, err := peer.Recv(); err != io.EOF {
		t.Errorf("peer Recv -> %v, want io.EOF from the dying server", err)
	}
}

func TestServe_UnsolicitedReplyEvictsOnlySender(t *testing.T) {
	fix := startServer(t)
	offender := fix.dial(t)
	bystander := fix.dial(t)

	must.OK(offender.Send(jsonrpc.NewReply(raw(`[]`), raw(`42`))))
	if _, err := offender.Recv(); err != io.EOF {
		t.Errorf("offender's Recv -> %v, want io.EOF from eviction", err)
	}

	must.OK(bystander.Send(jsonrpc.NewRequest("echo", raw(`[4]`))))
	if reply := recv(t, bystander); reply.Kind != jsonrpc.Reply || string(reply.Result) != `[4]` {
		t.Errorf("bystander got (%v, %s), want reply [4]", reply.Kind, reply.Result)
	}
}

func TestProgram_BadCLI(t *testing.T) {
	testutil.InTempDir(t)
	Test(t, server.Program{},
		ThatJrpc("listen").
			ExitsWith(2).
			WritesStderrContaining("usage: listen LOCAL"),
		ThatJrpc("listen", "punix:sock", "extra").
			ExitsWith(2).
			WritesStderrContaining("usage: listen LOCAL"),
		ThatJrpc("listen", "bad-target").
			ExitsWith(2).
			WritesStderrContaining("could not listen on"),
	)
}

func TestProgram_TerminatesIfCannotListen(t *testing.T) {
	testutil.InTempDir(t)
	must.OK1(os.Create("sock")).Close()
	Test(t, server.Program{},
		ThatJrpc("listen", "punix:sock").
			ExitsWith(2).
			WritesStderrContaining("could not listen on"),
	)
}

type fixture struct {
	sock string
	ln   net.Listener
	exit chan error
}

func startServer(t *testing.T) *fixture {
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
	return &fixture{sock, ln, exit}
}

func (f *fixture) dial(t *testing.T) *jsonrpc.Conn {
	t.Helper()
	s, err := stream.Dial("unix:"+f.sock, nil)
	if err != nil {
		t.Fatal(err)
	}
	c := jsonrpc.NewConn(s)
	t.Cleanup(func() { c.Close() })
	return c
}

func (f *fixture) waitExit(t *testing.T) error {
	t.Helper()
	select {
	case err := <-f.exit:
		return err
	case <-time.After(testutil.ScaledMs(5000)):
		t.Fatal("timed out waiting for the server to exit")
		panic("unreachable")
	}
}

func recv(t *testing.T, c *jsonrpc.Conn) *jsonrpc.Msg {
	t.Helper()
	msgCh := make(chan *jsonrpc.Msg, 1)
	errCh := make(chan error, 1)
	go func() {
		msg, err := c.Recv()
		if err != nil {
			errCh <- err
			return
		}
		msgCh <- msg
	}()
	select {
	case msg := <-msgCh:
		return msg
	case err := <-errCh:
		t.Fatalf("Recv errors: %v", err)
	case <-time.After(testutil.ScaledMs(5000)):
		t.Fatal("timed out waiting for a message")
	}
	panic("unreachable")
}

func raw(s string) json.RawMessage { return json.RawMessage(s) }
