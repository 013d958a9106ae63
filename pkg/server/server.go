// Package server implements the multiplexing server subprogram.
//
// The server is a single-threaded reactor: one goroutine owns the pool of
// connections and repeats accept step, service pass, termination check and
// an aggregated wait for progress. Each service pass dispatches at most one
// inbound message per connection, and only on connections whose outbound
// backlog has drained, so a peer that does not read its replies cannot make
// the server queue more of them.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"

	"src.jrpc.sh/pkg/jsonrpc"
	"src.jrpc.sh/pkg/logutil"
	"src.jrpc.sh/pkg/prog"
	"src.jrpc.sh/pkg/stream"
)

var logger = logutil.GetLogger("[server] ")

// Program is the listen subprogram.
type Program struct{}

func (Program) Run(fds [3]*os.File, f *prog.Flags, args []string) error {
	if len(args) == 0 || args[0] != "listen" {
		return prog.ErrNotSuitable
	}
	if len(args) != 2 {
		return prog.BadUsage("usage: listen LOCAL")
	}
	target := args[1]

	if f.Detach {
		return Spawn(&SpawnConfig{Target: target, RunDir: f.RunDir, Flags: f})
	}
	if f.Detached {
		setUmaskForDetached()
	}

	ln, err := stream.Listen(target, stream.ConfigFromFlags(f))
	if err != nil {
		return fmt.Errorf("could not listen on %q: %v", target, err)
	}
	return Serve(ln, ServeOpts{})
}

// ServeOpts keeps options that can be passed to Serve.
type ServeOpts struct {
	// If not nil, will be closed when the server is ready to serve peers.
	Ready chan<- struct{}
}

// Serve accepts and serves JSON-RPC peers from ln until a "shutdown"
// notification has been received and every connection is gone, then returns
// nil. Existing peers are allowed to keep issuing requests after the
// shutdown notification; the server never disconnects them itself.
//
// A broken listening socket is fatal: all connections are closed and the
// accept error is returned.
func Serve(ln net.Listener, opts ServeOpts) error {
	logger.Println("pid is", os.Getpid())
	logger.Println("listening on", ln.Addr())

	// Every source of progress pings this coalescing channel after
	// committing its state, so blocking on it between passes cannot miss a
	// wakeup.
	wakeCh := make(chan struct{}, 1)
	wake := func() {
		select {
		case wakeCh <- struct{}{}:
		default:
		}
	}

	// The acceptor blocks in Accept and hands streams over one at a time.
	// It re-arms the wakeup after every handoff, so a burst of connections
	// is absorbed across consecutive passes without losing one.
	streamCh := make(chan net.Conn, 1)
	acceptErrCh := make(chan error, 1)
	go func() {
		for {
			s, err := ln.Accept()
			if err != nil {
				acceptErrCh <- err
				wake()
				return
			}
			streamCh <- s
			wake()
		}
	}()

	if opts.Ready != nil {
		close(opts.Ready)
	}

	var pool []*conn
	done := false
	for {
		// Accept at most one pending connection, appending it to the end
		// of the pool.
		select {
		case s := <-streamCh:
			pool = append(pool, newConn(s, wake))
			logger.Println("accepted connection from", s.RemoteAddr())
		case err := <-acceptErrCh:
			// The listening socket is broken; no recovery is possible.
			logger.Printf("accept failed: %v", err)
			for _, c := range pool {
				c.close()
			}
			ln.Close()
			return fmt.Errorf("accept failed: %v", err)
		default:
		}

		pool = servicePass(pool, &done)

		if done && len(pool) == 0 {
			break
		}
		<-wakeCh
	}

	logger.Println("shut down with no remaining connections")
	if err := ln.Close(); err != nil {
		logger.Printf("failed to close listener: %v", err)
	}
	// Ensure that the acceptor goroutine has exited before returning.
	for {
		select {
		case s := <-streamCh:
			s.Close()
		case <-acceptErrCh:
			return nil
		}
	}
}

// servicePass services every connection in the pool once, in order:
// dispatching at most one inbound message on connections whose backlog is
// empty, then closing and evicting connections that have become errored.
// It returns the surviving pool, with the relative order of survivors
// preserved.
func servicePass(pool []*conn, done *bool) []*conn {
	for i := 0; i < len(pool); {
		c := pool[i]
		if c.backlogLen() == 0 {
			if msg, ok := c.poll(); ok {
				handle(c, msg, done)
			}
		}
		if err := c.status(); err != nil {
			c.close()
			logger.Printf("connection closed: %v", err)
			pool = append(pool[:i], pool[i+1:]...)
		} else {
			i++
		}
	}
	return pool
}

// Connection-level error classes signalled by the dispatcher. They poison
// the offending connection, which the next status check evicts; the rest of
// the pool is unaffected.
var (
	errIllegalNotification = errors.New("illegal notification")
	errUnsolicited         = errors.New("unsolicited JSON-RPC reply or error")
)

var unknownMethodError = json.RawMessage(`{"error":"unknown method"}`)

// handle dispatches one inbound message on behalf of c, enqueueing at most
// one reply and possibly setting the shutdown flag.
func handle(c *conn, msg *jsonrpc.Msg, done *bool) {
	switch msg.Kind {
	case jsonrpc.Request:
		if msg.Method == "echo" {
			params := append(json.RawMessage(nil), msg.Params...)
			c.send(jsonrpc.NewReply(params, msg.ID))
		} else {
			logger.Printf("unknown request %s", msg.Method)
			c.send(jsonrpc.NewError(unknownMethodError, msg.ID))
		}
	case jsonrpc.Notification:
		if msg.Method == "shutdown" {
			// Notifications never receive responses, so the flag flip is
			// the only effect.
			*done = true
		} else {
			logger.Printf("unknown notification %s", msg.Method)
			c.fail(errIllegalNotification)
		}
	case jsonrpc.Reply, jsonrpc.Error:
		// The server never sends requests, so there is nothing a reply
		// could answer.
		logger.Print(errUnsolicited)
		c.fail(errUnsolicited)
	}
}
