package server

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"src.jrpc.sh/pkg/jsonrpc"
)

// conn wraps one accepted stream for use by the reactor loop. A reader and a
// writer goroutine perform the actual blocking I/O; the loop observes their
// progress through the backlog counter and the liveness status, and never
// blocks on a conn. Every state change is followed by a ping on the shared
// wake function, so the loop always observes it on its next pass.
type conn struct {
	codec *jsonrpc.Conn
	wake  func()

	// Inbound messages. The reader parks on this channel once it is full,
	// so inbound flow stops until the loop polls the buffered message.
	in chan *jsonrpc.Msg
	// Outbound messages, drained by the writer.
	out chan *jsonrpc.Msg
	// Number of messages enqueued but not yet flushed.
	backlog int64

	mu  sync.Mutex
	err error

	closeOnce sync.Once
	closed    chan struct{}
}

func newConn(rwc io.ReadWriteCloser, wake func()) *conn {
	c := &conn{
		codec:  jsonrpc.NewConn(rwc),
		wake:   wake,
		in:     make(chan *jsonrpc.Msg, 1),
		out:    make(chan *jsonrpc.Msg, 1),
		closed: make(chan struct{}),
	}
	go c.read()
	go c.write()
	return c
}

func (c *conn) read() {
	for {
		msg, err := c.codec.Recv()
		if err != nil {
			c.fail(err)
			return
		}
		select {
		case c.in <- msg:
		case <-c.closed:
			return
		}
		c.wake()
	}
}

func (c *conn) write() {
	for {
		select {
		case msg := <-c.out:
			if err := c.codec.Send(msg); err != nil {
				c.fail(err)
				return
			}
			if atomic.AddInt64(&c.backlog, -1) == 0 {
				c.wake()
			}
		case <-c.closed:
			return
		}
	}
}

// poll returns one buffered inbound message, if any. It never blocks.
func (c *conn) poll() (*jsonrpc.Msg, bool) {
	select {
	case msg := <-c.in:
		return msg, true
	default:
		return nil, false
	}
}

// send enqueues one outbound message. It never blocks: the service pass
// dispatches only on a conn with an empty backlog, which bounds the queue
// to one message.
func (c *conn) send(msg *jsonrpc.Msg) {
	atomic.AddInt64(&c.backlog, 1)
	select {
	case c.out <- msg:
	default:
		c.fail(errors.New("outbound queue full"))
	}
}

// backlogLen returns the number of enqueued-but-unflushed outbound messages.
func (c *conn) backlogLen() int64 {
	return atomic.LoadInt64(&c.backlog)
}

// fail records err as the liveness status. Only the first error sticks.
func (c *conn) fail(err error) {
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.mu.Unlock()
	c.wake()
}

// status returns nil if the conn is live, and its first error otherwise.
func (c *conn) status() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *conn) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.codec.Close()
	})
}
