package jsonrpc

import (
	"encoding/json"
	"fmt"
	"io"
)

// Conn exchanges JSON-RPC messages over a byte stream, one self-delimited
// JSON value per message. All methods block; the server wraps Conn in a
// polling layer and the one-shot clients use it directly.
//
// Send and Recv operate on independent halves of the stream and may be used
// concurrently with each other, but not with themselves.
type Conn struct {
	rwc io.ReadWriteCloser
	enc *json.Encoder
	dec *json.Decoder
}

// NewConn creates a Conn over a byte stream.
func NewConn(rwc io.ReadWriteCloser) *Conn {
	return &Conn{rwc: rwc, enc: json.NewEncoder(rwc), dec: json.NewDecoder(rwc)}
}

// Send marshals a message and writes it to the stream, blocking until the
// message is fully flushed.
func (c *Conn) Send(m *Msg) error {
	return c.enc.Encode(m)
}

// Recv blocks until one complete message arrives and returns it. It returns
// io.EOF if the peer closes the stream cleanly, and a descriptive error if
// the incoming value is not a structurally valid message.
func (c *Conn) Recv() (*Msg, error) {
	var m Msg
	if err := c.dec.Decode(&m); err != nil {
		return nil, err
	}
	if err := m.Valid(); err != nil {
		return nil, fmt.Errorf("invalid JSON-RPC message: %v", err)
	}
	return &m, nil
}

// Close closes the underlying stream.
func (c *Conn) Close() error {
	return c.rwc.Close()
}
