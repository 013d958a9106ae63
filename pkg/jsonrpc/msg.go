// Package jsonrpc implements the JSON-RPC 1.0 message model and a framed
// codec over byte streams, as used by both the multiplexing server and the
// one-shot clients.
//
// A message is one self-delimited JSON value on the wire, and is one of four
// kinds: a request (method, params and a non-null id), a notification
// (method and params, no id), a reply (result and id) or an error (error
// object and id). Members with no value are omitted rather than set to null.
package jsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
)

// Kind identifies the kind of a Msg.
type Kind int

// Possible values for Kind.
const (
	Request Kind = iota
	Notification
	Reply
	Error
)

// String returns the conventional name of a message kind.
func (k Kind) String() string {
	switch k {
	case Request:
		return "request"
	case Notification:
		return "notification"
	case Reply:
		return "reply"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("bad kind %d", int(k))
	}
}

// Msg is a decoded JSON-RPC message. Kind determines which of the remaining
// fields are meaningful; fields that are absent on the wire are nil.
type Msg struct {
	Kind   Kind
	Method string
	Params json.RawMessage
	ID     json.RawMessage
	Result json.RawMessage
	Error  json.RawMessage
}

// nextID is the source of request ids; see NewRequest.
var nextID int64

// NewRequest creates a request message with a freshly generated id.
func NewRequest(method string, params json.RawMessage) *Msg {
	id := strconv.FormatInt(atomic.AddInt64(&nextID, 1)-1, 10)
	return &Msg{Kind: Request, Method: method, Params: params, ID: json.RawMessage(id)}
}

// NewNotification creates a notification message.
func NewNotification(method string, params json.RawMessage) *Msg {
	return &Msg{Kind: Notification, Method: method, Params: params}
}

// NewReply creates a reply to the request identified by id.
func NewReply(result, id json.RawMessage) *Msg {
	return &Msg{Kind: Reply, Result: result, ID: id}
}

// NewError creates an error reply to the request identified by id.
func NewError(errObj, id json.RawMessage) *Msg {
	return &Msg{Kind: Error, Error: errObj, ID: id}
}

// wireMsg is the wire representation of Msg. Pointer and RawMessage fields
// distinguish absent members from null ones.
type wireMsg struct {
	Method *string         `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  json.RawMessage `json:"error,omitempty"`
	ID     json.RawMessage `json:"id,omitempty"`
}

// MarshalJSON marshals the message into its wire form.
func (m *Msg) MarshalJSON() ([]byte, error) {
	var w wireMsg
	switch m.Kind {
	case Request:
		w.Method = &m.Method
		w.Params = m.Params
		w.ID = m.ID
	case Notification:
		w.Method = &m.Method
		w.Params = m.Params
	case Reply:
		w.Result = m.Result
		w.ID = m.ID
	case Error:
		w.Error = m.Error
		w.ID = m.ID
	default:
		return nil, fmt.Errorf("cannot marshal message of %s", m.Kind)
	}
	return json.Marshal(&w)
}

// UnmarshalJSON unmarshals a message from its wire form, classifying its
// kind. Messages that fit none of the four shapes yield an error.
func (m *Msg) UnmarshalJSON(data []byte) error {
	var w wireMsg
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch {
	case w.Method != nil:
		m.Method = *w.Method
		m.Params = w.Params
		if isPresent(w.ID) {
			m.Kind = Request
			m.ID = w.ID
		} else {
			m.Kind = Notification
		}
	case isPresent(w.Error):
		m.Kind = Error
		m.Error = w.Error
		m.ID = w.ID
	case len(w.Result) > 0:
		m.Kind = Reply
		m.Result = w.Result
		m.ID = w.ID
	default:
		return errors.New("invalid JSON-RPC message: no method, result or error")
	}
	return nil
}

// isPresent reports whether a raw member is present and not null.
func isPresent(raw json.RawMessage) bool {
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}

// Valid checks the message for structural well-formedness, returning a
// descriptive error if it is invalid.
func (m *Msg) Valid() error {
	switch m.Kind {
	case Request:
		if m.Method == "" {
			return errors.New("request must have a method")
		}
		if !isPresent(m.ID) {
			return errors.New("request must have an id")
		}
		return validParams(m.Params)
	case Notification:
		if m.Method == "" {
			return errors.New("notification must have a method")
		}
		return validParams(m.Params)
	case Reply:
		if !isPresent(m.ID) {
			return errors.New("reply must have an id")
		}
		return nil
	case Error:
		return nil
	default:
		return fmt.Errorf("message has %s", m.Kind)
	}
}

func validParams(params json.RawMessage) error {
	trimmed := bytes.TrimLeft(params, " \t\r\n")
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return errors.New("params must be a JSON array")
	}
	return nil
}

// Canonical returns the canonical JSON text of the message: members with no
// value are omitted and object keys appear in sorted order. If indent is
// non-empty, the text is pretty-printed with it as the unit of indentation.
func (m *Msg) Canonical(indent string) (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	// Round-trip through any, so that objects become maps, which
	// encoding/json marshals with sorted keys. UseNumber keeps the original
	// digits of integers too large for float64.
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return "", err
	}
	if indent != "" {
		data, err = json.MarshalIndent(v, "", indent)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}
