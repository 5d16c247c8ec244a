// Package jsonrpc implements the wire envelope layer: JSON-RPC 2.0
// messages encoded one per newline-delimited line.
package jsonrpc

import "encoding/json"

// Version is the JSON-RPC protocol version tag carried by every envelope.
const Version = "2.0"

// Request represents an inbound JSON-RPC request or notification.
// A request carries both a method and an id; a notification carries a
// method and no id.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request has no id.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0
}

// IsRequest reports whether the message is a well-formed request
// (method and id both present).
func (r *Request) IsRequest() bool {
	return r.Method != "" && len(r.ID) > 0
}

// Response represents an outbound JSON-RPC response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Notification represents an outbound JSON-RPC notification
// (no id, no response expected).
type Notification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// NewResponse creates a successful response for the given request id.
func NewResponse(id json.RawMessage, result any) *Response {
	return &Response{
		JSONRPC: Version,
		ID:      id,
		Result:  result,
	}
}

// NewErrorResponse creates an error response for the given request id.
func NewErrorResponse(id json.RawMessage, err *Error) *Response {
	return &Response{
		JSONRPC: Version,
		ID:      id,
		Error:   err,
	}
}

// Encode marshals a message and appends the line terminator.
func Encode(msg any) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Decode parses one wire line into a Request. The caller classifies the
// result as request or notification via IsRequest/IsNotification.
func Decode(line []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return nil, err
	}
	return &req, nil
}
