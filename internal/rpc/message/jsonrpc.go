// Package message defines the JSON-RPC 2.0 wire envelope used by the RPC
// peer: requests, responses, notifications, and the generic decode step a
// peer uses to classify an inbound message before dispatching it.
package message

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Version is written on outbound messages, but per the wire contract a peer
// never requires it on inbound ones — absence is tolerated.
const Version = "2.0"

// Request represents a JSON-RPC 2.0 request. If ID is nil, this is a
// notification and no response is expected.
type Request struct {
	JSONRPC string          `json:"jsonrpc,omitempty"`
	ID      *ID             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification returns true if this request carries no ID.
func (r *Request) IsNotification() bool {
	return r.ID == nil
}

// Response represents a JSON-RPC 2.0 response. Exactly one of Result or
// Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc,omitempty"`
	ID      *ID             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// IsError returns true if this response carries an error.
func (r *Response) IsError() bool {
	return r.Error != nil
}

// Notification represents a fire-and-forget message: no ID, no response.
type Notification struct {
	JSONRPC string          `json:"jsonrpc,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// ID is a JSON-RPC request/response identifier. The wire contract for this
// peer is numeric ids only (monotonically increasing positive integers per
// call), unlike wire dialects that also permit string ids.
type ID struct {
	value int64
}

// NumberID wraps an integer as an ID.
func NumberID(n int64) *ID {
	return &ID{value: n}
}

// Int64 returns the numeric value of the ID.
func (id *ID) Int64() int64 {
	if id == nil {
		return 0
	}
	return id.value
}

// String returns the ID rendered for logging.
func (id *ID) String() string {
	if id == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%d", id.value)
}

// Equal reports whether two IDs carry the same value.
func (id *ID) Equal(other *ID) bool {
	if id == nil || other == nil {
		return id == other
	}
	return id.value == other.value
}

// MarshalJSON implements json.Marshaler.
func (id *ID) MarshalJSON() ([]byte, error) {
	if id == nil {
		return []byte("null"), nil
	}
	return json.Marshal(id.value)
}

// UnmarshalJSON implements json.Unmarshaler. A non-numeric id is a protocol
// error surfaced by the caller, not a panic.
func (id *ID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		id.value = 0
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a number: %s", string(data))
	}
	id.value = n
	return nil
}

// NewRequest builds a Request, marshalling params if provided.
func NewRequest(id *ID, method string, params interface{}) (*Request, error) {
	req := &Request{JSONRPC: Version, ID: id, Method: method}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal params: %w", err)
		}
		req.Params = data
	}
	return req, nil
}

// NewNotification builds a Notification, marshalling params if provided.
func NewNotification(method string, params interface{}) (*Notification, error) {
	notif := &Notification{JSONRPC: Version, Method: method}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal params: %w", err)
		}
		notif.Params = data
	}
	return notif, nil
}

// NewSuccessResponse builds a successful Response. A nil result is encoded
// as a JSON null, so the response still carries a result.
func NewSuccessResponse(id *ID, result interface{}) (*Response, error) {
	resp := &Response{JSONRPC: Version, ID: id, Result: json.RawMessage("null")}
	if result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal result: %w", err)
		}
		resp.Result = data
	}
	return resp, nil
}

// NewErrorResponse builds an error Response.
func NewErrorResponse(id *ID, err *Error) *Response {
	return &Response{JSONRPC: Version, ID: id, Error: err}
}

// Envelope is the generic shape a peer classifies an inbound message into,
// before deciding whether it is a response, a request, or a notification.
// It deliberately does not distinguish those cases itself — that
// classification is the peer's dispatch responsibility (spec'd separately
// from the codec) — it only reports which fields were present on the wire.
type Envelope struct {
	ID        *ID
	Method    string
	Params    json.RawMessage
	Result    json.RawMessage
	Error     *Error
	HasID     bool
	HasMethod bool
	HasResult bool
	HasError  bool
}

// Decode parses a raw wire message into an Envelope. Malformed JSON and
// non-object top-level values are reported as a *Error, never as a panic or
// a returned Go error a caller might forget to check. A literal top-level
// "null" is not malformed JSON but carries no message at all; Decode
// reports that case by returning (nil, nil), distinct from every other
// envelope shape, so the caller can raise its own "message cannot be null"
// protocol error instead of misreporting it as an invalid message.
func Decode(data []byte) (*Envelope, *Error) {
	trimmed := bytes.TrimSpace(data)
	if string(trimmed) == "null" {
		return nil, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, ErrParseError(err.Error())
	}

	env := &Envelope{}

	if idRaw, ok := raw["id"]; ok && string(idRaw) != "null" {
		var id ID
		if err := json.Unmarshal(idRaw, &id); err != nil {
			return nil, ErrInvalidRequest(err.Error())
		}
		env.ID = &id
		env.HasID = true
	}

	if methodRaw, ok := raw["method"]; ok {
		var method string
		if err := json.Unmarshal(methodRaw, &method); err != nil {
			return nil, ErrInvalidRequest("method must be a string")
		}
		env.Method = method
		env.HasMethod = true
	}

	if paramsRaw, ok := raw["params"]; ok {
		env.Params = paramsRaw
	}

	if resultRaw, ok := raw["result"]; ok {
		env.Result = resultRaw
		env.HasResult = true
	}

	if errRaw, ok := raw["error"]; ok {
		var rpcErr Error
		if err := json.Unmarshal(errRaw, &rpcErr); err != nil {
			return nil, ErrInvalidRequest("error must be an object")
		}
		env.Error = &rpcErr
		env.HasError = true
	}

	return env, nil
}

// Encode serializes v to its wire representation.
func Encode(v interface{}) ([]byte, *Error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, ErrInternalError(err.Error())
	}
	return data, nil
}

// ParseRequest parses a JSON-RPC request from bytes, tolerating an absent
// "jsonrpc" tag.
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	if req.Method == "" {
		return nil, fmt.Errorf("missing method")
	}
	return &req, nil
}
