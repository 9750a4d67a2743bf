// Package proto defines the messages exchanged between the relay, the
// browser extension it fronts, and downstream socket clients.
package proto

import "encoding/json"

// Envelope type discriminators used on the native-messaging channel.
const (
	TypeReady     = "ready"
	TypeConnected = "connected"
	TypePing      = "ping"
	TypePong      = "pong"
	TypeQuery     = "query"
	TypeResponse  = "response"
	TypeError     = "error"
)

// Envelope is one message on the native-messaging channel. Which fields are
// populated depends on Type: ready/error carry Message, query carries
// ID/Query/Variables/Endpoint, response carries ID/Success and Data or Error.
type Envelope struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Message   string          `json:"message,omitempty"`
	Query     string          `json:"query,omitempty"`
	Variables json.RawMessage `json:"variables,omitempty"`
	Endpoint  string          `json:"endpoint,omitempty"`
	Success   *bool           `json:"success,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     *ErrorDetail    `json:"error,omitempty"`

	// Raw holds the exact payload bytes the envelope was decoded from, so a
	// response can be relayed downstream without re-marshaling.
	Raw json.RawMessage `json:"-"`
}

// ErrorDetail carries a human-readable failure description.
type ErrorDetail struct {
	Message string `json:"message"`
}

// QueryRequest is what a downstream client submits over its connection.
type QueryRequest struct {
	ID        string          `json:"id,omitempty"`
	Query     string          `json:"query"`
	Variables json.RawMessage `json:"variables,omitempty"`
	Endpoint  string          `json:"endpoint,omitempty"`
}

// ErrorReply is written to a downstream client when its request fails before
// a response from the extension can be relayed.
type ErrorReply struct {
	Type    string       `json:"type,omitempty"`
	ID      string       `json:"id,omitempty"`
	Success bool         `json:"success"`
	Error   *ErrorDetail `json:"error"`
}

// NewQueryEnvelope builds the query envelope forwarded upstream for a client
// request. Variables default to an empty object so the extension always
// receives the field.
func NewQueryEnvelope(id string, req QueryRequest) *Envelope {
	vars := req.Variables
	if len(vars) == 0 {
		vars = json.RawMessage(`{}`)
	}
	return &Envelope{
		Type:      TypeQuery,
		ID:        id,
		Query:     req.Query,
		Variables: vars,
		Endpoint:  req.Endpoint,
	}
}
