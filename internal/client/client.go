// Package client implements the downstream side of the relay protocol: open
// a TCP connection, submit one JSON request, read one JSON response.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/google/uuid"

	"github.com/gqlrelay/gqlrelay/internal/proto"
)

// Result is the parsed reply to a submitted query. Raw holds the exact
// bytes the relay sent.
type Result struct {
	Type    string             `json:"type,omitempty"`
	ID      string             `json:"id,omitempty"`
	Success bool               `json:"success"`
	Data    json.RawMessage    `json:"data,omitempty"`
	Error   *proto.ErrorDetail `json:"error,omitempty"`
	Raw     json.RawMessage    `json:"-"`
}

// Do submits one query to the relay at addr and waits for its reply. A
// missing request ID is filled with a fresh UUID. Cancellation and deadline
// come from ctx.
func Do(ctx context.Context, addr string, req proto.QueryRequest) (*Result, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial relay: %w", err)
	}
	defer func() { _ = conn.Close() }()
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if _, err := conn.Write(payload); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	raw, err := readResponse(conn)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	res := &Result{Raw: raw}
	if err := json.Unmarshal(raw, res); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return res, nil
}

// readResponse accumulates bytes until they parse as a JSON document. The
// relay closes the connection after writing the reply, so EOF with a
// parseable buffer is the normal end.
func readResponse(conn net.Conn) (json.RawMessage, error) {
	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)
	for {
		n, err := conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			if json.Valid(buf) {
				return buf, nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) && json.Valid(buf) {
				return buf, nil
			}
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("connection closed before a complete response (%d bytes)", len(buf))
			}
			return nil, err
		}
	}
}
