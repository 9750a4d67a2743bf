package mcpserver

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/gqlrelay/gqlrelay/internal/proto"
)

// fakeRelay answers each connection with one canned reply.
func fakeRelay(t *testing.T, reply func(req proto.QueryRequest) string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer func() { _ = c.Close() }()
				buf := make([]byte, 0, 4096)
				chunk := make([]byte, 4096)
				for {
					n, err := c.Read(chunk)
					if n > 0 {
						buf = append(buf, chunk[:n]...)
						var req proto.QueryRequest
						if json.Unmarshal(buf, &req) == nil {
							_, _ = c.Write([]byte(reply(req)))
							return
						}
					}
					if err != nil {
						return
					}
				}
			}(conn)
		}
	}()
	return ln.Addr().String()
}

func callReq(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func textContent(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatalf("result has no content")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content got %T", res.Content[0])
	}
	return tc.Text
}

func TestExecuteQuery(t *testing.T) {
	addr := fakeRelay(t, func(req proto.QueryRequest) string {
		if req.Query != "query{a}" {
			t.Errorf("unexpected query %q", req.Query)
		}
		return `{"type":"response","id":"` + req.ID + `","success":true,"data":{"a":1}}`
	})

	handler := ExecuteQueryHandler(addr, 5*time.Second)
	res, err := handler(context.Background(), callReq("execute_query", map[string]any{
		"query":     "query{a}",
		"variables": map[string]any{"x": 1},
	}))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", textContent(t, res))
	}
	if got := textContent(t, res); got != `{"a":1}` {
		t.Fatalf("expected data payload got %s", got)
	}
}

func TestExecuteQueryFailure(t *testing.T) {
	addr := fakeRelay(t, func(req proto.QueryRequest) string {
		return `{"type":"error","id":"` + req.ID + `","success":false,"error":{"message":"request timed out after 30s"}}`
	})

	handler := ExecuteQueryHandler(addr, 5*time.Second)
	res, err := handler(context.Background(), callReq("execute_query", map[string]any{"query": "query{a}"}))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if !res.IsError {
		t.Fatalf("expected tool error")
	}
}

func TestExecuteQueryMissingArgument(t *testing.T) {
	handler := ExecuteQueryHandler("127.0.0.1:1", time.Second)
	res, err := handler(context.Background(), callReq("execute_query", map[string]any{}))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if !res.IsError {
		t.Fatalf("expected tool error for missing query")
	}
}

func TestEcho(t *testing.T) {
	handler := EchoHandler()
	res, err := handler(context.Background(), callReq("echo", map[string]any{"message": "hi"}))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	var reply struct {
		Echoed    string `json:"echoed"`
		Timestamp string `json:"timestamp"`
	}
	if err := json.Unmarshal([]byte(textContent(t, res)), &reply); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if reply.Echoed != "You said: hi" || reply.Timestamp == "" {
		t.Fatalf("unexpected reply %+v", reply)
	}
}
