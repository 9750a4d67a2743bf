package client

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/gqlrelay/gqlrelay/internal/proto"
)

// fakeRelay answers each connection with respond(request) and closes it,
// mimicking the relay's one-request-per-connection contract.
func fakeRelay(t *testing.T, respond func(req proto.QueryRequest) string) string {
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
							if reply := respond(req); reply != "" {
								_, _ = c.Write([]byte(reply))
							}
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

func TestDoRoundTrip(t *testing.T) {
	addr := fakeRelay(t, func(req proto.QueryRequest) string {
		return `{"type":"response","id":"` + req.ID + `","success":true,"data":{"a":1}}`
	})

	res, err := Do(context.Background(), addr, proto.QueryRequest{ID: "r1", Query: "query{a}"})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if !res.Success || res.ID != "r1" {
		t.Fatalf("unexpected result %+v", res)
	}
	if string(res.Data) != `{"a":1}` {
		t.Fatalf("unexpected data %s", res.Data)
	}
}

func TestDoGeneratesID(t *testing.T) {
	var seen string
	addr := fakeRelay(t, func(req proto.QueryRequest) string {
		seen = req.ID
		return `{"type":"response","id":"` + req.ID + `","success":true}`
	})

	res, err := Do(context.Background(), addr, proto.QueryRequest{Query: "query{a}"})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if seen == "" || res.ID != seen {
		t.Fatalf("expected generated id to round-trip, got %q and %q", seen, res.ID)
	}
}

func TestDoErrorReply(t *testing.T) {
	addr := fakeRelay(t, func(proto.QueryRequest) string {
		return `{"success":false,"error":{"message":"Invalid JSON"}}`
	})

	res, err := Do(context.Background(), addr, proto.QueryRequest{Query: "query{a}"})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if res.Success || res.Error == nil || res.Error.Message != "Invalid JSON" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestDoContextTimeout(t *testing.T) {
	addr := fakeRelay(t, func(proto.QueryRequest) string {
		time.Sleep(500 * time.Millisecond)
		return `{"success":true}`
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := Do(ctx, addr, proto.QueryRequest{Query: "query{a}"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded got %v", err)
	}
}
