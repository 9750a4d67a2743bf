package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/gqlrelay/gqlrelay/internal/logx"
	"github.com/gqlrelay/gqlrelay/internal/proto"
)

var errInvalidJSON = errors.New("relay: client request is not valid JSON")

// ListenAndServe accepts downstream client connections on addr until ctx is
// done. Each connection carries exactly one request.
func (r *Relay) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	logx.Log.Info().Str("addr", ln.Addr().String()).Msg("downstream listener started")
	return r.Serve(ctx, ln)
}

// Serve accepts connections from ln until ctx is done. Failures on one
// connection never affect other pending requests.
func (r *Relay) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go r.handleClient(conn)
	}
}

// handleClient reads one request, registers it in the pending table and
// forwards it upstream. On success the connection's ownership moves to the
// table entry; it is closed by resolution or eviction, never here.
func (r *Relay) handleClient(conn net.Conn) {
	req, err := readClientRequest(conn)
	if err != nil {
		if errors.Is(err, errInvalidJSON) {
			requestsRejectedCounter.Inc()
			logx.Log.Warn().Str("remote", conn.RemoteAddr().String()).Msg("rejecting malformed request")
			r.writeErrorReply(conn, proto.ErrorReply{Error: &proto.ErrorDetail{Message: "Invalid JSON"}})
			return
		}
		// Transport failure or an empty connection; nothing to answer.
		logx.Log.Debug().Err(err).Msg("client request read failed")
		_ = conn.Close()
		return
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	env := proto.NewQueryEnvelope(id, req)
	entry := &PendingEntry{ID: id, Conn: conn, SubmittedAt: time.Now(), Request: env}
	if err := r.pending.Insert(entry); err != nil {
		var dup *DuplicateIDError
		if errors.As(err, &dup) {
			requestsRejectedCounter.Inc()
			logx.Log.Warn().Str("id", id).Msg("duplicate request id rejected")
			r.writeErrorReply(conn, proto.ErrorReply{
				Type:  proto.TypeError,
				ID:    id,
				Error: &proto.ErrorDetail{Message: "duplicate request id"},
			})
			return
		}
		r.writeErrorReply(conn, proto.ErrorReply{ID: id, Error: &proto.ErrorDetail{Message: err.Error()}})
		return
	}
	pendingGauge.Set(float64(r.pending.Len()))

	if err := r.writeUpstream(env); err != nil {
		// No orphaned entries after a failed forward.
		if _, ok := r.pending.Take(id); ok {
			pendingGauge.Set(float64(r.pending.Len()))
		}
		logx.Log.Error().Str("id", id).Err(err).Msg("forward upstream failed")
		r.writeErrorReply(conn, proto.ErrorReply{
			Type:  proto.TypeError,
			ID:    id,
			Error: &proto.ErrorDetail{Message: "failed to forward request: " + err.Error()},
		})
		return
	}
	requestsForwardedCounter.Inc()
	logx.Log.Debug().Str("id", id).Bool("client_supplied_id", req.ID != "").Msg("query forwarded")
}

// readClientRequest reads from conn until the accumulated bytes parse as a
// request object or the peer half-closes its write side. Clients send one
// JSON document and then either close or wait for the reply.
func readClientRequest(conn net.Conn) (proto.QueryRequest, error) {
	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)
	for {
		n, err := conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			var req proto.QueryRequest
			if json.Unmarshal(buf, &req) == nil {
				return req, nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				if len(buf) == 0 {
					return proto.QueryRequest{}, io.EOF
				}
				return proto.QueryRequest{}, errInvalidJSON
			}
			return proto.QueryRequest{}, err
		}
	}
}
