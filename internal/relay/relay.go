// Package relay bridges the framed native-messaging channel to the browser
// extension with a TCP listener serving external clients. Requests are
// matched to responses by correlation ID through a shared pending table.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gqlrelay/gqlrelay/internal/logx"
	"github.com/gqlrelay/gqlrelay/internal/nativemsg"
	"github.com/gqlrelay/gqlrelay/internal/proto"
)

// clientWriteTimeout bounds writes to downstream clients so a stalled peer
// cannot pin a goroutine forever.
const clientWriteTimeout = 10 * time.Second

// Relay owns the upstream channel and the pending-request table. The read
// side of the upstream channel is consumed exclusively by Run; writes may
// come from any connection handler and are serialized by a mutex because
// the framing format has no interleaving tolerance.
type Relay struct {
	upr io.Reader
	wmu sync.Mutex
	upw io.Writer

	pending        *PendingTable
	requestTimeout time.Duration
	evictInterval  time.Duration
	connected      atomic.Bool
	started        time.Time
}

// New constructs a relay over the given upstream reader and writer.
// Non-positive durations fall back to the defaults (30s timeout, 1s sweep).
func New(upr io.Reader, upw io.Writer, requestTimeout, evictInterval time.Duration) *Relay {
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	if evictInterval <= 0 {
		evictInterval = time.Second
	}
	return &Relay{
		upr:            upr,
		upw:            upw,
		pending:        NewPendingTable(),
		requestTimeout: requestTimeout,
		evictInterval:  evictInterval,
		started:        time.Now(),
	}
}

// Run announces readiness, then decodes upstream frames until the channel
// closes. There is exactly one upstream peer, so any framing failure is
// fatal to the whole relay; a clean or truncated end of stream is treated
// as orderly shutdown. The eviction loop runs for the duration of Run.
func (r *Relay) Run(ctx context.Context) error {
	if err := r.writeUpstream(&proto.Envelope{Type: proto.TypeReady, Message: "query relay host ready"}); err != nil {
		return fmt.Errorf("announce ready: %w", err)
	}
	evictCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go r.evictLoop(evictCtx)

	for {
		env, err := nativemsg.Decode(r.upr)
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			logx.Log.Info().Msg("upstream channel closed")
			return nil
		case errors.Is(err, nativemsg.ErrTruncatedFrame):
			logx.Log.Warn().Msg("upstream frame truncated; treating as channel closed")
			return nil
		default:
			logx.Log.Error().Err(err).Msg("upstream channel failed")
			return err
		}
		r.handleEnvelope(env)
	}
}

// handleEnvelope dispatches one upstream message. Unrecognized types are
// dropped so newer extensions cannot crash an older relay.
func (r *Relay) handleEnvelope(env *proto.Envelope) {
	switch env.Type {
	case proto.TypeConnected:
		r.connected.Store(true)
		connectedGauge.Set(1)
		logx.Log.Info().Msg("extension connected")
	case proto.TypePing:
		if err := r.writeUpstream(&proto.Envelope{Type: proto.TypePong}); err != nil {
			logx.Log.Warn().Err(err).Msg("pong write failed")
		}
	case proto.TypeResponse:
		r.resolve(env)
	default:
		logx.Log.Debug().Str("type", env.Type).Msg("unknown envelope type dropped")
	}
}

// resolve matches a response to its pending entry and hands the exact
// payload bytes to the waiting client. An unknown or already-resolved ID is
// an expected race (timeout eviction or duplicate delivery), not an error.
func (r *Relay) resolve(env *proto.Envelope) {
	if env.ID == "" {
		responsesDroppedCounter.Inc()
		logx.Log.Debug().Msg("response without id dropped")
		return
	}
	entry, ok := r.pending.Take(env.ID)
	if !ok {
		responsesDroppedCounter.Inc()
		logx.Log.Debug().Str("id", env.ID).Msg("response for unknown id dropped")
		return
	}
	pendingGauge.Set(float64(r.pending.Len()))
	raw := env.Raw
	go func() {
		defer func() { _ = entry.Conn.Close() }()
		_ = entry.Conn.SetWriteDeadline(time.Now().Add(clientWriteTimeout))
		if _, err := entry.Conn.Write(raw); err != nil {
			// The client may already be gone; the correlation ID is consumed
			// either way, so there is nothing to retry.
			clientWriteFailures.Inc()
			logx.Log.Warn().Str("id", entry.ID).Err(err).Msg("client write failed")
			return
		}
		responsesRelayedCounter.Inc()
		resolveDuration.Observe(time.Since(entry.SubmittedAt).Seconds())
		logx.Log.Debug().Str("id", entry.ID).Msg("response relayed")
	}()
}

// evictLoop periodically sweeps entries older than the request timeout and
// answers their clients with a timeout error.
func (r *Relay) evictLoop(ctx context.Context) {
	ticker := time.NewTicker(r.evictInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			evicted := r.pending.EvictOlderThan(r.requestTimeout)
			for _, e := range evicted {
				requestsTimedOutCounter.Inc()
				logx.Log.Warn().Str("id", e.ID).Dur("age", time.Since(e.SubmittedAt)).Msg("request timed out")
				r.writeErrorReply(e.Conn, proto.ErrorReply{
					Type:  proto.TypeError,
					ID:    e.ID,
					Error: &proto.ErrorDetail{Message: fmt.Sprintf("request timed out after %s", r.requestTimeout)},
				})
			}
			if len(evicted) > 0 {
				pendingGauge.Set(float64(r.pending.Len()))
			}
		}
	}
}

// writeUpstream encodes one envelope onto the upstream channel. Writers are
// serialized so frame bytes from concurrent senders never interleave.
func (r *Relay) writeUpstream(v any) error {
	r.wmu.Lock()
	defer r.wmu.Unlock()
	return nativemsg.Encode(r.upw, v)
}

// writeErrorReply sends a failure envelope to a downstream client and closes
// the connection. Write errors are logged and swallowed.
func (r *Relay) writeErrorReply(conn net.Conn, reply proto.ErrorReply) {
	defer func() { _ = conn.Close() }()
	payload, err := json.Marshal(reply)
	if err != nil {
		logx.Log.Error().Err(err).Msg("marshal error reply")
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(clientWriteTimeout))
	if _, err := conn.Write(payload); err != nil {
		clientWriteFailures.Inc()
		logx.Log.Debug().Err(err).Msg("error reply write failed")
	}
}

// Connected reports whether the extension has announced itself.
func (r *Relay) Connected() bool { return r.connected.Load() }

// PendingCount returns the number of in-flight requests.
func (r *Relay) PendingCount() int { return r.pending.Len() }

// Uptime returns how long the relay has been running.
func (r *Relay) Uptime() time.Duration { return time.Since(r.started) }
