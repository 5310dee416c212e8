package shipper

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tallyhq/tally/agent/internal/config"
	"github.com/tallyhq/tally/pkg/rpc"
	"github.com/tallyhq/tally/pkg/types"
)

const sendTimeout = 10 * time.Second

// Shipper queues rollups and delivers them to tally-server over gRPC.
// Ship is non-blocking and evicts the oldest queued rollup when the queue is
// full. Run must be started in its own goroutine to drain the queue.
type Shipper struct {
	cfg    config.AgentConfig
	buf    chan *types.Rollup
	dialFn dialFunc // injectable for tests

	delivered atomic.Int64
	discarded atomic.Int64
	evicted   atomic.Int64
}

// Stats counts rollups by outcome since the shipper was created.
type Stats struct {
	Delivered int64
	Discarded int64 // rejected with a permanent error
	Evicted   int64 // pushed out of a full queue
	Pending   int
}

// New creates a Shipper using the given agent config.
func New(cfg config.AgentConfig) *Shipper {
	return &Shipper{
		cfg:    cfg,
		buf:    make(chan *types.Rollup, cfg.BufferSize),
		dialFn: defaultDial,
	}
}

// Ship enqueues r, evicting the oldest queued rollup if the queue is full.
func (s *Shipper) Ship(r *types.Rollup) {
	for {
		select {
		case s.buf <- r:
			return
		default:
		}
		select {
		case old := <-s.buf:
			s.evicted.Add(1)
			slog.Warn("shipper: queue full, evicted oldest rollup",
				"source", old.SourceID, "run_id", old.RunID, "buffer_cap", cap(s.buf))
		default:
		}
	}
}

// Pending reports how many rollups are waiting to be sent.
func (s *Shipper) Pending() int {
	return len(s.buf)
}

// Stats returns the delivery counters.
func (s *Shipper) Stats() Stats {
	return Stats{
		Delivered: s.delivered.Load(),
		Discarded: s.discarded.Load(),
		Evicted:   s.evicted.Load(),
		Pending:   s.Pending(),
	}
}

// Run connects to the server and drains the queue, reconnecting with
// exponential backoff whenever dialing or sending fails. It blocks until ctx
// is cancelled.
func (s *Shipper) Run(ctx context.Context) {
	bo := newBackoff()
	endpoint := s.cfg.ServerEndpoint

	for ctx.Err() == nil {
		conn, err := s.dialFn(ctx, endpoint, s.cfg)
		if err == nil {
			slog.Info("shipper: connected", "endpoint", endpoint)
			bo.reset()
			err = s.drain(ctx, conn)
			conn.Close()
			if ctx.Err() != nil {
				return
			}
		}

		wait := bo.next()
		slog.Warn("shipper: server unreachable, will retry",
			"endpoint", endpoint,
			"err", err,
			"pending", s.Pending(),
			"retry_in", wait)
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// drain sends queued rollups over conn until a transient failure or ctx
// cancellation. A rollup that failed transiently is put back first.
func (s *Shipper) drain(ctx context.Context, conn *grpc.ClientConn) error {
	client := rpc.NewRollupServiceClient(conn)

	for {
		var r *types.Rollup
		select {
		case <-ctx.Done():
			return nil
		case r = <-s.buf:
		}

		if err := s.send(ctx, client, r); err != nil {
			s.requeue(r)
			return fmt.Errorf("send: %w", err)
		}
	}
}

// send delivers one rollup. It returns an error only for failures worth
// retrying; permanent rejections are counted and logged.
func (s *Shipper) send(ctx context.Context, client rpc.RollupServiceClient, r *types.Rollup) error {
	sendCtx, cancel := context.WithTimeout(outgoingContext(ctx, s.cfg.ServerAuth, r), sendTimeout)
	defer cancel()

	resp, err := client.SendRollup(sendCtx, toRequest(r))
	switch {
	case err != nil && isPermanentError(err):
		s.discarded.Add(1)
		slog.Error("shipper: rollup rejected, discarding",
			"source", r.SourceID, "run_id", r.RunID, "code", status.Code(err).String(), "err", err)
		return nil
	case err != nil:
		return err
	case !resp.Ok:
		s.discarded.Add(1)
		slog.Warn("shipper: server declined rollup",
			"source", r.SourceID, "run_id", r.RunID, "message", resp.Message)
		return nil
	}

	s.delivered.Add(1)
	slog.Debug("shipper: rollup delivered",
		"source", r.SourceID, "run_id", r.RunID, "projects", len(r.Projects))
	return nil
}

// requeue puts r back unless newer rollups have filled the queue meanwhile;
// the server keeps only the latest rollup per source, so r is then superseded.
func (s *Shipper) requeue(r *types.Rollup) {
	select {
	case s.buf <- r:
	default:
		s.evicted.Add(1)
	}
}

// isPermanentError reports whether err means the rollup itself (or the
// agent's credentials) will never be accepted.
func isPermanentError(err error) bool {
	switch status.Code(err) {
	case codes.InvalidArgument, codes.Unauthenticated, codes.PermissionDenied:
		return true
	}
	return false
}
