package receiver

import (
	"context"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/tallyhq/tally/pkg/rpc"
	"github.com/tallyhq/tally/server/internal/alerts"
	"github.com/tallyhq/tally/server/internal/store"
)

// Receiver implements rpc.RollupServiceServer.
// It validates each incoming rollup, runs the alert rules over it and stores
// it in the state store.
type Receiver struct {
	rpc.UnimplementedRollupServiceServer
	store  *store.Store
	alerts *alerts.Engine
}

// New creates a Receiver that writes accepted rollups to st. al may be nil,
// in which case no alert rules are evaluated.
func New(st *store.Store, al *alerts.Engine) *Receiver {
	return &Receiver{store: st, alerts: al}
}

// SendRollup is the unary RPC handler called by agent instances.
// Authentication is enforced by the gRPC server interceptor before this is called.
func (r *Receiver) SendRollup(ctx context.Context, req *rpc.SendRollupRequest) (*rpc.SendRollupResponse, error) {
	if req == nil || req.Rollup == nil {
		return nil, status.Error(codes.InvalidArgument, "rollup is required")
	}
	roll := req.Rollup
	if roll.SourceID == "" {
		return nil, status.Error(codes.InvalidArgument, "source_id is required")
	}

	kept, res := r.store.Put(roll)
	if res == store.Superseded {
		slog.Info("receiver: dropped out-of-order rollup",
			"source_id", roll.SourceID,
			"run_id", runID(ctx),
			"generated_at", roll.GeneratedAt,
			"kept_run_id", kept.Rollup.RunID,
		)
		return &rpc.SendRollupResponse{Ok: true, Message: "superseded by a newer rollup"}, nil
	}
	if r.alerts != nil {
		r.alerts.Evaluate(roll)
	}

	slog.Debug("receiver: rollup stored",
		"source_id", roll.SourceID,
		"run_id", runID(ctx),
		"projects", len(roll.Projects),
		"active", roll.Totals.ActiveCount,
		"overdue", roll.Totals.OverdueCount,
		"result", res.String(),
	)

	return &rpc.SendRollupResponse{Ok: true}, nil
}

func runID(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if v := md.Get(rpc.RunIDMetadataKey); len(v) > 0 {
		return v[0]
	}
	return ""
}
