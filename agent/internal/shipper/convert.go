package shipper

import (
	"context"

	"google.golang.org/grpc/metadata"

	"github.com/tallyhq/tally/agent/internal/config"
	"github.com/tallyhq/tally/pkg/rpc"
	"github.com/tallyhq/tally/pkg/types"
)

// toRequest wraps a rollup for SendRollup. nil slices are replaced so the
// server always sees JSON arrays.
func toRequest(r *types.Rollup) *rpc.SendRollupRequest {
	out := *r
	if out.Projects == nil {
		out.Projects = []types.ProjectSummary{}
	}
	if out.Labels == nil {
		out.Labels = []types.Label{}
	}
	if out.Sections == nil {
		out.Sections = []types.Section{}
	}
	return &rpc.SendRollupRequest{Rollup: &out}
}

// outgoingContext attaches the run id and, in apikey mode, the API key
// header to ctx.
func outgoingContext(ctx context.Context, auth config.AuthConfig, r *types.Rollup) context.Context {
	kv := []string{rpc.RunIDMetadataKey, r.RunID}
	if auth.Mode == "apikey" {
		if key := auth.Key(); key != "" {
			kv = append(kv, auth.EffectiveHeader(), key)
		}
	}
	return metadata.AppendToOutgoingContext(ctx, kv...)
}
