package rpc

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/tallyhq/tally/pkg/types"
)

type echoServer struct {
	UnimplementedRollupServiceServer
	got chan *types.Rollup
}

func (s *echoServer) SendRollup(_ context.Context, req *SendRollupRequest) (*SendRollupResponse, error) {
	if req.Rollup == nil {
		return nil, status.Error(codes.InvalidArgument, "rollup is required")
	}
	s.got <- req.Rollup
	return &SendRollupResponse{Ok: true, Message: req.Rollup.SourceID}, nil
}

func dialTestServer(t *testing.T, srv RollupServiceServer, opts ...grpc.ServerOption) RollupServiceClient {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	gs := grpc.NewServer(opts...)
	RegisterRollupServiceServer(gs, srv)
	go gs.Serve(lis) //nolint:errcheck
	t.Cleanup(gs.Stop)

	conn, err := grpc.Dial(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewRollupServiceClient(conn)
}

func TestSendRollup_RoundTrip(t *testing.T) {
	srv := &echoServer{got: make(chan *types.Rollup, 1)}
	client := dialTestServer(t, srv)

	due := time.Date(2026, 10, 21, 0, 0, 0, 0, time.UTC)
	in := &types.Rollup{
		SourceID: "me",
		RunID:    "run-1",
		Projects: []types.ProjectSummary{{
			ID:            "p1",
			Name:          "Inbox",
			ActiveCount:   3,
			HealthScore:   78,
			HealthStatus:  types.StatusHealthy,
			NextDue:       &due,
			DefaultStatus: types.LaneInProgress,
		}},
		Totals: types.Totals{ActiveCount: 3},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := client.SendRollup(ctx, &SendRollupRequest{Rollup: in})
	if err != nil {
		t.Fatalf("SendRollup: %v", err)
	}
	if !resp.Ok || resp.Message != "me" {
		t.Errorf("response: got %+v", resp)
	}

	got := <-srv.got
	if got.RunID != "run-1" || len(got.Projects) != 1 {
		t.Fatalf("rollup: got %+v", got)
	}
	p := got.Projects[0]
	if p.HealthStatus != types.StatusHealthy || p.DefaultStatus != types.LaneInProgress {
		t.Errorf("enums: got %q/%q", p.HealthStatus, p.DefaultStatus)
	}
	if p.NextDue == nil || !p.NextDue.Equal(due) {
		t.Errorf("NextDue: got %v, want %v", p.NextDue, due)
	}
	if p.EarliestDue != nil {
		t.Errorf("EarliestDue: got %v, want nil", p.EarliestDue)
	}
}

func TestSendRollup_StatusCodePropagates(t *testing.T) {
	srv := &echoServer{got: make(chan *types.Rollup, 1)}
	client := dialTestServer(t, srv)

	_, err := client.SendRollup(context.Background(), &SendRollupRequest{})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("code: got %v, want InvalidArgument (err=%v)", status.Code(err), err)
	}
}

func TestSendRollup_Unimplemented(t *testing.T) {
	client := dialTestServer(t, UnimplementedRollupServiceServer{})

	_, err := client.SendRollup(context.Background(), &SendRollupRequest{Rollup: &types.Rollup{}})
	if status.Code(err) != codes.Unimplemented {
		t.Fatalf("code: got %v, want Unimplemented", status.Code(err))
	}
}

func TestSendRollup_InterceptorSeesMethod(t *testing.T) {
	seen := make(chan string, 1)
	intercept := func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, h grpc.UnaryHandler) (interface{}, error) {
		seen <- info.FullMethod
		return h(ctx, req)
	}
	srv := &echoServer{got: make(chan *types.Rollup, 1)}
	client := dialTestServer(t, srv, grpc.UnaryInterceptor(intercept))

	if _, err := client.SendRollup(context.Background(), &SendRollupRequest{Rollup: &types.Rollup{SourceID: "x"}}); err != nil {
		t.Fatalf("SendRollup: %v", err)
	}
	if got := <-seen; got != SendRollupMethod {
		t.Errorf("FullMethod: got %q, want %q", got, SendRollupMethod)
	}
}
