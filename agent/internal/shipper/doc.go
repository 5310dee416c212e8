// Package shipper sends rollups to tally-server via gRPC
// (RollupService.SendRollup unary RPC, JSON codec).
//
// Shipper.Ship() is non-blocking: rollups are placed in an in-memory channel
// (agent.buffer_size). When the buffer is full the oldest entry is evicted so
// the latest rollup is always preserved.
//
// Shipper.Run() drains the buffer in a loop, reconnecting with truncated
// exponential backoff (1s to 60s, 25% jitter) on connection or send errors.
// Permanent gRPC errors (Unauthenticated, PermissionDenied, InvalidArgument)
// discard the rollup immediately rather than retrying.
//
// Auth: mTLS via credentials.NewTLS(), API key via gRPC metadata header,
// or insecure (plaintext) for local development.
package shipper
