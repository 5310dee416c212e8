// Package receiver implements rpc.RollupServiceServer, the gRPC endpoint
// that accepts rollups from tally agents.
//
// Receiver.SendRollup rejects a request without a rollup or without a
// source_id (codes.InvalidArgument), evaluates the alert rules over the
// rollup's projects, then calls store.Put to keep it as the latest rollup
// for that source. Authentication is enforced upstream by the gRPC server
// interceptor (see package auth), so the receiver itself only performs
// structural validation.
package receiver
