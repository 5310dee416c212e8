// Package rpc defines the RollupService gRPC contract between tally-agent and
// tally-server.
//
// Messages are the plain Go structs from pkg/types, carried with a JSON codec
// registered under the "json" content-subtype, so no generated protobuf code
// is involved. Clients select the codec per call via CallContentSubtype; the
// server resolves it from the request's content-type automatically.
package rpc
