// Package types defines the Go types shared by the agent and the server.
// These are the canonical in-memory representations of a project rollup,
// used unchanged on the gRPC wire (JSON codec) and in the REST API.
package types
