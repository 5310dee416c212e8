// Package config loads the `server:` section of config.yaml; the `agent:`
// section of a shared file is ignored.
//
// Load fills defaults (gRPC 50051, HTTP 8080, snapshot TTL 30m, broadcast
// every 5s), unmarshals the file over them, applies the TALLY_GRPC_PORT,
// TALLY_HTTP_PORT and TALLY_AUTH_MODE overrides, and validates.
//
// Alert rules may be scoped to a list of source ids, and each webhook may set
// a minimum severity it wants to hear about.
package config
