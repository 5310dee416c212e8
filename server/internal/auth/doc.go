// Package auth provides API key authentication for tally-server.
//
// APIKeyInterceptor(mode, header, key) returns a gRPC UnaryServerInterceptor
// that validates the key from the named metadata header on agent calls.
// HTTPMiddleware(mode, header, key, next) applies the same check to the REST
// API and answers a mismatch with 401 and {"error": "..."}.
//
// When mode != "apikey" or key == "", all calls pass through, which is the
// usual setup for local development. Keys are compared in constant time.
package auth
