// Package ws implements the WebSocket hub for tally-server.
//
// Hub manages a set of connected clients and broadcasts the current rollup
// snapshot to all of them every broadcast_interval (5s by default).
//
// New(store, interval) creates a Hub.
// Hub.Run(ctx) starts the broadcast ticker. It blocks until ctx is cancelled,
// then closes all active connections.
// Hub.ServeHTTP upgrades an HTTP connection to WebSocket, sends the current
// snapshot immediately on connect, then streams updates on each tick.
// A client whose send buffer is full is disconnected. Connecting with
// ?source=<id> restricts the stream to that source's rollup and totals.
//
// Message format sent to clients:
//
//	{
//	  "event": "snapshot",
//	  "data":  { /* same schema as GET /api/v1/snapshot */ }
//	}
//
// The upgrader accepts all origins. Apply CORS restrictions at the reverse
// proxy level. The endpoint is mounted at /ws/stream by the server.
package ws
