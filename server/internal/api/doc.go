// Package api implements the HTTP REST API for tally-server.
//
// New(store, alerts) returns an http.Handler that serves:
//
//	GET /api/v1/health          overall score, state, per-status counts
//	GET /api/v1/sources         all live rollups ([]SourceResponse)
//	GET /api/v1/sources/{id}    single rollup; 404 if unknown or stale
//	GET /api/v1/projects        every project; ?status= and ?source= filter
//	GET /api/v1/projects/{id}   single project; ?source= disambiguates
//	GET /api/v1/totals          counters summed over live sources
//	GET /api/v1/board           projects grouped by default lane
//	GET /api/v1/timeline        due-date bars; ?zoom=week|month|quarter
//	GET /api/v1/alerts          firing and recently resolved alerts
//	GET /api/v1/snapshot        full dump of all live rollups + generated_at
//
// All endpoints respond with Content-Type: application/json, return 405 for
// non-GET methods and read only live entries from the store. Every project
// carries diagnostic hints derived from its summary (diagnostics.go).
//
// BuildSnapshot is exported for the websocket hub, which broadcasts the same
// payload.
package api
