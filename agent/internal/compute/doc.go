// Package compute derives per-project rollups from a task snapshot.
//
// health.go holds the pure Score and Status functions that turn one
// project's signal counts into a 0–100 health score and a categorical
// status. rollup.go groups a snapshot's tasks by project, derives those
// counts with calendar arithmetic and produces the ordered summaries plus
// totals. engine.go wraps both behind a small stateful Engine whose options
// can be swapped on config reload.
//
// Status thresholds: healthy ≥75, watch 45–74, critical <45. Projects with
// no active tasks are done (something completed this week) or idle.
package compute
