// Package store holds the latest rollup per source in memory.
//
// Rollups arriving out of order (an agent retrying an old send after a newer
// one landed) are dropped by comparing generation times. Sources that stop
// reporting for longer than the TTL disappear from List immediately and are
// removed by the Run loop.
package store
