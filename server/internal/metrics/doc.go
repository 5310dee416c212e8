// Package metrics exposes the live rollups in the Prometheus exposition
// format on GET /metrics.
//
// Every project of every live source becomes one sample per gauge, labelled
// with source, project (id) and name. tally_rollup_age_seconds reports how
// long ago each source last reported and tally_alerts_firing the number of
// firing alerts. Families are rebuilt from the store on every scrape; nothing
// is registered globally.
package metrics
