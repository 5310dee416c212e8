// Package todoist fetches task snapshots from the Todoist REST API (or from a
// dataset file on disk) and returns them as flat raw records.
//
// The records are deliberately unparsed: due dates and timestamps stay as the
// strings the service sent, and the compute package decides what they mean.
// Labels and sections are carried along for consumers but never interpreted.
//
// Client authenticates with a bearer token through golang.org/x/oauth2 and
// fetches projects, tasks, labels and sections concurrently using the
// service's cursor paging. Completed tasks are offset-paged; only the first
// batch is part of a Snapshot and LoadMore serves the rest.
package todoist
