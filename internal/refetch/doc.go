// Package refetch repairs stale cache views. Reconciliation flags a key as
// stale when a push invalidates data it cannot patch locally, most notably
// task aggregates that are computed server-side. The refetcher periodically
// sweeps the staleness set and re-materializes each flagged view from the
// REST API with bounded concurrency.
package refetch
