// Package reporter ships evaluation telemetry to a collector without ever
// blocking the evaluation loop that produces it.
//
// ReportItem is non-blocking: entries go into an unbounded in-memory queue
// consumed by a single background worker. The worker assembles batches,
// sent when the size cap is reached or the batch window elapses (whichever
// comes first), partitions each batch by run handle, and transmits one
// "append items" request per run with bounded retries.
//
// Accounting is exact: a global and a per-run pending count are incremented
// on submission and decremented exactly once per entry when its transmission
// attempt completes, whether it succeeded, was rejected, or exhausted its
// retries. Flush blocks until the global count reaches zero; CompleteRun
// blocks until the count for that specific run reaches zero (queued and
// in-flight entries alike) before issuing the status PATCH.
//
// StartRun never fails: if the collector is unreachable it logs a warning
// and returns a locally synthesized handle so the evaluation can proceed.
// Transport failures are logged and counted, never surfaced; the only
// error New returns is invalid configuration.
package reporter
