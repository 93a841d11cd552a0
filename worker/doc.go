// Package worker holds a worker's per-epoch state: the audit shares
// collected for each write, the set of writes already applied and the
// running table of accepted writes.
//
// A write moves through the worker as follows. Submit audits the worker's
// own token and returns the AuditShare to send to every peer. ReceiveAudit
// records a peer's share. Once the shares of all parties are in, the audit
// is checked exactly once and an accepted write is expanded into the table.
// NewEpoch hands out the table and starts over.
package worker
