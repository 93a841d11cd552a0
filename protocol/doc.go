// Package protocol implements the write-token layer of a Spectrum-style
// anonymous broadcast: a fixed table of channels, each owned by one writer,
// held secret-shared across a group of workers.
//
// # Workflow
//
// Each epoch runs three phases:
//
//  1. Write: a channel's writer calls Broadcast with its message and channel
//     key and sends token i to worker i. Every other client sends Cover
//     tokens, which are indistinguishable from real writes and change
//     nothing.
//
//  2. Audit: each worker runs GenAudit on its token and sends the resulting
//     AuditShare to every peer. CheckAudit over the shares of all workers
//     decides whether the write encodes at most one nonzero channel and
//     was made with that channel's key. Only accepted tokens are applied.
//
//  3. Reveal: each worker expands its accepted tokens into its Accumulator
//     and publishes the resulting Share. Reveal over the shares of all
//     workers yields the plaintext table.
//
// Privacy holds as long as at least one worker is honest.
//
// # Schemes
//
//   - insecure: plaintext tokens audited by password, for testing.
//   - two-key: AES seed DPF and the field audit, 2 workers.
//   - two-key-pub: AES seed DPF audited in a group, 2 workers holding only
//     the channels' public keys.
//   - multi-key: seed-homomorphic group DPF and the field audit, N workers.
//   - tree: tree DPF and the hash audit, 2 workers, logarithmic tokens.
//
// The scheme and its shared parameters (group, modulus, generator seed) are
// fixed by Config; WriteToken and AuditShare never repeat them.
//
// # Wire format
//
// WriteToken and AuditShare are tagged unions with an insecure and a secure
// variant, serialized as JSON. Workers exchange audit shares as
// Signed[AuditMessage], checked against the roster of worker keys.
package protocol
