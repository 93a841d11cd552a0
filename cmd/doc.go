// Package cmd provides CLI commands for Spectrum.
//
// # Commands
//
// spectrum-sim: Runs write/audit/reveal epochs with every worker in one
// process. Clients seal their tokens to the workers, workers exchange signed
// audit shares, and the revealed channels are printed with per-phase timings.
//
//	go run ./cmd/spectrum-sim --scheme=tree --channels=32 --clients=128
//	go run ./cmd/spectrum-sim --scheme=two-key --malicious=8 --progress
//	go run ./cmd/spectrum-sim --scheme=two-key-pub --channels=16
//	go run ./cmd/spectrum-sim --config=spectrum.toml --epochs=10
//
// # Configuration
//
// Commands read a protocol config file via --config (YAML, TOML or JSON by
// extension). Flags and SPECTRUM_* environment variables override file
// values.
//
// Example YAML config:
//
//	scheme: "multi-key"
//	parties: 3
//	channels: 64
//	message_len: 128
//	group: "ed25519"
//	generator_seed: "spectrum"
//	epoch_duration: "10s"
//	audit_workers: 0
package cmd
