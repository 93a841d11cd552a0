// Package crypto provides the primitives around the write-token layer:
//
//   - Ed25519 keys and signatures authenticating messages between workers
//   - X25519 key agreement with HKDF for per-worker shared secrets
//   - SealToken and OpenToken, sealing a client's token to one worker with
//     AES-256-GCM so no other worker or relay can read it
//   - XorInplace for byte tables
package crypto
