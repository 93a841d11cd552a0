// Package vdpf extends the DPF constructions with an audit that lets the
// workers holding a write's keys agree that the keys encode at most one
// nonzero channel, without reconstructing the write.
//
// The field audit (TwoKey, MultiKey) works over a field F with one secret
// authentication key a_i per channel, known to the workers. Worker b computes
//
//	bit token  = proof.Bit  + sign_b * sum_i a_i * bit_b[i]
//	seed token = proof.Seed + sign_b * sum_i a_i * seed_b[i]
//
// and all workers publish their tokens. The write is accepted iff both token
// sums vanish and every worker saw the same encoded message. A client writing
// to channel j knows a_j only, so it can cancel a nonzero difference at j but
// has to guess a_i for any other channel: a forged multi-point write survives
// with probability at most 1/|F|.
//
// The tree audit (Tree) is the hash-based verifiable DPF of de Castro and
// Polychroniadou: each worker folds a hash of every leaf into a running proof
// and the write is accepted iff the two proofs are equal.
package vdpf

import (
	"bytes"
	"errors"

	"github.com/flashbots/spectrum/algebra"
	"github.com/flashbots/spectrum/dpf"
	"go.dedis.ch/kyber/v3"
	"golang.org/x/crypto/blake2b"
)

var (
	// ErrInvalidKey is returned for structurally malformed keys or proofs.
	// It is the same sentinel as dpf.ErrInvalidKey.
	ErrInvalidKey = dpf.ErrInvalidKey

	// ErrAuditRejected reports a well-formed write whose audit failed.
	ErrAuditRejected = errors.New("audit rejected")

	// ErrInvalidParty is returned when a worker's party index is out of range.
	ErrInvalidParty = errors.New("invalid party index")
)

// ProofShare is one worker's share of the audit proof for a write.
type ProofShare struct {
	Bit  kyber.Scalar
	Seed kyber.Scalar
}

// Token is one worker's published audit token.
type Token struct {
	Bit      kyber.Scalar
	Seed     kyber.Scalar
	DataHash []byte
}

// NewAuthKeys samples one authentication key per channel.
func NewAuthKeys(field algebra.Field, channels int) []kyber.Scalar {
	keys := make([]kyber.Scalar, channels)
	for i := range keys {
		keys[i] = field.Random()
	}
	return keys
}

// fieldAudit holds the linear audit shared by the two-key and multi-key
// constructions.
type fieldAudit struct {
	field algebra.Field
}

// share splits v into n additive shares.
func (a fieldAudit) share(v kyber.Scalar, n int) []kyber.Scalar {
	shares := make([]kyber.Scalar, n)
	last := v.Clone()
	for i := 1; i < n; i++ {
		shares[i] = a.field.Random()
		last = last.Sub(last, shares[i])
	}
	shares[0] = last
	return shares
}

// proofs shares -auth*bitDiff and -auth*seedDiff, the values that cancel the
// contribution of the written channel.
func (a fieldAudit) proofs(auth, bitDiff, seedDiff kyber.Scalar, n int) []ProofShare {
	bitTarget := a.field.Zero().Mul(auth, bitDiff)
	bitTarget = bitTarget.Neg(bitTarget)
	seedTarget := a.field.Zero().Mul(auth, seedDiff)
	seedTarget = seedTarget.Neg(seedTarget)

	bitShares := a.share(bitTarget, n)
	seedShares := a.share(seedTarget, n)
	res := make([]ProofShare, n)
	for i := range res {
		res[i] = ProofShare{Bit: bitShares[i], Seed: seedShares[i]}
	}
	return res
}

func (a fieldAudit) emptyProofs(n int) []ProofShare {
	return a.proofs(a.field.Zero(), a.field.Zero(), a.field.Zero(), n)
}

func (a fieldAudit) validateProof(proof ProofShare) error {
	if proof.Bit == nil || proof.Seed == nil {
		return dpf.ErrInvalidKey
	}
	return nil
}

// token computes proof + sign * <authKeys, values> for bits and seeds.
func (a fieldAudit) token(negate bool, authKeys, bits, seeds []kyber.Scalar, proof ProofShare, dataHash []byte) Token {
	bitSum, seedSum := a.field.Zero(), a.field.Zero()
	term := a.field.Zero()
	for i, auth := range authKeys {
		bitSum = bitSum.Add(bitSum, term.Mul(auth, bits[i]))
		seedSum = seedSum.Add(seedSum, term.Mul(auth, seeds[i]))
	}
	if negate {
		bitSum = bitSum.Neg(bitSum)
		seedSum = seedSum.Neg(seedSum)
	}
	return Token{
		Bit:      bitSum.Add(bitSum, proof.Bit),
		Seed:     seedSum.Add(seedSum, proof.Seed),
		DataHash: dataHash,
	}
}

// check accepts iff token sums vanish and all data hashes agree.
func (a fieldAudit) check(tokens []Token, parties int) bool {
	if len(tokens) != parties {
		return false
	}
	bitSum, seedSum := a.field.Zero(), a.field.Zero()
	for _, t := range tokens {
		if t.Bit == nil || t.Seed == nil {
			return false
		}
		if !bytes.Equal(t.DataHash, tokens[0].DataHash) {
			return false
		}
		bitSum = bitSum.Add(bitSum, t.Bit)
		seedSum = seedSum.Add(seedSum, t.Seed)
	}
	return bitSum.Equal(a.field.Zero()) && seedSum.Equal(a.field.Zero())
}

func hashBytes(data []byte) []byte {
	h := blake2b.Sum256(data)
	return h[:]
}

func verdict(accepted bool) error {
	if !accepted {
		return ErrAuditRejected
	}
	return nil
}
