package vdpf

import (
	"bytes"
	"fmt"

	"github.com/flashbots/spectrum/algebra"
	"github.com/flashbots/spectrum/dpf"
	"github.com/flashbots/spectrum/prg"
	"go.dedis.ch/kyber/v3"
)

// KeyPair is a channel's authentication key for TwoKeyPub. The writer of the
// channel holds Private; workers are configured with Public = Private*G only.
type KeyPair struct {
	Private kyber.Scalar
	Public  kyber.Point
}

// NewKeyPair derives the key pair of private in group.
func NewKeyPair(group algebra.Group, private kyber.Scalar) KeyPair {
	return KeyPair{
		Private: private,
		Public:  group.Identity().Mul(private, group.Generator()),
	}
}

// NewKeyPairs samples one key pair per channel.
func NewKeyPairs(group algebra.Group, channels int) []KeyPair {
	res := make([]KeyPair, channels)
	for i := range res {
		res[i] = NewKeyPair(group, group.Scalars().Random())
	}
	return res
}

// PointProofShare is a TwoKeyPub proof share.
type PointProofShare struct {
	Bit  kyber.Point
	Seed kyber.Point
}

// PointToken is a TwoKeyPub audit token.
type PointToken struct {
	Bit      kyber.Point
	Seed     kyber.Point
	DataHash []byte
}

// TwoKeyPub is the audit of TwoKey lifted into a group. Worker b publishes
//
//	bit token  = proof.Bit  + sum_i bit_b[i]  * A_i
//	seed token = proof.Seed + sum_i seed_b[i] * A_i
//
// where A_i is channel i's public key, and the write is accepted iff both
// workers publish the same tokens over the same encoded message. The proof
// shares differ by exactly the written channel's contribution, so every
// other channel has to agree on its own.
type TwoKeyPub struct {
	*dpf.TwoKey
	Group algebra.Group
}

// NewTwoKeyPub builds the construction. Seeds enter the audit as scalars, so
// the scalar field must be larger than 2^128.
func NewTwoKeyPub(group algebra.Group, channels, messageLen int) *TwoKeyPub {
	return &TwoKeyPub{
		TwoKey: dpf.NewTwoKey(channels, messageLen),
		Group:  group,
	}
}

func (v *TwoKeyPub) bitValue(b bool) kyber.Scalar {
	if b {
		return v.Group.Scalars().One()
	}
	return v.Group.Scalars().Zero()
}

func (v *TwoKeyPub) seedValue(s prg.Seed) kyber.Scalar {
	return v.Group.Scalars().Reduce(s[:])
}

// GenProofs derives the proof shares for keys generated by Gen at idx.
func (v *TwoKeyPub) GenProofs(auth KeyPair, idx int, keys []*dpf.TwoKeyKey) ([]PointProofShare, error) {
	if len(keys) != 2 {
		return nil, fmt.Errorf("%w: expected 2 keys, got %d", ErrInvalidKey, len(keys))
	}
	for _, k := range keys {
		if err := v.Validate(k); err != nil {
			return nil, err
		}
	}
	if idx < 0 || idx >= v.Channels {
		return nil, fmt.Errorf("%w: %d", dpf.ErrInvalidIndex, idx)
	}
	if auth.Private == nil {
		return nil, fmt.Errorf("%w: missing private key", ErrInvalidKey)
	}
	pub := NewKeyPair(v.Group, auth.Private).Public

	f := v.Group.Scalars()
	bitDiff := f.Zero().Sub(v.bitValue(keys[0].Bits[idx]), v.bitValue(keys[1].Bits[idx]))
	seedDiff := f.Zero().Sub(v.seedValue(keys[0].Seeds[idx]), v.seedValue(keys[1].Seeds[idx]))

	bitMask, seedMask := v.Group.Random(), v.Group.Random()
	bit1 := v.Group.Identity().Mul(bitDiff, pub)
	seed1 := v.Group.Identity().Mul(seedDiff, pub)
	return []PointProofShare{
		{Bit: bitMask.Clone(), Seed: seedMask.Clone()},
		{Bit: bit1.Add(bit1, bitMask), Seed: seed1.Add(seed1, seedMask)},
	}, nil
}

// GenProofsEmpty derives proof shares for keys generated by GenEmpty.
func (v *TwoKeyPub) GenProofsEmpty() []PointProofShare {
	bit, seed := v.Group.Random(), v.Group.Random()
	return []PointProofShare{
		{Bit: bit, Seed: seed},
		{Bit: bit.Clone(), Seed: seed.Clone()},
	}
}

// Gen generates keys and proofs together.
func (v *TwoKeyPub) Gen(auth KeyPair, msg []byte, idx int) ([]*dpf.TwoKeyKey, []PointProofShare, error) {
	keys, err := v.TwoKey.Gen(msg, idx)
	if err != nil {
		return nil, nil, err
	}
	proofs, err := v.GenProofs(auth, idx, keys)
	if err != nil {
		return nil, nil, err
	}
	return keys, proofs, nil
}

// GenAudit computes a worker's token from the channels' public keys. Both
// workers compute it the same way.
func (v *TwoKeyPub) GenAudit(pubKeys []kyber.Point, key *dpf.TwoKeyKey, proof PointProofShare) (PointToken, error) {
	if err := v.Validate(key); err != nil {
		return PointToken{}, err
	}
	if proof.Bit == nil || proof.Seed == nil {
		return PointToken{}, ErrInvalidKey
	}
	if len(pubKeys) != v.Channels {
		return PointToken{}, fmt.Errorf("expected %d public keys, got %d", v.Channels, len(pubKeys))
	}

	bit := proof.Bit.Clone()
	seed := proof.Seed.Clone()
	term := v.Group.Identity()
	for i, pub := range pubKeys {
		if key.Bits[i] {
			bit = bit.Add(bit, pub)
		}
		seed = seed.Add(seed, term.Mul(v.seedValue(key.Seeds[i]), pub))
	}
	return PointToken{Bit: bit, Seed: seed, DataHash: hashBytes(key.EncodedMsg)}, nil
}

// CheckAudit accepts iff both tokens are equal.
func (v *TwoKeyPub) CheckAudit(tokens []PointToken) bool {
	if len(tokens) != 2 {
		return false
	}
	for _, t := range tokens {
		if t.Bit == nil || t.Seed == nil {
			return false
		}
	}
	a, b := tokens[0], tokens[1]
	return a.Bit.Equal(b.Bit) && a.Seed.Equal(b.Seed) && bytes.Equal(a.DataHash, b.DataHash)
}

func (v *TwoKeyPub) Verify(tokens []PointToken) error {
	return verdict(v.CheckAudit(tokens))
}
