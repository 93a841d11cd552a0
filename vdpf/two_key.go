package vdpf

import (
	"fmt"

	"github.com/flashbots/spectrum/algebra"
	"github.com/flashbots/spectrum/dpf"
	"github.com/flashbots/spectrum/prg"
	"go.dedis.ch/kyber/v3"
)

// TwoKey is the field audit over dpf.TwoKey. Workers 0 and 1 weigh their
// contributions with opposite signs; the sign comes from the auditing worker's
// own index, never from the write.
type TwoKey struct {
	*dpf.TwoKey
	Field algebra.Field

	audit fieldAudit
}

// NewTwoKey builds the construction. Seeds enter the audit as field elements,
// so the field must be larger than 2^128 for the seed check to be injective.
func NewTwoKey(field algebra.Field, channels, messageLen int) *TwoKey {
	return &TwoKey{
		TwoKey: dpf.NewTwoKey(channels, messageLen),
		Field:  field,
		audit:  fieldAudit{field: field},
	}
}

func (v *TwoKey) bitValue(b bool) kyber.Scalar {
	if b {
		return v.Field.One()
	}
	return v.Field.Zero()
}

func (v *TwoKey) seedValue(s prg.Seed) kyber.Scalar {
	return v.Field.Reduce(s[:])
}

// GenProofs derives the proof shares for keys generated by Gen at idx.
// authKey is the channel's authentication key.
func (v *TwoKey) GenProofs(authKey kyber.Scalar, idx int, keys []*dpf.TwoKeyKey) ([]ProofShare, error) {
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
	bitDiff := v.Field.Zero().Sub(v.bitValue(keys[0].Bits[idx]), v.bitValue(keys[1].Bits[idx]))
	seedDiff := v.Field.Zero().Sub(v.seedValue(keys[0].Seeds[idx]), v.seedValue(keys[1].Seeds[idx]))
	return v.audit.proofs(authKey, bitDiff, seedDiff, 2), nil
}

// GenProofsEmpty derives proof shares for keys generated by GenEmpty.
func (v *TwoKey) GenProofsEmpty() []ProofShare {
	return v.audit.emptyProofs(2)
}

// Gen generates keys and proofs together.
func (v *TwoKey) Gen(authKey kyber.Scalar, msg []byte, idx int) ([]*dpf.TwoKeyKey, []ProofShare, error) {
	keys, err := v.TwoKey.Gen(msg, idx)
	if err != nil {
		return nil, nil, err
	}
	proofs, err := v.GenProofs(authKey, idx, keys)
	if err != nil {
		return nil, nil, err
	}
	return keys, proofs, nil
}

// GenAudit computes party's audit token for its key and proof share.
func (v *TwoKey) GenAudit(party int, authKeys []kyber.Scalar, key *dpf.TwoKeyKey, proof ProofShare) (Token, error) {
	if party != 0 && party != 1 {
		return Token{}, fmt.Errorf("%w: %d", ErrInvalidParty, party)
	}
	if err := v.Validate(key); err != nil {
		return Token{}, err
	}
	if err := v.audit.validateProof(proof); err != nil {
		return Token{}, err
	}
	if len(authKeys) != v.Channels {
		return Token{}, fmt.Errorf("expected %d auth keys, got %d", v.Channels, len(authKeys))
	}

	bits := make([]kyber.Scalar, v.Channels)
	seeds := make([]kyber.Scalar, v.Channels)
	for i := range bits {
		bits[i] = v.bitValue(key.Bits[i])
		seeds[i] = v.seedValue(key.Seeds[i])
	}
	return v.audit.token(party == 1, authKeys, bits, seeds, proof, hashBytes(key.EncodedMsg)), nil
}

// CheckAudit reports whether the tokens of both workers accept the write.
func (v *TwoKey) CheckAudit(tokens []Token) bool {
	return v.audit.check(tokens, 2)
}

// Verify is CheckAudit returning ErrAuditRejected on failure.
func (v *TwoKey) Verify(tokens []Token) error {
	return verdict(v.CheckAudit(tokens))
}
