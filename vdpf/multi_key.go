package vdpf

import (
	"fmt"

	"github.com/flashbots/spectrum/dpf"
	"github.com/flashbots/spectrum/prg"
	"go.dedis.ch/kyber/v3"
)

// MultiKey is the field audit over dpf.MultiKey, in the scalar field of the
// DPF's group. Bits and seeds are already additive shares, so every worker
// weighs its contribution with a positive sign.
type MultiKey struct {
	*dpf.MultiKey

	audit fieldAudit
}

func NewMultiKey(parties, channels int, groupPRG *prg.GroupPRG) (*MultiKey, error) {
	d, err := dpf.NewMultiKey(parties, channels, groupPRG)
	if err != nil {
		return nil, err
	}
	return &MultiKey{MultiKey: d, audit: fieldAudit{field: groupPRG.Group().Scalars()}}, nil
}

// GenProofs derives proof shares for keys generated by Gen at idx.
func (v *MultiKey) GenProofs(authKey kyber.Scalar, idx int, keys []*dpf.MultiKeyKey) ([]ProofShare, error) {
	if len(keys) != v.Parties {
		return nil, fmt.Errorf("%w: expected %d keys, got %d", ErrInvalidKey, v.Parties, len(keys))
	}
	if idx < 0 || idx >= v.Channels {
		return nil, fmt.Errorf("%w: %d", dpf.ErrInvalidIndex, idx)
	}
	field := v.audit.field
	bitSum, seedSum := field.Zero(), field.Zero()
	for _, k := range keys {
		if err := v.Validate(k); err != nil {
			return nil, err
		}
		bitSum = bitSum.Add(bitSum, k.Bits[idx])
		seedSum = seedSum.Add(seedSum, k.Seeds[idx])
	}
	return v.audit.proofs(authKey, bitSum, seedSum, v.Parties), nil
}

func (v *MultiKey) GenProofsEmpty() []ProofShare {
	return v.audit.emptyProofs(v.Parties)
}

// Gen generates keys and proofs together.
func (v *MultiKey) Gen(authKey kyber.Scalar, msg []kyber.Point, idx int) ([]*dpf.MultiKeyKey, []ProofShare, error) {
	keys, err := v.MultiKey.Gen(msg, idx)
	if err != nil {
		return nil, nil, err
	}
	proofs, err := v.GenProofs(authKey, idx, keys)
	if err != nil {
		return nil, nil, err
	}
	return keys, proofs, nil
}

func (v *MultiKey) GenAudit(party int, authKeys []kyber.Scalar, key *dpf.MultiKeyKey, proof ProofShare) (Token, error) {
	if party < 0 || party >= v.Parties {
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
	return v.audit.token(false, authKeys, key.Bits, key.Seeds, proof, prg.HashVector(key.EncodedMsg)), nil
}

func (v *MultiKey) CheckAudit(tokens []Token) bool {
	return v.audit.check(tokens, v.Parties)
}

func (v *MultiKey) Verify(tokens []Token) error {
	return verdict(v.CheckAudit(tokens))
}
