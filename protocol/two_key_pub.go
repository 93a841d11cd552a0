package protocol

import (
	"fmt"

	"github.com/flashbots/spectrum/algebra"
	"github.com/flashbots/spectrum/dpf"
	"github.com/flashbots/spectrum/vdpf"
)

// TwoKeyPub is the two-worker seed DPF audited in a group. Workers are
// configured with the channels' public keys only.
type TwoKeyPub struct {
	v *vdpf.TwoKeyPub
}

var _ Protocol = (*TwoKeyPub)(nil)

func NewTwoKeyPub(group algebra.Group, channels, messageLen int) *TwoKeyPub {
	return &TwoKeyPub{v: vdpf.NewTwoKeyPub(group, channels, messageLen)}
}

func (p *TwoKeyPub) NumParties() int  { return 2 }
func (p *TwoKeyPub) NumChannels() int { return p.v.Channels }
func (p *TwoKeyPub) MessageLen() int  { return p.v.MessageLen }

// NewChannelKeys returns key pairs. Give workers PublicChannelKeys of them.
func (p *TwoKeyPub) NewChannelKeys() ([]ChannelKey, error) {
	return newKeyPairKeys(p.v.Group, p.v.Channels), nil
}

func (p *TwoKeyPub) Broadcast(msg []byte, key ChannelKey) ([]*WriteToken, error) {
	auth, err := decodeKeyPair(p.v.Group, key)
	if err != nil {
		return nil, err
	}
	keys, proofs, err := p.v.Gen(auth, msg, key.Index)
	if err != nil {
		return nil, err
	}
	return p.toTokens(keys, proofs), nil
}

func (p *TwoKeyPub) Cover() []*WriteToken {
	return p.toTokens(p.v.GenEmpty(), p.v.GenProofsEmpty())
}

func (p *TwoKeyPub) toTokens(keys []*dpf.TwoKeyKey, proofs []vdpf.PointProofShare) []*WriteToken {
	res := make([]*SecureToken, len(keys))
	for i, k := range keys {
		res[i] = encodeTwoKeyKey(k, ProofShareWire{Bit: algebra.Bytes(proofs[i].Bit), Seed: algebra.Bytes(proofs[i].Seed)})
	}
	return secureTokens(res)
}

func (p *TwoKeyPub) decode(token *WriteToken) (*dpf.TwoKeyKey, vdpf.PointProofShare, error) {
	key, tok, err := decodeTwoKeyKey(token)
	if err != nil {
		return nil, vdpf.PointProofShare{}, err
	}
	bit, err := p.v.Group.FromBytes(tok.Proof.Bit)
	if err != nil {
		return nil, vdpf.PointProofShare{}, fmt.Errorf("%w: proof bit: %w", ErrInvalidToken, err)
	}
	seed, err := p.v.Group.FromBytes(tok.Proof.Seed)
	if err != nil {
		return nil, vdpf.PointProofShare{}, fmt.Errorf("%w: proof seed: %w", ErrInvalidToken, err)
	}
	return key, vdpf.PointProofShare{Bit: bit, Seed: seed}, p.v.Validate(key)
}

// GenAudit reads only the public half of keys.
func (p *TwoKeyPub) GenAudit(party int, keys []ChannelKey, token *WriteToken) (*AuditShare, error) {
	if party != 0 && party != 1 {
		return nil, fmt.Errorf("%w: %d", vdpf.ErrInvalidParty, party)
	}
	pub, err := decodePublicKeys(p.v.Group, keys, p.v.Channels)
	if err != nil {
		return nil, err
	}
	key, proof, err := p.decode(token)
	if err != nil {
		return nil, err
	}
	t, err := p.v.GenAudit(pub, key, proof)
	if err != nil {
		return nil, err
	}
	return &AuditShare{Secure: &SecureAuditShare{
		Bit:      algebra.Bytes(t.Bit),
		Seed:     algebra.Bytes(t.Seed),
		DataHash: t.DataHash,
	}}, nil
}

func (p *TwoKeyPub) CheckAudit(shares []*AuditShare) bool {
	tokens := make([]vdpf.PointToken, len(shares))
	for i, s := range shares {
		a, ok := s.secure()
		if !ok {
			return false
		}
		bit, err := p.v.Group.FromBytes(a.Bit)
		if err != nil {
			return false
		}
		seed, err := p.v.Group.FromBytes(a.Seed)
		if err != nil {
			return false
		}
		tokens[i] = vdpf.PointToken{Bit: bit, Seed: seed, DataHash: a.DataHash}
	}
	return p.v.CheckAudit(tokens)
}

func (p *TwoKeyPub) NewAccumulator() Accumulator {
	return newByteAccumulator(p.v.Channels, p.v.MessageLen)
}

func (p *TwoKeyPub) ToAccumulator(token *WriteToken) (Accumulator, error) {
	key, _, err := p.decode(token)
	if err != nil {
		return nil, err
	}
	rows, err := p.v.EvalFull(key)
	if err != nil {
		return nil, err
	}
	return &byteAccumulator{rows: rows}, nil
}

func (p *TwoKeyPub) Reveal(shares []Share) ([][]byte, error) {
	return revealBytes(shares, 2, p.v.Channels, p.v.MessageLen)
}
