package protocol

import (
	"fmt"

	"github.com/flashbots/spectrum/algebra"
	"github.com/flashbots/spectrum/dpf"
	"github.com/flashbots/spectrum/prg"
	"github.com/flashbots/spectrum/vdpf"
)

// MultiKey is the N-worker scheme over the seed-homomorphic group DPF.
// Messages travel as group elements and channels are summed in the group.
type MultiKey struct {
	v          *vdpf.MultiKey
	messageLen int
}

var _ Protocol = (*MultiKey)(nil)

func NewMultiKey(parties, channels, messageLen int, groupPRG *prg.GroupPRG) (*MultiKey, error) {
	if prg.ElementsFor(groupPRG.Group(), messageLen) > groupPRG.Len() {
		return nil, fmt.Errorf("%w: %d elements cannot carry %d bytes", ErrConfig, groupPRG.Len(), messageLen)
	}
	v, err := vdpf.NewMultiKey(parties, channels, groupPRG)
	if err != nil {
		return nil, err
	}
	return &MultiKey{v: v, messageLen: messageLen}, nil
}

func (p *MultiKey) NumParties() int  { return p.v.Parties }
func (p *MultiKey) NumChannels() int { return p.v.Channels }
func (p *MultiKey) MessageLen() int  { return p.messageLen }

func (p *MultiKey) group() algebra.Group { return p.v.Group() }
func (p *MultiKey) field() algebra.Field { return p.v.Group().Scalars() }

func (p *MultiKey) NewChannelKeys() ([]ChannelKey, error) {
	return newFieldKeys(p.field(), p.v.Channels), nil
}

func (p *MultiKey) Broadcast(msg []byte, key ChannelKey) ([]*WriteToken, error) {
	if len(msg) > p.messageLen {
		return nil, fmt.Errorf("%w: message of %d bytes exceeds %d", dpf.ErrParameters, len(msg), p.messageLen)
	}
	auth, err := decodeAuthKey(p.field(), key)
	if err != nil {
		return nil, err
	}
	encoded, err := prg.EncodeMessage(p.group(), msg, p.v.PRG.Len())
	if err != nil {
		return nil, err
	}
	keys, proofs, err := p.v.Gen(auth, encoded, key.Index)
	if err != nil {
		return nil, err
	}
	return p.toTokens(keys, proofs), nil
}

func (p *MultiKey) Cover() []*WriteToken {
	return p.toTokens(p.v.GenEmpty(), p.v.GenProofsEmpty())
}

func (p *MultiKey) toTokens(keys []*dpf.MultiKeyKey, proofs []vdpf.ProofShare) []*WriteToken {
	res := make([]*SecureToken, len(keys))
	for i, k := range keys {
		res[i] = &SecureToken{
			EncodedMsg: algebra.MarshalPoints(k.EncodedMsg),
			Bits:       algebra.MarshalScalars(k.Bits),
			Seeds:      algebra.MarshalScalars(k.Seeds),
			Proof:      encodeProof(proofs[i]),
		}
	}
	return secureTokens(res)
}

func (p *MultiKey) decode(token *WriteToken) (*dpf.MultiKeyKey, vdpf.ProofShare, error) {
	tok, err := token.secure()
	if err != nil {
		return nil, vdpf.ProofShare{}, err
	}
	encoded, err := algebra.UnmarshalPoints(p.group(), tok.EncodedMsg)
	if err != nil {
		return nil, vdpf.ProofShare{}, fmt.Errorf("%w: encoded message: %w", ErrInvalidToken, err)
	}
	bits, err := algebra.UnmarshalScalars(p.field(), tok.Bits)
	if err != nil {
		return nil, vdpf.ProofShare{}, fmt.Errorf("%w: bits: %w", ErrInvalidToken, err)
	}
	seeds, err := algebra.UnmarshalScalars(p.field(), tok.Seeds)
	if err != nil {
		return nil, vdpf.ProofShare{}, fmt.Errorf("%w: seeds: %w", ErrInvalidToken, err)
	}
	proof, err := decodeProof(p.field(), tok.Proof)
	if err != nil {
		return nil, vdpf.ProofShare{}, err
	}
	key := &dpf.MultiKeyKey{EncodedMsg: encoded, Bits: bits, Seeds: seeds}
	return key, proof, p.v.Validate(key)
}

func (p *MultiKey) GenAudit(party int, keys []ChannelKey, token *WriteToken) (*AuditShare, error) {
	auth, err := decodeAuthKeys(p.field(), keys, p.v.Channels)
	if err != nil {
		return nil, err
	}
	key, proof, err := p.decode(token)
	if err != nil {
		return nil, err
	}
	t, err := p.v.GenAudit(party, auth, key, proof)
	if err != nil {
		return nil, err
	}
	return encodeAuditToken(t), nil
}

func (p *MultiKey) CheckAudit(shares []*AuditShare) bool {
	tokens, ok := decodeAuditTokens(p.field(), shares)
	return ok && p.v.CheckAudit(tokens)
}

func (p *MultiKey) NewAccumulator() Accumulator {
	return newGroupAccumulator(p.group(), p.v.Channels, p.v.PRG.Len())
}

func (p *MultiKey) ToAccumulator(token *WriteToken) (Accumulator, error) {
	key, _, err := p.decode(token)
	if err != nil {
		return nil, err
	}
	rows, err := p.v.EvalFull(key)
	if err != nil {
		return nil, err
	}
	return &groupAccumulator{group: p.group(), rows: rows}, nil
}

func (p *MultiKey) Reveal(shares []Share) ([][]byte, error) {
	return revealGroup(p.group(), shares, p.v.Parties, p.v.Channels, p.v.PRG.Len(), p.messageLen)
}
