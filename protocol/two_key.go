package protocol

import (
	"fmt"

	"github.com/flashbots/spectrum/algebra"
	"github.com/flashbots/spectrum/dpf"
	"github.com/flashbots/spectrum/prg"
	"github.com/flashbots/spectrum/vdpf"
)

// TwoKey is the two-worker scheme over the AES seed DPF with the field audit.
type TwoKey struct {
	v *vdpf.TwoKey
}

var _ Protocol = (*TwoKey)(nil)

func NewTwoKey(field algebra.Field, channels, messageLen int) *TwoKey {
	return &TwoKey{v: vdpf.NewTwoKey(field, channels, messageLen)}
}

func (p *TwoKey) NumParties() int  { return 2 }
func (p *TwoKey) NumChannels() int { return p.v.Channels }
func (p *TwoKey) MessageLen() int  { return p.v.MessageLen }

func (p *TwoKey) NewChannelKeys() ([]ChannelKey, error) {
	return newFieldKeys(p.v.Field, p.v.Channels), nil
}

func (p *TwoKey) Broadcast(msg []byte, key ChannelKey) ([]*WriteToken, error) {
	auth, err := decodeAuthKey(p.v.Field, key)
	if err != nil {
		return nil, err
	}
	keys, proofs, err := p.v.Gen(auth, msg, key.Index)
	if err != nil {
		return nil, err
	}
	return p.toTokens(keys, proofs), nil
}

func (p *TwoKey) Cover() []*WriteToken {
	return p.toTokens(p.v.GenEmpty(), p.v.GenProofsEmpty())
}

func (p *TwoKey) toTokens(keys []*dpf.TwoKeyKey, proofs []vdpf.ProofShare) []*WriteToken {
	res := make([]*SecureToken, len(keys))
	for i, k := range keys {
		res[i] = encodeTwoKeyKey(k, encodeProof(proofs[i]))
	}
	return secureTokens(res)
}

func encodeTwoKeyKey(k *dpf.TwoKeyKey, proof ProofShareWire) *SecureToken {
	bits := make([][]byte, len(k.Bits))
	for j, b := range k.Bits {
		bits[j] = []byte{boolByte(b)}
	}
	seeds := make([][]byte, len(k.Seeds))
	for j, s := range k.Seeds {
		seeds[j] = s.Bytes()
	}
	return &SecureToken{
		EncodedMsg: [][]byte{append([]byte{}, k.EncodedMsg...)},
		Bits:       bits,
		Seeds:      seeds,
		Proof:      proof,
	}
}

func (p *TwoKey) decode(token *WriteToken) (*dpf.TwoKeyKey, vdpf.ProofShare, error) {
	key, tok, err := decodeTwoKeyKey(token)
	if err != nil {
		return nil, vdpf.ProofShare{}, err
	}
	proof, err := decodeProof(p.v.Field, tok.Proof)
	if err != nil {
		return nil, vdpf.ProofShare{}, err
	}
	return key, proof, p.v.Validate(key)
}

// decodeTwoKeyKey reads the seed DPF key of a two-worker token and returns
// the token for its proof.
func decodeTwoKeyKey(token *WriteToken) (*dpf.TwoKeyKey, *SecureToken, error) {
	tok, err := token.secure()
	if err != nil {
		return nil, nil, err
	}
	if len(tok.EncodedMsg) != 1 {
		return nil, nil, fmt.Errorf("%w: expected one encoded message, got %d", ErrInvalidToken, len(tok.EncodedMsg))
	}
	key := &dpf.TwoKeyKey{
		EncodedMsg: tok.EncodedMsg[0],
		Bits:       make([]bool, len(tok.Bits)),
		Seeds:      make([]prg.Seed, len(tok.Seeds)),
	}
	for i, b := range tok.Bits {
		if key.Bits[i], err = byteBool(b); err != nil {
			return nil, nil, err
		}
	}
	for i, s := range tok.Seeds {
		if key.Seeds[i], err = prg.SeedFromBytes(s); err != nil {
			return nil, nil, fmt.Errorf("%w: seed %d: %w", ErrInvalidToken, i, err)
		}
	}
	return key, tok, nil
}

func (p *TwoKey) GenAudit(party int, keys []ChannelKey, token *WriteToken) (*AuditShare, error) {
	auth, err := decodeAuthKeys(p.v.Field, keys, p.v.Channels)
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

func (p *TwoKey) CheckAudit(shares []*AuditShare) bool {
	tokens, ok := decodeAuditTokens(p.v.Field, shares)
	return ok && p.v.CheckAudit(tokens)
}

func (p *TwoKey) NewAccumulator() Accumulator {
	return newByteAccumulator(p.v.Channels, p.v.MessageLen)
}

func (p *TwoKey) ToAccumulator(token *WriteToken) (Accumulator, error) {
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

func (p *TwoKey) Reveal(shares []Share) ([][]byte, error) {
	return revealBytes(shares, 2, p.v.Channels, p.v.MessageLen)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func byteBool(b []byte) (bool, error) {
	if len(b) != 1 || b[0] > 1 {
		return false, fmt.Errorf("%w: malformed bit %x", ErrInvalidToken, b)
	}
	return b[0] == 1, nil
}

func encodeProof(p vdpf.ProofShare) ProofShareWire {
	return ProofShareWire{Bit: algebra.Bytes(p.Bit), Seed: algebra.Bytes(p.Seed)}
}

func decodeProof(field algebra.Field, w ProofShareWire) (vdpf.ProofShare, error) {
	bit, err := field.FromBytes(w.Bit)
	if err != nil {
		return vdpf.ProofShare{}, fmt.Errorf("%w: proof bit: %w", ErrInvalidToken, err)
	}
	seed, err := field.FromBytes(w.Seed)
	if err != nil {
		return vdpf.ProofShare{}, fmt.Errorf("%w: proof seed: %w", ErrInvalidToken, err)
	}
	return vdpf.ProofShare{Bit: bit, Seed: seed}, nil
}

func encodeAuditToken(t vdpf.Token) *AuditShare {
	return &AuditShare{Secure: &SecureAuditShare{
		Bit:      algebra.Bytes(t.Bit),
		Seed:     algebra.Bytes(t.Seed),
		DataHash: t.DataHash,
	}}
}

// decodeAuditTokens fails on any share that is not a well-formed field token.
func decodeAuditTokens(field algebra.Field, shares []*AuditShare) ([]vdpf.Token, bool) {
	tokens := make([]vdpf.Token, len(shares))
	for i, s := range shares {
		a, ok := s.secure()
		if !ok {
			return nil, false
		}
		bit, err := field.FromBytes(a.Bit)
		if err != nil {
			return nil, false
		}
		seed, err := field.FromBytes(a.Seed)
		if err != nil {
			return nil, false
		}
		tokens[i] = vdpf.Token{Bit: bit, Seed: seed, DataHash: a.DataHash}
	}
	return tokens, true
}
