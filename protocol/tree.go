package protocol

import (
	"fmt"

	"github.com/flashbots/spectrum/dpf"
	"github.com/flashbots/spectrum/prg"
	"github.com/flashbots/spectrum/vdpf"
)

// Tree is the two-worker scheme over the tree DPF with the hash audit.
// Channel keys carry no secret: the audit needs none.
type Tree struct {
	v *vdpf.Tree
}

var _ Protocol = (*Tree)(nil)

func NewTree(channels, messageLen int) (*Tree, error) {
	v, err := vdpf.NewTree(channels, messageLen)
	if err != nil {
		return nil, err
	}
	return &Tree{v: v}, nil
}

func (p *Tree) NumParties() int  { return 2 }
func (p *Tree) NumChannels() int { return p.v.Domain }
func (p *Tree) MessageLen() int  { return p.v.MessageLen }

func (p *Tree) NewChannelKeys() ([]ChannelKey, error) {
	keys := make([]ChannelKey, p.v.Domain)
	for i := range keys {
		keys[i] = ChannelKey{Index: i}
	}
	return keys, nil
}

func (p *Tree) Broadcast(msg []byte, key ChannelKey) ([]*WriteToken, error) {
	keys, cs, err := p.v.Gen(key.Index, msg)
	if err != nil {
		return nil, err
	}
	return p.toTokens(keys, cs), nil
}

func (p *Tree) Cover() []*WriteToken {
	return p.toTokens(p.v.GenEmpty())
}

func (p *Tree) toTokens(keys []*dpf.TreeKey, cs []byte) []*WriteToken {
	res := make([]*SecureToken, len(keys))
	for i, k := range keys {
		seeds := [][]byte{k.Root.Bytes()}
		bits := [][]byte{{byte(k.Party)}}
		for lvl, s := range k.CWSeeds {
			seeds = append(seeds, s.Bytes())
			bits = append(bits, []byte{boolByte(k.CWBits[lvl][0]) | boolByte(k.CWBits[lvl][1])<<1})
		}
		res[i] = &SecureToken{
			EncodedMsg: [][]byte{append([]byte{}, k.FinalCW...)},
			Bits:       bits,
			Seeds:      seeds,
			Proof:      ProofShareWire{Seed: append([]byte{}, cs...)},
		}
	}
	return secureTokens(res)
}

func (p *Tree) decode(token *WriteToken) (*dpf.TreeKey, []byte, error) {
	tok, err := token.secure()
	if err != nil {
		return nil, nil, err
	}
	if len(tok.EncodedMsg) != 1 || len(tok.Seeds) == 0 || len(tok.Bits) != len(tok.Seeds) {
		return nil, nil, fmt.Errorf("%w: malformed tree token", ErrInvalidToken)
	}
	if len(tok.Bits[0]) != 1 {
		return nil, nil, fmt.Errorf("%w: malformed party", ErrInvalidToken)
	}
	key := &dpf.TreeKey{
		Party:   int(tok.Bits[0][0]),
		FinalCW: tok.EncodedMsg[0],
	}
	if key.Root, err = prg.SeedFromBytes(tok.Seeds[0]); err != nil {
		return nil, nil, fmt.Errorf("%w: root: %w", ErrInvalidToken, err)
	}
	for lvl := 1; lvl < len(tok.Seeds); lvl++ {
		s, err := prg.SeedFromBytes(tok.Seeds[lvl])
		if err != nil {
			return nil, nil, fmt.Errorf("%w: level %d: %w", ErrInvalidToken, lvl-1, err)
		}
		b := tok.Bits[lvl]
		if len(b) != 1 || b[0] > 3 {
			return nil, nil, fmt.Errorf("%w: level %d control bits %x", ErrInvalidToken, lvl-1, b)
		}
		key.CWSeeds = append(key.CWSeeds, s)
		key.CWBits = append(key.CWBits, [2]bool{b[0]&1 == 1, b[0]&2 == 2})
	}
	if len(tok.Proof.Seed) != vdpf.ProofLen {
		return nil, nil, fmt.Errorf("%w: correction seed has %d bytes", ErrInvalidToken, len(tok.Proof.Seed))
	}
	if err := p.v.Validate(key); err != nil {
		return nil, nil, err
	}
	return key, tok.Proof.Seed, nil
}

// GenAudit checks the token was issued for party; keys are unused.
func (p *Tree) GenAudit(party int, _ []ChannelKey, token *WriteToken) (*AuditShare, error) {
	key, cs, err := p.decode(token)
	if err != nil {
		return nil, err
	}
	if key.Party != party {
		return nil, fmt.Errorf("%w: token for party %d audited by %d", vdpf.ErrInvalidParty, key.Party, party)
	}
	pi, err := p.v.GenAudit(key, cs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return &AuditShare{Secure: &SecureAuditShare{Proof: pi}}, nil
}

func (p *Tree) CheckAudit(shares []*AuditShare) bool {
	proofs := make([][]byte, len(shares))
	for i, s := range shares {
		a, ok := s.secure()
		if !ok {
			return false
		}
		proofs[i] = a.Proof
	}
	return p.v.CheckAudit(proofs)
}

func (p *Tree) NewAccumulator() Accumulator {
	return newByteAccumulator(p.v.Domain, p.v.MessageLen)
}

func (p *Tree) ToAccumulator(token *WriteToken) (Accumulator, error) {
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

func (p *Tree) Reveal(shares []Share) ([][]byte, error) {
	return revealBytes(shares, 2, p.v.Domain, p.v.MessageLen)
}
