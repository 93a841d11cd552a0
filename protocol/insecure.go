package protocol

import (
	"fmt"

	"github.com/flashbots/spectrum/dpf"
	"github.com/flashbots/spectrum/vdpf"
)

// Insecure is the plaintext scheme. Writes are visible to the worker that
// receives them; it exists to run the pipeline without the cryptography.
type Insecure struct {
	v *vdpf.Insecure
}

var _ Protocol = (*Insecure)(nil)

func NewInsecure(parties, channels, messageLen int) *Insecure {
	return &Insecure{v: vdpf.NewInsecure(parties, channels, messageLen)}
}

func (p *Insecure) NumParties() int  { return p.v.Parties }
func (p *Insecure) NumChannels() int { return p.v.Channels }
func (p *Insecure) MessageLen() int  { return p.v.MessageLen }

func (p *Insecure) NewChannelKeys() ([]ChannelKey, error) {
	return newPasswordKeys(p.v.Channels), nil
}

func (p *Insecure) Broadcast(msg []byte, key ChannelKey) ([]*WriteToken, error) {
	keys, err := p.v.Gen(msg, key.Index)
	if err != nil {
		return nil, err
	}
	tokens := p.toTokens(keys)
	tokens[len(tokens)-1].Insecure.Password = append([]byte{}, key.Secret...)
	return tokens, nil
}

func (p *Insecure) Cover() []*WriteToken {
	return p.toTokens(p.v.GenEmpty())
}

func (p *Insecure) toTokens(keys []*dpf.InsecureKey) []*WriteToken {
	tokens := make([]*WriteToken, len(keys))
	for i, k := range keys {
		tokens[i] = &WriteToken{Insecure: &InsecureToken{Present: k.Present, Index: k.Index, Message: k.Message}}
	}
	return tokens
}

func (p *Insecure) GenAudit(party int, keys []ChannelKey, token *WriteToken) (*AuditShare, error) {
	if party < 0 || party >= p.v.Parties {
		return nil, fmt.Errorf("%w: %d", vdpf.ErrInvalidParty, party)
	}
	tok, err := token.insecure()
	if err != nil {
		return nil, err
	}
	secrets, err := secretsByIndex(keys, p.v.Channels)
	if err != nil {
		return nil, err
	}
	passwords := make([]string, len(secrets))
	for i, s := range secrets {
		passwords[i] = string(s)
	}
	ok, err := p.v.GenAudit(passwords, &dpf.InsecureKey{Present: tok.Present, Index: tok.Index, Message: tok.Message}, string(tok.Password))
	if err != nil {
		return nil, err
	}
	return &AuditShare{Insecure: &InsecureAuditShare{Accept: ok}}, nil
}

func (p *Insecure) CheckAudit(shares []*AuditShare) bool {
	verdicts := make([]bool, len(shares))
	for i, s := range shares {
		a, ok := s.insecure()
		if !ok {
			return false
		}
		verdicts[i] = a.Accept
	}
	return p.v.CheckAudit(verdicts)
}

func (p *Insecure) NewAccumulator() Accumulator {
	return newByteAccumulator(p.v.Channels, p.v.MessageLen)
}

func (p *Insecure) ToAccumulator(token *WriteToken) (Accumulator, error) {
	tok, err := token.insecure()
	if err != nil {
		return nil, err
	}
	rows, err := p.v.EvalFull(&dpf.InsecureKey{Present: tok.Present, Index: tok.Index, Message: tok.Message})
	if err != nil {
		return nil, err
	}
	return &byteAccumulator{rows: rows}, nil
}

func (p *Insecure) Reveal(shares []Share) ([][]byte, error) {
	return revealBytes(shares, p.v.Parties, p.v.Channels, p.v.MessageLen)
}
