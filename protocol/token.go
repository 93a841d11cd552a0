package protocol

import (
	"errors"
	"fmt"

	"github.com/flashbots/spectrum/vdpf"
)

var (
	// ErrInvalidToken is wrapped by every structural failure decoding a
	// write token or audit share. It matches vdpf.ErrInvalidKey.
	ErrInvalidToken = vdpf.ErrInvalidKey

	// ErrWrongVariant reports an insecure message handed to a secure
	// protocol or the reverse.
	ErrWrongVariant = errors.New("wrong message variant")
)

// WriteToken is one worker's share of a write. Exactly one variant is set.
type WriteToken struct {
	Insecure *InsecureToken `json:"insecure,omitempty"`
	Secure   *SecureToken   `json:"secure,omitempty"`
}

// InsecureToken carries the write in the clear. Only one worker of a write
// receives a present token.
type InsecureToken struct {
	Present  bool   `json:"present"`
	Index    int    `json:"index"`
	Message  []byte `json:"message,omitempty"`
	Password []byte `json:"password,omitempty"`
}

// SecureToken is a DPF key plus proof share, every element at its fixed
// width encoding.
//
// For the tree scheme Seeds holds the root seed followed by one correction
// seed per level, Bits holds the party index followed by one byte of control
// bit corrections per level, EncodedMsg holds the final correction word and
// Proof.Seed the shared correction seed.
type SecureToken struct {
	EncodedMsg [][]byte       `json:"encoded_msg"`
	Bits       [][]byte       `json:"bits"`
	Seeds      [][]byte       `json:"seeds"`
	Proof      ProofShareWire `json:"proof"`
}

// ProofShareWire is the encoded audit proof share.
type ProofShareWire struct {
	Bit  []byte `json:"bit,omitempty"`
	Seed []byte `json:"seed"`
}

// AuditShare is what a worker publishes to its peers about one write.
type AuditShare struct {
	Insecure *InsecureAuditShare `json:"insecure,omitempty"`
	Secure   *SecureAuditShare   `json:"secure,omitempty"`
}

type InsecureAuditShare struct {
	Accept bool `json:"accept"`
}

// SecureAuditShare holds a field audit token, or for the tree scheme only
// the worker's proof.
type SecureAuditShare struct {
	Bit      []byte `json:"bit,omitempty"`
	Seed     []byte `json:"seed,omitempty"`
	DataHash []byte `json:"data_hash,omitempty"`
	Proof    []byte `json:"proof,omitempty"`
}

func (t *WriteToken) secure() (*SecureToken, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: nil token", ErrInvalidToken)
	}
	if t.Secure == nil || t.Insecure != nil {
		return nil, fmt.Errorf("%w: expected secure token", ErrWrongVariant)
	}
	return t.Secure, nil
}

func (t *WriteToken) insecure() (*InsecureToken, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: nil token", ErrInvalidToken)
	}
	if t.Insecure == nil || t.Secure != nil {
		return nil, fmt.Errorf("%w: expected insecure token", ErrWrongVariant)
	}
	return t.Insecure, nil
}

func (s *AuditShare) secure() (*SecureAuditShare, bool) {
	if s == nil || s.Secure == nil || s.Insecure != nil {
		return nil, false
	}
	return s.Secure, true
}

func (s *AuditShare) insecure() (*InsecureAuditShare, bool) {
	if s == nil || s.Insecure == nil || s.Secure != nil {
		return nil, false
	}
	return s.Insecure, true
}

func secureTokens(ts []*SecureToken) []*WriteToken {
	res := make([]*WriteToken, len(ts))
	for i, t := range ts {
		res[i] = &WriteToken{Secure: t}
	}
	return res
}
