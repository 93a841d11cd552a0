package protocol

import (
	"fmt"

	"github.com/flashbots/spectrum/algebra"
	"github.com/flashbots/spectrum/prg"
)

// Protocol is a write-token construction: how clients split a write into
// tokens, how workers audit and apply them, and how the table is revealed.
//
// All methods are safe for concurrent use.
type Protocol interface {
	NumParties() int
	NumChannels() int
	MessageLen() int

	// NewChannelKeys samples the secret of every channel.
	NewChannelKeys() ([]ChannelKey, error)

	// Broadcast splits a write of msg to key's channel into one token per worker.
	Broadcast(msg []byte, key ChannelKey) ([]*WriteToken, error)

	// Cover returns tokens for a write that changes no channel.
	Cover() []*WriteToken

	// GenAudit computes worker party's audit share for its token. keys are
	// the channel keys the worker holds. Malformed tokens fail with
	// ErrInvalidToken or ErrWrongVariant.
	GenAudit(party int, keys []ChannelKey, token *WriteToken) (*AuditShare, error)

	// CheckAudit reports whether the shares of all workers, indexed by party,
	// accept the write.
	CheckAudit(shares []*AuditShare) bool

	NewAccumulator() Accumulator

	// ToAccumulator expands a token into a table to be accumulated.
	ToAccumulator(token *WriteToken) (Accumulator, error)

	// Reveal combines the shares of all workers into the plaintext table.
	// Rows of channels that fail to decode are nil; the error is kept for
	// shares that do not fit the table.
	Reveal(shares []Share) ([][]byte, error)
}

// New builds the protocol for cfg.
func New(cfg *Config) (Protocol, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Scheme {
	case SchemeInsecure:
		return NewInsecure(cfg.Parties, cfg.Channels, cfg.MessageLen), nil
	case SchemeTwoKey:
		group, err := algebra.ByName(cfg.Group, cfg.SecurityBits)
		if err != nil {
			return nil, err
		}
		return NewTwoKey(group.Scalars(), cfg.Channels, cfg.MessageLen), nil
	case SchemeTwoKeyPub:
		group, err := algebra.ByName(cfg.Group, cfg.SecurityBits)
		if err != nil {
			return nil, err
		}
		return NewTwoKeyPub(group, cfg.Channels, cfg.MessageLen), nil
	case SchemeMultiKey:
		group, err := algebra.ByName(cfg.Group, cfg.SecurityBits)
		if err != nil {
			return nil, err
		}
		groupPRG := prg.NewGroupPRG(group, prg.ElementsFor(group, cfg.MessageLen), []byte(cfg.GeneratorSeed))
		return NewMultiKey(cfg.Parties, cfg.Channels, cfg.MessageLen, groupPRG)
	case SchemeTree:
		return NewTree(cfg.Channels, cfg.MessageLen)
	}
	return nil, fmt.Errorf("%w: unknown scheme %q", ErrConfig, cfg.Scheme)
}

// ShareMessage writes msg to channel using that channel's key from keys.
func ShareMessage(p Protocol, msg []byte, channel int, keys []ChannelKey) ([]*WriteToken, error) {
	if channel < 0 || channel >= len(keys) {
		return nil, fmt.Errorf("no key for channel %d", channel)
	}
	return p.Broadcast(msg, keys[channel])
}
