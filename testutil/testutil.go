package testutil

import (
	"testing"

	"github.com/flashbots/spectrum/protocol"
	"github.com/stretchr/testify/require"
	"lukechampine.com/frand"
)

// ConfigOption customizes a test config.
type ConfigOption func(*protocol.Config)

func WithScheme(s protocol.Scheme) ConfigOption {
	return func(c *protocol.Config) { c.Scheme = s }
}

func WithParties(n int) ConfigOption {
	return func(c *protocol.Config) { c.Parties = n }
}

func WithChannels(n int) ConfigOption {
	return func(c *protocol.Config) { c.Channels = n }
}

func WithMessageLen(n int) ConfigOption {
	return func(c *protocol.Config) { c.MessageLen = n }
}

func WithGroup(name string) ConfigOption {
	return func(c *protocol.Config) { c.Group = name }
}

// NewTestConfig is DefaultConfig shrunk to 8 channels of 16 bytes.
func NewTestConfig(options ...ConfigOption) *protocol.Config {
	cfg := protocol.DefaultConfig()
	cfg.Channels = 8
	cfg.MessageLen = 16
	for _, opt := range options {
		opt(cfg)
	}
	return cfg
}

// NewTestProtocol builds the configured protocol and its channel keys.
func NewTestProtocol(t testing.TB, options ...ConfigOption) (protocol.Protocol, []protocol.ChannelKey) {
	t.Helper()
	cfg := NewTestConfig(options...)
	require.NoError(t, cfg.Validate())
	p, err := protocol.New(cfg)
	require.NoError(t, err)
	keys, err := p.NewChannelKeys()
	require.NoError(t, err)
	return p, keys
}

// GenerateRandomBytes returns n random bytes.
func GenerateRandomBytes(n int) []byte {
	return frand.Bytes(n)
}

// Padded extends msg with zeros to n bytes.
func Padded(msg []byte, n int) []byte {
	out := make([]byte, n)
	copy(out, msg)
	return out
}

// ExpectedTable is the reveal of p after the given channel writes.
func ExpectedTable(p protocol.Protocol, writes map[int][]byte) [][]byte {
	table := make([][]byte, p.NumChannels())
	for ch := range table {
		table[ch] = Padded(writes[ch], p.MessageLen())
	}
	return table
}
