package protocol

import (
	"fmt"

	"github.com/flashbots/spectrum/algebra"
	"github.com/flashbots/spectrum/vdpf"
	"go.dedis.ch/kyber/v3"
	"lukechampine.com/frand"
)

// PasswordLen is the size of an insecure channel password.
const PasswordLen = 16

// ChannelKey is the per-channel secret workers audit writes against and the
// writer of that channel holds: a field-encoded authentication key for the
// field audits, a password for the insecure scheme, and empty for the tree.
// For two-key-pub Secret is the writer's private scalar and workers only need
// Public, the encoded public point.
type ChannelKey struct {
	Index  int    `json:"index"`
	Secret []byte `json:"secret,omitempty"`
	Public []byte `json:"public,omitempty"`
}

// PublicChannelKeys strips the secrets from keys, leaving what a two-key-pub
// worker is configured with.
func PublicChannelKeys(keys []ChannelKey) []ChannelKey {
	res := make([]ChannelKey, len(keys))
	for i, k := range keys {
		res[i] = ChannelKey{Index: k.Index, Public: append([]byte{}, k.Public...)}
	}
	return res
}

// keysByIndex orders keys by channel and checks every channel is covered once.
func keysByIndex(keys []ChannelKey, channels int) ([]ChannelKey, error) {
	if len(keys) != channels {
		return nil, fmt.Errorf("expected %d channel keys, got %d", channels, len(keys))
	}
	res := make([]ChannelKey, channels)
	seen := make([]bool, channels)
	for _, k := range keys {
		if k.Index < 0 || k.Index >= channels || seen[k.Index] {
			return nil, fmt.Errorf("channel key index %d invalid or repeated", k.Index)
		}
		seen[k.Index] = true
		res[k.Index] = k
	}
	return res, nil
}

func secretsByIndex(keys []ChannelKey, channels int) ([][]byte, error) {
	ordered, err := keysByIndex(keys, channels)
	if err != nil {
		return nil, err
	}
	res := make([][]byte, channels)
	for i, k := range ordered {
		res[i] = k.Secret
	}
	return res, nil
}

func newPasswordKeys(channels int) []ChannelKey {
	keys := make([]ChannelKey, channels)
	for i := range keys {
		keys[i] = ChannelKey{Index: i, Secret: frand.Bytes(PasswordLen)}
	}
	return keys
}

func newFieldKeys(field algebra.Field, channels int) []ChannelKey {
	auth := vdpf.NewAuthKeys(field, channels)
	keys := make([]ChannelKey, channels)
	for i, a := range auth {
		keys[i] = ChannelKey{Index: i, Secret: algebra.Bytes(a)}
	}
	return keys
}

func decodeAuthKey(field algebra.Field, key ChannelKey) (kyber.Scalar, error) {
	a, err := field.FromBytes(key.Secret)
	if err != nil {
		return nil, fmt.Errorf("channel key %d: %w", key.Index, err)
	}
	return a, nil
}

func decodeAuthKeys(field algebra.Field, keys []ChannelKey, channels int) ([]kyber.Scalar, error) {
	secrets, err := secretsByIndex(keys, channels)
	if err != nil {
		return nil, err
	}
	res := make([]kyber.Scalar, channels)
	for i, s := range secrets {
		if res[i], err = decodeAuthKey(field, ChannelKey{Index: i, Secret: s}); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func newKeyPairKeys(group algebra.Group, channels int) []ChannelKey {
	pairs := vdpf.NewKeyPairs(group, channels)
	keys := make([]ChannelKey, channels)
	for i, kp := range pairs {
		keys[i] = ChannelKey{Index: i, Secret: algebra.Bytes(kp.Private), Public: algebra.Bytes(kp.Public)}
	}
	return keys
}

func decodeKeyPair(group algebra.Group, key ChannelKey) (vdpf.KeyPair, error) {
	priv, err := group.Scalars().FromBytes(key.Secret)
	if err != nil {
		return vdpf.KeyPair{}, fmt.Errorf("channel key %d: %w", key.Index, err)
	}
	return vdpf.NewKeyPair(group, priv), nil
}

// decodePublicKeys reads the public points of keys, ignoring any secrets.
func decodePublicKeys(group algebra.Group, keys []ChannelKey, channels int) ([]kyber.Point, error) {
	ordered, err := keysByIndex(keys, channels)
	if err != nil {
		return nil, err
	}
	res := make([]kyber.Point, channels)
	for i, k := range ordered {
		if res[i], err = group.FromBytes(k.Public); err != nil {
			return nil, fmt.Errorf("channel key %d public: %w", i, err)
		}
	}
	return res, nil
}
