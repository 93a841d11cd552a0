package crypto

import (
	"crypto/ed25519"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"slices"

	"lukechampine.com/frand"
)

// PublicKey is an Ed25519 public key. Workers are identified by theirs and
// sign their audit messages with the matching private key.
type PublicKey []byte

// NewPublicKeyFromBytes copies data into a PublicKey.
func NewPublicKeyFromBytes(data []byte) PublicKey {
	return PublicKey(slices.Clone(data))
}

// NewPublicKeyFromString decodes a hex-encoded public key.
func NewPublicKeyFromString(data string) (PublicKey, error) {
	rawBytes, err := hex.DecodeString(data)
	if err != nil {
		return PublicKey{}, err
	}
	return NewPublicKeyFromBytes(rawBytes), nil
}

func (pk PublicKey) Bytes() []byte {
	return pk
}

func (pk PublicKey) Equal(other PublicKey) bool {
	return subtle.ConstantTimeCompare(pk, other) == 1
}

func (pk PublicKey) String() string {
	return hex.EncodeToString(pk)
}

// PrivateKey is an Ed25519 private key.
type PrivateKey []byte

func NewPrivateKeyFromBytes(data []byte) PrivateKey {
	return PrivateKey(slices.Clone(data))
}

func (sk PrivateKey) Bytes() []byte {
	return sk
}

// PublicKey returns the public half, which Ed25519 stores in the private key.
func (sk PrivateKey) PublicKey() (PublicKey, error) {
	if len(sk) != ed25519.PrivateKeySize {
		return nil, errors.New("invalid private key size")
	}
	return PublicKey(sk[ed25519.SeedSize:]), nil
}

// GenerateKeyPair generates a worker's signing key pair.
func GenerateKeyPair() (PublicKey, PrivateKey, error) {
	publicKey, privateKey, err := ed25519.GenerateKey(frand.Reader)
	if err != nil {
		return nil, nil, err
	}
	return PublicKey(publicKey), PrivateKey(privateKey), nil
}

// Signature is an Ed25519 signature.
type Signature []byte

func NewSignature(data []byte) Signature {
	return Signature(slices.Clone(data))
}

func (s Signature) Bytes() []byte {
	return []byte(s)
}

func (s Signature) Verify(publicKey PublicKey, data []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(publicKey), data, s)
}

func (s Signature) String() string {
	return hex.EncodeToString(s.Bytes())
}

func Sign(privateKey PrivateKey, data []byte) (Signature, error) {
	if len(privateKey) != ed25519.PrivateKeySize {
		return nil, errors.New("invalid private key size")
	}
	return Signature(ed25519.Sign(ed25519.PrivateKey(privateKey), data)), nil
}

// SharedKey is key material derived from an X25519 exchange. It is only
// ever used through a KDF.
type SharedKey []byte

func NewSharedKey(data []byte) SharedKey {
	return SharedKey(slices.Clone(data))
}

func (sk SharedKey) Bytes() []byte {
	return slices.Clone(sk)
}
