package crypto

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
	"lukechampine.com/frand"
)

// KemPublicKey is a worker's X25519 public key; clients seal tokens to it.
type KemPublicKey [curve25519.PointSize]byte

// KemPrivateKey is the matching X25519 private key.
type KemPrivateKey [curve25519.ScalarSize]byte

// GenerateKemKeyPair generates an X25519 key pair.
func GenerateKemKeyPair() (KemPublicKey, KemPrivateKey, error) {
	var privKey KemPrivateKey
	var pubKey KemPublicKey

	frand.Read(privKey[:])
	pub, err := curve25519.X25519(privKey[:], curve25519.Basepoint)
	if err != nil {
		return pubKey, privKey, err
	}
	copy(pubKey[:], pub)
	return pubKey, privKey, nil
}

// DeriveSharedSecret runs X25519 and expands the result with HKDF-SHA256
// under info. Low-order peer keys are rejected.
func DeriveSharedSecret(privateKey KemPrivateKey, publicKey KemPublicKey, info []byte) (SharedKey, error) {
	sharedPoint, err := curve25519.X25519(privateKey[:], publicKey[:])
	if err != nil {
		return nil, err
	}

	kdf := hkdf.New(sha256.New, sharedPoint, nil, info)
	secret := make([]byte, 32)
	if _, err := io.ReadFull(kdf, secret); err != nil {
		return nil, err
	}
	return SharedKey(secret), nil
}
