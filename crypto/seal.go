package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"

	"golang.org/x/crypto/curve25519"
	"lukechampine.com/frand"
)

// TokenInfo is the HKDF info string for token sealing keys.
var TokenInfo = []byte("spectrum-token-v1")

const nonceLen = 12

var ErrSealedData = errors.New("malformed sealed data")

// SealedData is a token encrypted to one worker: an ephemeral X25519 public
// key, an AES-GCM nonce, and the ciphertext with its tag.
type SealedData struct {
	EphemeralPubKey []byte `json:"ephemeral_pub_key"`
	Nonce           []byte `json:"nonce"`
	Ciphertext      []byte `json:"ciphertext"`
}

func tokenAEAD(shared SharedKey) (cipher.AEAD, error) {
	block, err := aes.NewCipher(shared)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// SealToken encrypts plaintext so only the holder of recipient's private key
// can read it. aad is authenticated but not encrypted.
func SealToken(recipient KemPublicKey, plaintext, aad []byte) (*SealedData, error) {
	ephPub, ephPriv, err := GenerateKemKeyPair()
	if err != nil {
		return nil, fmt.Errorf("generate ephemeral key: %w", err)
	}
	shared, err := DeriveSharedSecret(ephPriv, recipient, TokenInfo)
	if err != nil {
		return nil, fmt.Errorf("key agreement: %w", err)
	}
	gcm, err := tokenAEAD(shared)
	if err != nil {
		return nil, err
	}

	nonce := frand.Bytes(nonceLen)
	return &SealedData{
		EphemeralPubKey: ephPub[:],
		Nonce:           nonce,
		Ciphertext:      gcm.Seal(nil, nonce, plaintext, append(ephPub[:], aad...)),
	}, nil
}

// OpenToken reverses SealToken.
func OpenToken(recipient KemPrivateKey, sealed *SealedData, aad []byte) ([]byte, error) {
	if sealed == nil || len(sealed.EphemeralPubKey) != curve25519.PointSize || len(sealed.Nonce) != nonceLen {
		return nil, ErrSealedData
	}
	var ephPub KemPublicKey
	copy(ephPub[:], sealed.EphemeralPubKey)

	shared, err := DeriveSharedSecret(recipient, ephPub, TokenInfo)
	if err != nil {
		return nil, fmt.Errorf("key agreement: %w", err)
	}
	gcm, err := tokenAEAD(shared)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, sealed.Nonce, sealed.Ciphertext, append(ephPub[:], aad...))
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plaintext, nil
}

// Bytes serializes sealed data as pubkey || nonce || ciphertext.
func (m *SealedData) Bytes() []byte {
	result := make([]byte, 0, len(m.EphemeralPubKey)+len(m.Nonce)+len(m.Ciphertext))
	result = append(result, m.EphemeralPubKey...)
	result = append(result, m.Nonce...)
	return append(result, m.Ciphertext...)
}

// ParseSealedData splits the output of Bytes.
func ParseSealedData(data []byte) (*SealedData, error) {
	const minLen = curve25519.PointSize + nonceLen + 16
	if len(data) < minLen {
		return nil, ErrSealedData
	}
	return &SealedData{
		EphemeralPubKey: data[:curve25519.PointSize],
		Nonce:           data[curve25519.PointSize : curve25519.PointSize+nonceLen],
		Ciphertext:      data[curve25519.PointSize+nonceLen:],
	}, nil
}
