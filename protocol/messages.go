package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/flashbots/spectrum/crypto"
)

var (
	// ErrBadSignature is returned by Signed.Recover for forged or altered messages.
	ErrBadSignature = errors.New("signature not valid")
	// ErrUnknownSigner is returned when the signing key is not the roster's
	// key for the claimed party.
	ErrUnknownSigner = errors.New("signer not in roster")
)

var signingDomain = []byte("spectrum/signed/v1")

// Signed is a message from worker Party. The Ed25519 signature covers the
// party index, the signer's key and the JSON encoding of the object, so a
// share cannot be replayed under another worker's index.
type Signed[T any] struct {
	Party     int              `json:"party"`
	PublicKey crypto.PublicKey `json:"public_key"`
	Signature crypto.Signature `json:"signature"`
	Object    *T               `json:"object"`
}

func signingBytes(party int, pubkey crypto.PublicKey, payload []byte) []byte {
	buf := make([]byte, 0, len(signingDomain)+8+len(pubkey)+len(payload))
	buf = append(buf, signingDomain...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(party))
	buf = append(buf, pubkey...)
	return append(buf, payload...)
}

// NewSigned signs obj as worker party.
func NewSigned[T any](party int, privkey crypto.PrivateKey, obj *T) (*Signed[T], error) {
	pubkey, err := privkey.PublicKey()
	if err != nil {
		return nil, err
	}

	serializedData, err := SerializeMessage(obj)
	if err != nil {
		return nil, err
	}

	signature, err := crypto.Sign(privkey, signingBytes(party, pubkey, serializedData))
	if err != nil {
		return nil, err
	}

	return &Signed[T]{
		Party:     party,
		PublicKey: pubkey,
		Signature: signature,
		Object:    obj,
	}, nil
}

// Recover verifies the signature and returns the object with the signer's key.
func (s *Signed[T]) Recover() (*T, crypto.PublicKey, error) {
	serializedData, err := SerializeMessage(s.Object)
	if err != nil {
		return nil, nil, err
	}

	if !s.Signature.Verify(s.PublicKey, signingBytes(s.Party, s.PublicKey, serializedData)) {
		return nil, nil, ErrBadSignature
	}

	return s.Object, s.PublicKey, nil
}

// RecoverFrom verifies the signature and that it was made with roster's key
// for the claimed party.
func (s *Signed[T]) RecoverFrom(roster []crypto.PublicKey) (*T, error) {
	if s.Party < 0 || s.Party >= len(roster) {
		return nil, fmt.Errorf("%w: party %d of %d", ErrUnknownSigner, s.Party, len(roster))
	}
	if !s.PublicKey.Equal(roster[s.Party]) {
		return nil, fmt.Errorf("%w: key %s for party %d", ErrUnknownSigner, s.PublicKey, s.Party)
	}
	obj, _, err := s.Recover()
	return obj, err
}

// WriteMessage delivers one worker's token of a write.
type WriteMessage struct {
	Epoch   int         `json:"epoch"`
	WriteID uint64      `json:"write_id"`
	Token   *WriteToken `json:"token"`
}

// SealedWriteMessage is a WriteMessage whose token only the addressed
// worker can open.
type SealedWriteMessage struct {
	Epoch   int                `json:"epoch"`
	WriteID uint64             `json:"write_id"`
	Party   int                `json:"party"`
	Token   *crypto.SealedData `json:"token"`
}

// AuditMessage is a worker's audit share for a write, sent to its peers.
type AuditMessage struct {
	Epoch   int         `json:"epoch"`
	WriteID uint64      `json:"write_id"`
	Party   int         `json:"party"`
	Share   *AuditShare `json:"share"`
}

// RevealMessage carries a worker's aggregate to the reveal.
type RevealMessage struct {
	Epoch int   `json:"epoch"`
	Party int   `json:"party"`
	Share Share `json:"share"`
}

// UnmarshalMessage deserializes a message from JSON.
func UnmarshalMessage[T any](data []byte) (*T, error) {
	var msg T
	err := json.Unmarshal(data, &msg)
	return &msg, err
}

// DecodeMessage deserializes a message from a JSON reader.
func DecodeMessage[T any](reader io.Reader) (*T, error) {
	var msg T
	err := json.NewDecoder(reader).Decode(&msg)
	return &msg, err
}

// SerializeMessage serializes a message to JSON.
func SerializeMessage[T any](msg *T) ([]byte, error) {
	return json.Marshal(msg)
}
