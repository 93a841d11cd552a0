// Package algebra provides the finite fields and prime-order groups the rest of
// the module is written against.
//
// Field elements are kyber.Scalar values and group elements are kyber.Point
// values, so protocol code never depends on a concrete variant. Two pairs are
// provided:
//
//   - ModField / ModGroup: a prime field of arbitrary modulus and its additive
//     group. Cheap, used for property tests with toy moduli.
//   - CurveField / CurveGroup: the scalar field and point group of edwards25519,
//     used for production security.
//
// The group is chosen once per session (see ByName) and shared by the PRG, DPF
// and VDPF layers.
package algebra

import (
	"crypto/cipher"
	"fmt"
	"math/big"

	"go.dedis.ch/kyber/v3"
)

// Field is a finite field of prime order.
type Field interface {
	// Name identifies the field in configuration and logs.
	Name() string

	// Order returns the field's prime order. The returned value must not be modified.
	Order() *big.Int

	// ElementSize is the fixed width of an encoded element in bytes.
	ElementSize() int

	Zero() kyber.Scalar
	One() kyber.Scalar
	FromUint64(v uint64) kyber.Scalar

	// Random samples a uniform element from a cryptographic source.
	Random() kyber.Scalar

	// Pick samples an element from the given stream. A deterministic stream
	// yields a deterministic element.
	Pick(stream cipher.Stream) kyber.Scalar

	// FromBytes decodes an element of exactly ElementSize bytes, failing with
	// a *DecodeError on wrong width or out-of-range value.
	FromBytes(data []byte) (kyber.Scalar, error)

	// Reduce interprets arbitrary bytes as an integer and reduces it modulo
	// the order. Never fails.
	Reduce(data []byte) kyber.Scalar
}

// Group is a prime-order cyclic group written additively, with Scalars as
// its associated scalar field.
type Group interface {
	Name() string

	// Scalars returns the field of exponents (scalars) of the group.
	Scalars() Field

	// ElementSize is the fixed width of an encoded element in bytes.
	ElementSize() int

	Identity() kyber.Point
	Generator() kyber.Point
	Random() kyber.Point

	// Derive deterministically derives n elements from a public seed. The
	// elements have no known discrete-log relation to each other.
	Derive(seed []byte, n int) []kyber.Point

	// FromBytes decodes a canonical element encoding, failing with a
	// *DecodeError on malformed input.
	FromBytes(data []byte) (kyber.Point, error)

	// EmbedLen is the number of message bytes a single element can carry.
	EmbedLen() int

	// Embed encodes up to EmbedLen bytes of data into a group element.
	Embed(data []byte) kyber.Point

	// Data recovers the bytes embedded by Embed. The identity decodes to no data.
	Data(p kyber.Point) ([]byte, error)
}

// DecodeError reports a malformed byte encoding of a field or group element.
type DecodeError struct {
	What   string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %s", e.What, e.Reason)
}

func wrongLength(what string, got, want int) *DecodeError {
	return &DecodeError{What: what, Reason: fmt.Sprintf("wrong length %d, expected %d", got, want)}
}

// Group names accepted by ByName.
const (
	GroupEd25519 = "ed25519"
	GroupMod     = "mod"
)

// ByName resolves a configured group. For GroupMod the group is the additive
// group of the security field with securityBits of security.
func ByName(name string, securityBits int) (Group, error) {
	switch name {
	case GroupEd25519, "":
		return NewCurveGroup(), nil
	case GroupMod:
		field, err := NewSecurityField(securityBits)
		if err != nil {
			return nil, err
		}
		return NewModGroup(field), nil
	default:
		return nil, fmt.Errorf("unknown group %q", name)
	}
}

// MarshalScalars encodes a slice of scalars, each at fixed width.
func MarshalScalars(scalars []kyber.Scalar) [][]byte {
	res := make([][]byte, len(scalars))
	for i, s := range scalars {
		res[i] = mustMarshal(s)
	}
	return res
}

// UnmarshalScalars decodes a slice of element encodings, failing on the first malformed one.
func UnmarshalScalars(field Field, data [][]byte) ([]kyber.Scalar, error) {
	res := make([]kyber.Scalar, len(data))
	for i, d := range data {
		s, err := field.FromBytes(d)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		res[i] = s
	}
	return res, nil
}

// MarshalPoints encodes a slice of group elements.
func MarshalPoints(points []kyber.Point) [][]byte {
	res := make([][]byte, len(points))
	for i, p := range points {
		res[i] = mustMarshal(p)
	}
	return res
}

// UnmarshalPoints decodes a slice of group element encodings.
func UnmarshalPoints(group Group, data [][]byte) ([]kyber.Point, error) {
	res := make([]kyber.Point, len(data))
	for i, d := range data {
		p, err := group.FromBytes(d)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		res[i] = p
	}
	return res, nil
}

type binaryMarshaler interface {
	MarshalBinary() ([]byte, error)
}

// Element encodings in this module never fail.
func mustMarshal(m binaryMarshaler) []byte {
	data, err := m.MarshalBinary()
	if err != nil {
		panic(err.Error())
	}
	return data
}

// Bytes returns the canonical encoding of a scalar or point.
func Bytes(m binaryMarshaler) []byte {
	return mustMarshal(m)
}
