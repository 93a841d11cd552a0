package algebra

import (
	"crypto/cipher"
	"errors"
	"fmt"
	"math/big"

	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/group/mod"
	"go.dedis.ch/kyber/v3/util/random"
)

// ModField is the prime field Z_p for a configurable modulus p.
type ModField struct {
	modulus *big.Int
}

// NewModField returns the field of integers modulo p. p must be prime; this
// is checked probabilistically.
func NewModField(p *big.Int) (*ModField, error) {
	if p == nil || p.Cmp(big.NewInt(2)) < 0 || !p.ProbablyPrime(20) {
		return nil, errors.New("modulus must be a prime")
	}
	return &ModField{modulus: new(big.Int).Set(p)}, nil
}

// MustModField is NewModField for moduli known to be prime.
func MustModField(p *big.Int) *ModField {
	f, err := NewModField(p)
	if err != nil {
		panic(err.Error())
	}
	return f
}

// NewSecurityField returns the field whose order is the smallest prime above
// 2^(bits+1), so that every element carries at least bits bits of entropy.
func NewSecurityField(bits int) (*ModField, error) {
	if bits < 2 || bits > 4096 {
		return nil, fmt.Errorf("security parameter %d out of range", bits)
	}
	p := new(big.Int).Lsh(big.NewInt(2), uint(bits))
	p.Add(p, big.NewInt(1))
	for !p.ProbablyPrime(20) {
		p.Add(p, big.NewInt(2))
	}
	return &ModField{modulus: p}, nil
}

func (f *ModField) Name() string { return "mod-" + f.modulus.String() }

func (f *ModField) Order() *big.Int { return f.modulus }

func (f *ModField) ElementSize() int { return (f.modulus.BitLen() + 7) / 8 }

func (f *ModField) Zero() kyber.Scalar { return mod.NewInt64(0, f.modulus) }

func (f *ModField) One() kyber.Scalar { return mod.NewInt64(1, f.modulus) }

func (f *ModField) FromUint64(v uint64) kyber.Scalar {
	return mod.NewInt(new(big.Int).SetUint64(v), f.modulus)
}

func (f *ModField) Random() kyber.Scalar { return f.Pick(random.New()) }

func (f *ModField) Pick(stream cipher.Stream) kyber.Scalar {
	return mod.NewInt64(0, f.modulus).Pick(stream)
}

func (f *ModField) FromBytes(data []byte) (kyber.Scalar, error) {
	if len(data) != f.ElementSize() {
		return nil, wrongLength("field element", len(data), f.ElementSize())
	}
	el := mod.NewInt64(0, f.modulus)
	if err := el.UnmarshalBinary(data); err != nil {
		return nil, &DecodeError{What: "field element", Reason: err.Error()}
	}
	return el, nil
}

func (f *ModField) Reduce(data []byte) kyber.Scalar {
	return mod.NewInt(new(big.Int).SetBytes(data), f.modulus)
}

// Int returns the canonical integer representative of a ModField element.
func (f *ModField) Int(s kyber.Scalar) *big.Int {
	return new(big.Int).SetBytes(mustMarshal(s))
}
