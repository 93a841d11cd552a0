package algebra

import (
	"crypto/cipher"
	"errors"
	"math/big"
	"slices"

	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/group/edwards25519"
)

var suite = edwards25519.NewBlakeSHA256Ed25519()

// curveOrder is the prime order l = 2^252 + 27742317777372353535851937790883648493
// of the edwards25519 base point subgroup.
var curveOrder, _ = new(big.Int).SetString("7237005577332262213973186563042994240857116359379907606001950938285454250989", 10)

// CurveField is the scalar field of edwards25519.
type CurveField struct{}

// CurveGroup is the prime-order subgroup of edwards25519.
type CurveGroup struct{}

func NewCurveField() *CurveField { return &CurveField{} }

func NewCurveGroup() *CurveGroup { return &CurveGroup{} }

func (f *CurveField) Name() string { return GroupEd25519 + "-scalar" }

func (f *CurveField) Order() *big.Int { return curveOrder }

func (f *CurveField) ElementSize() int { return suite.ScalarLen() }

func (f *CurveField) Zero() kyber.Scalar { return suite.Scalar().Zero() }

func (f *CurveField) One() kyber.Scalar { return suite.Scalar().One() }

func (f *CurveField) FromUint64(v uint64) kyber.Scalar {
	return f.Reduce(new(big.Int).SetUint64(v).Bytes())
}

func (f *CurveField) Random() kyber.Scalar { return suite.Scalar().Pick(suite.RandomStream()) }

func (f *CurveField) Pick(stream cipher.Stream) kyber.Scalar { return suite.Scalar().Pick(stream) }

// FromBytes accepts only canonical little-endian encodings below the group order.
func (f *CurveField) FromBytes(data []byte) (kyber.Scalar, error) {
	if len(data) != f.ElementSize() {
		return nil, wrongLength("scalar", len(data), f.ElementSize())
	}
	be := slices.Clone(data)
	slices.Reverse(be)
	if new(big.Int).SetBytes(be).Cmp(curveOrder) >= 0 {
		return nil, &DecodeError{What: "scalar", Reason: "value out of range"}
	}
	s := suite.Scalar()
	if err := s.UnmarshalBinary(data); err != nil {
		return nil, &DecodeError{What: "scalar", Reason: err.Error()}
	}
	return s, nil
}

// Reduce interprets data as a big-endian integer, matching ModField.Reduce.
func (f *CurveField) Reduce(data []byte) kyber.Scalar {
	v := new(big.Int).SetBytes(data)
	v.Mod(v, curveOrder)
	le := make([]byte, f.ElementSize())
	v.FillBytes(le)
	slices.Reverse(le)
	return suite.Scalar().SetBytes(le)
}

func (g *CurveGroup) Name() string { return GroupEd25519 }

func (g *CurveGroup) Scalars() Field { return NewCurveField() }

func (g *CurveGroup) ElementSize() int { return suite.PointLen() }

func (g *CurveGroup) Identity() kyber.Point { return suite.Point().Null() }

func (g *CurveGroup) Generator() kyber.Point { return suite.Point().Base() }

func (g *CurveGroup) Random() kyber.Point { return suite.Point().Pick(suite.RandomStream()) }

func (g *CurveGroup) Derive(seed []byte, n int) []kyber.Point {
	xof := suite.XOF(append([]byte("spectrum-ed25519-generators"), seed...))
	res := make([]kyber.Point, n)
	for i := range res {
		res[i] = suite.Point().Pick(xof)
	}
	return res
}

func (g *CurveGroup) FromBytes(data []byte) (kyber.Point, error) {
	if len(data) != g.ElementSize() {
		return nil, wrongLength("group element", len(data), g.ElementSize())
	}
	p := suite.Point()
	if err := p.UnmarshalBinary(data); err != nil {
		return nil, &DecodeError{What: "group element", Reason: err.Error()}
	}
	return p, nil
}

func (g *CurveGroup) EmbedLen() int { return suite.Point().EmbedLen() }

func (g *CurveGroup) Embed(data []byte) kyber.Point {
	return suite.Point().Embed(data, suite.RandomStream())
}

func (g *CurveGroup) Data(p kyber.Point) ([]byte, error) {
	if p.Equal(g.Identity()) {
		return nil, nil
	}
	data, err := p.Data()
	if err != nil {
		return nil, errors.New("ed25519: element carries no embedded data")
	}
	return data, nil
}
