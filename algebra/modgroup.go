package algebra

import (
	"bytes"
	"crypto/cipher"
	"errors"
	"io"

	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/group/mod"
	"go.dedis.ch/kyber/v3/util/random"
	"go.dedis.ch/kyber/v3/xof/blake2xb"
)

// ModGroup is the additive group of a prime field. Scalar multiplication is
// field multiplication, so discrete logs are trivial; the group serves tests
// and benchmarks where speed matters more than hardness.
type ModGroup struct {
	field *ModField
}

// NewModGroup returns the additive group of field.
func NewModGroup(field *ModField) *ModGroup {
	return &ModGroup{field: field}
}

func (g *ModGroup) Name() string { return GroupMod + "-" + g.field.Order().String() }

func (g *ModGroup) Scalars() Field { return g.field }

func (g *ModGroup) ElementSize() int { return g.field.ElementSize() }

func (g *ModGroup) Identity() kyber.Point { return g.point().Null() }

func (g *ModGroup) Generator() kyber.Point { return g.point().Base() }

func (g *ModGroup) Random() kyber.Point { return g.point().Pick(random.New()) }

func (g *ModGroup) Derive(seed []byte, n int) []kyber.Point {
	xof := blake2xb.New(append([]byte("spectrum-mod-generators"), seed...))
	res := make([]kyber.Point, 0, n)
	for len(res) < n {
		p := g.point().Pick(xof)
		if p.Equal(g.Identity()) {
			continue
		}
		res = append(res, p)
	}
	return res
}

func (g *ModGroup) FromBytes(data []byte) (kyber.Point, error) {
	s, err := g.field.FromBytes(data)
	if err != nil {
		var de *DecodeError
		if errors.As(err, &de) {
			de.What = "group element"
		}
		return nil, err
	}
	return &modPoint{v: s.(*mod.Int), field: g.field}, nil
}

// EmbedLen leaves a zero high byte (so the value stays below the modulus) and a
// length byte, which caps it at 255.
func (g *ModGroup) EmbedLen() int {
	if n := g.ElementSize() - 2; n > 0 {
		return min(n, 255)
	}
	return 0
}

func (g *ModGroup) Embed(data []byte) kyber.Point {
	return g.point().Embed(data, nil)
}

func (g *ModGroup) Data(p kyber.Point) ([]byte, error) {
	return p.Data()
}

func (g *ModGroup) point() *modPoint {
	return &modPoint{v: g.field.Zero().(*mod.Int), field: g.field}
}

// modPoint implements kyber.Point over the additive group of a ModField.
type modPoint struct {
	v     *mod.Int
	field *ModField
}

func (p *modPoint) other(o kyber.Point) *modPoint {
	op, ok := o.(*modPoint)
	if !ok {
		panic("mod group: incompatible point type")
	}
	return op
}

func (p *modPoint) MarshalBinary() ([]byte, error) { return p.v.MarshalBinary() }

func (p *modPoint) UnmarshalBinary(data []byte) error { return p.v.UnmarshalBinary(data) }

func (p *modPoint) String() string { return p.v.String() }

func (p *modPoint) MarshalSize() int { return p.v.MarshalSize() }

func (p *modPoint) MarshalTo(w io.Writer) (int, error) { return p.v.MarshalTo(w) }

func (p *modPoint) UnmarshalFrom(r io.Reader) (int, error) { return p.v.UnmarshalFrom(r) }

func (p *modPoint) Equal(o kyber.Point) bool { return p.v.Equal(p.other(o).v) }

func (p *modPoint) Null() kyber.Point {
	p.v.Zero()
	return p
}

func (p *modPoint) Base() kyber.Point {
	p.v.One()
	return p
}

func (p *modPoint) Pick(rand cipher.Stream) kyber.Point {
	p.v.Pick(rand)
	return p
}

func (p *modPoint) Set(o kyber.Point) kyber.Point {
	p.v.Set(p.other(o).v)
	return p
}

func (p *modPoint) Clone() kyber.Point {
	return &modPoint{v: p.v.Clone().(*mod.Int), field: p.field}
}

func (p *modPoint) EmbedLen() int {
	return NewModGroup(p.field).EmbedLen()
}

// Embed stores big-endian [0x00, len, data..., 0-padding]. The random stream is unused.
func (p *modPoint) Embed(data []byte, _ cipher.Stream) kyber.Point {
	size := p.v.MarshalSize()
	dl := p.EmbedLen()
	if dl > len(data) {
		dl = len(data)
	}
	buf := make([]byte, size)
	if size >= 2 {
		buf[1] = byte(dl)
		copy(buf[2:], data[:dl])
	}
	p.v.SetBytes(buf)
	return p
}

func (p *modPoint) Data() ([]byte, error) {
	buf, err := p.v.MarshalBinary()
	if err != nil {
		return nil, err
	}
	if len(buf) < 2 || buf[0] != 0 {
		return nil, errors.New("mod group: element carries no embedded data")
	}
	dl := int(buf[1])
	if dl > p.EmbedLen() {
		return nil, errors.New("mod group: invalid embedded length")
	}
	if !bytes.Equal(buf[2+dl:], make([]byte, len(buf)-2-dl)) {
		return nil, errors.New("mod group: non-zero padding")
	}
	return buf[2 : 2+dl], nil
}

func (p *modPoint) Add(a, b kyber.Point) kyber.Point {
	p.v.Add(p.other(a).v, p.other(b).v)
	return p
}

func (p *modPoint) Sub(a, b kyber.Point) kyber.Point {
	p.v.Sub(p.other(a).v, p.other(b).v)
	return p
}

func (p *modPoint) Neg(a kyber.Point) kyber.Point {
	p.v.Neg(p.other(a).v)
	return p
}

func (p *modPoint) Mul(s kyber.Scalar, a kyber.Point) kyber.Point {
	if a == nil {
		a = NewModGroup(p.field).Generator()
	}
	p.v.Mul(s, p.other(a).v)
	return p
}
