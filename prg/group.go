package prg

import (
	"errors"
	"fmt"

	"github.com/flashbots/spectrum/algebra"
	"go.dedis.ch/kyber/v3"
	"golang.org/x/crypto/blake2b"
)

// GroupPRG is the seed-homomorphic PRG G(s) = (s*H_1, ..., s*H_n) for public
// generators H_i. Pseudorandomness rests on DDH in the group.
type GroupPRG struct {
	group      algebra.Group
	generators []kyber.Point
}

// NewGroupPRG derives n generators from publicSeed. Every party must use the
// same group, n and publicSeed.
func NewGroupPRG(group algebra.Group, n int, publicSeed []byte) *GroupPRG {
	return &GroupPRG{
		group:      group,
		generators: group.Derive(publicSeed, n),
	}
}

func (p *GroupPRG) Group() algebra.Group { return p.group }

// Len is the number of group elements in one output.
func (p *GroupPRG) Len() int { return len(p.generators) }

func (p *GroupPRG) NewSeed() kyber.Scalar {
	return p.group.Scalars().Random()
}

func (p *GroupPRG) NullSeed() kyber.Scalar {
	return p.group.Scalars().Zero()
}

func (p *GroupPRG) NullOutput() []kyber.Point {
	res := make([]kyber.Point, len(p.generators))
	for i := range res {
		res[i] = p.group.Identity()
	}
	return res
}

func (p *GroupPRG) Expand(seed kyber.Scalar) []kyber.Point {
	res := make([]kyber.Point, len(p.generators))
	for i, h := range p.generators {
		res[i] = p.group.Identity().Mul(seed, h)
	}
	return res
}

// CombineSeeds adds seeds in the scalar field.
func (p *GroupPRG) CombineSeeds(seeds ...kyber.Scalar) kyber.Scalar {
	res := p.NullSeed()
	for _, s := range seeds {
		res = res.Add(res, s)
	}
	return res
}

// CombineOutputs adds outputs elementwise.
func (p *GroupPRG) CombineOutputs(outputs ...[]kyber.Point) []kyber.Point {
	res := p.NullOutput()
	for _, o := range outputs {
		AddVectors(res, o)
	}
	return res
}

// AddVectors sets dst[i] = dst[i] + src[i].
func AddVectors(dst, src []kyber.Point) []kyber.Point {
	if len(dst) != len(src) {
		panic("vector length mismatch")
	}
	for i := range dst {
		dst[i] = dst[i].Add(dst[i], src[i])
	}
	return dst
}

// SubVectors sets dst[i] = dst[i] - src[i].
func SubVectors(dst, src []kyber.Point) []kyber.Point {
	if len(dst) != len(src) {
		panic("vector length mismatch")
	}
	for i := range dst {
		dst[i] = dst[i].Sub(dst[i], src[i])
	}
	return dst
}

// ScaleVector returns s*v as a new vector.
func ScaleVector(group algebra.Group, s kyber.Scalar, v []kyber.Point) []kyber.Point {
	res := make([]kyber.Point, len(v))
	for i := range v {
		res[i] = group.Identity().Mul(s, v[i])
	}
	return res
}

// CloneVector deep-copies v.
func CloneVector(v []kyber.Point) []kyber.Point {
	res := make([]kyber.Point, len(v))
	for i := range v {
		res[i] = v[i].Clone()
	}
	return res
}

// HashVector is blake2b-256 over the concatenated element encodings.
func HashVector(v []kyber.Point) []byte {
	h, _ := blake2b.New256(nil)
	for _, p := range v {
		h.Write(algebra.Bytes(p))
	}
	return h.Sum(nil)
}

// ElementsFor is the number of group elements needed to carry msgLen bytes.
func ElementsFor(group algebra.Group, msgLen int) int {
	if group.EmbedLen() == 0 {
		return 0
	}
	return (msgLen + group.EmbedLen() - 1) / group.EmbedLen()
}

// EncodeMessage splits msg into EmbedLen-sized chunks and embeds each into an
// element. Short messages are padded with the identity up to n elements.
func EncodeMessage(group algebra.Group, msg []byte, n int) ([]kyber.Point, error) {
	if group.EmbedLen() == 0 {
		return nil, errors.New("group cannot embed data")
	}
	if ElementsFor(group, len(msg)) > n {
		return nil, fmt.Errorf("message of %d bytes does not fit %d elements", len(msg), n)
	}
	res := make([]kyber.Point, n)
	for i := range res {
		start := min(i*group.EmbedLen(), len(msg))
		end := min(start+group.EmbedLen(), len(msg))
		if start == end {
			res[i] = group.Identity()
			continue
		}
		res[i] = group.Embed(msg[start:end])
	}
	return res, nil
}

// DecodeMessage reverses EncodeMessage and zero-pads the result to msgLen.
func DecodeMessage(group algebra.Group, v []kyber.Point, msgLen int) ([]byte, error) {
	res := make([]byte, 0, msgLen)
	for i, p := range v {
		chunk, err := group.Data(p)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		res = append(res, chunk...)
	}
	if len(res) > msgLen {
		return nil, fmt.Errorf("decoded %d bytes, expected at most %d", len(res), msgLen)
	}
	return append(res, make([]byte, msgLen-len(res))...), nil
}
