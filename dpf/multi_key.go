package dpf

import (
	"fmt"

	"github.com/flashbots/spectrum/algebra"
	"github.com/flashbots/spectrum/prg"
	"go.dedis.ch/kyber/v3"
)

// MultiKey is the N-server DPF over a seed-homomorphic GroupPRG.
//
// Bits and seeds are additive shares in the scalar field. Away from the chosen
// index both share zero; at the index the bits share one and the seeds share
// -s*, so the sum of expansions there is encoded - G(s*) = msg.
type MultiKey struct {
	Parties  int
	Channels int
	PRG      *prg.GroupPRG
}

// MultiKeyKey is one server's key.
type MultiKeyKey struct {
	EncodedMsg []kyber.Point
	Bits       []kyber.Scalar
	Seeds      []kyber.Scalar
}

func NewMultiKey(parties, channels int, groupPRG *prg.GroupPRG) (*MultiKey, error) {
	if parties < 2 {
		return nil, fmt.Errorf("%w: need at least 2 parties, got %d", ErrParameters, parties)
	}
	return &MultiKey{Parties: parties, Channels: channels, PRG: groupPRG}, nil
}

func (d *MultiKey) NumKeys() int { return d.Parties }

func (d *MultiKey) Group() algebra.Group { return d.PRG.Group() }

func (d *MultiKey) scalars() algebra.Field { return d.PRG.Group().Scalars() }

// Gen returns Parties keys encoding msg, a vector of PRG.Len() elements, at idx.
func (d *MultiKey) Gen(msg []kyber.Point, idx int) ([]*MultiKeyKey, error) {
	if err := checkIndex(idx, d.Channels); err != nil {
		return nil, err
	}
	if len(msg) != d.PRG.Len() {
		return nil, fmt.Errorf("%w: message has %d elements, expected %d", ErrParameters, len(msg), d.PRG.Len())
	}

	keys := d.zeroShares()

	seed := d.PRG.NewSeed()
	bit0 := keys[0].Bits[idx]
	keys[0].Bits[idx] = bit0.Add(bit0, d.scalars().One())
	seed0 := keys[0].Seeds[idx]
	keys[0].Seeds[idx] = seed0.Sub(seed0, seed)

	encoded := prg.AddVectors(prg.CloneVector(msg), d.PRG.Expand(seed))
	for _, k := range keys {
		k.EncodedMsg = prg.CloneVector(encoded)
	}
	return keys, nil
}

// GenEmpty returns keys whose combination is the identity on every channel.
func (d *MultiKey) GenEmpty() []*MultiKeyKey {
	keys := d.zeroShares()
	encoded := d.PRG.Expand(d.PRG.NewSeed())
	for _, k := range keys {
		k.EncodedMsg = prg.CloneVector(encoded)
	}
	return keys
}

// zeroShares returns keys whose bits and seeds are random shares of zero.
func (d *MultiKey) zeroShares() []*MultiKeyKey {
	field := d.scalars()
	keys := make([]*MultiKeyKey, d.Parties)
	for p := range keys {
		keys[p] = &MultiKeyKey{
			Bits:  make([]kyber.Scalar, d.Channels),
			Seeds: make([]kyber.Scalar, d.Channels),
		}
	}
	for i := 0; i < d.Channels; i++ {
		bitSum, seedSum := field.Zero(), field.Zero()
		for p := 1; p < d.Parties; p++ {
			keys[p].Bits[i] = field.Random()
			keys[p].Seeds[i] = field.Random()
			bitSum = bitSum.Add(bitSum, keys[p].Bits[i])
			seedSum = seedSum.Add(seedSum, keys[p].Seeds[i])
		}
		keys[0].Bits[i] = field.Zero().Neg(bitSum)
		keys[0].Seeds[i] = field.Zero().Neg(seedSum)
	}
	return keys
}

func (d *MultiKey) Validate(key *MultiKeyKey) error {
	if key == nil {
		return invalidKey("nil key")
	}
	if len(key.EncodedMsg) != d.PRG.Len() {
		return invalidKey("encoded message has %d elements, expected %d", len(key.EncodedMsg), d.PRG.Len())
	}
	if len(key.Bits) != d.Channels || len(key.Seeds) != d.Channels {
		return invalidKey("key covers %d bits and %d seeds, expected %d channels", len(key.Bits), len(key.Seeds), d.Channels)
	}
	return nil
}

func (d *MultiKey) Eval(key *MultiKeyKey, idx int) ([]kyber.Point, error) {
	if err := d.Validate(key); err != nil {
		return nil, err
	}
	if err := checkIndex(idx, d.Channels); err != nil {
		return nil, err
	}
	return d.eval(key, idx), nil
}

func (d *MultiKey) eval(key *MultiKeyKey, idx int) []kyber.Point {
	out := d.PRG.Expand(key.Seeds[idx])
	return prg.AddVectors(out, prg.ScaleVector(d.Group(), key.Bits[idx], key.EncodedMsg))
}

func (d *MultiKey) EvalFull(key *MultiKeyKey) ([][]kyber.Point, error) {
	if err := d.Validate(key); err != nil {
		return nil, err
	}
	res := make([][]kyber.Point, d.Channels)
	for i := range res {
		res[i] = d.eval(key, i)
	}
	return res, nil
}

// Combine adds the full-domain expansions of all keys.
func (d *MultiKey) Combine(expansions ...[][]kyber.Point) [][]kyber.Point {
	res := make([][]kyber.Point, d.Channels)
	for i := range res {
		res[i] = d.PRG.NullOutput()
		for _, e := range expansions {
			prg.AddVectors(res[i], e[i])
		}
	}
	return res
}
