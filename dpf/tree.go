package dpf

import (
	"fmt"
	"math/bits"

	"github.com/flashbots/spectrum/crypto"
	"github.com/flashbots/spectrum/prg"
)

// node expansion reads 2 seeds and one byte of control bits from the stream;
// leaf conversion starts after a fixed offset so the two never overlap.
const (
	nodeExpansionLen = 2*prg.SeedSize + 1
	convertOffset    = 48
)

// Tree is the two-server tree DPF over AESPRG with XOR-combined outputs of
// MessageLen bytes. The domain is padded to the next power of two internally;
// only indices below Domain are valid and evaluated.
type Tree struct {
	Domain     int
	MessageLen int

	depth int
	node  *prg.AESPRG
	leaf  *prg.AESPRG
}

// TreeKey is one server's key: a root seed, one correction word per level and
// a final correction word for the output.
type TreeKey struct {
	Party   int
	Root    prg.Seed
	CWSeeds []prg.Seed
	CWBits  [][2]bool
	FinalCW []byte
}

// Leaf is the seed and control bit a key reaches at one domain point.
type Leaf struct {
	Seed prg.Seed
	T    bool
}

func NewTree(domain, messageLen int) (*Tree, error) {
	if domain < 1 {
		return nil, fmt.Errorf("%w: domain must be positive, got %d", ErrParameters, domain)
	}
	return &Tree{
		Domain:     domain,
		MessageLen: messageLen,
		depth:      bits.Len(uint(domain - 1)),
		node:       prg.NewAESPRG(nodeExpansionLen),
		leaf:       prg.NewAESPRG(convertOffset + messageLen),
	}, nil
}

// Depth is the number of levels, log2 of the padded domain.
func (d *Tree) Depth() int { return d.depth }

func (d *Tree) NumKeys() int { return 2 }

type expansion struct {
	seeds [2]prg.Seed
	ts    [2]bool
}

func (d *Tree) expand(s prg.Seed) expansion {
	out := d.node.Expand(s)
	var e expansion
	copy(e.seeds[0][:], out[:prg.SeedSize])
	copy(e.seeds[1][:], out[prg.SeedSize:2*prg.SeedSize])
	e.ts[0] = out[2*prg.SeedSize]&1 == 1
	e.ts[1] = out[2*prg.SeedSize]&2 == 2
	return e
}

func (d *Tree) convert(s prg.Seed) []byte {
	return d.leaf.Expand(s)[convertOffset:]
}

// pathBit is the direction taken at level lvl towards x, most significant first.
func (d *Tree) pathBit(x, lvl int) int {
	return (x >> (d.depth - 1 - lvl)) & 1
}

// Gen returns the two keys for msg at idx.
func (d *Tree) Gen(idx int, msg []byte) ([]*TreeKey, error) {
	if err := checkIndex(idx, d.Domain); err != nil {
		return nil, err
	}
	padded, err := padMessage(msg, d.MessageLen)
	if err != nil {
		return nil, err
	}

	keys := []*TreeKey{
		{Party: 0, Root: d.node.NewSeed(), CWSeeds: make([]prg.Seed, d.depth), CWBits: make([][2]bool, d.depth)},
		{Party: 1, Root: d.node.NewSeed(), CWSeeds: make([]prg.Seed, d.depth), CWBits: make([][2]bool, d.depth)},
	}

	s := [2]prg.Seed{keys[0].Root, keys[1].Root}
	t := [2]bool{false, true}

	for lvl := 0; lvl < d.depth; lvl++ {
		keep := d.pathBit(idx, lvl)
		lose := 1 - keep

		e := [2]expansion{d.expand(s[0]), d.expand(s[1])}

		sCW := e[0].seeds[lose].Xor(e[1].seeds[lose])
		// control bits must differ on the kept path and agree off it
		var tCW [2]bool
		tCW[keep] = e[0].ts[keep] == e[1].ts[keep]
		tCW[lose] = e[0].ts[lose] != e[1].ts[lose]

		for _, k := range keys {
			k.CWSeeds[lvl] = sCW
			k.CWBits[lvl] = tCW
		}

		for b := 0; b < 2; b++ {
			nextS, nextT := e[b].seeds[keep], e[b].ts[keep]
			if t[b] {
				nextS = nextS.Xor(sCW)
				nextT = nextT != tCW[keep]
			}
			s[b], t[b] = nextS, nextT
		}
	}

	final := d.convert(s[0])
	crypto.XorInplace(final, d.convert(s[1]))
	crypto.XorInplace(final, padded)
	keys[0].FinalCW = final
	keys[1].FinalCW = append([]byte{}, final...)
	return keys, nil
}

// GenEmpty returns keys for the all-zero function.
func (d *Tree) GenEmpty() []*TreeKey {
	keys, err := d.Gen(0, nil)
	if err != nil {
		panic(err.Error())
	}
	return keys
}

func (d *Tree) Validate(key *TreeKey) error {
	if key == nil {
		return invalidKey("nil key")
	}
	if key.Party != 0 && key.Party != 1 {
		return invalidKey("party %d", key.Party)
	}
	if len(key.CWSeeds) != d.depth || len(key.CWBits) != d.depth {
		return invalidKey("key has %d levels, expected %d", len(key.CWSeeds), d.depth)
	}
	if len(key.FinalCW) != d.MessageLen {
		return invalidKey("final correction word has %d bytes, expected %d", len(key.FinalCW), d.MessageLen)
	}
	return nil
}

// child applies the level's correction word to the expansion of (s, t) and
// returns the child in direction dir.
func (d *Tree) child(key *TreeKey, lvl int, e expansion, t bool, dir int) (prg.Seed, bool) {
	s, ct := e.seeds[dir], e.ts[dir]
	if t {
		s = s.Xor(key.CWSeeds[lvl])
		ct = ct != key.CWBits[lvl][dir]
	}
	return s, ct
}

// EvalLeaf walks the tree to x and returns the leaf reached. Cost is one
// node expansion per level.
func (d *Tree) EvalLeaf(key *TreeKey, x int) (Leaf, error) {
	if err := d.Validate(key); err != nil {
		return Leaf{}, err
	}
	if err := checkIndex(x, d.Domain); err != nil {
		return Leaf{}, err
	}
	s, t := key.Root, key.Party == 1
	for lvl := 0; lvl < d.depth; lvl++ {
		s, t = d.child(key, lvl, d.expand(s), t, d.pathBit(x, lvl))
	}
	return Leaf{Seed: s, T: t}, nil
}

// Output converts a leaf reached by key into its share of the output.
func (d *Tree) Output(key *TreeKey, leaf Leaf) []byte {
	out := d.convert(leaf.Seed)
	if leaf.T {
		crypto.XorInplace(out, key.FinalCW)
	}
	return out
}

// Eval expands key at a single point x in O(depth).
func (d *Tree) Eval(key *TreeKey, x int) ([]byte, error) {
	leaf, err := d.EvalLeaf(key, x)
	if err != nil {
		return nil, err
	}
	return d.Output(key, leaf), nil
}

// EvalLeaves expands the tree level by level and returns the leaves of the
// whole domain. Subtrees lying entirely beyond Domain are not expanded.
func (d *Tree) EvalLeaves(key *TreeKey) ([]Leaf, error) {
	if err := d.Validate(key); err != nil {
		return nil, err
	}
	level := []Leaf{{Seed: key.Root, T: key.Party == 1}}
	for lvl := 0; lvl < d.depth; lvl++ {
		// nodes at lvl+1 each cover 2^(depth-lvl-1) leaves
		width := 1 << (d.depth - lvl - 1)
		needed := (d.Domain + width - 1) / width
		next := make([]Leaf, needed)
		for j, parent := range level {
			e := d.expand(parent.Seed)
			for dir := 0; dir < 2; dir++ {
				c := 2*j + dir
				if c >= needed {
					break
				}
				s, t := d.child(key, lvl, e, parent.T, dir)
				next[c] = Leaf{Seed: s, T: t}
			}
		}
		level = next
	}
	return level, nil
}

// EvalFull expands key at every point of the domain.
func (d *Tree) EvalFull(key *TreeKey) ([][]byte, error) {
	leaves, err := d.EvalLeaves(key)
	if err != nil {
		return nil, err
	}
	res := make([][]byte, len(leaves))
	for i, leaf := range leaves {
		res[i] = d.Output(key, leaf)
	}
	return res, nil
}
