package vdpf

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/flashbots/spectrum/dpf"
	"github.com/flashbots/spectrum/prg"
	"golang.org/x/crypto/blake2b"
)

// ProofLen is the size of a tree proof and correction seed.
const ProofLen = blake2b.Size

var (
	zeroProof [ProofLen]byte

	leafHashKey = []byte("spectrum-vdpf-leaf")
	foldHashKey = []byte("spectrum-vdpf-fold")
)

// Tree is the hash-based verifiable DPF over dpf.Tree.
//
// At the written leaf the two workers hold different seeds and control bits
// t0 != t1; everywhere else they hold equal ones. The correction seed
// cs = H(x*|s0|t0) ^ H(x*|s1|t1) makes H(x|s|t) ^ t*cs agree at every leaf of
// an honest key pair, and folding those values into a running hash yields
// equal proofs. The leaf hash covers the control bit, so leaves that differ
// only in t still hash apart, and a second differing leaf would need a hash
// collision. The proof also covers the correction words, which both keys must
// carry identically. A zero correction seed is never honest and is refused.
type Tree struct {
	*dpf.Tree
}

func NewTree(domain, messageLen int) (*Tree, error) {
	d, err := dpf.NewTree(domain, messageLen)
	if err != nil {
		return nil, err
	}
	return &Tree{Tree: d}, nil
}

func leafHash(x int, seed prg.Seed, t bool) []byte {
	h, _ := blake2b.New512(leafHashKey)
	var xb [9]byte
	binary.BigEndian.PutUint64(xb[:8], uint64(x))
	if t {
		xb[8] = 1
	}
	h.Write(xb[:])
	h.Write(seed[:])
	return h.Sum(nil)
}

func fold(pi, v []byte) []byte {
	in := make([]byte, ProofLen)
	for i := range in {
		in[i] = pi[i] ^ v[i]
	}
	h, _ := blake2b.New512(foldHashKey)
	h.Write(in)
	out := h.Sum(nil)
	for i := range out {
		out[i] ^= pi[i]
	}
	return out
}

// Gen returns the two keys for msg at idx and the shared correction seed.
func (v *Tree) Gen(idx int, msg []byte) ([]*dpf.TreeKey, []byte, error) {
	keys, err := v.Tree.Gen(idx, msg)
	if err != nil {
		return nil, nil, err
	}
	cs, err := v.correction(keys, idx)
	if err != nil {
		return nil, nil, err
	}
	return keys, cs, nil
}

// GenEmpty returns keys for the all-zero function and their correction seed.
func (v *Tree) GenEmpty() ([]*dpf.TreeKey, []byte) {
	keys := v.Tree.GenEmpty()
	cs, err := v.correction(keys, 0)
	if err != nil {
		panic(err.Error())
	}
	return keys, cs
}

func (v *Tree) correction(keys []*dpf.TreeKey, idx int) ([]byte, error) {
	l0, err := v.EvalLeaf(keys[0], idx)
	if err != nil {
		return nil, err
	}
	l1, err := v.EvalLeaf(keys[1], idx)
	if err != nil {
		return nil, err
	}
	cs := leafHash(idx, l0.Seed, l0.T)
	for i, b := range leafHash(idx, l1.Seed, l1.T) {
		cs[i] ^= b
	}
	return cs, nil
}

// EvalFullWithProof expands key over the domain and returns the worker's proof.
func (v *Tree) EvalFullWithProof(key *dpf.TreeKey, cs []byte) ([][]byte, []byte, error) {
	if len(cs) != ProofLen {
		return nil, nil, fmt.Errorf("%w: correction seed has %d bytes, expected %d", ErrInvalidKey, len(cs), ProofLen)
	}
	if bytes.Equal(cs, zeroProof[:]) {
		return nil, nil, fmt.Errorf("%w: zero correction seed", ErrInvalidKey)
	}
	leaves, err := v.EvalLeaves(key)
	if err != nil {
		return nil, nil, err
	}
	rows := make([][]byte, len(leaves))
	pi := bytes.Clone(cs)
	for x, leaf := range leaves {
		rows[x] = v.Output(key, leaf)
		h := leafHash(x, leaf.Seed, leaf.T)
		if leaf.T {
			for i := range h {
				h[i] ^= cs[i]
			}
		}
		pi = fold(pi, h)
	}
	return rows, fold(pi, publicDigest(key, cs)), nil
}

// publicDigest binds the proof to the key material both workers must share.
func publicDigest(key *dpf.TreeKey, cs []byte) []byte {
	h, _ := blake2b.New512(nil)
	for lvl, s := range key.CWSeeds {
		h.Write(s[:])
		var tb byte
		if key.CWBits[lvl][0] {
			tb |= 1
		}
		if key.CWBits[lvl][1] {
			tb |= 2
		}
		h.Write([]byte{tb})
	}
	h.Write(key.FinalCW)
	h.Write(cs)
	return h.Sum(nil)
}

// GenAudit returns the worker's proof for its key.
func (v *Tree) GenAudit(key *dpf.TreeKey, cs []byte) ([]byte, error) {
	_, pi, err := v.EvalFullWithProof(key, cs)
	return pi, err
}

// CheckAudit accepts iff both proofs are present and equal.
func (v *Tree) CheckAudit(proofs [][]byte) bool {
	return len(proofs) == 2 && len(proofs[0]) == ProofLen && bytes.Equal(proofs[0], proofs[1])
}

func (v *Tree) Verify(proofs [][]byte) error {
	return verdict(v.CheckAudit(proofs))
}
