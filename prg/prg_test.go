package prg

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/flashbots/spectrum/algebra"
	"github.com/stretchr/testify/require"
)

func testGroups(t *testing.T) map[string]algebra.Group {
	field, err := algebra.NewSecurityField(128)
	require.NoError(t, err)
	return map[string]algebra.Group{
		"toy":   algebra.NewModGroup(algebra.MustModField(big.NewInt(65521))),
		"mod":   algebra.NewModGroup(field),
		"curve": algebra.NewCurveGroup(),
	}
}

func TestAESPRGDeterministic(t *testing.T) {
	p := NewAESPRG(100)
	seed := p.NewSeed()

	first := p.Expand(seed)
	require.Len(t, first, 100)
	require.Equal(t, first, p.Expand(seed))
	require.NotEqual(t, first, p.Expand(p.NewSeed()))
	require.NotEqual(t, make([]byte, 100), first)
}

func TestAESPRGStreamRestartable(t *testing.T) {
	p := NewAESPRG(64)
	seed := p.NewSeed()
	full := p.Expand(seed)

	// consuming part of one stream does not affect a fresh one
	s1 := p.Stream(seed)
	skip := make([]byte, 40)
	s1.XORKeyStream(skip, skip)

	prefix := make([]byte, 16)
	p.Stream(seed).XORKeyStream(prefix, prefix)
	require.Equal(t, full[:16], prefix)

	// reading in pieces matches reading at once
	s2 := p.Stream(seed)
	pieces := make([]byte, 64)
	s2.XORKeyStream(pieces[:7], pieces[:7])
	s2.XORKeyStream(pieces[7:], pieces[7:])
	require.Equal(t, full, pieces)
}

func TestAESPRGExpandInto(t *testing.T) {
	p := NewAESPRG(33)
	a, b := p.NewSeed(), p.NewSeed()

	dst := make([]byte, 33)
	p.ExpandInto(dst, a)
	p.ExpandInto(dst, b)
	require.Equal(t, p.CombineOutputs(p.Expand(a), p.Expand(b)), dst)

	p.ExpandInto(dst, b)
	require.Equal(t, p.Expand(a), dst)
}

func TestSeedFromBytes(t *testing.T) {
	p := NewAESPRG(1)
	seed := p.NewSeed()
	decoded, err := SeedFromBytes(seed.Bytes())
	require.NoError(t, err)
	require.Equal(t, seed, decoded)

	_, err = SeedFromBytes([]byte{1, 2})
	require.Error(t, err)

	require.Equal(t, p.NullSeed(), seed.Xor(seed))
}

func TestGroupPRGHomomorphism(t *testing.T) {
	for name, g := range testGroups(t) {
		t.Run(name, func(t *testing.T) {
			p := NewGroupPRG(g, 5, []byte("public"))
			require.Equal(t, 5, p.Len())

			for trial := 0; trial < 10; trial++ {
				a, b := p.NewSeed(), p.NewSeed()
				lhs := p.CombineOutputs(p.Expand(a), p.Expand(b))
				rhs := p.Expand(p.CombineSeeds(a, b))
				for i := range lhs {
					require.True(t, lhs[i].Equal(rhs[i]))
				}
			}

			null := p.Expand(p.NullSeed())
			for i := range null {
				require.True(t, null[i].Equal(g.Identity()))
			}
		})
	}
}

func TestGroupPRGDeterministic(t *testing.T) {
	g := algebra.NewCurveGroup()
	p1 := NewGroupPRG(g, 3, []byte("public"))
	p2 := NewGroupPRG(g, 3, []byte("public"))
	seed := p1.NewSeed()

	out1, out2 := p1.Expand(seed), p2.Expand(seed)
	for i := range out1 {
		require.True(t, out1[i].Equal(out2[i]))
	}
	require.Equal(t, HashVector(out1), HashVector(out2))

	other := NewGroupPRG(g, 3, []byte("other")).Expand(seed)
	require.NotEqual(t, HashVector(out1), HashVector(other))
}

func TestMessageEncoding(t *testing.T) {
	for name, g := range testGroups(t) {
		t.Run(name, func(t *testing.T) {
			if g.EmbedLen() == 0 {
				_, err := EncodeMessage(g, []byte{1}, 1)
				require.Error(t, err)
				return
			}

			msg := bytes.Repeat([]byte{0xab, 0x00, 0x17}, 20)
			n := ElementsFor(g, len(msg))
			v, err := EncodeMessage(g, msg, n)
			require.NoError(t, err)
			require.Len(t, v, n)

			decoded, err := DecodeMessage(g, v, len(msg))
			require.NoError(t, err)
			require.Equal(t, msg, decoded)

			// padded with identity elements
			v, err = EncodeMessage(g, msg[:3], n)
			require.NoError(t, err)
			decoded, err = DecodeMessage(g, v, len(msg))
			require.NoError(t, err)
			require.Equal(t, append(msg[:3:3], make([]byte, len(msg)-3)...), decoded)

			_, err = EncodeMessage(g, msg, n-1)
			require.Error(t, err)
		})
	}
}

func TestVectorOps(t *testing.T) {
	g := algebra.NewCurveGroup()
	p := NewGroupPRG(g, 4, nil)
	a := p.Expand(p.NewSeed())
	b := p.Expand(p.NewSeed())

	sum := AddVectors(CloneVector(a), b)
	back := SubVectors(sum, b)
	for i := range a {
		require.True(t, back[i].Equal(a[i]))
	}

	two := g.Scalars().FromUint64(2)
	doubled := ScaleVector(g, two, a)
	for i := range a {
		require.True(t, doubled[i].Equal(g.Identity().Add(a[i], a[i])))
	}
}

func FuzzAESPRGExpand(f *testing.F) {
	f.Add([]byte("0123456789abcdef"), 0)
	f.Add([]byte("0123456789abcdef"), 16)
	f.Add(make([]byte, 16), 1000)

	f.Fuzz(func(t *testing.T, rawSeed []byte, n int) {
		if len(rawSeed) != SeedSize || n < 0 || n > 4096 {
			t.Skip()
		}
		seed, _ := SeedFromBytes(rawSeed)
		out := NewAESPRG(n).Expand(seed)

		// Invariant 1: output length is exactly n
		if len(out) != n {
			t.Fatalf("got %d bytes, want %d", len(out), n)
		}

		// Invariant 2: shorter expansions are prefixes of longer ones
		longer := NewAESPRG(n + 17).Expand(seed)
		if !bytes.Equal(out, longer[:n]) {
			t.Fatal("expansion is not prefix-stable")
		}
	})
}
