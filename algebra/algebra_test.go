package algebra

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/kyber/v3"
)

var toyField = MustModField(big.NewInt(65521))

func testFields(t *testing.T) map[string]Field {
	securityField, err := NewSecurityField(128)
	require.NoError(t, err)
	return map[string]Field{
		"toy":      toyField,
		"security": securityField,
		"curve":    NewCurveField(),
	}
}

func testGroups(t *testing.T) map[string]Group {
	securityField, err := NewSecurityField(128)
	require.NoError(t, err)
	return map[string]Group{
		"toy":      NewModGroup(toyField),
		"security": NewModGroup(securityField),
		"curve":    NewCurveGroup(),
	}
}

func TestFieldAxioms(t *testing.T) {
	for name, f := range testFields(t) {
		t.Run(name, func(t *testing.T) {
			for trial := 0; trial < 50; trial++ {
				a, b, c := f.Random(), f.Random(), f.Random()

				lhs := f.Zero().Add(f.Zero().Add(a, b), c)
				rhs := f.Zero().Add(a, f.Zero().Add(b, c))
				require.True(t, lhs.Equal(rhs), "associativity")

				lhs = f.Zero().Mul(a, f.Zero().Add(b, c))
				rhs = f.Zero().Add(f.Zero().Mul(a, b), f.Zero().Mul(a, c))
				require.True(t, lhs.Equal(rhs), "distributivity")

				require.True(t, f.Zero().Add(a, f.Zero().Neg(a)).Equal(f.Zero()), "additive inverse")

				if !a.Equal(f.Zero()) {
					require.True(t, f.Zero().Mul(a, f.Zero().Inv(a)).Equal(f.One()), "multiplicative inverse")
				}

				require.True(t, f.Zero().Add(a, f.Zero()).Equal(a))
				require.True(t, f.Zero().Mul(a, f.One()).Equal(a))
			}
		})
	}
}

func TestFieldBytesRoundtrip(t *testing.T) {
	for name, f := range testFields(t) {
		t.Run(name, func(t *testing.T) {
			for trial := 0; trial < 20; trial++ {
				a := f.Random()
				data := Bytes(a)
				require.Len(t, data, f.ElementSize())

				decoded, err := f.FromBytes(data)
				require.NoError(t, err)
				require.True(t, decoded.Equal(a))
			}
		})
	}
}

func TestFieldFromBytesErrors(t *testing.T) {
	for name, f := range testFields(t) {
		t.Run(name, func(t *testing.T) {
			_, err := f.FromBytes(make([]byte, f.ElementSize()+1))
			var de *DecodeError
			require.True(t, errors.As(err, &de), err)

			_, err = f.FromBytes(nil)
			require.True(t, errors.As(err, &de), err)

			// all-ones is above the order for every field here
			tooLarge := make([]byte, f.ElementSize())
			for i := range tooLarge {
				tooLarge[i] = 0xff
			}
			_, err = f.FromBytes(tooLarge)
			require.True(t, errors.As(err, &de), err)
		})
	}
}

func TestFieldReduceMatchesFromUint64(t *testing.T) {
	for name, f := range testFields(t) {
		t.Run(name, func(t *testing.T) {
			require.True(t, f.Reduce([]byte{0x01, 0x00}).Equal(f.FromUint64(256)))
			require.True(t, f.Reduce(nil).Equal(f.Zero()))
		})
	}
	require.True(t, toyField.Reduce(big.NewInt(65522).Bytes()).Equal(toyField.One()))
}

func TestSecurityField(t *testing.T) {
	f, err := NewSecurityField(128)
	require.NoError(t, err)
	require.True(t, f.Order().ProbablyPrime(20))
	require.Equal(t, 1, f.Order().Cmp(new(big.Int).Lsh(big.NewInt(1), 129)))

	_, err = NewSecurityField(0)
	require.Error(t, err)

	_, err = NewModField(big.NewInt(65520))
	require.Error(t, err)
}

func TestGroupAxioms(t *testing.T) {
	for name, g := range testGroups(t) {
		t.Run(name, func(t *testing.T) {
			scalars := g.Scalars()
			for trial := 0; trial < 20; trial++ {
				a, b, c := g.Random(), g.Random(), g.Random()

				lhs := g.Identity().Add(g.Identity().Add(a, b), c)
				rhs := g.Identity().Add(a, g.Identity().Add(b, c))
				require.True(t, lhs.Equal(rhs), "associativity")

				require.True(t, g.Identity().Add(a, g.Identity()).Equal(a), "identity")
				require.True(t, g.Identity().Add(a, g.Identity().Neg(a)).Equal(g.Identity()), "inverse")
				require.True(t, g.Identity().Add(a, b).Equal(g.Identity().Add(b, a)), "commutativity")

				// n*G against repeated addition
				n := trial + 1
				repeated := g.Identity()
				for i := 0; i < n; i++ {
					repeated = g.Identity().Add(repeated, a)
				}
				require.True(t, g.Identity().Mul(scalars.FromUint64(uint64(n)), a).Equal(repeated))

				// (x+y)*P == x*P + y*P
				x, y := scalars.Random(), scalars.Random()
				lhs = g.Identity().Mul(scalars.Zero().Add(x, y), a)
				rhs = g.Identity().Add(g.Identity().Mul(x, a), g.Identity().Mul(y, a))
				require.True(t, lhs.Equal(rhs))
			}
		})
	}
}

func TestGroupBytesRoundtrip(t *testing.T) {
	for name, g := range testGroups(t) {
		t.Run(name, func(t *testing.T) {
			for trial := 0; trial < 20; trial++ {
				p := g.Random()
				data := Bytes(p)
				require.Len(t, data, g.ElementSize())
				decoded, err := g.FromBytes(data)
				require.NoError(t, err)
				require.True(t, decoded.Equal(p))
			}

			_, err := g.FromBytes([]byte{1, 2, 3})
			var de *DecodeError
			require.True(t, errors.As(err, &de), err)
		})
	}
}

func TestGroupDeriveDeterministic(t *testing.T) {
	for name, g := range testGroups(t) {
		t.Run(name, func(t *testing.T) {
			first := g.Derive([]byte("seed"), 8)
			second := g.Derive([]byte("seed"), 8)
			other := g.Derive([]byte("other seed"), 8)
			require.Len(t, first, 8)
			for i := range first {
				require.True(t, first[i].Equal(second[i]))
				require.False(t, first[i].Equal(g.Identity()))
			}
			require.False(t, first[0].Equal(other[0]))
		})
	}
}

func TestGroupEmbedRoundtrip(t *testing.T) {
	for name, g := range testGroups(t) {
		t.Run(name, func(t *testing.T) {
			if g.EmbedLen() == 0 {
				t.Skip("modulus too small to carry data")
			}
			data := make([]byte, g.EmbedLen())
			for i := range data {
				data[i] = byte(i + 1)
			}
			for _, l := range []int{0, 1, g.EmbedLen()} {
				p := g.Embed(data[:l])
				recovered, err := g.Data(p)
				require.NoError(t, err)
				require.Equal(t, data[:l], append([]byte{}, recovered...))
			}

			recovered, err := g.Data(g.Identity())
			require.NoError(t, err)
			require.Empty(t, recovered)
		})
	}
}

func TestByName(t *testing.T) {
	g, err := ByName(GroupEd25519, 128)
	require.NoError(t, err)
	require.Equal(t, GroupEd25519, g.Name())

	g, err = ByName(GroupMod, 64)
	require.NoError(t, err)
	require.True(t, g.Scalars().Order().ProbablyPrime(20))

	_, err = ByName("bn256", 128)
	require.Error(t, err)
}

func FuzzModFieldFromBytes(f *testing.F) {
	f.Add([]byte{0x00, 0x00})
	f.Add([]byte{0xff, 0xf0})
	f.Add([]byte{0xff, 0xf1})
	f.Add([]byte{0x01})

	f.Fuzz(func(t *testing.T, data []byte) {
		el, err := toyField.FromBytes(data)

		// Invariant 1: only fixed-width encodings decode
		if len(data) != toyField.ElementSize() {
			if err == nil {
				t.Fatalf("decoded %d-byte input", len(data))
			}
			return
		}

		// Invariant 2: out-of-range values are rejected, in-range accepted
		v := new(big.Int).SetBytes(data)
		if v.Cmp(toyField.Order()) >= 0 {
			if err == nil {
				t.Fatalf("accepted out-of-range value %v", v)
			}
			return
		}
		if err != nil {
			t.Fatalf("rejected in-range value %v: %v", v, err)
		}

		// Invariant 3: encoding is canonical
		if toyField.Int(el).Cmp(v) != 0 {
			t.Fatalf("decoded %v as %v", v, toyField.Int(el))
		}
	})
}

func FuzzModGroupEmbed(f *testing.F) {
	field, _ := NewSecurityField(128)
	g := NewModGroup(field)

	f.Add([]byte("hello"))
	f.Add([]byte{})
	f.Add(make([]byte, 40))

	f.Fuzz(func(t *testing.T, data []byte) {
		p := g.Embed(data)
		recovered, err := g.Data(p)
		if err != nil {
			t.Fatal(err)
		}

		// Invariant 1: embedding keeps a prefix of at most EmbedLen bytes
		want := data
		if len(want) > g.EmbedLen() {
			want = want[:g.EmbedLen()]
		}
		if string(recovered) != string(want) {
			t.Fatalf("got %x, want %x", recovered, want)
		}

		// Invariant 2: embedded points survive encoding
		decoded, err := g.FromBytes(Bytes(p))
		if err != nil || !decoded.Equal(p) {
			t.Fatalf("roundtrip failed: %v", err)
		}
	})
}

var _ kyber.Point = (*modPoint)(nil)
