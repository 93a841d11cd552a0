package dpf

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"github.com/flashbots/spectrum/algebra"
	"github.com/flashbots/spectrum/prg"
	"github.com/montanaflynn/stats"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/kyber/v3"
)

const numTrials = 20

func requireOnlyAt(t *testing.T, combined [][]byte, idx int, msg []byte) {
	t.Helper()
	for i, row := range combined {
		if i == idx {
			require.Equal(t, msg, row, "channel %d", i)
		} else {
			require.Equal(t, make([]byte, len(row)), row, "channel %d", i)
		}
	}
}

func TestTwoKeyCorrectness(t *testing.T) {
	d := NewTwoKey(10, 24)
	for trial := 0; trial < numTrials; trial++ {
		idx := trial % d.Channels
		msg := bytes.Repeat([]byte{byte(trial + 1)}, d.MessageLen)

		keys, err := d.Gen(msg, idx)
		require.NoError(t, err)
		require.Len(t, keys, 2)

		e0, err := d.EvalFull(keys[0])
		require.NoError(t, err)
		e1, err := d.EvalFull(keys[1])
		require.NoError(t, err)
		requireOnlyAt(t, CombineBytes(e0, e1), idx, msg)

		for i := 0; i < d.Channels; i++ {
			v, err := d.Eval(keys[0], i)
			require.NoError(t, err)
			require.Equal(t, e0[i], v)
		}
	}
}

func TestTwoKeyShortMessagePadded(t *testing.T) {
	d := NewTwoKey(4, 8)
	keys, err := d.Gen([]byte{0xab}, 2)
	require.NoError(t, err)
	e0, _ := d.EvalFull(keys[0])
	e1, _ := d.EvalFull(keys[1])
	requireOnlyAt(t, CombineBytes(e0, e1), 2, []byte{0xab, 0, 0, 0, 0, 0, 0, 0})

	_, err = d.Gen(make([]byte, 9), 0)
	require.ErrorIs(t, err, ErrParameters)
}

func TestTwoKeyEmpty(t *testing.T) {
	d := NewTwoKey(5, 16)
	keys := d.GenEmpty()
	e0, err := d.EvalFull(keys[0])
	require.NoError(t, err)
	e1, err := d.EvalFull(keys[1])
	require.NoError(t, err)
	requireOnlyAt(t, CombineBytes(e0, e1), -1, nil)
}

func TestTwoKeyErrors(t *testing.T) {
	d := NewTwoKey(4, 8)
	_, err := d.Gen(nil, 4)
	require.ErrorIs(t, err, ErrInvalidIndex)
	_, err = d.Gen(nil, -1)
	require.ErrorIs(t, err, ErrInvalidIndex)

	keys, err := d.Gen(nil, 1)
	require.NoError(t, err)
	_, err = d.Eval(keys[0], 7)
	require.ErrorIs(t, err, ErrInvalidIndex)

	truncated := *keys[0]
	truncated.Seeds = truncated.Seeds[:2]
	_, err = d.EvalFull(&truncated)
	require.ErrorIs(t, err, ErrInvalidKey)

	_, err = d.EvalFull(nil)
	require.ErrorIs(t, err, ErrInvalidKey)
}

func testMultiKey(t *testing.T, parties, channels int, group algebra.Group) *MultiKey {
	d, err := NewMultiKey(parties, channels, prg.NewGroupPRG(group, 3, []byte("test")))
	require.NoError(t, err)
	return d
}

func requirePointsOnlyAt(t *testing.T, d *MultiKey, combined [][]kyber.Point, idx int, msg []kyber.Point) {
	t.Helper()
	for i, row := range combined {
		for j := range row {
			if i == idx {
				require.True(t, row[j].Equal(msg[j]), "channel %d element %d", i, j)
			} else {
				require.True(t, row[j].Equal(d.Group().Identity()), "channel %d element %d", i, j)
			}
		}
	}
}

func TestMultiKeyCorrectness(t *testing.T) {
	field, err := algebra.NewSecurityField(128)
	require.NoError(t, err)
	groups := map[string]algebra.Group{
		"mod":   algebra.NewModGroup(field),
		"curve": algebra.NewCurveGroup(),
	}
	for name, group := range groups {
		t.Run(name, func(t *testing.T) {
			for _, parties := range []int{2, 3, 5} {
				d := testMultiKey(t, parties, 6, group)
				idx := parties % d.Channels
				msg := d.PRG.Expand(d.PRG.NewSeed())

				keys, err := d.Gen(msg, idx)
				require.NoError(t, err)
				require.Len(t, keys, parties)

				expansions := make([][][]kyber.Point, parties)
				for p, k := range keys {
					expansions[p], err = d.EvalFull(k)
					require.NoError(t, err)

					single, err := d.Eval(k, idx)
					require.NoError(t, err)
					for j := range single {
						require.True(t, single[j].Equal(expansions[p][idx][j]))
					}
				}
				requirePointsOnlyAt(t, d, d.Combine(expansions...), idx, msg)
			}
		})
	}
}

func TestMultiKeyEmpty(t *testing.T) {
	d := testMultiKey(t, 3, 4, algebra.NewCurveGroup())
	keys := d.GenEmpty()
	expansions := make([][][]kyber.Point, len(keys))
	for p, k := range keys {
		var err error
		expansions[p], err = d.EvalFull(k)
		require.NoError(t, err)
	}
	requirePointsOnlyAt(t, d, d.Combine(expansions...), -1, nil)
}

func TestMultiKeyErrors(t *testing.T) {
	d := testMultiKey(t, 2, 4, algebra.NewCurveGroup())
	_, err := d.Gen(d.PRG.NullOutput(), 4)
	require.ErrorIs(t, err, ErrInvalidIndex)
	_, err = d.Gen(d.PRG.NullOutput()[:1], 0)
	require.ErrorIs(t, err, ErrParameters)

	keys, err := d.Gen(d.PRG.NullOutput(), 0)
	require.NoError(t, err)
	bad := *keys[1]
	bad.Bits = bad.Bits[1:]
	_, err = d.EvalFull(&bad)
	require.ErrorIs(t, err, ErrInvalidKey)

	_, err = NewMultiKey(1, 4, d.PRG)
	require.ErrorIs(t, err, ErrParameters)
}

func TestTreeCorrectness(t *testing.T) {
	for _, domain := range []int{1, 2, 7, 8, 9, 64, 100} {
		d, err := NewTree(domain, 20)
		require.NoError(t, err)
		for _, idx := range []int{0, domain / 2, domain - 1} {
			msg := bytes.Repeat([]byte{byte(idx + 1)}, 20)
			keys, err := d.Gen(idx, msg)
			require.NoError(t, err)

			e0, err := d.EvalFull(keys[0])
			require.NoError(t, err)
			e1, err := d.EvalFull(keys[1])
			require.NoError(t, err)
			require.Len(t, e0, domain)
			requireOnlyAt(t, CombineBytes(e0, e1), idx, msg)

			for x := 0; x < domain; x++ {
				v, err := d.Eval(keys[1], x)
				require.NoError(t, err)
				require.Equal(t, e1[x], v, "domain %d point %d", domain, x)
			}
		}
	}
}

func TestTreeDepthLogarithmic(t *testing.T) {
	for domain, depth := range map[int]int{1: 0, 2: 1, 8: 3, 9: 4, 1024: 10, 1025: 11} {
		d, err := NewTree(domain, 1)
		require.NoError(t, err)
		require.Equal(t, depth, d.Depth(), "domain %d", domain)

		keys, err := d.Gen(domain-1, []byte{1})
		require.NoError(t, err)
		require.Len(t, keys[0].CWSeeds, depth)
	}
}

func TestTreeEmptyAndErrors(t *testing.T) {
	d, err := NewTree(8, 4)
	require.NoError(t, err)

	keys := d.GenEmpty()
	e0, _ := d.EvalFull(keys[0])
	e1, _ := d.EvalFull(keys[1])
	requireOnlyAt(t, CombineBytes(e0, e1), -1, nil)

	_, err = d.Gen(8, nil)
	require.ErrorIs(t, err, ErrInvalidIndex)
	_, err = d.Eval(keys[0], 8)
	require.ErrorIs(t, err, ErrInvalidIndex)

	bad := *keys[0]
	bad.CWBits = bad.CWBits[:1]
	_, err = d.EvalFull(&bad)
	require.ErrorIs(t, err, ErrInvalidKey)

	bad = *keys[0]
	bad.Party = 2
	_, err = d.EvalFull(&bad)
	require.ErrorIs(t, err, ErrInvalidKey)

	_, err = NewTree(0, 4)
	require.ErrorIs(t, err, ErrParameters)
}

func TestInsecureCorrectness(t *testing.T) {
	d := NewInsecure(3, 5, 4)
	keys, err := d.Gen([]byte{1, 2}, 3)
	require.NoError(t, err)
	require.Len(t, keys, 3)

	expansions := make([][][]byte, len(keys))
	for i, k := range keys {
		expansions[i], err = d.EvalFull(k)
		require.NoError(t, err)
	}
	requireOnlyAt(t, CombineBytes(expansions...), 3, []byte{1, 2, 0, 0})

	_, err = d.Gen(nil, 5)
	require.ErrorIs(t, err, ErrInvalidIndex)
	_, err = d.EvalFull(&InsecureKey{Present: true, Index: 9, Message: make([]byte, 4)})
	require.ErrorIs(t, err, ErrInvalidKey)
}

// A single key must look the same whichever point it encodes. The checks
// compare sample means of key material across two very different points.
func TestTwoKeySingleKeyPrivacy(t *testing.T) {
	d := NewTwoKey(4, 8)
	const samples = 2000

	sample := func(idx int, msg []byte, party int) (bitMean, seedMean, msgMean float64) {
		bitsAt, seedsAt, msgAt := make([]float64, samples), make([]float64, samples), make([]float64, samples)
		for i := 0; i < samples; i++ {
			keys, err := d.Gen(msg, idx)
			require.NoError(t, err)
			k := keys[party]
			if k.Bits[0] {
				bitsAt[i] = 1
			}
			seedsAt[i] = float64(k.Seeds[0][0])
			msgAt[i] = float64(k.EncodedMsg[0])
		}
		bitMean, _ = stats.Mean(bitsAt)
		seedMean, _ = stats.Mean(seedsAt)
		msgMean, _ = stats.Mean(msgAt)
		return
	}

	for party := 0; party < 2; party++ {
		b0, s0, m0 := sample(0, bytes.Repeat([]byte{0xff}, 8), party)
		b3, s3, m3 := sample(3, make([]byte, 8), party)
		require.InDelta(t, b0, b3, 0.08)
		require.InDelta(t, s0, s3, 12)
		require.InDelta(t, m0, m3, 12)
		require.InDelta(t, 0.5, b0, 0.06)
		require.InDelta(t, 127.5, m0, 10)
	}
}

func TestMultiKeySubsetPrivacy(t *testing.T) {
	field := algebra.MustModField(big.NewInt(65521))
	d := testMultiKey(t, 3, 2, algebra.NewModGroup(field))
	const samples = 2000

	sample := func(idx int) float64 {
		values := make([]float64, samples)
		for i := 0; i < samples; i++ {
			keys, err := d.Gen(d.PRG.NullOutput(), idx)
			require.NoError(t, err)
			// parties 1 and 2 together see only uniform shares
			values[i] = float64(field.Int(keys[1].Bits[0]).Int64() + field.Int(keys[2].Seeds[0]).Int64())
		}
		mean, _ := stats.Mean(values)
		return mean
	}

	expected := float64(65520)
	require.InDelta(t, expected, sample(0), 3000)
	require.InDelta(t, expected, sample(1), 3000)
}

func TestTreeSingleKeyPrivacy(t *testing.T) {
	d, err := NewTree(16, 4)
	require.NoError(t, err)
	const samples = 2000

	sample := func(idx int) (cwMean, rootMean float64) {
		cw, roots := make([]float64, samples), make([]float64, samples)
		for i := 0; i < samples; i++ {
			keys, err := d.Gen(idx, []byte{0xab})
			require.NoError(t, err)
			if keys[0].CWBits[0][0] {
				cw[i] = 1
			}
			roots[i] = float64(keys[0].Root[0])
		}
		cwMean, _ = stats.Mean(cw)
		rootMean, _ = stats.Mean(roots)
		return
	}

	c0, r0 := sample(0)
	c15, r15 := sample(15)
	require.InDelta(t, c0, c15, 0.08)
	require.InDelta(t, r0, r15, 12)
}

func FuzzTreeGenEval(f *testing.F) {
	f.Add(8, 3, []byte{0xab})
	f.Add(1, 0, []byte{})
	f.Add(33, 32, []byte("spectrum"))

	f.Fuzz(func(t *testing.T, domain, idx int, msg []byte) {
		if domain < 1 || domain > 256 || len(msg) > 32 {
			t.Skip()
		}
		d, err := NewTree(domain, 32)
		if err != nil {
			t.Fatal(err)
		}
		keys, err := d.Gen(idx, msg)

		// Invariant 1: out-of-domain indices fail with ErrInvalidIndex
		if idx < 0 || idx >= domain {
			if !errors.Is(err, ErrInvalidIndex) {
				t.Fatalf("expected ErrInvalidIndex, got %v", err)
			}
			return
		}
		if err != nil {
			t.Fatal(err)
		}

		// Invariant 2: the combined point is msg at idx and zero elsewhere
		padded := append(append([]byte{}, msg...), make([]byte, 32-len(msg))...)
		for x := 0; x < domain; x++ {
			a, _ := d.Eval(keys[0], x)
			b, _ := d.Eval(keys[1], x)
			combined := CombineBytes([][]byte{a}, [][]byte{b})[0]
			want := make([]byte, 32)
			if x == idx {
				want = padded
			}
			if !bytes.Equal(combined, want) {
				t.Fatalf("point %d: got %x, want %x", x, combined, want)
			}
		}
	})
}
