// Package prg implements the pseudorandom generators used by the DPF layer.
//
// AESPRG expands a 16-byte seed with AES-128 in counter mode over a zero IV;
// outputs combine with XOR. GroupPRG is seed-homomorphic: seeds are scalars,
// outputs are vectors of group elements, and
//
//	Expand(a) + Expand(b) == Expand(a + b)
//
// holds elementwise. Both are deterministic and safe for concurrent use.
package prg

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"errors"

	"github.com/flashbots/spectrum/crypto"
	"lukechampine.com/frand"
)

// SeedSize is the length of an AESPRG seed in bytes.
const SeedSize = 16

// Seed is AES-128 key material for one PRG instance.
type Seed [SeedSize]byte

// SeedFromBytes copies a seed out of its wire encoding.
func SeedFromBytes(data []byte) (Seed, error) {
	var s Seed
	if len(data) != SeedSize {
		return s, errors.New("seed must be 16 bytes")
	}
	copy(s[:], data)
	return s, nil
}

func (s Seed) Bytes() []byte {
	return append([]byte{}, s[:]...)
}

func (s Seed) String() string {
	return hex.EncodeToString(s[:])
}

// Xor returns s ^ o.
func (s Seed) Xor(o Seed) Seed {
	var res Seed
	for i := range res {
		res[i] = s[i] ^ o[i]
	}
	return res
}

// AESPRG expands seeds to OutputLen bytes.
type AESPRG struct {
	OutputLen int
}

func NewAESPRG(outputLen int) *AESPRG {
	return &AESPRG{OutputLen: outputLen}
}

// NewSeed samples a uniformly random seed.
func (p *AESPRG) NewSeed() Seed {
	var s Seed
	frand.Read(s[:])
	return s
}

// NullSeed is the all-zero seed.
func (p *AESPRG) NullSeed() Seed {
	return Seed{}
}

// Stream returns the keystream for seed. Each call restarts at the beginning,
// so any prefix read from it equals the same prefix of Expand.
func (p *AESPRG) Stream(seed Seed) cipher.Stream {
	block, err := aes.NewCipher(seed[:])
	if err != nil {
		// AES accepts every 16-byte key
		panic(err.Error())
	}
	return cipher.NewCTR(block, make([]byte, aes.BlockSize))
}

// Expand returns the first OutputLen bytes of the seed's keystream.
func (p *AESPRG) Expand(seed Seed) []byte {
	res := make([]byte, p.OutputLen)
	p.Stream(seed).XORKeyStream(res, res)
	return res
}

// ExpandInto XORs the seed's expansion into dst, which must be OutputLen bytes.
func (p *AESPRG) ExpandInto(dst []byte, seed Seed) {
	if len(dst) != p.OutputLen {
		panic("prg output length mismatch")
	}
	p.Stream(seed).XORKeyStream(dst, dst)
}

// CombineOutputs XORs outputs together.
func (p *AESPRG) CombineOutputs(outputs ...[]byte) []byte {
	res := make([]byte, p.OutputLen)
	for _, o := range outputs {
		crypto.XorInplace(res, o)
	}
	return res
}
