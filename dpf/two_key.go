package dpf

import (
	"github.com/flashbots/spectrum/crypto"
	"github.com/flashbots/spectrum/prg"
	"lukechampine.com/frand"
)

// TwoKey is the two-server DPF over AESPRG.
//
// Both keys hold one seed and one bit per channel. They agree everywhere except
// at the chosen index, where the seeds are independent and the bits differ, so
// XORing the two expansions cancels every other channel.
type TwoKey struct {
	Channels   int
	MessageLen int

	prg *prg.AESPRG
}

// TwoKeyKey is one server's key.
type TwoKeyKey struct {
	EncodedMsg []byte
	Bits       []bool
	Seeds      []prg.Seed
}

func NewTwoKey(channels, messageLen int) *TwoKey {
	return &TwoKey{Channels: channels, MessageLen: messageLen, prg: prg.NewAESPRG(messageLen)}
}

func (d *TwoKey) NumKeys() int { return 2 }

// Gen returns the two keys for msg at idx. msg is zero-padded to MessageLen.
func (d *TwoKey) Gen(msg []byte, idx int) ([]*TwoKeyKey, error) {
	if err := checkIndex(idx, d.Channels); err != nil {
		return nil, err
	}
	padded, err := padMessage(msg, d.MessageLen)
	if err != nil {
		return nil, err
	}

	seedsA := make([]prg.Seed, d.Channels)
	for i := range seedsA {
		seedsA[i] = d.prg.NewSeed()
	}
	bitsA := randomBits(d.Channels)

	seedsB := append([]prg.Seed{}, seedsA...)
	seedsB[idx] = d.prg.NewSeed()
	bitsB := append([]bool{}, bitsA...)
	bitsB[idx] = !bitsA[idx]

	encoded := d.prg.Expand(seedsA[idx])
	d.prg.ExpandInto(encoded, seedsB[idx])
	crypto.XorInplace(encoded, padded)

	return []*TwoKeyKey{
		{EncodedMsg: encoded, Bits: bitsA, Seeds: seedsA},
		{EncodedMsg: append([]byte{}, encoded...), Bits: bitsB, Seeds: seedsB},
	}, nil
}

// GenEmpty returns keys whose combination is zero on every channel.
func (d *TwoKey) GenEmpty() []*TwoKeyKey {
	seeds := make([]prg.Seed, d.Channels)
	for i := range seeds {
		seeds[i] = d.prg.NewSeed()
	}
	bits := randomBits(d.Channels)
	encoded := frand.Bytes(d.MessageLen)

	return []*TwoKeyKey{
		{EncodedMsg: encoded, Bits: bits, Seeds: seeds},
		{EncodedMsg: append([]byte{}, encoded...), Bits: append([]bool{}, bits...), Seeds: append([]prg.Seed{}, seeds...)},
	}
}

// Validate checks that key has the shape this DPF produces.
func (d *TwoKey) Validate(key *TwoKeyKey) error {
	if key == nil {
		return invalidKey("nil key")
	}
	if len(key.EncodedMsg) != d.MessageLen {
		return invalidKey("encoded message has %d bytes, expected %d", len(key.EncodedMsg), d.MessageLen)
	}
	if len(key.Bits) != d.Channels || len(key.Seeds) != d.Channels {
		return invalidKey("key covers %d bits and %d seeds, expected %d channels", len(key.Bits), len(key.Seeds), d.Channels)
	}
	return nil
}

// Eval expands key at a single channel.
func (d *TwoKey) Eval(key *TwoKeyKey, idx int) ([]byte, error) {
	if err := d.Validate(key); err != nil {
		return nil, err
	}
	if err := checkIndex(idx, d.Channels); err != nil {
		return nil, err
	}
	return d.eval(key, idx), nil
}

func (d *TwoKey) eval(key *TwoKeyKey, idx int) []byte {
	out := d.prg.Expand(key.Seeds[idx])
	if key.Bits[idx] {
		crypto.XorInplace(out, key.EncodedMsg)
	}
	return out
}

// EvalFull expands key on every channel.
func (d *TwoKey) EvalFull(key *TwoKeyKey) ([][]byte, error) {
	if err := d.Validate(key); err != nil {
		return nil, err
	}
	res := make([][]byte, d.Channels)
	for i := range res {
		res[i] = d.eval(key, i)
	}
	return res, nil
}

func randomBits(n int) []bool {
	raw := frand.Bytes(n)
	bits := make([]bool, n)
	for i := range bits {
		bits[i] = raw[i]&1 == 1
	}
	return bits
}
