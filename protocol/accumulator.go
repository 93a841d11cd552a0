package protocol

import (
	"errors"
	"fmt"

	"github.com/flashbots/spectrum/algebra"
	"github.com/flashbots/spectrum/crypto"
	"github.com/flashbots/spectrum/prg"
	"go.dedis.ch/kyber/v3"
)

// ErrShape reports accumulators or shares of mismatched dimensions.
var ErrShape = errors.New("mismatched table shape")

// Share is one worker's aggregate for an epoch, one buffer per channel.
type Share struct {
	Channels [][]byte `json:"channels"`
}

// Accumulator is a worker's running table. Accumulate is associative and
// commutative so writes may be applied in any order. Not safe for concurrent
// use; see worker.Accumulator.
type Accumulator interface {
	Accumulate(other Accumulator) error
	Share() Share
}

// byteAccumulator XORs byte rows.
type byteAccumulator struct {
	rows [][]byte
}

func newByteAccumulator(channels, msgLen int) *byteAccumulator {
	rows := make([][]byte, channels)
	for i := range rows {
		rows[i] = make([]byte, msgLen)
	}
	return &byteAccumulator{rows: rows}
}

func (a *byteAccumulator) Accumulate(other Accumulator) error {
	o, ok := other.(*byteAccumulator)
	if !ok || len(o.rows) != len(a.rows) {
		return ErrShape
	}
	for i := range a.rows {
		if len(o.rows[i]) != len(a.rows[i]) {
			return ErrShape
		}
		crypto.XorInplace(a.rows[i], o.rows[i])
	}
	return nil
}

func (a *byteAccumulator) Share() Share {
	rows := make([][]byte, len(a.rows))
	for i, r := range a.rows {
		rows[i] = append([]byte{}, r...)
	}
	return Share{Channels: rows}
}

// groupAccumulator adds rows of group elements.
type groupAccumulator struct {
	group algebra.Group
	rows  [][]kyber.Point
}

func newGroupAccumulator(group algebra.Group, channels, width int) *groupAccumulator {
	rows := make([][]kyber.Point, channels)
	for i := range rows {
		rows[i] = make([]kyber.Point, width)
		for j := range rows[i] {
			rows[i][j] = group.Identity()
		}
	}
	return &groupAccumulator{group: group, rows: rows}
}

func (a *groupAccumulator) Accumulate(other Accumulator) error {
	o, ok := other.(*groupAccumulator)
	if !ok || len(o.rows) != len(a.rows) {
		return ErrShape
	}
	for i := range a.rows {
		if len(o.rows[i]) != len(a.rows[i]) {
			return ErrShape
		}
		prg.AddVectors(a.rows[i], o.rows[i])
	}
	return nil
}

// Share encodes each channel as the concatenation of its elements.
func (a *groupAccumulator) Share() Share {
	rows := make([][]byte, len(a.rows))
	for i, r := range a.rows {
		for _, p := range r {
			rows[i] = append(rows[i], algebra.Bytes(p)...)
		}
	}
	return Share{Channels: rows}
}

func checkShares(shares []Share, parties, channels int) error {
	if len(shares) != parties {
		return fmt.Errorf("%w: expected %d shares, got %d", ErrShape, parties, len(shares))
	}
	for i, s := range shares {
		if len(s.Channels) != channels {
			return fmt.Errorf("%w: share %d has %d channels, expected %d", ErrShape, i, len(s.Channels), channels)
		}
	}
	return nil
}

// revealBytes XORs the shares channel by channel.
func revealBytes(shares []Share, parties, channels, msgLen int) ([][]byte, error) {
	if err := checkShares(shares, parties, channels); err != nil {
		return nil, err
	}
	res := make([][]byte, channels)
	for c := range res {
		res[c] = make([]byte, msgLen)
		for i, s := range shares {
			if len(s.Channels[c]) != msgLen {
				return nil, fmt.Errorf("%w: share %d channel %d has %d bytes", ErrShape, i, c, len(s.Channels[c]))
			}
			crypto.XorInplace(res[c], s.Channels[c])
		}
	}
	return res, nil
}

// revealGroup sums the shares' elements and decodes each channel. A channel
// whose sum does not decode, as when several writes landed on it, is left nil
// and the others are still returned.
func revealGroup(group algebra.Group, shares []Share, parties, channels, width, msgLen int) ([][]byte, error) {
	if err := checkShares(shares, parties, channels); err != nil {
		return nil, err
	}
	size := group.ElementSize()
	res := make([][]byte, channels)
	for c := range res {
		sum := make([]kyber.Point, width)
		for j := range sum {
			sum[j] = group.Identity()
		}
		for i, s := range shares {
			row := s.Channels[c]
			if len(row) != width*size {
				return nil, fmt.Errorf("%w: share %d channel %d has %d bytes", ErrShape, i, c, len(row))
			}
			for j := range sum {
				p, err := group.FromBytes(row[j*size : (j+1)*size])
				if err != nil {
					return nil, fmt.Errorf("share %d channel %d: %w", i, c, err)
				}
				sum[j] = sum[j].Add(sum[j], p)
			}
		}
		if msg, err := prg.DecodeMessage(group, sum, msgLen); err == nil {
			res[c] = msg
		}
	}
	return res, nil
}
