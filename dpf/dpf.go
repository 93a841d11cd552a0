// Package dpf implements distributed point functions: a client splits a point
// function over a table of channels into keys, one per worker, such that each
// key alone reveals nothing about the point while the combination of all
// expansions is zero everywhere except at the chosen index.
//
// Four constructions are provided:
//
//   - TwoKey: the Spectrum two-server construction over AESPRG with XOR
//     combination. Key size is linear in the number of channels; evaluation at
//     one index costs a single PRG expansion.
//   - MultiKey: the Spectrum N-server construction over the seed-homomorphic
//     GroupPRG, combined by group addition.
//   - Tree: the log-depth two-server tree construction (Boyle, Gilboa, Ishai).
//     Key size and single-point evaluation are logarithmic in the domain.
//   - Insecure: plaintext keys, for tests and benchmarks.
//
// All constructions are pure; keys are immutable once generated and may be
// evaluated concurrently.
package dpf

import (
	"errors"
	"fmt"

	"github.com/flashbots/spectrum/crypto"
)

var (
	// ErrInvalidIndex is returned when generating a point outside the domain.
	ErrInvalidIndex = errors.New("index out of domain")

	// ErrInvalidKey is returned when a key does not match the shape of its DPF.
	ErrInvalidKey = errors.New("malformed dpf key")

	// ErrParameters is returned for unusable construction parameters or messages.
	ErrParameters = errors.New("invalid dpf parameters")
)

func checkIndex(idx, domain int) error {
	if idx < 0 || idx >= domain {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidIndex, idx, domain)
	}
	return nil
}

func invalidKey(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidKey, fmt.Sprintf(format, args...))
}

// padMessage returns msg zero-padded to n bytes.
func padMessage(msg []byte, n int) ([]byte, error) {
	if len(msg) > n {
		return nil, fmt.Errorf("%w: message of %d bytes exceeds %d", ErrParameters, len(msg), n)
	}
	res := make([]byte, n)
	copy(res, msg)
	return res, nil
}

// CombineBytes XORs the full-domain expansions of all keys of a byte-valued
// DPF. All expansions must have the same shape.
func CombineBytes(expansions ...[][]byte) [][]byte {
	if len(expansions) == 0 {
		return nil
	}
	res := make([][]byte, len(expansions[0]))
	for i := range res {
		res[i] = make([]byte, len(expansions[0][i]))
		for _, e := range expansions {
			crypto.XorInplace(res[i], e[i])
		}
	}
	return res
}
