package worker

import (
	"sync"

	"github.com/flashbots/spectrum/protocol"
)

// Accumulator serializes updates to a protocol.Accumulator and counts them.
type Accumulator struct {
	mu    sync.RWMutex
	acc   protocol.Accumulator
	count int
}

func NewAccumulator(acc protocol.Accumulator) *Accumulator {
	return &Accumulator{acc: acc}
}

// Accumulate adds one write's table and returns the number applied so far.
func (a *Accumulator) Accumulate(other protocol.Accumulator) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.acc.Accumulate(other); err != nil {
		return a.count, err
	}
	a.count++
	return a.count, nil
}

func (a *Accumulator) Count() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.count
}

func (a *Accumulator) Share() protocol.Share {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.acc.Share()
}

// Reset swaps in a fresh table and returns the share and count of the old one.
func (a *Accumulator) Reset(fresh protocol.Accumulator) (protocol.Share, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	share, count := a.acc.Share(), a.count
	a.acc, a.count = fresh, 0
	return share, count
}
