package protocol

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.uber.org/atomic"
)

// Phase is a step within an epoch.
type Phase int

const (
	// WritePhase accepts write tokens.
	WritePhase Phase = iota
	// AuditPhase exchanges audit shares for the epoch's writes.
	AuditPhase
	// RevealPhase publishes worker shares and resets the tables.
	RevealPhase
)

const numPhases = 3

func (p Phase) String() string {
	switch p {
	case WritePhase:
		return "write"
	case AuditPhase:
		return "audit"
	case RevealPhase:
		return "reveal"
	}
	return "unknown"
}

// Epoch is a position in the write/audit/reveal cycle.
type Epoch struct {
	Number int
	Phase  Phase
}

func (e Epoch) IsAfter(o Epoch) bool {
	return e.Number > o.Number || (e.Number == o.Number && e.Phase > o.Phase)
}

func (e Epoch) Advance() Epoch {
	if e.Phase == RevealPhase {
		return Epoch{e.Number + 1, WritePhase}
	}
	return Epoch{e.Number, e.Phase + 1}
}

// EpochCoordinator drives epoch transitions.
type EpochCoordinator interface {
	CurrentEpoch() Epoch

	// SubscribeToEpochs delivers transitions until ctx is done.
	SubscribeToEpochs(ctx context.Context) <-chan Epoch

	Start(ctx context.Context)

	// AdvanceToEpoch moves forward to e, notifying subscribers of every step.
	AdvanceToEpoch(e Epoch)
}

type subscriber struct {
	ctx context.Context
	ch  chan Epoch
}

// LocalEpochCoordinator advances epochs on wall-clock time, each phase
// taking an equal share of the epoch duration.
type LocalEpochCoordinator struct {
	mu            sync.RWMutex
	current       Epoch
	epochDuration time.Duration
	subscribers   []subscriber
	started       atomic.Bool
}

var _ EpochCoordinator = (*LocalEpochCoordinator)(nil)

func NewLocalEpochCoordinator(epochDuration time.Duration) *LocalEpochCoordinator {
	return &LocalEpochCoordinator{epochDuration: epochDuration}
}

func (c *LocalEpochCoordinator) CurrentEpoch() Epoch {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

func (c *LocalEpochCoordinator) SubscribeToEpochs(ctx context.Context) <-chan Epoch {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan Epoch, 10)
	ch <- c.current
	c.subscribers = append(c.subscribers, subscriber{ctx, ch})
	return ch
}

// EpochForTime maps an instant to the epoch running at that time.
func EpochForTime(instant time.Time, epochDuration time.Duration) Epoch {
	phaseLen := epochDuration.Milliseconds() / numPhases
	if phaseLen <= 0 {
		return Epoch{}
	}
	nTicks := instant.UnixMilli() / phaseLen
	return Epoch{int(nTicks / numPhases), Phase(nTicks % numPhases)}
}

// TimeForEpoch is the instant e begins.
func TimeForEpoch(e Epoch, epochDuration time.Duration) time.Time {
	phaseLen := time.Duration(epochDuration.Milliseconds()/numPhases) * time.Millisecond
	ticks := int64(e.Number)*numPhases + int64(e.Phase)
	return time.UnixMilli(0).Add(time.Duration(ticks) * phaseLen)
}

func (c *LocalEpochCoordinator) Start(ctx context.Context) {
	if c.started.Swap(true) {
		return
	}

	// phases under a millisecond would never move the clock forward
	if c.epochDuration.Milliseconds()/numPhases <= 0 {
		return
	}

	c.mu.Lock()
	c.current = EpochForTime(time.Now(), c.epochDuration)
	c.mu.Unlock()

	go func() {
		for {
			next := TimeForEpoch(c.CurrentEpoch().Advance(), c.epochDuration)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Until(next)):
				c.advance()
			}
		}
	}()
}

// AdvanceToEpoch is used by tests and simulations that drive epochs by hand.
func (c *LocalEpochCoordinator) AdvanceToEpoch(e Epoch) {
	for e.IsAfter(c.CurrentEpoch()) {
		c.advance()
	}
}

func (c *LocalEpochCoordinator) advance() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = c.current.Advance()

	toRemove := []int{}
	for i, sub := range c.subscribers {
		if sub.ctx.Err() != nil {
			close(sub.ch)
			toRemove = append(toRemove, i)
			continue
		}
		select {
		case sub.ch <- c.current:
		default:
			// slow subscriber, drop the update
		}
	}

	slices.Reverse(toRemove)
	for _, i := range toRemove {
		c.subscribers = slices.Delete(c.subscribers, i, i+1)
	}
}
