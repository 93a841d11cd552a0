package worker

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	concurrent "github.com/fanliao/go-concurrentMap"
	"github.com/flashbots/spectrum/protocol"
	"go.uber.org/atomic"
)

var (
	ErrDrained        = errors.New("audit already drained")
	ErrDuplicateShare = errors.New("duplicate audit share")
	ErrDuplicateWrite = errors.New("duplicate write")
)

type auditEntry struct {
	mu      sync.Mutex
	token   *protocol.WriteToken
	shares  []*protocol.AuditShare
	count   int
	drained bool
}

func (e *auditEntry) complete() bool {
	return e.token != nil && e.count == len(e.shares)
}

// AuditRegistry collects the audit shares of every party for each write.
// Shares may arrive before the worker's own token. Each write is drained
// exactly once.
type AuditRegistry struct {
	parties int
	entries *concurrent.ConcurrentMap
	pending atomic.Int64
}

func NewAuditRegistry(parties int) *AuditRegistry {
	return &AuditRegistry{parties: parties, entries: concurrent.NewConcurrentMap()}
}

func (r *AuditRegistry) entry(id uint64) (*auditEntry, error) {
	fresh := &auditEntry{shares: make([]*protocol.AuditShare, r.parties)}
	prev, err := r.entries.PutIfAbsent(strconv.FormatUint(id, 10), fresh)
	if err != nil {
		return nil, err
	}
	if prev != nil {
		return prev.(*auditEntry), nil
	}
	r.pending.Add(1)
	return fresh, nil
}

// Init records the worker's own token for id. It reports whether the audit
// is now complete.
func (r *AuditRegistry) Init(id uint64, token *protocol.WriteToken) (bool, error) {
	e, err := r.entry(id)
	if err != nil {
		return false, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.drained {
		return false, fmt.Errorf("write %d: %w", id, ErrDrained)
	}
	if e.token != nil {
		return false, fmt.Errorf("write %d: %w", id, ErrDuplicateWrite)
	}
	e.token = token
	return e.complete(), nil
}

// Add records party's share for id and reports whether the audit is now
// complete.
func (r *AuditRegistry) Add(id uint64, party int, share *protocol.AuditShare) (bool, error) {
	if party < 0 || party >= r.parties {
		return false, fmt.Errorf("write %d: party %d out of range", id, party)
	}
	e, err := r.entry(id)
	if err != nil {
		return false, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.drained {
		return false, fmt.Errorf("write %d: %w", id, ErrDrained)
	}
	if e.shares[party] != nil {
		return false, fmt.Errorf("write %d party %d: %w", id, party, ErrDuplicateShare)
	}
	e.shares[party] = share
	e.count++
	return e.complete(), nil
}

// Drain hands out the token and shares of a complete audit. Later calls and
// later shares for id fail with ErrDrained.
func (r *AuditRegistry) Drain(id uint64) (*protocol.WriteToken, []*protocol.AuditShare, error) {
	v, err := r.entries.Get(strconv.FormatUint(id, 10))
	if err != nil {
		return nil, nil, err
	}
	if v == nil {
		return nil, nil, fmt.Errorf("write %d: no audit", id)
	}
	e := v.(*auditEntry)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.drained {
		return nil, nil, fmt.Errorf("write %d: %w", id, ErrDrained)
	}
	if !e.complete() {
		return nil, nil, fmt.Errorf("write %d: audit incomplete (%d/%d shares)", id, e.count, len(e.shares))
	}
	e.drained = true
	r.pending.Add(-1)
	token, shares := e.token, e.shares
	e.token, e.shares = nil, nil
	return token, shares, nil
}

// Pending is the number of writes not yet drained.
func (r *AuditRegistry) Pending() int {
	return int(r.pending.Load())
}

// Reset forgets every write.
func (r *AuditRegistry) Reset() {
	r.entries.Clear()
	r.pending.Store(0)
}
