package worker

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/flashbots/spectrum/protocol"
	"go.uber.org/atomic"
)

// ErrAlreadyApplied is returned when an accepted write was applied before.
var ErrAlreadyApplied = errors.New("write already applied")

// Verdict is the state of a write's audit at one worker.
type Verdict int

const (
	Pending Verdict = iota
	Accepted
	Rejected
)

func (v Verdict) String() string {
	switch v {
	case Pending:
		return "pending"
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	}
	return "unknown"
}

// Write is one worker's token for a write.
type Write struct {
	ID    uint64
	Token *protocol.WriteToken
}

// Stats counts writes seen in the current epoch.
type Stats struct {
	Epoch     int
	Submitted int64
	Invalid   int64
	Accepted  int64
	Rejected  int64
	Applied   int
	Pending   int
}

// Worker is one party of a trust group.
type Worker struct {
	party int
	proto protocol.Protocol
	keys  []protocol.ChannelKey

	acc     *Accumulator
	audits  *AuditRegistry
	applied *Applied
	pool    *Pool

	epoch     atomic.Int64
	submitted atomic.Int64
	invalid   atomic.Int64
	accepted  atomic.Int64
	rejected  atomic.Int64
}

// New creates worker party holding the channel keys of proto. auditWorkers
// sizes the evaluation pool, zero for one goroutine per CPU.
func New(party int, proto protocol.Protocol, keys []protocol.ChannelKey, auditWorkers int) (*Worker, error) {
	if party < 0 || party >= proto.NumParties() {
		return nil, fmt.Errorf("party %d out of range for %d parties", party, proto.NumParties())
	}
	return &Worker{
		party:   party,
		proto:   proto,
		keys:    keys,
		acc:     NewAccumulator(proto.NewAccumulator()),
		audits:  NewAuditRegistry(proto.NumParties()),
		applied: NewApplied(),
		pool:    NewPool(auditWorkers),
	}, nil
}

func (w *Worker) Party() int { return w.party }

// Submit audits the worker's token for write id and returns the share to
// send to peers, along with the verdict if every peer share already arrived.
func (w *Worker) Submit(id uint64, token *protocol.WriteToken) (*protocol.AuditShare, Verdict, error) {
	w.submitted.Add(1)
	share, err := w.proto.GenAudit(w.party, w.keys, token)
	if err != nil {
		w.invalid.Add(1)
		return nil, Rejected, fmt.Errorf("write %d: %w", id, err)
	}
	v, err := w.register(id, token, share)
	return share, v, err
}

func (w *Worker) register(id uint64, token *protocol.WriteToken, share *protocol.AuditShare) (Verdict, error) {
	if _, err := w.audits.Init(id, token); err != nil {
		return Pending, err
	}
	complete, err := w.audits.Add(id, w.party, share)
	if err != nil || !complete {
		return Pending, err
	}
	return w.finish(id)
}

// ReceiveAudit records a peer's share for write id.
func (w *Worker) ReceiveAudit(id uint64, party int, share *protocol.AuditShare) (Verdict, error) {
	if party == w.party {
		return Pending, fmt.Errorf("write %d: share from own party %d", id, party)
	}
	complete, err := w.audits.Add(id, party, share)
	if err != nil || !complete {
		return Pending, err
	}
	return w.finish(id)
}

// check drains a complete audit and decides it.
func (w *Worker) check(id uint64) (*protocol.WriteToken, bool, error) {
	token, shares, err := w.audits.Drain(id)
	if err != nil {
		return nil, false, err
	}
	if !w.proto.CheckAudit(shares) {
		w.rejected.Add(1)
		return nil, false, nil
	}
	w.accepted.Add(1)
	return token, true, nil
}

func (w *Worker) finish(id uint64) (Verdict, error) {
	token, ok, err := w.check(id)
	if err != nil {
		return Pending, err
	}
	if !ok {
		return Rejected, nil
	}
	acc, err := w.proto.ToAccumulator(token)
	if err != nil {
		return Rejected, err
	}
	return Accepted, w.apply(id, acc)
}

func (w *Worker) apply(id uint64, acc protocol.Accumulator) error {
	if !w.applied.Add(id) {
		return fmt.Errorf("write %d: %w", id, ErrAlreadyApplied)
	}
	_, err := w.acc.Accumulate(acc)
	return err
}

// SubmitBatch audits a batch of tokens on the pool and registers them. The
// returned shares, verdicts and errors are in batch order and one write's
// failure never stops the rest of the batch. A nil share marks a token that
// failed to audit, was not registered, or was not reached before ctx was done.
func (w *Worker) SubmitBatch(ctx context.Context, writes []Write) ([]*protocol.AuditShare, []Verdict, []error) {
	shares, errs := RunPool(ctx, w.pool, writes, func(wr Write) (*protocol.AuditShare, error) {
		return w.proto.GenAudit(w.party, w.keys, wr.Token)
	})

	verdicts := make([]Verdict, len(writes))
	for i, wr := range writes {
		if errs[i] != nil {
			if errors.Is(errs[i], context.Canceled) || errors.Is(errs[i], context.DeadlineExceeded) {
				continue
			}
			w.submitted.Add(1)
			w.invalid.Add(1)
			verdicts[i] = Rejected
			errs[i] = fmt.Errorf("write %d: %w", wr.ID, errs[i])
			log.Printf("worker %d: %v", w.party, errs[i])
			continue
		}
		w.submitted.Add(1)
		verdicts[i], errs[i] = w.register(wr.ID, wr.Token, shares[i])
		if errs[i] != nil && verdicts[i] == Pending {
			shares[i] = nil
		}
	}
	return shares, verdicts, errs
}

// ReceiveAuditBatch records peer shares, then expands the accepted writes
// on the pool and applies them serially. Verdicts and errors are per message;
// a failing message never keeps the others from being applied.
func (w *Worker) ReceiveAuditBatch(ctx context.Context, msgs []*protocol.AuditMessage) ([]Verdict, []error) {
	verdicts := make([]Verdict, len(msgs))
	errs := make([]error, len(msgs))
	var ready []int
	var tokens []*protocol.WriteToken
	for i, m := range msgs {
		if m.Party == w.party {
			errs[i] = fmt.Errorf("write %d: share from own party %d", m.WriteID, m.Party)
			continue
		}
		complete, err := w.audits.Add(m.WriteID, m.Party, m.Share)
		if err != nil {
			errs[i] = err
			continue
		}
		if !complete {
			continue
		}
		token, ok, err := w.check(m.WriteID)
		if err != nil {
			errs[i] = err
			continue
		}
		if !ok {
			verdicts[i] = Rejected
			continue
		}
		ready = append(ready, i)
		tokens = append(tokens, token)
	}

	// Drained audits cannot be replayed, so their expansion ignores ctx.
	accs, accErrs := RunPool(context.WithoutCancel(ctx), w.pool, tokens, w.proto.ToAccumulator)
	for j, i := range ready {
		verdicts[i] = Accepted
		if accErrs[j] != nil {
			errs[i] = fmt.Errorf("write %d: %w", msgs[i].WriteID, accErrs[j])
			continue
		}
		errs[i] = w.apply(msgs[i].WriteID, accs[j])
	}
	return verdicts, errs
}

// Share is the worker's current aggregate.
func (w *Worker) Share() protocol.Share {
	return w.acc.Share()
}

func (w *Worker) Stats() Stats {
	return Stats{
		Epoch:     int(w.epoch.Load()),
		Submitted: w.submitted.Load(),
		Invalid:   w.invalid.Load(),
		Accepted:  w.accepted.Load(),
		Rejected:  w.rejected.Load(),
		Applied:   w.acc.Count(),
		Pending:   w.audits.Pending(),
	}
}

// NewEpoch closes the epoch: it returns the final share and clears all
// per-epoch state.
func (w *Worker) NewEpoch() protocol.Share {
	share, count := w.acc.Reset(w.proto.NewAccumulator())
	if pending := w.audits.Pending(); pending > 0 {
		log.Printf("worker %d: epoch %d closed with %d audits pending", w.party, w.epoch.Load(), pending)
	}
	log.Printf("worker %d: epoch %d closed with %d writes applied", w.party, w.epoch.Load(), count)

	w.audits.Reset()
	w.applied.Clear()
	w.submitted.Store(0)
	w.invalid.Store(0)
	w.accepted.Store(0)
	w.rejected.Store(0)
	w.epoch.Add(1)
	return share
}
