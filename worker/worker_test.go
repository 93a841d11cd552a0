package worker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/flashbots/spectrum/protocol"
	"github.com/flashbots/spectrum/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGroup(t *testing.T, scheme protocol.Scheme, parties int) (protocol.Protocol, []protocol.ChannelKey, []*Worker) {
	t.Helper()
	p, keys := testutil.NewTestProtocol(t, testutil.WithScheme(scheme), testutil.WithParties(parties))

	workers := make([]*Worker, parties)
	for i := range workers {
		var err error
		workers[i], err = New(i, p, keys, 2)
		require.NoError(t, err)
	}
	return p, keys, workers
}

// deliver runs write id through every worker and returns each worker's verdict.
func deliver(t *testing.T, workers []*Worker, id uint64, tokens []*protocol.WriteToken) []Verdict {
	t.Helper()
	shares := make([]*protocol.AuditShare, len(workers))
	for i, w := range workers {
		share, v, err := w.Submit(id, tokens[i])
		require.NoError(t, err)
		require.Equal(t, Pending, v)
		shares[i] = share
	}
	verdicts := make([]Verdict, len(workers))
	for i, w := range workers {
		for j, share := range shares {
			if i == j {
				continue
			}
			v, err := w.ReceiveAudit(id, j, share)
			require.NoError(t, err)
			verdicts[i] = v
		}
	}
	return verdicts
}

func reveal(t *testing.T, p protocol.Protocol, workers []*Worker) [][]byte {
	t.Helper()
	shares := make([]protocol.Share, len(workers))
	for i, w := range workers {
		shares[i] = w.NewEpoch()
	}
	table, err := p.Reveal(shares)
	require.NoError(t, err)
	return table
}

func TestWorkersEpoch(t *testing.T) {
	for _, tc := range []struct {
		scheme  protocol.Scheme
		parties int
	}{
		{protocol.SchemeTree, 2},
		{protocol.SchemeTwoKey, 2},
		{protocol.SchemeTwoKeyPub, 2},
		{protocol.SchemeMultiKey, 3},
		{protocol.SchemeInsecure, 3},
	} {
		t.Run(string(tc.scheme), func(t *testing.T) {
			p, keys, workers := newGroup(t, tc.scheme, tc.parties)

			good, err := p.Broadcast([]byte("hello"), keys[3])
			require.NoError(t, err)
			for _, v := range deliver(t, workers, 1, good) {
				require.Equal(t, Accepted, v)
			}
			for _, v := range deliver(t, workers, 2, p.Cover()) {
				require.Equal(t, Accepted, v)
			}

			bad, err := p.Broadcast([]byte("evil"), keys[5])
			require.NoError(t, err)
			if bad[0].Secure != nil {
				bad[0].Secure.Seeds[0][0] ^= 1
			} else {
				bad[len(bad)-1].Insecure.Password[0] ^= 1
			}
			// a field-encoded seed may no longer decode, which fails Submit
			if tc.scheme != protocol.SchemeMultiKey {
				for _, v := range deliver(t, workers, 3, bad) {
					require.Equal(t, Rejected, v)
				}
			}

			stats := workers[0].Stats()
			require.Equal(t, 2, stats.Applied)
			require.Equal(t, 0, stats.Pending)

			table := reveal(t, p, workers)
			require.Equal(t, testutil.ExpectedTable(p, map[int][]byte{3: []byte("hello")}), table)

			stats = workers[0].Stats()
			require.Equal(t, 1, stats.Epoch)
			require.Equal(t, 0, stats.Applied)
			require.Zero(t, stats.Submitted)
		})
	}
}

func TestPeerSharesBeforeToken(t *testing.T) {
	p, keys, workers := newGroup(t, protocol.SchemeTree, 2)
	tokens, err := p.Broadcast([]byte("early"), keys[0])
	require.NoError(t, err)

	peerShare, v, err := workers[1].Submit(9, tokens[1])
	require.NoError(t, err)
	require.Equal(t, Pending, v)

	v, err = workers[0].ReceiveAudit(9, 1, peerShare)
	require.NoError(t, err)
	require.Equal(t, Pending, v)
	require.Equal(t, 1, workers[0].Stats().Pending)

	_, v, err = workers[0].Submit(9, tokens[0])
	require.NoError(t, err)
	require.Equal(t, Accepted, v)

	_, err = workers[0].ReceiveAudit(9, 1, peerShare)
	require.ErrorIs(t, err, ErrDrained)
	_, err = workers[0].ReceiveAudit(9, 0, peerShare)
	require.Error(t, err)
}

func TestInvalidTokenCounted(t *testing.T) {
	p, keys, workers := newGroup(t, protocol.SchemeTwoKey, 2)
	tokens, err := p.Broadcast([]byte("x"), keys[1])
	require.NoError(t, err)
	tokens[0].Secure.Seeds = tokens[0].Secure.Seeds[:2]

	_, v, err := workers[0].Submit(1, tokens[0])
	require.ErrorIs(t, err, protocol.ErrInvalidToken)
	require.Equal(t, Rejected, v)
	require.Equal(t, int64(1), workers[0].Stats().Invalid)
}

func TestDuplicateWrite(t *testing.T) {
	p, _, workers := newGroup(t, protocol.SchemeTree, 2)
	tokens := p.Cover()
	_, _, err := workers[0].Submit(4, tokens[0])
	require.NoError(t, err)
	_, _, err = workers[0].Submit(4, tokens[0])
	require.ErrorIs(t, err, ErrDuplicateWrite)
}

func TestApplyOnce(t *testing.T) {
	p, _, workers := newGroup(t, protocol.SchemeTree, 2)
	acc, err := p.ToAccumulator(p.Cover()[0])
	require.NoError(t, err)
	require.NoError(t, workers[0].apply(5, acc))
	require.ErrorIs(t, workers[0].apply(5, acc), ErrAlreadyApplied)
	require.Equal(t, 1, workers[0].acc.Count())
}

func TestBatches(t *testing.T) {
	p, keys, workers := newGroup(t, protocol.SchemeMultiKey, 3)
	ctx := context.Background()

	batches := make([][]Write, len(workers))
	for id := uint64(0); id < 8; id++ {
		tokens, err := p.Broadcast([]byte{byte(id + 1)}, keys[id])
		require.NoError(t, err)
		for party := range workers {
			batches[party] = append(batches[party], Write{ID: id, Token: tokens[party]})
		}
	}

	var msgs []*protocol.AuditMessage
	for party, w := range workers {
		shares, verdicts, errs := w.SubmitBatch(ctx, batches[party])
		for i, share := range shares {
			require.NoError(t, errs[i])
			require.NotNil(t, share)
			require.Equal(t, Pending, verdicts[i])
			msgs = append(msgs, &protocol.AuditMessage{WriteID: batches[party][i].ID, Party: party, Share: share})
		}
	}

	for party, w := range workers {
		var peer []*protocol.AuditMessage
		for _, m := range msgs {
			if m.Party != party {
				peer = append(peer, m)
			}
		}
		verdicts, errs := w.ReceiveAuditBatch(ctx, peer)
		accepted := 0
		for i, v := range verdicts {
			require.NoError(t, errs[i])
			if v == Accepted {
				accepted++
			}
		}
		require.Equal(t, 8, accepted)
	}

	want := make(map[int][]byte)
	for id := 0; id < 8; id++ {
		want[id] = []byte{byte(id + 1)}
	}
	require.Equal(t, testutil.ExpectedTable(p, want), reveal(t, p, workers))
}

func TestSubmitBatchCanceled(t *testing.T) {
	p, _, workers := newGroup(t, protocol.SchemeTree, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	shares, verdicts, errs := workers[0].SubmitBatch(ctx, []Write{{ID: 1, Token: p.Cover()[0]}})
	require.ErrorIs(t, errs[0], context.Canceled)
	require.Nil(t, shares[0])
	require.Equal(t, Pending, verdicts[0])
	require.Equal(t, 0, workers[0].Stats().Pending)
}

func TestSubmitBatchContinuesPastDuplicate(t *testing.T) {
	p, _, workers := newGroup(t, protocol.SchemeTree, 2)
	shares, verdicts, errs := workers[0].SubmitBatch(context.Background(), []Write{
		{ID: 1, Token: p.Cover()[0]},
		{ID: 1, Token: p.Cover()[0]},
		{ID: 2, Token: p.Cover()[0]},
	})
	require.NoError(t, errs[0])
	require.ErrorIs(t, errs[1], ErrDuplicateWrite)
	require.Nil(t, shares[1])
	require.NoError(t, errs[2])
	require.NotNil(t, shares[2])
	require.Equal(t, []Verdict{Pending, Pending, Pending}, verdicts)
	require.Equal(t, 2, workers[0].Stats().Pending)
}

// A bad message in a batch must not strand writes the batch already drained.
func TestReceiveAuditBatchKeepsDrainedWrites(t *testing.T) {
	p, keys, workers := newGroup(t, protocol.SchemeTwoKey, 2)
	ctx := context.Background()
	tokens, err := p.Broadcast([]byte("kept"), keys[2])
	require.NoError(t, err)

	share0, _, err := workers[0].Submit(1, tokens[0])
	require.NoError(t, err)
	share1, _, err := workers[1].Submit(1, tokens[1])
	require.NoError(t, err)

	own := &protocol.AuditMessage{WriteID: 1, Party: 1, Share: share1}
	peer := &protocol.AuditMessage{WriteID: 1, Party: 0, Share: share0}
	verdicts, errs := workers[1].ReceiveAuditBatch(ctx, []*protocol.AuditMessage{own, peer, peer})
	require.Error(t, errs[0])
	require.Equal(t, Accepted, verdicts[1])
	require.NoError(t, errs[1])
	require.ErrorIs(t, errs[2], ErrDrained)
	require.Equal(t, 1, workers[1].Stats().Applied)

	verdicts, errs = workers[0].ReceiveAuditBatch(ctx, []*protocol.AuditMessage{{WriteID: 1, Party: 1, Share: share1}})
	require.NoError(t, errs[0])
	require.Equal(t, Accepted, verdicts[0])

	require.Equal(t, testutil.ExpectedTable(p, map[int][]byte{2: []byte("kept")}), reveal(t, p, workers))
}

// Cancellation after the audits drained still applies the accepted writes.
func TestReceiveAuditBatchCanceledStillApplies(t *testing.T) {
	p, keys, workers := newGroup(t, protocol.SchemeTree, 2)
	tokens, err := p.Broadcast([]byte("late"), keys[6])
	require.NoError(t, err)
	share0, _, err := workers[0].Submit(3, tokens[0])
	require.NoError(t, err)
	_, _, err = workers[1].Submit(3, tokens[1])
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	verdicts, errs := workers[1].ReceiveAuditBatch(ctx, []*protocol.AuditMessage{{WriteID: 3, Party: 0, Share: share0}})
	require.NoError(t, errs[0])
	require.Equal(t, Accepted, verdicts[0])
	require.Equal(t, 1, workers[1].Stats().Applied)
}

func TestRegistry(t *testing.T) {
	r := NewAuditRegistry(3)
	share := &protocol.AuditShare{}

	complete, err := r.Add(1, 0, share)
	require.NoError(t, err)
	require.False(t, complete)
	_, err = r.Add(1, 0, share)
	require.ErrorIs(t, err, ErrDuplicateShare)
	_, err = r.Add(1, 3, share)
	require.Error(t, err)

	_, _, err = r.Drain(1)
	require.Error(t, err)
	_, _, err = r.Drain(2)
	require.Error(t, err)

	_, err = r.Add(1, 1, share)
	require.NoError(t, err)
	complete, err = r.Add(1, 2, share)
	require.NoError(t, err)
	require.False(t, complete, "own token missing")

	complete, err = r.Init(1, &protocol.WriteToken{})
	require.NoError(t, err)
	require.True(t, complete)
	require.Equal(t, 1, r.Pending())

	token, shares, err := r.Drain(1)
	require.NoError(t, err)
	require.NotNil(t, token)
	require.Len(t, shares, 3)
	require.Equal(t, 0, r.Pending())

	_, _, err = r.Drain(1)
	require.ErrorIs(t, err, ErrDrained)
	_, err = r.Init(1, token)
	require.ErrorIs(t, err, ErrDrained)

	r.Reset()
	_, err = r.Init(1, token)
	require.NoError(t, err)
}

func TestRegistryConcurrentAdds(t *testing.T) {
	const writes = 50
	r := NewAuditRegistry(4)
	var wg sync.WaitGroup
	var mu sync.Mutex
	completed := 0
	for party := 0; party < 4; party++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := uint64(0); id < writes; id++ {
				var done bool
				var err error
				if party == 0 {
					done, err = r.Init(id, &protocol.WriteToken{})
					if err == nil && !done {
						done, err = r.Add(id, 0, &protocol.AuditShare{})
					}
				} else {
					done, err = r.Add(id, party, &protocol.AuditShare{})
				}
				assert.NoError(t, err)
				if done {
					mu.Lock()
					completed++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()
	require.Equal(t, writes, completed)
	require.Equal(t, writes, r.Pending())
}

func TestAccumulatorConcurrent(t *testing.T) {
	p, _, _ := newGroup(t, protocol.SchemeTree, 2)
	acc := NewAccumulator(p.NewAccumulator())
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, err := p.ToAccumulator(p.Cover()[0])
			if !assert.NoError(t, err) {
				return
			}
			_, err = acc.Accumulate(a)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	require.Equal(t, 16, acc.Count())

	_, count := acc.Reset(p.NewAccumulator())
	require.Equal(t, 16, count)
	require.Equal(t, p.NewAccumulator().Share(), acc.Share())
}

func TestRunPool(t *testing.T) {
	pool := NewPool(0)
	require.Positive(t, pool.Workers())

	inputs := make([]int, 100)
	for i := range inputs {
		inputs[i] = i
	}
	errOdd := errors.New("odd")
	outs, errs := RunPool(context.Background(), pool, inputs, func(v int) (int, error) {
		if v%2 == 1 {
			return 0, errOdd
		}
		return v * v, nil
	})
	for i := range inputs {
		if i%2 == 1 {
			require.ErrorIs(t, errs[i], errOdd)
		} else {
			require.NoError(t, errs[i])
			require.Equal(t, i*i, outs[i])
		}
	}

	outs, errs = RunPool(context.Background(), pool, nil, func(v int) (int, error) { return v, nil })
	require.Empty(t, outs)
	require.Empty(t, errs)
}

func TestApplied(t *testing.T) {
	a := NewApplied()
	require.True(t, a.Add(1<<40))
	require.False(t, a.Add(1<<40))
	require.True(t, a.Contains(1<<40))
	require.Equal(t, uint64(1), a.Len())
	a.Clear()
	require.False(t, a.Contains(1<<40))
}

func TestNewWorkerPartyRange(t *testing.T) {
	p, keys, _ := newGroup(t, protocol.SchemeTree, 2)
	_, err := New(2, p, keys, 0)
	require.Error(t, err)
}
