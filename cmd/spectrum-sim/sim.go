package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/flashbots/spectrum/cmd/common"
	"github.com/flashbots/spectrum/crypto"
	"github.com/flashbots/spectrum/protocol"
	"github.com/flashbots/spectrum/worker"
	"github.com/montanaflynn/stats"
	"lukechampine.com/frand"
)

// Load is the client population of one epoch.
type Load struct {
	Clients      int
	Broadcasters int
	Malicious    int
}

func (l Load) Validate(channels int) error {
	switch {
	case l.Clients < 1:
		return errors.New("need at least one client")
	case l.Broadcasters < 0 || l.Malicious < 0:
		return errors.New("negative client count")
	case l.Broadcasters > channels:
		return fmt.Errorf("%d broadcasters for %d channels", l.Broadcasters, channels)
	case l.Broadcasters+l.Malicious > l.Clients:
		return fmt.Errorf("%d broadcasters and %d malicious exceed %d clients", l.Broadcasters, l.Malicious, l.Clients)
	}
	return nil
}

// EpochResult summarizes one simulated epoch.
type EpochResult struct {
	Epoch        int
	Broadcasters int
	Recovered    int
	Accepted     int64
	Rejected     int64
	Invalid      int64
	Table        [][]byte
}

type node struct {
	w    *worker.Worker
	keys *common.WorkerKeys
}

type simulation struct {
	cfg      *protocol.Config
	proto    protocol.Protocol
	channels []protocol.ChannelKey
	nodes    []*node
	coord    *protocol.LocalEpochCoordinator
	log      *log.Logger
	progress bool

	nextID  uint64
	timings map[string][]float64
}

func newSimulation(cfg *protocol.Config, logger *log.Logger, progress bool) (*simulation, error) {
	proto, err := protocol.New(cfg)
	if err != nil {
		return nil, err
	}
	channels, err := proto.NewChannelKeys()
	if err != nil {
		return nil, fmt.Errorf("channel keys: %w", err)
	}

	workerKeys := channels
	if cfg.Scheme == protocol.SchemeTwoKeyPub {
		workerKeys = protocol.PublicChannelKeys(channels)
	}

	nodes := make([]*node, cfg.Parties)
	for i := range nodes {
		keys, err := common.GenerateWorkerKeys()
		if err != nil {
			return nil, err
		}
		w, err := worker.New(i, proto, workerKeys, cfg.AuditWorkers)
		if err != nil {
			return nil, err
		}
		nodes[i] = &node{w: w, keys: keys}
		logger.Printf("worker %d: signing key %s", i, keys.Public)
	}

	return &simulation{
		cfg:      cfg,
		proto:    proto,
		channels: channels,
		nodes:    nodes,
		coord:    protocol.NewLocalEpochCoordinator(cfg.EpochDuration.Duration),
		log:      logger,
		progress: progress,
		timings:  make(map[string][]float64),
	}, nil
}

func (s *simulation) timed(phase string, start time.Time) {
	s.timings[phase] = append(s.timings[phase], float64(time.Since(start).Microseconds())/1000)
}

func writeAAD(epoch int, id uint64, party int) []byte {
	return []byte(strconv.Itoa(epoch) + "/" + strconv.FormatUint(id, 10) + "/" + strconv.Itoa(party))
}

func (s *simulation) message(epoch, channel int) []byte {
	msg := []byte(fmt.Sprintf("epoch %d channel %d", epoch, channel))
	if len(msg) > s.cfg.MessageLen {
		msg = msg[:s.cfg.MessageLen]
	}
	return msg
}

// tamper corrupts a token the way a client without a valid write would.
func tamper(tokens []*protocol.WriteToken) {
	if tok := tokens[0].Secure; tok != nil {
		seed := tok.Seeds[len(tok.Seeds)-1]
		seed[len(seed)-1] ^= 1
		return
	}
	for _, t := range tokens {
		if t.Insecure.Password != nil {
			t.Insecure.Password = frand.Bytes(protocol.PasswordLen)
		}
	}
}

// clientWrites builds the epoch's tokens: broadcasters first, then the
// malicious clients, then cover traffic.
func (s *simulation) clientWrites(epoch int, load Load) ([][]*protocol.WriteToken, error) {
	bar := common.NewProgressBar(load.Clients, "cyan", "[1/4] Writing", s.progress)
	defer bar.Finish()

	writes := make([][]*protocol.WriteToken, load.Clients)
	for i := range writes {
		var tokens []*protocol.WriteToken
		var err error
		switch {
		case i < load.Broadcasters:
			tokens, err = protocol.ShareMessage(s.proto, s.message(epoch, i), i, s.channels)
		case i < load.Broadcasters+load.Malicious:
			channel := frand.Intn(s.cfg.Channels)
			tokens, err = protocol.ShareMessage(s.proto, []byte("tampered"), channel, s.channels)
			if err == nil {
				tamper(tokens)
			}
		default:
			tokens = s.proto.Cover()
		}
		if err != nil {
			return nil, fmt.Errorf("client %d: %w", i, err)
		}
		writes[i] = tokens
		bar.Add(1)
	}
	return writes, nil
}

// seal encrypts every token to its worker and has each worker open its own.
func (s *simulation) seal(epoch int, writes [][]*protocol.WriteToken) ([][]worker.Write, error) {
	bar := common.NewProgressBar(len(writes), "cyan", "[2/4] Sealing", s.progress)
	defer bar.Finish()

	batches := make([][]worker.Write, len(s.nodes))
	for _, tokens := range writes {
		id := s.nextID
		s.nextID++
		for party, n := range s.nodes {
			payload, err := protocol.SerializeMessage(&protocol.WriteMessage{Epoch: epoch, WriteID: id, Token: tokens[party]})
			if err != nil {
				return nil, err
			}
			sealed, err := crypto.SealToken(n.keys.KemPub, payload, writeAAD(epoch, id, party))
			if err != nil {
				return nil, err
			}
			msg := &protocol.SealedWriteMessage{Epoch: epoch, WriteID: id, Party: party, Token: sealed}

			write, err := s.open(n, msg)
			if err != nil {
				return nil, fmt.Errorf("worker %d write %d: %w", party, id, err)
			}
			batches[party] = append(batches[party], write)
		}
		bar.Add(1)
	}
	return batches, nil
}

func (s *simulation) open(n *node, msg *protocol.SealedWriteMessage) (worker.Write, error) {
	payload, err := crypto.OpenToken(n.keys.KemPriv, msg.Token, writeAAD(msg.Epoch, msg.WriteID, msg.Party))
	if err != nil {
		return worker.Write{}, err
	}
	wm, err := protocol.UnmarshalMessage[protocol.WriteMessage](payload)
	if err != nil {
		return worker.Write{}, err
	}
	if wm.WriteID != msg.WriteID || wm.Epoch != msg.Epoch {
		return worker.Write{}, errors.New("sealed header mismatch")
	}
	return worker.Write{ID: wm.WriteID, Token: wm.Token}, nil
}

// audit submits each worker's batch and returns the signed shares it sends.
func (s *simulation) audit(ctx context.Context, epoch int, batches [][]worker.Write) ([][]*protocol.Signed[protocol.AuditMessage], error) {
	out := make([][]*protocol.Signed[protocol.AuditMessage], len(s.nodes))
	errs := make([]error, len(s.nodes))
	var wg sync.WaitGroup
	for party, n := range s.nodes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			shares, _, submitErrs := n.w.SubmitBatch(ctx, batches[party])
			for i, share := range shares {
				if err := submitErrs[i]; err != nil && ctx.Err() != nil {
					errs[party] = err
					return
				}
				if share == nil {
					continue
				}
				signed, err := protocol.NewSigned(party, n.keys.Signing, &protocol.AuditMessage{
					Epoch:   epoch,
					WriteID: batches[party][i].ID,
					Party:   party,
					Share:   share,
				})
				if err != nil {
					errs[party] = err
					return
				}
				out[party] = append(out[party], signed)
			}
		}()
	}
	wg.Wait()
	return out, errors.Join(errs...)
}

// exchange delivers every signed share to the other workers.
func (s *simulation) exchange(ctx context.Context, signed [][]*protocol.Signed[protocol.AuditMessage]) error {
	bar := common.NewProgressBar(len(s.nodes), "cyan", "[3/4] Auditing", s.progress)
	defer bar.Finish()

	roster := make([]crypto.PublicKey, len(s.nodes))
	for i, n := range s.nodes {
		roster[i] = n.keys.Public
	}

	for party, n := range s.nodes {
		var msgs []*protocol.AuditMessage
		for sender, batch := range signed {
			if sender == party {
				continue
			}
			for _, sm := range batch {
				msg, err := sm.RecoverFrom(roster)
				if err != nil {
					s.log.Printf("worker %d: dropping share from %d: %v", party, sender, err)
					continue
				}
				if msg.Party != sm.Party {
					s.log.Printf("worker %d: dropping share for party %d signed as %d", party, msg.Party, sm.Party)
					continue
				}
				msgs = append(msgs, msg)
			}
		}
		_, errs := n.w.ReceiveAuditBatch(ctx, msgs)
		for i, err := range errs {
			if err != nil {
				s.log.Printf("worker %d: share for write %d from %d: %v", party, msgs[i].WriteID, msgs[i].Party, err)
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		bar.Add(1)
	}
	return nil
}

func (s *simulation) reveal(epoch int) ([][]byte, error) {
	shares := make([]protocol.Share, len(s.nodes))
	for party, n := range s.nodes {
		msg := &protocol.RevealMessage{Epoch: epoch, Party: party, Share: n.w.NewEpoch()}
		shares[msg.Party] = msg.Share
	}
	return s.proto.Reveal(shares)
}

// RunEpoch drives one write, audit and reveal cycle.
func (s *simulation) RunEpoch(ctx context.Context, load Load) (*EpochResult, error) {
	epoch := s.coord.CurrentEpoch().Number
	s.log.Printf("epoch %d: %s phase", epoch, protocol.WritePhase)

	start := time.Now()
	writes, err := s.clientWrites(epoch, load)
	if err != nil {
		return nil, err
	}
	s.timed("write", start)

	start = time.Now()
	batches, err := s.seal(epoch, writes)
	if err != nil {
		return nil, err
	}
	s.timed("seal", start)

	s.coord.AdvanceToEpoch(protocol.Epoch{Number: epoch, Phase: protocol.AuditPhase})
	s.log.Printf("epoch %d: %s phase", epoch, protocol.AuditPhase)

	start = time.Now()
	signed, err := s.audit(ctx, epoch, batches)
	if err != nil {
		return nil, err
	}
	if err := s.exchange(ctx, signed); err != nil {
		return nil, err
	}
	s.timed("audit", start)

	res := &EpochResult{Epoch: epoch, Broadcasters: load.Broadcasters}
	st := s.nodes[0].w.Stats()
	res.Accepted, res.Rejected, res.Invalid = st.Accepted, st.Rejected, st.Invalid
	if st.Pending > 0 {
		s.log.Printf("epoch %d: %d writes still pending at worker 0", epoch, st.Pending)
	}

	s.coord.AdvanceToEpoch(protocol.Epoch{Number: epoch, Phase: protocol.RevealPhase})
	s.log.Printf("epoch %d: %s phase", epoch, protocol.RevealPhase)

	start = time.Now()
	table, err := s.reveal(epoch)
	if err != nil {
		return nil, err
	}
	s.timed("reveal", start)
	s.coord.AdvanceToEpoch(protocol.Epoch{Number: epoch + 1, Phase: protocol.WritePhase})

	res.Table = table
	for ch := 0; ch < load.Broadcasters; ch++ {
		want := s.message(epoch, ch)
		if bytes.HasPrefix(table[ch], want) {
			res.Recovered++
		} else {
			s.log.Printf("epoch %d: channel %d mismatch: %x", epoch, ch, table[ch])
		}
	}
	return res, nil
}

// PrintTimings reports per-phase latency over all epochs in milliseconds.
func (s *simulation) PrintTimings() {
	phases := make([]string, 0, len(s.timings))
	for p := range s.timings {
		phases = append(phases, p)
	}
	sort.Strings(phases)

	for _, p := range phases {
		data := s.timings[p]
		mean, _ := stats.Mean(data)
		median, _ := stats.Median(data)
		p95, _ := stats.Percentile(data, 95)
		fmt.Printf("%-7s mean %8.2fms  median %8.2fms  p95 %8.2fms  (%d epochs)\n", p, mean, median, p95, len(data))
	}
}
