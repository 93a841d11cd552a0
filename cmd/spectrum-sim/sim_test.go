package main

import (
	"context"
	"io"
	"log"
	"testing"

	"github.com/flashbots/spectrum/protocol"
	"github.com/flashbots/spectrum/testutil"
	"github.com/stretchr/testify/require"
)

func TestSimulationEpochs(t *testing.T) {
	for _, scheme := range []protocol.Scheme{protocol.SchemeInsecure, protocol.SchemeTwoKey, protocol.SchemeTwoKeyPub, protocol.SchemeTree} {
		t.Run(string(scheme), func(t *testing.T) {
			cfg := testutil.NewTestConfig(testutil.WithScheme(scheme), testutil.WithMessageLen(24))
			if scheme == protocol.SchemeInsecure {
				cfg.Parties = 3
			}

			sim, err := newSimulation(cfg, log.New(io.Discard, "", 0), false)
			require.NoError(t, err)

			load := Load{Clients: 12, Broadcasters: 3, Malicious: 2}
			require.NoError(t, load.Validate(cfg.Channels))

			for e := 0; e < 2; e++ {
				res, err := sim.RunEpoch(context.Background(), load)
				require.NoError(t, err)
				require.Equal(t, e, res.Epoch)
				require.Equal(t, 3, res.Recovered)
				require.Equal(t, int64(10), res.Accepted)
				require.Equal(t, int64(2), res.Rejected+res.Invalid)
				for ch := 3; ch < cfg.Channels; ch++ {
					require.Equal(t, make([]byte, cfg.MessageLen), res.Table[ch], "channel %d", ch)
				}
			}
			require.Len(t, sim.timings["audit"], 2)
		})
	}
}

func TestLoadValidate(t *testing.T) {
	require.Error(t, Load{}.Validate(4))
	require.Error(t, Load{Clients: 4, Broadcasters: 5}.Validate(8))
	require.Error(t, Load{Clients: 4, Broadcasters: 5}.Validate(4))
	require.Error(t, Load{Clients: 4, Broadcasters: 2, Malicious: 3}.Validate(4))
	require.NoError(t, Load{Clients: 4, Broadcasters: 2, Malicious: 2}.Validate(4))
}
