// Package common provides shared utilities for Spectrum CLI commands:
//
//   - Generation of Ed25519 signing and X25519 sealing keys for workers
//   - Config loading with command-line overrides
//   - Progress bars for long-running phases
package common

import (
	"fmt"
	"io"

	"github.com/flashbots/spectrum/crypto"
	"github.com/flashbots/spectrum/protocol"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli"
)

// Config flag names shared by commands that build a protocol.
const (
	FlagConfig       = "config"
	FlagScheme       = "scheme"
	FlagParties      = "parties"
	FlagChannels     = "channels"
	FlagMessageLen   = "message-len"
	FlagGroup        = "group"
	FlagAuditWorkers = "audit-workers"
)

// ConfigFlags are the flags read by ConfigFromContext.
var ConfigFlags = []cli.Flag{
	cli.StringFlag{
		Name:   FlagConfig + ", c",
		Usage:  "config file (.yaml, .toml or .json)",
		EnvVar: "SPECTRUM_CONFIG",
	},
	cli.StringFlag{
		Name:   FlagScheme,
		Usage:  "write scheme: insecure, two-key, two-key-pub, multi-key or tree",
		EnvVar: "SPECTRUM_SCHEME",
	},
	cli.IntFlag{
		Name:   FlagParties + ", p",
		Usage:  "number of workers",
		EnvVar: "SPECTRUM_PARTIES",
	},
	cli.IntFlag{
		Name:   FlagChannels,
		Usage:  "number of broadcast channels",
		EnvVar: "SPECTRUM_CHANNELS",
	},
	cli.IntFlag{
		Name:   FlagMessageLen,
		Usage:  "channel size in bytes",
		EnvVar: "SPECTRUM_MESSAGE_LEN",
	},
	cli.StringFlag{
		Name:   FlagGroup,
		Usage:  "algebraic group: ed25519 or mod",
		EnvVar: "SPECTRUM_GROUP",
	},
	cli.IntFlag{
		Name:   FlagAuditWorkers,
		Usage:  "audit goroutines per worker, 0 for one per CPU",
		EnvVar: "SPECTRUM_AUDIT_WORKERS",
	},
}

// ConfigFromContext loads the --config file, or the defaults when none is
// given, and applies the flags that were set on the command line.
func ConfigFromContext(c *cli.Context) (*protocol.Config, error) {
	cfg := protocol.DefaultConfig()
	if path := c.String(FlagConfig); path != "" {
		loaded, err := protocol.LoadConfig(path)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	if c.IsSet(FlagScheme) {
		cfg.Scheme = protocol.Scheme(c.String(FlagScheme))
	}
	if c.IsSet(FlagParties) {
		cfg.Parties = c.Int(FlagParties)
	}
	if c.IsSet(FlagChannels) {
		cfg.Channels = c.Int(FlagChannels)
	}
	if c.IsSet(FlagMessageLen) {
		cfg.MessageLen = c.Int(FlagMessageLen)
	}
	if c.IsSet(FlagGroup) {
		cfg.Group = c.String(FlagGroup)
	}
	if c.IsSet(FlagAuditWorkers) {
		cfg.AuditWorkers = c.Int(FlagAuditWorkers)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// WorkerKeys are the long-term keys of one worker.
type WorkerKeys struct {
	Signing crypto.PrivateKey
	Public  crypto.PublicKey
	KemPub  crypto.KemPublicKey
	KemPriv crypto.KemPrivateKey
}

// GenerateWorkerKeys creates fresh signing and sealing keys.
func GenerateWorkerKeys() (*WorkerKeys, error) {
	pub, priv, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("signing key: %w", err)
	}
	kemPub, kemPriv, err := crypto.GenerateKemKeyPair()
	if err != nil {
		return nil, fmt.Errorf("sealing key: %w", err)
	}
	return &WorkerKeys{Signing: priv, Public: pub, KemPub: kemPub, KemPriv: kemPriv}, nil
}

// NewProgressBar returns a colored bar of sz steps. A hidden bar writes to
// io.Discard.
func NewProgressBar(sz int, color, name string, show bool) *progressbar.ProgressBar {
	if !show {
		return progressbar.NewOptions(sz, progressbar.OptionSetWriter(io.Discard))
	}
	return progressbar.NewOptions(sz,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(20),
		progressbar.OptionSetDescription(fmt.Sprintf("[%s]%s...[reset]", color, name)),
		progressbar.OptionShowIts(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}
