// Command spectrum-sim runs Spectrum epochs with every worker in one process.
//
// Each epoch, clients seal their write tokens to the workers, the workers
// audit the tokens and exchange signed audit shares, and the accepted
// writes are revealed by combining the workers' tables. Malicious clients
// send tampered tokens, which every worker must reject.
//
// # Usage
//
//	go run ./cmd/spectrum-sim --scheme=tree --channels=64 --clients=256
//	go run ./cmd/spectrum-sim --config=spectrum.yaml --epochs=5 --malicious=10
//	go run ./cmd/spectrum-sim --scheme=multi-key -p 3 --profile=./prof
package main

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/fatih/color"
	"github.com/flashbots/spectrum/cmd/common"
	"github.com/pkg/profile"
	uuid "github.com/satori/go.uuid"
	"github.com/urfave/cli"
)

const (
	// BinaryName is the executable name
	BinaryName = "spectrum-sim"

	// Version of the binary
	Version = "0.1.0"

	optionEpochs       = "epochs"
	optionClients      = "clients"
	optionBroadcasters = "broadcasters"
	optionMalicious    = "malicious"
	optionProgress     = "progress"
	optionProfile      = "profile"
)

func main() {
	app := cli.NewApp()
	app.Name = BinaryName
	app.Usage = "Simulate anonymous broadcast epochs with in-process workers"
	app.Version = Version

	app.Flags = append(slices.Clone(common.ConfigFlags),
		cli.IntFlag{
			Name:  optionEpochs + ", e",
			Value: 1,
			Usage: "number of epochs to run",
		},
		cli.IntFlag{
			Name:   optionClients,
			Value:  32,
			Usage:  "writes per epoch, broadcasters and cover traffic combined",
			EnvVar: "SPECTRUM_CLIENTS",
		},
		cli.IntFlag{
			Name:  optionBroadcasters + ", b",
			Value: 4,
			Usage: "clients holding a channel key, one channel each",
		},
		cli.IntFlag{
			Name:  optionMalicious + ", m",
			Usage: "clients sending tampered tokens",
		},
		cli.BoolFlag{
			Name:  optionProgress,
			Usage: "show progress bars",
		},
		cli.StringFlag{
			Name:  optionProfile,
			Usage: "write a CPU profile to this directory",
		},
	)
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		color.Red("%s: %v", BinaryName, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := common.ConfigFromContext(c)
	if err != nil {
		return err
	}
	if dir := c.String(optionProfile); dir != "" {
		defer profile.Start(profile.ProfilePath(dir)).Stop()
	}

	session := uuid.NewV4()
	logger := log.New(os.Stderr, fmt.Sprintf("[sim %s] ", session.String()[:8]), log.LstdFlags)
	logger.Printf("scheme=%s parties=%d channels=%d message_len=%d", cfg.Scheme, cfg.Parties, cfg.Channels, cfg.MessageLen)

	sim, err := newSimulation(cfg, logger, c.Bool(optionProgress))
	if err != nil {
		return err
	}

	load := Load{
		Clients:      c.Int(optionClients),
		Broadcasters: c.Int(optionBroadcasters),
		Malicious:    c.Int(optionMalicious),
	}
	if err := load.Validate(cfg.Channels); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for e := 0; e < c.Int(optionEpochs); e++ {
		res, err := sim.RunEpoch(ctx, load)
		if err != nil {
			return fmt.Errorf("epoch %d: %w", e, err)
		}
		printResult(res)
	}
	sim.PrintTimings()
	return nil
}

func printResult(res *EpochResult) {
	fmt.Printf("epoch %d: ", res.Epoch)
	if res.Recovered == res.Broadcasters {
		color.New(color.FgGreen).Printf("%d/%d messages recovered", res.Recovered, res.Broadcasters)
	} else {
		color.New(color.FgRed).Printf("%d/%d messages recovered", res.Recovered, res.Broadcasters)
	}
	fmt.Printf(", %d accepted", res.Accepted)
	if res.Rejected > 0 || res.Invalid > 0 {
		color.New(color.FgYellow).Printf(", %d rejected, %d invalid", res.Rejected, res.Invalid)
	}
	fmt.Println()

	for ch, row := range res.Table {
		if row == nil {
			color.New(color.FgYellow).Printf("  channel %3d: collision\n", ch)
			continue
		}
		if msg := bytes.TrimRight(row, "\x00"); len(msg) > 0 {
			fmt.Printf("  channel %3d: %q\n", ch, msg)
		}
	}
}
