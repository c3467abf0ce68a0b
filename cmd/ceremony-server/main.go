package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/ruteri/shamir-mnemonic/cmd/flags"
	"github.com/ruteri/shamir-mnemonic/cryptoutils"
	"github.com/ruteri/shamir-mnemonic/httpserver"
	"github.com/ruteri/shamir-mnemonic/mnemonic"
	"github.com/ruteri/shamir-mnemonic/sss"
)

var CeremonyServiceLogFlag = flags.LogServiceFlagFn("ceremony")

var ListenAddrFlag = &cli.StringFlag{
	Name:  "listen-addr",
	Value: "127.0.0.1:8081",
	Usage: "address to listen on for the ceremony API",
}
var HolderKeysFlag = &cli.StringFlag{
	Name:     "holder-keys",
	Required: true,
	Usage:    "JSON file with share holder IDs and public keys",
}
var ServerThresholdFlag = &cli.IntFlag{
	Name:  "threshold",
	Value: 3,
	Usage: "number of shares required to recover the secret",
}

func main() {
	app := &cli.App{
		Name:  "ceremony-server",
		Usage: "Serve share distribution and recovery ceremonies",
		Flags: append([]cli.Flag{ListenAddrFlag, HolderKeysFlag, ServerThresholdFlag, CeremonyServiceLogFlag}, flags.CommonFlags...),
		Commands: []*cli.Command{
			{
				Name:   "keygen",
				Usage:  "Generate a key pair for a share holder",
				Action: runKeygen,
			},
		},
		Action: runServer,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runServer(cCtx *cli.Context) error {
	listenAddr := cCtx.String(ListenAddrFlag.Name)
	threshold := cCtx.Int(ServerThresholdFlag.Name)

	logger := flags.SetupLogger(cCtx)

	keysFile, err := os.Open(cCtx.String(HolderKeysFlag.Name))
	if err != nil {
		logger.Error("Failed to open holder keys file", "err", err)
		return err
	}
	holderKeys, err := httpserver.LoadHolderKeys(keysFile)
	keysFile.Close()
	if err != nil {
		logger.Error("Failed to load holder keys", "err", err)
		return err
	}

	engine := sss.New(mnemonic.DefaultWordlist())
	handler, err := httpserver.NewCeremonyHandler(logger, engine, threshold, holderKeys)
	if err != nil {
		logger.Error("Failed to create ceremony handler", "err", err)
		return err
	}

	srv, err := httpserver.New(flags.ConfigureServer(cCtx, logger, listenAddr), handler)
	if err != nil {
		logger.Error("Failed to create server", "err", err)
		return err
	}

	srv.RunInBackground()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

	logger.Info("Server is running, press Ctrl+C to stop",
		"holders", len(holderKeys), "threshold", threshold)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-exit
		cancel()
	}()

	secret, err := handler.WaitForSecret(ctx)
	if err == nil {
		logger.Info("Ceremony complete")
		fmt.Println(secret)
	} else {
		logger.Info("Shutdown signal received")
	}

	srv.Shutdown()
	logger.Info("Server shutdown complete")

	return nil
}

func runKeygen(cCtx *cli.Context) error {
	privPEM, pubPEM, err := cryptoutils.GenerateKeyPair()
	if err != nil {
		return err
	}

	fmt.Print(privPEM)
	fmt.Print(pubPEM)
	return nil
}
