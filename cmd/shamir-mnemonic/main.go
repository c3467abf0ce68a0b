package main

import (
	"bytes"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/oarkflow/clipboard"
	"github.com/skip2/go-qrcode"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/ruteri/shamir-mnemonic/cmd/flags"
	"github.com/ruteri/shamir-mnemonic/cryptoutils"
	"github.com/ruteri/shamir-mnemonic/interfaces"
	"github.com/ruteri/shamir-mnemonic/mnemonic"
	"github.com/ruteri/shamir-mnemonic/shareio"
	"github.com/ruteri/shamir-mnemonic/sss"
)

var ThresholdFlag = &cli.IntFlag{
	Name:    "threshold",
	Aliases: []string{"m"},
	Value:   3,
	Usage:   "number of shares required to recover the secret",
}
var SharesFlag = &cli.IntFlag{
	Name:    "shares",
	Aliases: []string{"s"},
	Value:   5,
	Usage:   "total number of shares to generate",
}
var LongFlag = &cli.BoolFlag{
	Name:    "long",
	Aliases: []string{"l"},
	Usage:   "generate a 256-bit secret instead of 128-bit",
}
var OutputFlag = &cli.StringFlag{
	Name:    "output",
	Aliases: []string{"o"},
	Usage:   "write shares to this file instead of stdout",
}
var SealFlag = &cli.BoolFlag{
	Name:  "seal",
	Usage: "encrypt the share file with a passphrase (requires --output)",
}
var QrDirFlag = &cli.StringFlag{
	Name:    "qr-dir",
	Aliases: []string{"q"},
	Usage:   "write the secret and shares as QR code PNGs into this directory",
}
var ClipboardFlag = &cli.BoolFlag{
	Name:    "clipboard",
	Aliases: []string{"c"},
	Usage:   "copy the secret to the clipboard instead of printing it",
}
var ClipboardClearSecondsFlag = &cli.IntFlag{
	Name:  "clipboard-clear-seconds",
	Value: 30,
	Usage: "seconds before the clipboard is cleared again",
}
var SkipVerifyFlag = &cli.BoolFlag{
	Name:  "skip-verify",
	Usage: "skip the post-generation recovery self-check",
}
var InteractiveFlag = &cli.BoolFlag{
	Name:    "interactive",
	Aliases: []string{"i"},
	Usage:   "enter shares interactively with echo disabled",
}
var FromClipboardFlag = &cli.BoolFlag{
	Name:  "from-clipboard",
	Usage: "read shares from the clipboard",
}
var UnsealFlag = &cli.BoolFlag{
	Name:  "unseal",
	Usage: "the share file is passphrase-encrypted",
}

func main() {
	app := &cli.App{
		Name:  "shamir-mnemonic",
		Usage: "Split secrets into mnemonic shares and recover them",
		Commands: []*cli.Command{
			{
				Name:  "generate",
				Usage: "Generate a fresh secret and split it into shares",
				Flags: append([]cli.Flag{
					ThresholdFlag, SharesFlag, LongFlag, OutputFlag, SealFlag,
					QrDirFlag, ClipboardFlag, ClipboardClearSecondsFlag, SkipVerifyFlag,
				}, flags.CommonFlags...),
				Action: runGenerate,
			},
			{
				Name:      "recover",
				Usage:     "Recover a secret from shares",
				ArgsUsage: "[share-file | -]",
				Flags: append([]cli.Flag{
					InteractiveFlag, FromClipboardFlag, UnsealFlag,
					ClipboardFlag, ClipboardClearSecondsFlag,
				}, flags.CommonFlags...),
				Action: runRecover,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runGenerate(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)
	engine := sss.New(mnemonic.DefaultWordlist())

	cfg := sss.Config{
		Threshold: cCtx.Int(ThresholdFlag.Name),
		Shares:    cCtx.Int(SharesFlag.Name),
		Long:      cCtx.Bool(LongFlag.Name),
	}
	if cCtx.Bool(SealFlag.Name) && cCtx.String(OutputFlag.Name) == "" {
		return errors.New("--seal requires --output")
	}

	generated, err := engine.Generate(cfg, rand.Reader)
	if err != nil {
		return err
	}

	if !cCtx.Bool(SkipVerifyFlag.Name) {
		if err := verifyShares(engine, cfg, generated); err != nil {
			return fmt.Errorf("share verification failed, discard this output: %w", err)
		}
		logger.Debug("Share self-check passed")
	}

	// Secret output
	if cCtx.Bool(ClipboardFlag.Name) {
		if err := copyWithCountdown(generated.Secret.String(), cCtx.Int(ClipboardClearSecondsFlag.Name)); err != nil {
			return err
		}
	} else {
		fmt.Printf("Secret (%d-bit):\n%s\n", generated.SecretBits, generated.Secret)
	}

	// Share output
	if path := cCtx.String(OutputFlag.Name); path != "" {
		data := []byte(shareio.FormatShares(generated.Shares))
		if cCtx.Bool(SealFlag.Name) {
			passphrase, err := promptNewPassphrase()
			if err != nil {
				return err
			}
			data, err = cryptoutils.SealWithPassphrase(passphrase, data)
			if err != nil {
				return err
			}
		}
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return fmt.Errorf("failed to write share file: %w", err)
		}
		logger.Info("Shares written", "path", path, "shares", cfg.Shares, "threshold", cfg.Threshold)
	} else {
		fmt.Println()
		for i, share := range generated.Shares {
			fmt.Printf("Share %d of %d (threshold %d):\n%s\n\n", i+1, cfg.Shares, cfg.Threshold, share)
		}
	}

	if dir := cCtx.String(QrDirFlag.Name); dir != "" {
		if err := writeQRCodes(dir, generated); err != nil {
			return err
		}
		logger.Info("QR codes written", "dir", dir)
	}

	return nil
}

func runRecover(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)
	engine := sss.New(mnemonic.DefaultWordlist())

	shares, err := collectShares(cCtx)
	if err != nil {
		return err
	}
	logger.Debug("Collected shares", "count", len(shares))

	secret, err := engine.Recover(shares)
	if err != nil {
		return err
	}

	if cCtx.Bool(ClipboardFlag.Name) {
		return copyWithCountdown(secret.String(), cCtx.Int(ClipboardClearSecondsFlag.Name))
	}
	fmt.Println(secret)
	return nil
}

func collectShares(cCtx *cli.Context) ([]interfaces.Mnemonic, error) {
	switch {
	case cCtx.Bool(InteractiveFlag.Name):
		return shareio.InteractiveSource{}.Shares()

	case cCtx.Bool(FromClipboardFlag.Name):
		return shareio.ClipboardSource{}.Shares()

	case cCtx.Args().Len() > 0:
		path := cCtx.Args().First()
		if path == "-" {
			return shareio.ReaderSource{Reader: os.Stdin}.Shares()
		}
		if cCtx.Bool(UnsealFlag.Name) {
			return openSealedShares(path)
		}
		return shareio.FileSource{Path: path}.Shares()

	default:
		return nil, errors.New("no share source: pass a file, '-', --interactive or --from-clipboard")
	}
}

func openSealedShares(path string) ([]interfaces.Mnemonic, error) {
	sealed, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read share file: %w", err)
	}

	fmt.Fprint(os.Stderr, "Passphrase: ")
	passphrase, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to read passphrase: %w", err)
	}

	data, err := cryptoutils.OpenWithPassphrase(passphrase, sealed)
	if err != nil {
		return nil, err
	}
	return shareio.ReaderSource{Reader: bytes.NewReader(data)}.Shares()
}

func promptNewPassphrase() ([]byte, error) {
	fmt.Fprint(os.Stderr, "Passphrase: ")
	first, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to read passphrase: %w", err)
	}

	fmt.Fprint(os.Stderr, "Repeat passphrase: ")
	second, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to read passphrase: %w", err)
	}

	if subtle.ConstantTimeCompare(first, second) != 1 {
		return nil, errors.New("passphrases do not match")
	}
	return first, nil
}

// verifyShares re-runs recovery over random threshold-sized subsets before
// any output leaves the process, so a bad share set is never handed out.
func verifyShares(engine *sss.Engine, cfg sss.Config, generated *sss.Generated) error {
	for trial := 0; trial < 3; trial++ {
		subset, err := randomSubset(generated.Shares, cfg.Threshold)
		if err != nil {
			return err
		}
		recovered, err := engine.Recover(subset)
		if err != nil {
			return err
		}
		if !recovered.Equal(generated.Secret) {
			return errors.New("recovered secret does not match")
		}
	}
	return nil
}

func randomSubset(shares []interfaces.Mnemonic, n int) ([]interfaces.Mnemonic, error) {
	picked := make([]interfaces.Mnemonic, 0, n)
	remaining := append([]interfaces.Mnemonic{}, shares...)
	for len(picked) < n {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(len(remaining))))
		if err != nil {
			return nil, err
		}
		i := int(j.Int64())
		picked = append(picked, remaining[i])
		remaining = append(remaining[:i], remaining[i+1:]...)
	}
	return picked, nil
}

func copyWithCountdown(text string, clearSeconds int) error {
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("failed to write clipboard: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Copied to clipboard, clearing in %d seconds", clearSeconds)
	for i := clearSeconds; i > 0; i-- {
		fmt.Fprint(os.Stderr, ".")
		time.Sleep(time.Second)
	}
	fmt.Fprintln(os.Stderr)
	if err := clipboard.WriteAll(""); err != nil {
		return fmt.Errorf("failed to clear clipboard: %w", err)
	}
	return nil
}

func writeQRCodes(dir string, generated *sss.Generated) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create QR directory: %w", err)
	}

	if err := qrcode.WriteFile(generated.Secret.String(), qrcode.Medium, 512, filepath.Join(dir, "secret.png")); err != nil {
		return fmt.Errorf("failed to write secret QR code: %w", err)
	}

	width := len(fmt.Sprint(len(generated.Shares)))
	for i, share := range generated.Shares {
		name := fmt.Sprintf("share_%0*d.png", width, i+1)
		if err := qrcode.WriteFile(share.String(), qrcode.Medium, 512, filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("failed to write QR code for share %d: %w", i+1, err)
		}
	}
	return nil
}
