// Package shareio gathers share mnemonics from the places people actually
// keep them: files, stdin, the clipboard, or typed in at a hidden prompt.
package shareio

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/oarkflow/clipboard"
	"golang.org/x/term"

	"github.com/ruteri/shamir-mnemonic/interfaces"
)

// ParseShares splits share text into individual mnemonics. Shares are
// separated by one or more blank lines; within a share, any whitespace
// (including line breaks) separates words. Empty input yields no shares.
func ParseShares(r io.Reader) ([]interfaces.Mnemonic, error) {
	var shares []interfaces.Mnemonic
	var current []string

	flush := func() {
		if len(current) > 0 {
			shares = append(shares, interfaces.Mnemonic(current))
			current = nil
		}
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			flush()
			continue
		}
		current = append(current, interfaces.ParseMnemonic(line)...)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read shares: %w", err)
	}
	flush()
	return shares, nil
}

// FormatShares renders mnemonics as share text, one share per line with a
// blank line between shares, in the format ParseShares accepts.
func FormatShares(shares []interfaces.Mnemonic) string {
	lines := make([]string, 0, len(shares))
	for _, s := range shares {
		lines = append(lines, s.String())
	}
	return strings.Join(lines, "\n\n") + "\n"
}

var (
	_ interfaces.ShareSource = FileSource{}
	_ interfaces.ShareSource = ReaderSource{}
	_ interfaces.ShareSource = ClipboardSource{}
	_ interfaces.ShareSource = InteractiveSource{}
)

// FileSource reads share text from a file on disk.
type FileSource struct {
	Path string
}

func (s FileSource) Shares() ([]interfaces.Mnemonic, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open share file: %w", err)
	}
	defer f.Close()
	return ParseShares(f)
}

// ReaderSource reads share text from an arbitrary stream, typically stdin.
type ReaderSource struct {
	Reader io.Reader
}

func (s ReaderSource) Shares() ([]interfaces.Mnemonic, error) {
	return ParseShares(s.Reader)
}

// ClipboardSource reads share text from the system clipboard.
type ClipboardSource struct{}

func (ClipboardSource) Shares() ([]interfaces.Mnemonic, error) {
	text, err := clipboard.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read clipboard: %w", err)
	}
	return ParseShares(strings.NewReader(text))
}

// InteractiveSource prompts for shares one at a time with echo disabled, so
// mnemonics never show on screen or end up in shell history. An empty entry
// ends the session. Out receives the prompts; input comes from the terminal
// on os.Stdin.
type InteractiveSource struct {
	Out io.Writer
}

func (s InteractiveSource) Shares() ([]interfaces.Mnemonic, error) {
	out := s.Out
	if out == nil {
		out = os.Stderr
	}

	var shares []interfaces.Mnemonic
	for {
		fmt.Fprintf(out, "Share %d (empty to finish): ", len(shares)+1)
		entry, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return nil, fmt.Errorf("failed to read share: %w", err)
		}
		words := interfaces.ParseMnemonic(string(entry))
		if len(words) == 0 {
			break
		}
		shares = append(shares, words)
	}
	return shares, nil
}
