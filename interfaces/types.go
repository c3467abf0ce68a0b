// Package interfaces defines the shared types, contracts and error taxonomy
// for the mnemonic secret sharing system. It provides the contract between
// different components without implementation details.
package interfaces

import (
	"errors"
	"strings"
)

// Mnemonic is an ordered sequence of vocabulary words representing either a
// secret or a single share. It is the only representation the outer layers
// ever deal in; raw bytes exist only inside the engine.
type Mnemonic []string

// ParseMnemonic splits raw share text into a normalized word sequence.
// Words are separated by arbitrary whitespace and lowercased, so text
// transcribed from paper or read from a file can be passed in directly.
func ParseMnemonic(text string) Mnemonic {
	fields := strings.Fields(text)
	words := make(Mnemonic, len(fields))
	for i, f := range fields {
		words[i] = strings.ToLower(f)
	}
	return words
}

// String joins the words with single spaces.
func (m Mnemonic) String() string {
	return strings.Join(m, " ")
}

// Equal compares two mnemonics word by word.
func (m Mnemonic) Equal(other Mnemonic) bool {
	if len(m) != len(other) {
		return false
	}
	for i := range m {
		if m[i] != other[i] {
			return false
		}
	}
	return true
}

var (
	// ErrConfiguration is returned for invalid threshold/share-count
	// combinations. It is reported before any randomness is consumed.
	ErrConfiguration = errors.New("invalid secret sharing configuration")

	// ErrInsufficientShares is returned when fewer than the required
	// threshold of distinct shares is supplied to recovery. It is checked
	// explicitly as a precondition so an under-threshold set can never
	// produce a plausible-looking wrong secret.
	ErrInsufficientShares = errors.New("not enough shares to recover the secret")

	// ErrMalformedShare is returned when a share's index, length or word
	// count does not match expectations.
	ErrMalformedShare = errors.New("malformed share")

	// ErrDecode is the base error for mnemonic decoding failures: unknown
	// words, word-count mismatches and checksum mismatches all wrap it.
	ErrDecode = errors.New("mnemonic decode failure")
)
