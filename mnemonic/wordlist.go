// Package mnemonic implements the reversible mapping between byte sequences
// and human-transcribable word sequences drawn from a fixed 1024-word
// vocabulary, with an embedded CRC-32 checksum so transcription errors are
// detected instead of silently decoding to a different valid-looking value.
package mnemonic

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"
)

// RadixBits is the number of payload bits carried by one word. The
// vocabulary has exactly 2^RadixBits entries.
const RadixBits = 10

// Radix is the vocabulary size.
const Radix = 1 << RadixBits

//go:embed wordlist.txt
var wordlistData string

// Wordlist is an immutable, ordered vocabulary of exactly Radix distinct
// words. It is safe for concurrent use; after construction it is never
// mutated.
type Wordlist struct {
	words   []string
	indices map[string]int
}

// NewWordlist builds a vocabulary from the given ordered word set. The codec
// depends on the exact ordering and cardinality of the vocabulary, not on the
// word content, so tests may substitute their own list.
func NewWordlist(words []string) (*Wordlist, error) {
	if len(words) != Radix {
		return nil, fmt.Errorf("wordlist must contain exactly %d words, got %d", Radix, len(words))
	}

	wl := &Wordlist{
		words:   make([]string, len(words)),
		indices: make(map[string]int, len(words)),
	}
	for i, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			return nil, fmt.Errorf("wordlist entry %d is empty", i)
		}
		if _, dup := wl.indices[w]; dup {
			return nil, fmt.Errorf("duplicate wordlist entry %q", w)
		}
		wl.words[i] = w
		wl.indices[w] = i
	}
	return wl, nil
}

var (
	defaultWordlist     *Wordlist
	defaultWordlistOnce sync.Once
	defaultWordlistErr  error
)

// DefaultWordlist returns the embedded vocabulary, loaded once per process.
// Loading cannot fail unless the embedded resource is corrupt, which is a
// build defect, so the error is surfaced as a panic.
func DefaultWordlist() *Wordlist {
	defaultWordlistOnce.Do(func() {
		var lines []string
		for _, line := range strings.Split(wordlistData, "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			lines = append(lines, line)
		}
		defaultWordlist, defaultWordlistErr = NewWordlist(lines)
	})
	if defaultWordlistErr != nil {
		panic(fmt.Sprintf("embedded wordlist is invalid: %v", defaultWordlistErr))
	}
	return defaultWordlist
}

// Word returns the word at the given index.
func (wl *Wordlist) Word(index int) string {
	return wl.words[index]
}

// Index returns the position of the given word, or false when the word is
// not part of the vocabulary. Lookup is case-insensitive.
func (wl *Wordlist) Index(word string) (int, bool) {
	i, ok := wl.indices[strings.ToLower(word)]
	return i, ok
}

// Len returns the vocabulary size. It is always Radix.
func (wl *Wordlist) Len() int {
	return len(wl.words)
}
