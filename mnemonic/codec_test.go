package mnemonic

import (
	"crypto/rand"
	"fmt"
	"testing"

	"github.com/ruteri/shamir-mnemonic/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultWordlist(t *testing.T) {
	wl := DefaultWordlist()
	require.Equal(t, Radix, wl.Len(), "embedded vocabulary must have exactly %d words", Radix)

	// Every word must map back to its own position.
	seen := make(map[string]bool, wl.Len())
	for i := 0; i < wl.Len(); i++ {
		w := wl.Word(i)
		assert.False(t, seen[w], "word %q appears twice", w)
		seen[w] = true

		idx, ok := wl.Index(w)
		require.True(t, ok, "word %q should resolve", w)
		assert.Equal(t, i, idx, "word %q should resolve to its own index", w)
	}

	// Lookup is case-insensitive, unknown words are reported as such.
	idx, ok := wl.Index("ACID")
	assert.True(t, ok)
	assert.Equal(t, 0, idx)

	_, ok = wl.Index("notawordinthelist")
	assert.False(t, ok)
}

func TestNewWordlistValidation(t *testing.T) {
	_, err := NewWordlist([]string{"too", "short"})
	assert.Error(t, err, "wrong cardinality must be rejected")

	words := make([]string, Radix)
	for i := range words {
		words[i] = fmt.Sprintf("w%04d", i)
	}
	words[17] = words[16]
	_, err = NewWordlist(words)
	assert.Error(t, err, "duplicate entries must be rejected")
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	codec := NewCodec(DefaultWordlist())

	for _, n := range []int{1, 2, 3, 4, 5, 8, 15, 16, 17, 31, 32, 33, 64, 255, MaxPayload} {
		payload := make([]byte, n)
		_, err := rand.Read(payload)
		require.NoError(t, err)

		words, err := codec.Encode(payload)
		require.NoError(t, err, "encoding %d bytes should succeed", n)

		got, err := codec.Decode(words)
		require.NoError(t, err, "decoding %d-byte payload should succeed", n)
		assert.Equal(t, payload, got, "round trip must be exact for %d bytes", n)
	}
}

func TestEncodePreservesLeadingZeros(t *testing.T) {
	// Byte strings are not integers: leading zero bytes must survive.
	codec := NewCodec(DefaultWordlist())

	payload := []byte{0, 0, 0, 1}
	words, err := codec.Encode(payload)
	require.NoError(t, err)

	got, err := codec.Decode(words)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestEncodeRejectsUnsupportedLengths(t *testing.T) {
	codec := NewCodec(DefaultWordlist())

	_, err := codec.Encode(nil)
	assert.Error(t, err, "empty payload must be rejected")

	_, err = codec.Encode(make([]byte, MaxPayload+1))
	assert.Error(t, err, "oversized payload must be rejected")
}

func TestDecodeDetectsSingleWordSubstitution(t *testing.T) {
	wl := DefaultWordlist()
	codec := NewCodec(wl)

	payload := []byte("a sixteen byte s")
	words, err := codec.Encode(payload)
	require.NoError(t, err)

	// Substituting any single word for any other valid word must be caught:
	// payload words break the checksum, the length word breaks the word
	// count. Try a handful of replacement words per position.
	for pos := range words {
		orig := words[pos]
		origIdx, ok := wl.Index(orig)
		require.True(t, ok)

		for _, delta := range []int{1, 7, 100, 511} {
			replacement := wl.Word((origIdx + delta) % Radix)
			mutated := make(interfaces.Mnemonic, len(words))
			copy(mutated, words)
			mutated[pos] = replacement

			_, err := codec.Decode(mutated)
			assert.ErrorIs(t, err, interfaces.ErrDecode,
				"substituting word %d (%q -> %q) must be detected", pos, orig, replacement)
		}
	}
}

func TestDecodeUnknownWord(t *testing.T) {
	codec := NewCodec(DefaultWordlist())

	words, err := codec.Encode([]byte{1, 2, 3})
	require.NoError(t, err)
	words[1] = "definitelynotaword"

	_, err = codec.Decode(words)
	require.Error(t, err)
	assert.ErrorIs(t, err, interfaces.ErrDecode)

	var unknown *UnknownWordError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "definitelynotaword", unknown.Word)
	assert.Equal(t, 1, unknown.Position)
}

func TestDecodeRejectsTruncatedAndPadded(t *testing.T) {
	codec := NewCodec(DefaultWordlist())

	words, err := codec.Encode([]byte("hello world"))
	require.NoError(t, err)

	_, err = codec.Decode(words[:len(words)-1])
	assert.ErrorIs(t, err, interfaces.ErrDecode, "truncated sequence must be rejected")

	_, err = codec.Decode(append(append(interfaces.Mnemonic{}, words...), words[1]))
	assert.ErrorIs(t, err, interfaces.ErrDecode, "extended sequence must be rejected")

	_, err = codec.Decode(interfaces.Mnemonic{words[0]})
	assert.ErrorIs(t, err, interfaces.ErrDecode, "single word is never a valid sequence")
}

func TestCodecWithSubstituteVocabulary(t *testing.T) {
	// The codec depends on ordering and cardinality only, never on content.
	words := make([]string, Radix)
	for i := range words {
		words[i] = fmt.Sprintf("word%04d", i)
	}
	wl, err := NewWordlist(words)
	require.NoError(t, err)

	codec := NewCodec(wl)
	payload := []byte{0xca, 0xfe, 0xba, 0xbe}

	seq, err := codec.Encode(payload)
	require.NoError(t, err)
	assert.Equal(t, "word0004", seq[0], "length word should carry the payload length")

	got, err := codec.Decode(seq)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}
