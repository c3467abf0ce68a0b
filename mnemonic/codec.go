package mnemonic

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/ruteri/shamir-mnemonic/interfaces"
)

// checksumLen is the size of the CRC-32 appended to every encoded payload.
const checksumLen = 4

// MaxPayload is the largest byte sequence a single mnemonic can carry. The
// payload length is transported in the leading length word, which bounds it
// at Radix-1 bytes.
const MaxPayload = Radix - 1

// UnknownWordError reports a word that is not part of the vocabulary,
// together with its position in the sequence so the user can find the
// transcription error.
type UnknownWordError struct {
	Word     string
	Position int
}

func (e *UnknownWordError) Error() string {
	return fmt.Sprintf("unknown mnemonic word %q at position %d", e.Word, e.Position)
}

// Unwrap makes the error match interfaces.ErrDecode.
func (e *UnknownWordError) Unwrap() error {
	return interfaces.ErrDecode
}

// Codec converts between byte sequences and word sequences. The vocabulary
// is an explicit dependency rather than ambient global state so tests can
// substitute their own list; production callers pass DefaultWordlist().
//
// Wire format, fixed and stable:
//
//	words[0]    length word — its vocabulary index is len(payload)
//	words[1:]   payload || crc32(payload), packed as consecutive big-endian
//	            10-bit groups, the final group zero-padded
//
// The leading length word makes the byte count unambiguous (10-bit groups
// alone cannot distinguish all byte lengths), and the CRC-32 (the same
// polynomial as zlib's crc32) detects any single-word substitution with
// probability 1 - 2^-32.
type Codec struct {
	words *Wordlist
}

// NewCodec returns a codec over the given vocabulary.
func NewCodec(words *Wordlist) *Codec {
	return &Codec{words: words}
}

// Encode converts payload into its word-sequence representation.
func (c *Codec) Encode(payload []byte) (interfaces.Mnemonic, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("mnemonic: empty payload")
	}
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("mnemonic: payload of %d bytes exceeds maximum of %d", len(payload), MaxPayload)
	}

	frame := make([]byte, len(payload)+checksumLen)
	copy(frame, payload)
	binary.BigEndian.PutUint32(frame[len(payload):], crc32.ChecksumIEEE(payload))

	wordCount := (len(frame)*8 + RadixBits - 1) / RadixBits
	out := make(interfaces.Mnemonic, 0, 1+wordCount)
	out = append(out, c.words.Word(len(payload)))

	var acc uint32
	var bits uint
	for _, b := range frame {
		acc = acc<<8 | uint32(b)
		bits += 8
		for bits >= RadixBits {
			bits -= RadixBits
			out = append(out, c.words.Word(int(acc>>bits)&(Radix-1)))
		}
	}
	if bits > 0 {
		// Final partial group, padded with zero bits on the right.
		out = append(out, c.words.Word(int(acc<<(RadixBits-bits))&(Radix-1)))
	}

	return out, nil
}

// Decode converts a word sequence back into the exact byte sequence it was
// encoded from. It fails on unknown words, on a word count inconsistent with
// the length word, on nonzero padding bits and on a checksum mismatch — a
// tampered or mistranscribed sequence is reported, never silently accepted
// as a different valid value.
func (c *Codec) Decode(m interfaces.Mnemonic) ([]byte, error) {
	if len(m) < 2 {
		return nil, fmt.Errorf("%w: sequence of %d words is too short", interfaces.ErrDecode, len(m))
	}

	indices := make([]int, len(m))
	for i, w := range m {
		idx, ok := c.words.Index(w)
		if !ok {
			return nil, &UnknownWordError{Word: w, Position: i}
		}
		indices[i] = idx
	}

	payloadLen := indices[0]
	if payloadLen == 0 {
		return nil, fmt.Errorf("%w: invalid length word", interfaces.ErrDecode)
	}
	frameLen := payloadLen + checksumLen
	expectWords := (frameLen*8 + RadixBits - 1) / RadixBits
	if len(indices)-1 != expectWords {
		return nil, fmt.Errorf("%w: got %d payload words, length word implies %d", interfaces.ErrDecode, len(indices)-1, expectWords)
	}

	frame := make([]byte, 0, frameLen)
	var acc uint32
	var bits uint
	for _, idx := range indices[1:] {
		acc = acc<<RadixBits | uint32(idx)
		bits += RadixBits
		for bits >= 8 && len(frame) < frameLen {
			bits -= 8
			frame = append(frame, byte(acc>>bits))
		}
	}
	if acc&((1<<bits)-1) != 0 {
		return nil, fmt.Errorf("%w: nonzero padding bits", interfaces.ErrDecode)
	}

	payload := frame[:payloadLen]
	want := binary.BigEndian.Uint32(frame[payloadLen:])
	if crc32.ChecksumIEEE(payload) != want {
		return nil, fmt.Errorf("%w: checksum mismatch", interfaces.ErrDecode)
	}

	return payload, nil
}
