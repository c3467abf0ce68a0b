// Package sss composes the Shamir engine with the mnemonic codec so callers
// deal only in word sequences, never raw bytes. It generates fresh secrets
// split into shares, and recovers secrets from collected shares.
//
// Each share mnemonic carries, besides the per-byte polynomial evaluations,
// its share index and the threshold it was generated under, so a recovery
// session can determine how many shares it still needs without the caller
// tracking the original configuration.
package sss

import (
	"fmt"
	"io"

	"github.com/ruteri/shamir-mnemonic/interfaces"
	"github.com/ruteri/shamir-mnemonic/mnemonic"
	"github.com/ruteri/shamir-mnemonic/shamir"
)

// Secret sizes for the two supported modes. The long variant doubles the bit
// length for a higher security margin.
const (
	ShortSecretLen = 16 // 128-bit
	LongSecretLen  = 32 // 256-bit
)

// shareHeaderLen is the number of envelope bytes prepended to each share's
// value sequence: the share index and the generation threshold.
const shareHeaderLen = 2

// Config describes one generate invocation.
type Config struct {
	// Threshold is the minimum number of shares required for recovery.
	Threshold int

	// Shares is the total number of shares to generate.
	Shares int

	// Long selects the 256-bit secret size instead of the default 128-bit.
	Long bool
}

// Validate rejects invalid configurations before any randomness is consumed.
func (c Config) Validate() error {
	if c.Threshold < shamir.MinThreshold {
		return fmt.Errorf("%w: threshold %d is below the minimum of %d", interfaces.ErrConfiguration, c.Threshold, shamir.MinThreshold)
	}
	if c.Shares < c.Threshold {
		return fmt.Errorf("%w: share count %d is below threshold %d", interfaces.ErrConfiguration, c.Shares, c.Threshold)
	}
	if c.Shares > shamir.MaxShares {
		return fmt.Errorf("%w: share count %d exceeds the maximum of %d", interfaces.ErrConfiguration, c.Shares, shamir.MaxShares)
	}
	return nil
}

func (c Config) secretLen() int {
	if c.Long {
		return LongSecretLen
	}
	return ShortSecretLen
}

// Generated is the result of one generate invocation. The engine retains no
// copy of anything in it; ownership passes entirely to the caller.
type Generated struct {
	// Secret is the mnemonic encoding of the freshly generated secret.
	Secret interfaces.Mnemonic

	// SecretBits is the secret's size in bits, for display.
	SecretBits int

	// Shares holds one mnemonic per share, ordered by share index.
	Shares []interfaces.Mnemonic
}

// ShareDetail is a decoded share envelope.
type ShareDetail struct {
	Index     byte
	Threshold byte
	Value     []byte
}

// Engine binds the codec's vocabulary to the generate and recover
// operations. A zero-value Engine is not usable; construct one with New.
// Engines are stateless and safe for concurrent use.
type Engine struct {
	codec *mnemonic.Codec
}

// New returns an engine over the given vocabulary.
func New(words *mnemonic.Wordlist) *Engine {
	return &Engine{codec: mnemonic.NewCodec(words)}
}

// Generate draws a fresh secret from rng, splits it per cfg and encodes the
// secret and every share as mnemonics. rng must be cryptographically secure;
// a source that cannot supply enough entropy fails the whole operation and
// nothing is returned.
func (e *Engine) Generate(cfg Config, rng io.Reader) (*Generated, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	secret := make([]byte, cfg.secretLen())
	if _, err := io.ReadFull(rng, secret); err != nil {
		return nil, fmt.Errorf("failed to draw secret: %w", err)
	}

	shares, err := shamir.Split(secret, cfg.Threshold, cfg.Shares, rng)
	if err != nil {
		return nil, err
	}

	out := &Generated{SecretBits: len(secret) * 8}
	out.Secret, err = e.codec.Encode(secret)
	if err != nil {
		return nil, err
	}

	for _, s := range shares {
		payload := make([]byte, 0, shareHeaderLen+len(s.Value))
		payload = append(payload, s.Index, byte(cfg.Threshold))
		payload = append(payload, s.Value...)

		words, err := e.codec.Encode(payload)
		if err != nil {
			return nil, err
		}
		out.Shares = append(out.Shares, words)
	}

	wipe(secret)
	for _, s := range shares {
		wipe(s.Value)
	}

	return out, nil
}

// DecodeShare decodes and validates a single share mnemonic.
func (e *Engine) DecodeShare(words interfaces.Mnemonic) (*ShareDetail, error) {
	payload, err := e.codec.Decode(words)
	if err != nil {
		return nil, err
	}
	if len(payload) <= shareHeaderLen {
		return nil, fmt.Errorf("%w: share payload of %d bytes is too short", interfaces.ErrMalformedShare, len(payload))
	}

	detail := &ShareDetail{
		Index:     payload[0],
		Threshold: payload[1],
		Value:     payload[shareHeaderLen:],
	}
	if detail.Index == 0 {
		return nil, fmt.Errorf("%w: share index must not be zero", interfaces.ErrMalformedShare)
	}
	if int(detail.Threshold) < shamir.MinThreshold {
		return nil, fmt.Errorf("%w: embedded threshold %d is invalid", interfaces.ErrMalformedShare, detail.Threshold)
	}
	return detail, nil
}

// Recover reconstructs a secret from the supplied share mnemonics and
// returns its mnemonic encoding. Shares may be supplied in any order.
// Decoding fails fast on the first invalid word or checksum; the required
// threshold is the maximum threshold embedded in the shares and is enforced
// explicitly before any interpolation happens, so an under-threshold set can
// never produce a plausible-looking wrong secret. Duplicate indices are
// rejected.
//
// A set of otherwise valid shares that belong to a different secret is
// mathematically indistinguishable from a correct set; keeping share sets
// apart is the holder's responsibility.
func (e *Engine) Recover(shares []interfaces.Mnemonic) (interfaces.Mnemonic, error) {
	if len(shares) == 0 {
		return nil, fmt.Errorf("%w: no shares supplied", interfaces.ErrInsufficientShares)
	}

	decoded := make([]shamir.Share, 0, len(shares))
	threshold := 0
	for i, words := range shares {
		detail, err := e.DecodeShare(words)
		if err != nil {
			return nil, fmt.Errorf("share %d: %w", i+1, err)
		}
		if int(detail.Threshold) > threshold {
			threshold = int(detail.Threshold)
		}
		decoded = append(decoded, shamir.Share{Index: detail.Index, Value: detail.Value})
	}

	secret, err := shamir.Recover(decoded, threshold)
	if err != nil {
		return nil, err
	}

	words, err := e.codec.Encode(secret)
	if err != nil {
		return nil, err
	}
	wipe(secret)
	return words, nil
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
