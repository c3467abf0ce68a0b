// Package shamir implements Shamir's Secret Sharing over GF(2^8): a secret
// byte sequence is split into n shares of which any threshold-sized subset
// reconstructs it exactly, while any smaller subset carries no information
// about it (information-theoretically, not merely computationally).
//
// Splitting and recovery both use the canonical field implementation in
// package gf256; no other field arithmetic exists in this module.
package shamir

import (
	"fmt"
	"io"

	"github.com/ruteri/shamir-mnemonic/gf256"
	"github.com/ruteri/shamir-mnemonic/interfaces"
)

// MaxShares is the largest supported share count. Share indices are nonzero
// field elements, and index 0 is reserved for the secret itself (every
// polynomial evaluates to its secret byte at x=0), which together with the
// field size bounds the count at 254.
const MaxShares = 254

// MinThreshold is the smallest meaningful threshold. A threshold of 1 would
// make every individual share reveal the secret.
const MinThreshold = 2

// Share is one fragment of a split secret: a nonzero index, unique within
// one split invocation, and one field element per secret byte — the
// evaluation of that byte's polynomial at the index. Shares are immutable
// once created; the engine retains no copy after returning them.
type Share struct {
	Index byte
	Value []byte
}

// Split splits secret into shares fragments, any threshold of which suffice
// to recover it. All randomness — threshold-1 fresh coefficients per secret
// byte — is drawn from rng up front, so a failing randomness source aborts
// the whole operation atomically and no partial share set is ever returned.
// rng must be cryptographically secure in production use.
//
// Share indices are assigned 1..shares.
func Split(secret []byte, threshold, shares int, rng io.Reader) ([]Share, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: secret must not be empty", interfaces.ErrConfiguration)
	}
	if threshold < MinThreshold {
		return nil, fmt.Errorf("%w: threshold %d is below the minimum of %d", interfaces.ErrConfiguration, threshold, MinThreshold)
	}
	if shares < threshold {
		return nil, fmt.Errorf("%w: share count %d is below threshold %d", interfaces.ErrConfiguration, shares, threshold)
	}
	if shares > MaxShares {
		return nil, fmt.Errorf("%w: share count %d exceeds field capacity of %d", interfaces.ErrConfiguration, shares, MaxShares)
	}

	// Draw every random coefficient in one read.
	coefficients := make([]byte, len(secret)*(threshold-1))
	if _, err := io.ReadFull(rng, coefficients); err != nil {
		return nil, fmt.Errorf("failed to draw random coefficients: %w", err)
	}

	out := make([]Share, shares)
	for i := range out {
		out[i] = Share{Index: byte(i + 1), Value: make([]byte, len(secret))}
	}

	// One polynomial per secret byte: constant term is the secret byte,
	// higher coefficients are the fresh random field elements.
	poly := make([]byte, threshold)
	for j, b := range secret {
		poly[0] = b
		copy(poly[1:], coefficients[j*(threshold-1):(j+1)*(threshold-1)])

		for i := range out {
			out[i].Value[j] = gf256.Eval(poly, out[i].Index)
		}
	}

	// The polynomials only live for the duration of the split.
	for i := range poly {
		poly[i] = 0
	}
	for i := range coefficients {
		coefficients[i] = 0
	}

	return out, nil
}

// Recover reconstructs the secret from the provided shares. At least
// threshold distinct shares are required; this is checked explicitly as a
// precondition, because interpolating fewer points always "succeeds" and
// would silently yield a wrong but valid-looking secret.
//
// Duplicate indices are rejected rather than deduplicated, as are zero
// indices and shares of inconsistent length. When more than threshold shares
// are supplied all of them participate in the interpolation, so the result
// does not depend on the order of the input.
//
// Shares produced under a different threshold, or belonging to a different
// secret, are mathematically indistinguishable from a valid set and cannot
// be detected here; tracking which shares belong together is the caller's
// responsibility.
func Recover(shares []Share, threshold int) ([]byte, error) {
	if threshold < MinThreshold {
		return nil, fmt.Errorf("%w: threshold %d is below the minimum of %d", interfaces.ErrConfiguration, threshold, MinThreshold)
	}

	seen := make(map[byte]bool, len(shares))
	for _, s := range shares {
		if s.Index == 0 {
			return nil, fmt.Errorf("%w: share index must not be zero", interfaces.ErrMalformedShare)
		}
		if len(s.Value) == 0 || len(s.Value) != len(shares[0].Value) {
			return nil, fmt.Errorf("%w: inconsistent share lengths", interfaces.ErrMalformedShare)
		}
		if seen[s.Index] {
			return nil, fmt.Errorf("%w: duplicate share index %d", interfaces.ErrMalformedShare, s.Index)
		}
		seen[s.Index] = true
	}

	if len(shares) < threshold {
		return nil, fmt.Errorf("%w: got %d shares, need at least %d", interfaces.ErrInsufficientShares, len(shares), threshold)
	}

	xs := make([]byte, len(shares))
	ys := make([]byte, len(shares))
	for i, s := range shares {
		xs[i] = s.Index
	}

	secret := make([]byte, len(shares[0].Value))
	for j := range secret {
		for i, s := range shares {
			ys[i] = s.Value[j]
		}
		b, err := gf256.InterpolateAtZero(xs, ys)
		if err != nil {
			return nil, fmt.Errorf("interpolation failed at byte %d: %w", j, err)
		}
		secret[j] = b
	}

	return secret, nil
}
