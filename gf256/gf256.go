// Package gf256 implements arithmetic over GF(2^8), the finite field with one
// element per byte value, using the AES/Rijndael reduction polynomial
// x^8 + x^4 + x^3 + x + 1 (0x11b).
//
// This is the single canonical field implementation for the whole module:
// both share generation and share recovery go through it, so the two can
// never disagree on the field representation.
//
// All operations are branch-free with respect to their operands. There are no
// lookup tables indexed by secret-derived values and no secret-dependent
// branches, which keeps the data-dependent side-channel surface small.
package gf256

import "errors"

// ErrInverseOfZero is returned when the multiplicative inverse of the zero
// element is requested. Zero has no inverse; correct callers never ask for
// one, so seeing this error indicates a logic bug in the caller.
var ErrInverseOfZero = errors.New("gf256: zero has no multiplicative inverse")

// Add returns a + b. Addition in GF(2^8) is XOR; subtraction is identical.
func Add(a, b byte) byte {
	return a ^ b
}

// Mul returns a * b modulo the reduction polynomial. It uses a constant-time
// carry-less multiply: eight rounds of conditional add and conditional
// reduction, with the conditions applied as bit masks rather than branches.
func Mul(a, b byte) byte {
	var p byte
	for i := 0; i < 8; i++ {
		// Add a into the product if the low bit of b is set.
		p ^= byte(-(b & 1)) & a
		// Multiply a by x, reducing by 0x1b when the high bit falls off.
		carry := byte(-(a >> 7))
		a = (a << 1) ^ (carry & 0x1b)
		b >>= 1
	}
	return p
}

// Inverse returns the multiplicative inverse of a, computed as a^254 with a
// fixed square-and-multiply sequence (the field's multiplicative group has
// order 255). It fails for a = 0.
func Inverse(a byte) (byte, error) {
	if a == 0 {
		return 0, ErrInverseOfZero
	}
	// a^254 = a^2 * a^4 * a^8 * a^16 * a^32 * a^64 * a^128
	a2 := Mul(a, a)
	a4 := Mul(a2, a2)
	a8 := Mul(a4, a4)
	a16 := Mul(a8, a8)
	a32 := Mul(a16, a16)
	a64 := Mul(a32, a32)
	a128 := Mul(a64, a64)

	inv := Mul(a2, a4)
	inv = Mul(inv, a8)
	inv = Mul(inv, a16)
	inv = Mul(inv, a32)
	inv = Mul(inv, a64)
	inv = Mul(inv, a128)
	return inv, nil
}

// Div returns a / b. It fails when b is zero.
func Div(a, b byte) (byte, error) {
	inv, err := Inverse(b)
	if err != nil {
		return 0, err
	}
	return Mul(a, inv), nil
}

// Eval evaluates the polynomial with the given coefficients at point x using
// Horner's method. coeffs[0] is the constant term.
func Eval(coeffs []byte, x byte) byte {
	var y byte
	for i := len(coeffs) - 1; i >= 0; i-- {
		y = Add(Mul(y, x), coeffs[i])
	}
	return y
}

// InterpolateAtZero reconstructs the constant term of the unique polynomial
// of degree len(xs)-1 passing through the points (xs[i], ys[i]), i.e. its
// value at x = 0. The x coordinates must be pairwise distinct; a duplicate
// makes a Lagrange denominator zero and is rejected.
func InterpolateAtZero(xs, ys []byte) (byte, error) {
	if len(xs) != len(ys) {
		return 0, errors.New("gf256: mismatched point slice lengths")
	}
	if len(xs) == 0 {
		return 0, errors.New("gf256: no points to interpolate")
	}

	var secret byte
	for i := range xs {
		// Lagrange basis polynomial for point i, evaluated at zero:
		// prod_j!=i xs[j] / (xs[j] + xs[i]).
		basis := byte(1)
		for j := range xs {
			if i == j {
				continue
			}
			num := xs[j]
			denom := Add(xs[j], xs[i])
			term, err := Div(num, denom)
			if err != nil {
				return 0, errors.New("gf256: duplicate x coordinate in interpolation")
			}
			basis = Mul(basis, term)
		}
		secret = Add(secret, Mul(ys[i], basis))
	}
	return secret, nil
}
