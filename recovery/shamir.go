package recovery

import (
	"crypto/rand"
	"fmt"
)

// gf256Exp and gf256Log are the exponent/log tables for GF(2^8) under the
// AES reducing polynomial x^8+x^4+x^3+x+1 (0x11b), generator 0x03.
var (
	gf256Exp [510]byte
	gf256Log [256]byte
)

func init() {
	x := byte(1)
	for i := 0; i < 255; i++ {
		gf256Exp[i] = x
		gf256Log[x] = byte(i)
		x = gf256Mul2(x) ^ x // multiply by the generator 0x03
	}
	for i := 255; i < 510; i++ {
		gf256Exp[i] = gf256Exp[i-255]
	}
}

func gf256Mul2(x byte) byte {
	hi := x & 0x80
	x <<= 1
	if hi != 0 {
		x ^= 0x1b
	}
	return x
}

// gf256Mul multiplies two GF(2^8) elements via log/exp tables.
func gf256Mul(a, b byte) byte {
	if a == 0 || b == 0 {
		return 0
	}
	return gf256Exp[int(gf256Log[a])+int(gf256Log[b])]
}

// gf256Div divides a by b in GF(2^8). b must be non-zero.
func gf256Div(a, b byte) byte {
	if a == 0 {
		return 0
	}
	la := int(gf256Log[a])
	lb := int(gf256Log[b])
	diff := la - lb
	if diff < 0 {
		diff += 255
	}
	return gf256Exp[diff]
}

// shamirSplitByte splits a single secret byte into n shares with threshold
// t, evaluating a degree-(t-1) random polynomial at x = 1..n.
func shamirSplitByte(secret byte, n, t int, coeffs []byte) []byte {
	out := make([]byte, n)
	for i := 1; i <= n; i++ {
		x := byte(i)
		y := secret
		xPow := byte(1)
		for j := 0; j < t-1; j++ {
			xPow = gf256Mul(xPow, x)
			y ^= gf256Mul(coeffs[j], xPow)
		}
		out[i-1] = y
	}
	return out
}

// shamirCombineByte reconstructs the secret byte at x=0 from t (x,y) pairs
// via Lagrange interpolation.
func shamirCombineByte(xs, ys []byte) byte {
	var result byte
	for i := range xs {
		num := byte(1)
		den := byte(1)
		for j := range xs {
			if i == j {
				continue
			}
			num = gf256Mul(num, xs[j])
			den = gf256Mul(den, xs[i]^xs[j])
		}
		term := gf256Mul(ys[i], gf256Div(num, den))
		result ^= term
	}
	return result
}

// ShamirSplit splits secret into n shares requiring threshold t to
// reconstitute, evaluating an independent random polynomial per byte of
// secret over GF(2^8).
func ShamirSplit(secret []byte, n, t int) ([][]byte, error) {
	if t < 1 || t > n {
		return nil, fmt.Errorf("invalid threshold: t=%d n=%d", t, n)
	}
	if n < 1 || n > 255 {
		return nil, fmt.Errorf("n must be in [1,255], got %d", n)
	}

	shares := make([][]byte, n)
	for i := range shares {
		shares[i] = make([]byte, len(secret))
	}

	coeffs := make([]byte, t-1)
	for byteIdx, b := range secret {
		if len(coeffs) > 0 {
			if _, err := rand.Read(coeffs); err != nil {
				return nil, fmt.Errorf("failed to generate polynomial coefficients: %w", err)
			}
		}
		col := shamirSplitByte(b, n, t, coeffs)
		for shareIdx := range shares {
			shares[shareIdx][byteIdx] = col[shareIdx]
		}
	}
	return shares, nil
}

// ShamirCombine reconstitutes the secret from t or more shares, given the
// x-coordinate (share ID, 1..n) each share was produced at.
func ShamirCombine(xs []byte, shares [][]byte) ([]byte, error) {
	if len(xs) != len(shares) {
		return nil, fmt.Errorf("mismatched xs/shares length")
	}
	if len(shares) == 0 {
		return nil, fmt.Errorf("no shares provided")
	}
	n := len(shares[0])
	for _, s := range shares {
		if len(s) != n {
			return nil, fmt.Errorf("inconsistent share length")
		}
	}

	secret := make([]byte, n)
	ys := make([]byte, len(shares))
	for byteIdx := 0; byteIdx < n; byteIdx++ {
		for i, s := range shares {
			ys[i] = s[byteIdx]
		}
		secret[byteIdx] = shamirCombineByte(xs, ys)
	}
	return secret, nil
}
