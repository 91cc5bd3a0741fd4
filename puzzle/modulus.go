// Package puzzle implements the creation side of Rivest-Shamir-Wagner
// time-lock puzzles: trapdoor modulus generation, puzzle construction and
// the key-recovery arithmetic applied once a puzzle has been solved.
package puzzle

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

const (
	// DefaultModulusBits is the bit length of the puzzle modulus N.
	DefaultModulusBits = 2048

	// MinModulusBits is the smallest modulus the generator accepts. Anything
	// this small is only useful for tests; real puzzles use the default.
	MinModulusBits = 32

	// maxGenerateAttempts bounds the prime search so a broken entropy source
	// cannot spin forever.
	maxGenerateAttempts = 16
)

var one = big.NewInt(1)

// Trapdoor is the factorization of a freshly generated modulus. It exists
// only while a puzzle is being built and must be destroyed afterwards; a
// solver that learns the totient can skip the sequential work entirely.
type Trapdoor struct {
	P   *big.Int
	Q   *big.Int
	N   *big.Int
	Phi *big.Int
}

// GenerateModulus produces an RSA-style modulus N = p*q of the requested bit
// length together with its trapdoor. The primes are drawn independently from
// rnd, which must be a cryptographically secure source (crypto/rand.Reader in
// production; tests may pass a seeded reader).
func GenerateModulus(rnd io.Reader, bits int) (*Trapdoor, error) {
	if rnd == nil {
		rnd = rand.Reader
	}
	if bits < MinModulusBits || bits%2 != 0 {
		return nil, fmt.Errorf("%w: %d (need an even length >= %d)", ErrInvalidBitLength, bits, MinModulusBits)
	}

	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		p, err := rand.Prime(rnd, bits/2)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrGeneration, err)
		}
		q, err := rand.Prime(rnd, bits/2)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrGeneration, err)
		}

		// Identical primes would leak the factorization through sqrt(N).
		// Practically impossible at real sizes, cheap to rule out.
		if p.Cmp(q) == 0 {
			continue
		}

		n := new(big.Int).Mul(p, q)
		phi := new(big.Int).Mul(
			new(big.Int).Sub(p, one),
			new(big.Int).Sub(q, one),
		)

		return &Trapdoor{P: p, Q: q, N: n, Phi: phi}, nil
	}

	return nil, fmt.Errorf("%w: no distinct prime pair after %d attempts", ErrGeneration, maxGenerateAttempts)
}

// Destroy zeroes the private fields. The modulus stays readable since it is
// public anyway.
func (t *Trapdoor) Destroy() {
	if t == nil {
		return
	}
	zeroInt(t.P)
	zeroInt(t.Q)
	zeroInt(t.Phi)
	t.P, t.Q, t.Phi = nil, nil, nil
}

func zeroInt(x *big.Int) {
	if x == nil {
		return
	}
	bits := x.Bits()
	for i := range bits {
		bits[i] = 0
	}
	x.SetInt64(0)
}
