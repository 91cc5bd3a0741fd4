package puzzle

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

const (
	// SecretKeyBits is the size of the random space secrets are drawn from.
	// It must be at least as large as the payload cipher's effective key
	// strength so the masked secret carries no bias.
	SecretKeyBits = 192
)

var two = big.NewInt(2)

// NewSecretKey draws a fresh puzzle secret from a SecretKeyBits-wide space.
func NewSecretKey(rnd io.Reader) (*big.Int, error) {
	if rnd == nil {
		rnd = rand.Reader
	}
	limit := new(big.Int).Lsh(one, SecretKeyBits)
	secret, err := rand.Int(rnd, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrGeneration, err)
	}
	return secret, nil
}

// Build constructs a time-lock puzzle hiding secretKey behind difficulty
// sequential squarings modulo a fresh bits-sized modulus.
//
// The trapdoor shortcut: with the totient in hand, a^(2^t) mod N collapses to
// two modular exponentiations (e = 2^t mod phi, then a^e mod N). The solver,
// lacking phi, has to do all t squarings one by one. The trapdoor is zeroed
// before Build returns.
func Build(rnd io.Reader, difficulty uint64, secretKey *big.Int, bits int) (*Parameters, error) {
	if difficulty == 0 {
		return nil, ErrInvalidDifficulty
	}
	if secretKey == nil || secretKey.Sign() < 0 {
		return nil, fmt.Errorf("%w: secret key missing or negative", ErrKeyRange)
	}
	if rnd == nil {
		rnd = rand.Reader
	}

	trapdoor, err := GenerateModulus(rnd, bits)
	if err != nil {
		return nil, err
	}
	defer trapdoor.Destroy()

	// Reject before any modular exponentiation: a secret >= N cannot be
	// recovered unambiguously from (secret + b) mod N.
	if secretKey.Cmp(trapdoor.N) >= 0 {
		return nil, fmt.Errorf("%w: secret key >= modulus (%d bits vs %d-bit N)",
			ErrKeyRange, secretKey.BitLen(), trapdoor.N.BitLen())
	}

	a, err := rand.Int(rnd, trapdoor.N)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrGeneration, err)
	}

	e := new(big.Int).Exp(two, new(big.Int).SetUint64(difficulty), trapdoor.Phi)
	b := new(big.Int).Exp(a, e, trapdoor.N)

	cipherKey := new(big.Int).Add(secretKey, b)
	cipherKey.Mod(cipherKey, trapdoor.N)

	return &Parameters{
		N:         new(big.Int).Set(trapdoor.N),
		A:         a,
		Steps:     difficulty,
		CipherKey: cipherKey,
	}, nil
}
