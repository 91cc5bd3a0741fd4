package puzzle

import (
	"fmt"
	"math/big"
)

// Parameters is everything a solver needs to grind through a puzzle: the
// public modulus, the starting base, the number of sequential squarings and
// the masked secret. The totient never leaves the builder, so the only way
// from A to the masking value is the full squaring chain.
//
// Parameters are immutable after Build and safe to share between any number
// of solver attempts.
type Parameters struct {
	N         *big.Int
	A         *big.Int
	Steps     uint64
	CipherKey *big.Int
}

// Validate performs the basic structural checks a solver runs before doing
// any expensive work.
func (p *Parameters) Validate() error {
	switch {
	case p == nil:
		return fmt.Errorf("%w: nil parameters", ErrInvalidDifficulty)
	case p.Steps == 0:
		return ErrInvalidDifficulty
	case p.N == nil || p.N.Cmp(one) <= 0:
		return fmt.Errorf("%w: modulus missing or not > 1", ErrInvalidBitLength)
	case p.A == nil || p.A.Sign() < 0 || p.A.Cmp(p.N) >= 0:
		return fmt.Errorf("%w: base outside [0, N)", ErrKeyRange)
	case p.CipherKey == nil || p.CipherKey.Sign() < 0 || p.CipherKey.Cmp(p.N) >= 0:
		return fmt.Errorf("%w: cipher key outside [0, N)", ErrKeyRange)
	}
	return nil
}
