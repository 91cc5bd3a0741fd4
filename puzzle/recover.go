package puzzle

import (
	"fmt"
	"math/big"
)

// KeyLength is the payload cipher's key size in bytes. Recovered keys are
// always serialized to exactly this many big-endian bytes.
const KeyLength = 32

// Recover turns the solver's output back into the payload cipher key:
// key = (cipherKey - squared) mod N, big-endian padded to KeyLength bytes.
//
// A value that does not fit KeyLength bytes cannot be a key this package
// built (secrets are drawn from a SecretKeyBits space), so it signals
// corrupted or tampered parameters rather than a solving bug.
func Recover(params *Parameters, squared *big.Int) ([]byte, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if squared == nil || squared.Sign() < 0 || squared.Cmp(params.N) >= 0 {
		return nil, fmt.Errorf("%w: squared value outside [0, N)", ErrKeyRecovery)
	}

	key := new(big.Int).Sub(params.CipherKey, squared)
	key.Mod(key, params.N)

	if key.BitLen() > KeyLength*8 {
		return nil, fmt.Errorf("%w: value has %d bits, limit %d", ErrKeyRecovery, key.BitLen(), KeyLength*8)
	}

	out := make([]byte, KeyLength)
	key.FillBytes(out)
	return out, nil
}
