package puzzle

import "errors"

var (
	ErrGeneration        = errors.New("modulus generation failed")
	ErrInvalidBitLength  = errors.New("invalid modulus bit length")
	ErrInvalidDifficulty = errors.New("difficulty must be at least one squaring")
	ErrKeyRange          = errors.New("secret key out of range")
	ErrKeyRecovery       = errors.New("recovered key does not fit the cipher key length")
)
