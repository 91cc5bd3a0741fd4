// Package checkpoint persists solver progress so multi-hour computations
// survive process restarts.
package checkpoint

import (
	"fmt"
	"math/big"

	"github.com/dueldanov/timelock/puzzle"
)

// State is a durable snapshot of solver progress. It carries copies of the
// public puzzle fields so a resume needs nothing but the record itself.
// Each newer snapshot supersedes the previous one; snapshots are never
// merged.
type State struct {
	// Steps is the puzzle's original difficulty t.
	Steps uint64
	// Remaining counts the squarings still to be done, <= Steps.
	Remaining uint64
	// Value is the current element of the squaring chain (the base A when
	// Remaining == Steps).
	Value *big.Int
	// N and CipherKey are copied from the puzzle parameters.
	N         *big.Int
	CipherKey *big.Int
	// Payload optionally references the protected ciphertext, e.g. a file
	// path. The engine treats it as opaque.
	Payload string
}

// FromParameters builds the initial record for a puzzle that has not been
// worked on yet.
func FromParameters(params *puzzle.Parameters, payload string) *State {
	return &State{
		Steps:     params.Steps,
		Remaining: params.Steps,
		Value:     new(big.Int).Set(params.A),
		N:         new(big.Int).Set(params.N),
		CipherKey: new(big.Int).Set(params.CipherKey),
		Payload:   payload,
	}
}

// Parameters reconstructs the solver-facing puzzle parameters. The base is
// the recorded intermediate value, which equals A for a fresh record.
func (s *State) Parameters() *puzzle.Parameters {
	return &puzzle.Parameters{
		N:         new(big.Int).Set(s.N),
		A:         new(big.Int).Set(s.Value),
		Steps:     s.Steps,
		CipherKey: new(big.Int).Set(s.CipherKey),
	}
}

// Validate checks every field invariant and names the offending field on
// failure so callers can tell a bug from tampering.
func (s *State) Validate() error {
	switch {
	case s == nil:
		return fmt.Errorf("%w: nil state", ErrCorrupt)
	case s.Steps == 0:
		return fmt.Errorf("%w: steps is zero", ErrCorrupt)
	case s.Remaining > s.Steps:
		return fmt.Errorf("%w: remaining %d exceeds original steps %d", ErrCorrupt, s.Remaining, s.Steps)
	case s.N == nil || s.N.Cmp(big.NewInt(1)) <= 0:
		return fmt.Errorf("%w: modulus missing or not > 1", ErrCorrupt)
	case s.Value == nil || s.Value.Sign() < 0 || s.Value.Cmp(s.N) >= 0:
		return fmt.Errorf("%w: intermediate value outside [0, N)", ErrCorrupt)
	case s.CipherKey == nil || s.CipherKey.Sign() < 0 || s.CipherKey.Cmp(s.N) >= 0:
		return fmt.Errorf("%w: cipher key outside [0, N)", ErrCorrupt)
	}
	return nil
}

// ValidateAgainst additionally pins the record to a known set of puzzle
// parameters, for callers that hold both.
func (s *State) ValidateAgainst(params *puzzle.Parameters) error {
	if err := s.Validate(); err != nil {
		return err
	}
	switch {
	case s.Steps != params.Steps:
		return fmt.Errorf("%w: steps %d does not match puzzle difficulty %d", ErrCorrupt, s.Steps, params.Steps)
	case s.N.Cmp(params.N) != 0:
		return fmt.Errorf("%w: modulus does not match puzzle parameters", ErrCorrupt)
	case s.CipherKey.Cmp(params.CipherKey) != 0:
		return fmt.Errorf("%w: cipher key does not match puzzle parameters", ErrCorrupt)
	}
	return nil
}
