package solver

import (
	"crypto/rand"
	"math/big"
	"time"

	"github.com/dueldanov/timelock/puzzle"
)

const (
	// calibrationTrials is the starting number of timing squarings. Doubled
	// until the measurement exceeds the clock's resolution.
	calibrationTrials = 100

	// DefaultSaveBudget is the wall-clock worth of work between checkpoint
	// writes. Losing a checkpoint only costs this much recomputation.
	DefaultSaveBudget = 10 * time.Minute
)

// SpeedProfile is the host's measured squaring throughput for one modulus
// size, plus the checkpoint cadence derived from it. It is computed once per
// run by the caller and threaded through to the solver and the ETA reporting;
// it is deliberately not persisted, hosts change.
type SpeedProfile struct {
	// SquaringsPerSecond is the measured raw throughput, always > 0.
	SquaringsPerSecond float64
	// SaveInterval is the number of squarings between checkpoints.
	SaveInterval uint64
}

// WithSaveBudget derives a profile whose checkpoint cadence covers the given
// wall-clock budget instead of the default ten minutes.
func (p *SpeedProfile) WithSaveBudget(budget time.Duration) *SpeedProfile {
	return &SpeedProfile{
		SquaringsPerSecond: p.SquaringsPerSecond,
		SaveInterval:       saveInterval(p.SquaringsPerSecond, budget),
	}
}

// Calibrate measures how fast this host squares modulo a bits-sized modulus.
// Throughput depends on the modulus size, so calibration must use the same
// size as the real puzzle. The throwaway modulus needs no trapdoor; its
// factors are dropped immediately.
func Calibrate(bits int) (*SpeedProfile, error) {
	trapdoor, err := puzzle.GenerateModulus(rand.Reader, bits)
	if err != nil {
		return nil, err
	}
	n := trapdoor.N
	trapdoor.Destroy()

	base, err := rand.Int(rand.Reader, n)
	if err != nil {
		return nil, err
	}

	// A coarse clock can report zero elapsed time for a fast run; double the
	// trial count until the measurement is usable.
	for trials := calibrationTrials; ; trials *= 2 {
		value := new(big.Int).Set(base)
		start := time.Now()
		for i := 0; i < trials; i++ {
			value.Mul(value, value)
			value.Mod(value, n)
		}
		elapsed := time.Since(start)
		if elapsed <= 0 {
			continue
		}

		perSecond := float64(trials) / elapsed.Seconds()
		return &SpeedProfile{
			SquaringsPerSecond: perSecond,
			SaveInterval:       saveInterval(perSecond, DefaultSaveBudget),
		}, nil
	}
}

func saveInterval(perSecond float64, budget time.Duration) uint64 {
	interval := uint64(perSecond * budget.Seconds())
	if interval == 0 {
		interval = 1
	}
	return interval
}
