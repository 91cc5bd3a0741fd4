// Package solver is the forced-delay engine: sequential modular squaring
// with throughput calibration, ETA estimation and crash-safe checkpointing.
package solver

import (
	"context"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/iotaledger/hive.go/logger"
	"github.com/iotaledger/hive.go/runtime/event"

	"github.com/dueldanov/timelock/checkpoint"
	"github.com/dueldanov/timelock/puzzle"
)

// Phase is the solver's current position in its state machine.
type Phase int32

const (
	PhaseInitializing Phase = iota
	PhaseSquaring
	PhaseCheckpointing
	PhaseCompleted
)

func (p Phase) String() string {
	switch p {
	case PhaseInitializing:
		return "initializing"
	case PhaseSquaring:
		return "squaring"
	case PhaseCheckpointing:
		return "checkpointing"
	case PhaseCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// defaultProgressStride is how many squarings pass between progress reports.
const defaultProgressStride = 12345

// Progress is a point-in-time view of a running solver.
type Progress struct {
	Remaining          uint64
	SquaringsPerSecond float64
	ETA                string
}

// Events the solver triggers while working. Reporting is a side effect, never
// a correctness requirement; handlers must not block for long.
type Events struct {
	// ProgressReported fires every progress stride.
	ProgressReported *event.Event1[*Progress]
	// CheckpointWritten fires after a successful checkpoint save with the
	// remaining step count.
	CheckpointWritten *event.Event1[uint64]
}

func newEvents() *Events {
	return &Events{
		ProgressReported:  event.New1[*Progress](),
		CheckpointWritten: event.New1[uint64](),
	}
}

// Solver grinds through the sequential squaring chain of a puzzle. The
// squaring loop itself runs on a single goroutine by design: the chain's
// forced sequentiality is the entire time-lock guarantee, not a missing
// optimization. Callers wanting a responsive host run Solve on a worker
// goroutine and cancel via context.
type Solver struct {
	*logger.WrappedLogger

	profile    *SpeedProfile
	sink       checkpoint.Sink
	metrics    *Metrics
	stride     uint64
	payloadRef string

	phase atomic.Int32

	Events *Events
}

// Option configures a Solver.
type Option func(*Solver)

// WithSink enables periodic checkpoint persistence.
func WithSink(sink checkpoint.Sink) Option {
	return func(s *Solver) { s.sink = sink }
}

// WithMetrics enables Prometheus collection.
func WithMetrics(m *Metrics) Option {
	return func(s *Solver) { s.metrics = m }
}

// WithProgressStride overrides how many squarings pass between progress
// reports.
func WithProgressStride(stride uint64) Option {
	return func(s *Solver) {
		if stride > 0 {
			s.stride = stride
		}
	}
}

// WithPayloadRef carries an opaque payload reference (e.g. the ciphertext
// path) into every checkpoint record written by this solver.
func WithPayloadRef(ref string) Option {
	return func(s *Solver) { s.payloadRef = ref }
}

// New creates a solver using the given speed profile for checkpoint cadence
// and ETA reporting.
func New(log *logger.Logger, profile *SpeedProfile, opts ...Option) *Solver {
	s := &Solver{
		WrappedLogger: logger.NewWrappedLogger(log),
		profile:       profile,
		stride:        defaultProgressStride,
		Events:        newEvents(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Phase returns the solver's current state machine phase.
func (s *Solver) Phase() Phase {
	return Phase(s.phase.Load())
}

// Solve computes a^(2^t) mod N by t sequential squarings, or picks the chain
// up from resume when one is supplied. Solving the same parameters from
// scratch or from any valid checkpoint yields the identical value; the
// checkpointing is fault tolerance only.
//
// Cancellation is honored between steps. On cancellation the solver attempts
// one final checkpoint before returning ctx.Err().
func (s *Solver) Solve(ctx context.Context, params *puzzle.Parameters, resume *checkpoint.State) (*big.Int, error) {
	s.phase.Store(int32(PhaseInitializing))

	if err := params.Validate(); err != nil {
		return nil, err
	}

	var (
		value     *big.Int
		remaining uint64
	)
	if resume != nil {
		if err := resume.ValidateAgainst(params); err != nil {
			return nil, err
		}
		value = new(big.Int).Set(resume.Value)
		remaining = resume.Remaining
		s.LogInfof("resuming puzzle: %d of %d squarings remaining", remaining, params.Steps)
	} else {
		value = new(big.Int).Set(params.A)
		remaining = params.Steps
		s.LogInfof("solving puzzle: %d squarings, eta %s",
			remaining, ETA(remaining, s.profile.SquaringsPerSecond))
	}

	var (
		start     = time.Now()
		done      uint64
		accounted uint64
	)

	s.phase.Store(int32(PhaseSquaring))
	for remaining > 0 {
		select {
		case <-ctx.Done():
			// Best effort: a lost checkpoint only costs recomputation.
			s.writeCheckpoint(params, value, remaining)
			s.LogInfof("solver interrupted with %d squarings remaining", remaining)
			return nil, ctx.Err()
		default:
		}

		value.Mul(value, value)
		value.Mod(value, params.N)
		remaining--
		done++

		if s.sink != nil && s.profile.SaveInterval > 0 && remaining > 0 && done%s.profile.SaveInterval == 0 {
			s.phase.Store(int32(PhaseCheckpointing))
			s.writeCheckpoint(params, value, remaining)
			s.phase.Store(int32(PhaseSquaring))
		}

		if remaining > 0 && done%s.stride == 0 {
			perSecond := observedThroughput(done, time.Since(start), s.profile)
			s.metrics.addSquarings(float64(done - accounted))
			accounted = done
			s.metrics.observeProgress(remaining, perSecond)

			progress := &Progress{
				Remaining:          remaining,
				SquaringsPerSecond: perSecond,
				ETA:                ETA(remaining, perSecond),
			}
			s.Events.ProgressReported.Trigger(progress)
			s.LogInfof("%.0f squarings/s, %d remaining, eta %s",
				progress.SquaringsPerSecond, progress.Remaining, progress.ETA)
		}
	}

	s.phase.Store(int32(PhaseCompleted))
	s.metrics.addSquarings(float64(done - accounted))
	s.metrics.observeProgress(0, observedThroughput(done, time.Since(start), s.profile))
	s.LogInfof("puzzle solved after %d squarings in %s", done, time.Since(start).Truncate(time.Millisecond))

	return value, nil
}

// writeCheckpoint persists the current chain position. Persistence failure is
// reported and counted but never aborts solving.
func (s *Solver) writeCheckpoint(params *puzzle.Parameters, value *big.Int, remaining uint64) {
	if s.sink == nil {
		return
	}

	state := &checkpoint.State{
		Steps:     params.Steps,
		Remaining: remaining,
		Value:     new(big.Int).Set(value),
		N:         new(big.Int).Set(params.N),
		CipherKey: new(big.Int).Set(params.CipherKey),
		Payload:   s.payloadRef,
	}

	err := s.sink.Save(state)
	s.metrics.checkpointWritten(err)
	if err != nil {
		s.LogWarnf("checkpoint write failed, continuing in memory: %s", err)
		return
	}
	s.Events.CheckpointWritten.Trigger(remaining)
}

// observedThroughput prefers the live measurement and falls back to the
// calibrated profile while the elapsed time is still below clock resolution.
func observedThroughput(done uint64, elapsed time.Duration, profile *SpeedProfile) float64 {
	if elapsed > 0 {
		return float64(done) / elapsed.Seconds()
	}
	return profile.SquaringsPerSecond
}
