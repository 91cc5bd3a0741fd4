package solver

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/iotaledger/hive.go/app/configuration"
	appLogger "github.com/iotaledger/hive.go/app/logger"
	"github.com/iotaledger/hive.go/kvstore/mapdb"
	"github.com/iotaledger/hive.go/logger"
	"github.com/stretchr/testify/require"

	"github.com/dueldanov/timelock/checkpoint"
	"github.com/dueldanov/timelock/puzzle"
)

var initLoggerOnce sync.Once

// initTestLogger initializes the global logger for tests.
func initTestLogger() {
	initLoggerOnce.Do(func() {
		cfg := configuration.New()
		// Ignore error - global logger may already be initialized
		_ = appLogger.InitGlobalLogger(cfg)
	})
}

func newTestSolver(t *testing.T, opts ...Option) *Solver {
	t.Helper()
	initTestLogger()

	profile := &SpeedProfile{SquaringsPerSecond: 1000, SaveInterval: 100}
	return New(logger.NewLogger("test"), profile, opts...)
}

func buildTestPuzzle(t *testing.T, steps uint64) (*puzzle.Parameters, *big.Int) {
	t.Helper()

	secret, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 60))
	require.NoError(t, err)
	params, err := puzzle.Build(rand.Reader, steps, secret, 64)
	require.NoError(t, err)
	return params, secret
}

// squareDirect is the non-checkpointed reference iteration.
func squareDirect(a, n *big.Int, steps uint64) *big.Int {
	value := new(big.Int).Set(a)
	for i := uint64(0); i < steps; i++ {
		value.Mul(value, value)
		value.Mod(value, n)
	}
	return value
}

func TestSolveMatchesDirectIteration(t *testing.T) {
	params, _ := buildTestPuzzle(t, 1000)

	result, err := newTestSolver(t).Solve(context.Background(), params, nil)
	require.NoError(t, err)

	want := squareDirect(params.A, params.N, params.Steps)
	require.Equal(t, 0, want.Cmp(result))
}

func TestSolveThenRecoverReturnsSecret(t *testing.T) {
	params, secret := buildTestPuzzle(t, 1000)

	result, err := newTestSolver(t).Solve(context.Background(), params, nil)
	require.NoError(t, err)

	key, err := puzzle.Recover(params, result)
	require.NoError(t, err)
	require.Equal(t, 0, secret.Cmp(new(big.Int).SetBytes(key)))
}

func TestResumeFromCheckpointMatchesScratch(t *testing.T) {
	params, secret := buildTestPuzzle(t, 1000)
	fromScratch := squareDirect(params.A, params.N, params.Steps)

	// A checkpoint forced at remaining = 500.
	resume := &checkpoint.State{
		Steps:     params.Steps,
		Remaining: 500,
		Value:     squareDirect(params.A, params.N, 500),
		N:         new(big.Int).Set(params.N),
		CipherKey: new(big.Int).Set(params.CipherKey),
	}
	require.NoError(t, resume.ValidateAgainst(params))

	result, err := newTestSolver(t).Solve(context.Background(), params, resume)
	require.NoError(t, err)
	require.Equal(t, 0, fromScratch.Cmp(result))

	key, err := puzzle.Recover(params, result)
	require.NoError(t, err)
	require.Equal(t, 0, secret.Cmp(new(big.Int).SetBytes(key)))
}

func TestResumeFromEveryTenthCheckpoint(t *testing.T) {
	params, _ := buildTestPuzzle(t, 100)
	fromScratch := squareDirect(params.A, params.N, params.Steps)

	for remaining := uint64(0); remaining <= params.Steps; remaining += 10 {
		resume := &checkpoint.State{
			Steps:     params.Steps,
			Remaining: remaining,
			Value:     squareDirect(params.A, params.N, params.Steps-remaining),
			N:         new(big.Int).Set(params.N),
			CipherKey: new(big.Int).Set(params.CipherKey),
		}

		result, err := newTestSolver(t).Solve(context.Background(), params, resume)
		require.NoError(t, err)
		require.Equalf(t, 0, fromScratch.Cmp(result), "resume at remaining=%d diverged", remaining)
	}
}

func TestSolverWritesCheckpoints(t *testing.T) {
	params, _ := buildTestPuzzle(t, 1000)

	sink, err := checkpoint.NewKVSink(mapdb.NewMapDB(), "test")
	require.NoError(t, err)

	var written []uint64
	s := newTestSolver(t, WithSink(sink), WithPayloadRef("payload.bin"))
	s.Events.CheckpointWritten.Hook(func(remaining uint64) {
		written = append(written, remaining)
	})

	_, err = s.Solve(context.Background(), params, nil)
	require.NoError(t, err)

	// SaveInterval is 100 and the final step is not checkpointed: 900..100.
	require.Len(t, written, 9)
	require.Equal(t, uint64(900), written[0])
	require.Equal(t, uint64(100), written[8])

	last, err := sink.Load()
	require.NoError(t, err)
	require.NoError(t, last.ValidateAgainst(params))
	require.Equal(t, uint64(100), last.Remaining)
	require.Equal(t, "payload.bin", last.Payload)
	require.Equal(t, 0, last.Value.Cmp(squareDirect(params.A, params.N, 900)))
}

type failingSink struct{ saves int }

func (f *failingSink) Save(*checkpoint.State) error {
	f.saves++
	return errors.New("disk full")
}

func (f *failingSink) Load() (*checkpoint.State, error) {
	return nil, checkpoint.ErrNotFound
}

func TestSolverSurvivesCheckpointFailures(t *testing.T) {
	params, _ := buildTestPuzzle(t, 1000)

	sink := &failingSink{}
	result, err := newTestSolver(t, WithSink(sink)).Solve(context.Background(), params, nil)
	require.NoError(t, err)
	require.Greater(t, sink.saves, 0)

	want := squareDirect(params.A, params.N, params.Steps)
	require.Equal(t, 0, want.Cmp(result))
}

func TestSolveRejectsCorruptResume(t *testing.T) {
	params, _ := buildTestPuzzle(t, 1000)

	resume := &checkpoint.State{
		Steps:     params.Steps,
		Remaining: params.Steps + 1,
		Value:     new(big.Int).Set(params.A),
		N:         new(big.Int).Set(params.N),
		CipherKey: new(big.Int).Set(params.CipherKey),
	}

	_, err := newTestSolver(t).Solve(context.Background(), params, resume)
	require.ErrorIs(t, err, checkpoint.ErrCorrupt)
}

func TestSolveRejectsResumeForDifferentPuzzle(t *testing.T) {
	params, _ := buildTestPuzzle(t, 1000)
	other, _ := buildTestPuzzle(t, 1000)

	resume := checkpoint.FromParameters(other, "")
	_, err := newTestSolver(t).Solve(context.Background(), params, resume)
	require.ErrorIs(t, err, checkpoint.ErrCorrupt)
}

func TestSolveCancellationWritesFinalCheckpoint(t *testing.T) {
	params, _ := buildTestPuzzle(t, 1000)

	sink, err := checkpoint.NewKVSink(mapdb.NewMapDB(), "test")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = newTestSolver(t, WithSink(sink)).Solve(ctx, params, nil)
	require.ErrorIs(t, err, context.Canceled)

	state, err := sink.Load()
	require.NoError(t, err)
	require.NoError(t, state.ValidateAgainst(params))
	require.Equal(t, params.Steps, state.Remaining)
}

func TestSolverProgressEvents(t *testing.T) {
	params, _ := buildTestPuzzle(t, 1000)

	var reports []*Progress
	s := newTestSolver(t, WithProgressStride(250))
	s.Events.ProgressReported.Hook(func(p *Progress) {
		reports = append(reports, p)
	})

	_, err := s.Solve(context.Background(), params, nil)
	require.NoError(t, err)

	// Strides at 250, 500 and 750; 1000 lands on completion and is skipped.
	require.Len(t, reports, 3)
	require.Equal(t, uint64(750), reports[0].Remaining)
	require.Equal(t, uint64(250), reports[2].Remaining)
	for _, report := range reports {
		require.Greater(t, report.SquaringsPerSecond, 0.0)
		require.NotEmpty(t, report.ETA)
	}
}

func TestSolverPhaseTransitions(t *testing.T) {
	params, _ := buildTestPuzzle(t, 10)

	s := newTestSolver(t)
	require.Equal(t, PhaseInitializing, s.Phase())

	_, err := s.Solve(context.Background(), params, nil)
	require.NoError(t, err)
	require.Equal(t, PhaseCompleted, s.Phase())
}

// TestFullSizeModulusRoundTrip exercises the production modulus size. Prime
// generation dominates the runtime, the 1000 squarings are cheap.
func TestFullSizeModulusRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("2048-bit prime generation is slow")
	}

	secret, err := puzzle.NewSecretKey(rand.Reader)
	require.NoError(t, err)
	params, err := puzzle.Build(rand.Reader, 1000, secret, puzzle.DefaultModulusBits)
	require.NoError(t, err)

	result, err := newTestSolver(t).Solve(context.Background(), params, nil)
	require.NoError(t, err)

	key, err := puzzle.Recover(params, result)
	require.NoError(t, err)
	require.Equal(t, 0, secret.Cmp(new(big.Int).SetBytes(key)))
}

func TestSolveRejectsInvalidParameters(t *testing.T) {
	_, err := newTestSolver(t).Solve(context.Background(), &puzzle.Parameters{}, nil)
	require.Error(t, err)
}
