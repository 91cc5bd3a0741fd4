// timelock - time-lock puzzle tool
//
// Encrypts files so that decrypting them requires a chosen amount of
// strictly sequential computation, no trusted timekeeper involved.
//
// Usage:
//
//	timelock --benchmark
//	timelock --new 30
//	timelock --encrypt secret.zip --seconds 3600
//	timelock --solve secret.zip.timelock
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/iotaledger/hive.go/app/configuration"
	appLogger "github.com/iotaledger/hive.go/app/logger"
	"github.com/iotaledger/hive.go/logger"

	"github.com/dueldanov/timelock/checkpoint"
	"github.com/dueldanov/timelock/internal/crypto"
	"github.com/dueldanov/timelock/puzzle"
	"github.com/dueldanov/timelock/solver"
)

var (
	newFlag       = flag.Int("new", 0, "create a test puzzle solvable in roughly N seconds and print its key")
	encryptFlag   = flag.String("encrypt", "", "time-lock encrypt FILE in place")
	secondsFlag   = flag.Int("seconds", 30, "target unlock delay in seconds for --encrypt")
	solveFlag     = flag.String("solve", "", "solve a saved puzzle RECORD and decrypt its payload")
	benchmarkFlag = flag.Bool("benchmark", false, "measure squaring throughput and exit")
	bitsFlag      = flag.Int("bits", puzzle.DefaultModulusBits, "modulus size in bits")
)

func main() {
	flag.Parse()

	if err := appLogger.InitGlobalLogger(configuration.New()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	log := logger.NewLogger("timelock")

	var err error
	switch {
	case *benchmarkFlag:
		err = runBenchmark(*bitsFlag)
	case *newFlag > 0:
		err = runNew(log, *newFlag, *bitsFlag)
	case *encryptFlag != "":
		err = runEncrypt(log, *encryptFlag, *secondsFlag, *bitsFlag)
	case *solveFlag != "":
		err = runSolve(log, *solveFlag)
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "timelock: %v\n", err)
		os.Exit(1)
	}
}

func runBenchmark(bits int) error {
	profile, err := solver.Calibrate(bits)
	if err != nil {
		return err
	}
	fmt.Printf("%.0f %d-bit modular squarings per second\n", profile.SquaringsPerSecond, bits)
	return nil
}

// runNew creates a sample puzzle without a payload and prints the key it
// hides, so the solve path can be exercised end to end.
func runNew(log *logger.Logger, seconds, bits int) error {
	params, key, profile, err := buildPuzzle(log, seconds, bits)
	if err != nil {
		return err
	}

	sink := checkpoint.NewFileSink("puzzle.timelock")
	if err := sink.Save(checkpoint.FromParameters(params, "")); err != nil {
		return err
	}

	fmt.Printf("key: %s\n", hex.EncodeToString(key))
	fmt.Printf("saved %s, estimated time to solve: %s\n",
		sink.Path(), solver.ETA(params.Steps, profile.SquaringsPerSecond))
	return nil
}

// runEncrypt replaces path with its time-lock encrypted form and drops the
// puzzle record next to it.
func runEncrypt(log *logger.Logger, path string, seconds, bits int) error {
	params, key, profile, err := buildPuzzle(log, seconds, bits)
	if err != nil {
		return err
	}

	encrypted := path + ".enc"
	if err := crypto.EncryptFile(key, path, encrypted); err != nil {
		return err
	}
	if err := os.Rename(encrypted, path); err != nil {
		return err
	}

	sink := checkpoint.NewFileSink(path + ".timelock")
	if err := sink.Save(checkpoint.FromParameters(params, path)); err != nil {
		return err
	}

	fmt.Printf("encrypted %s, estimated time to solve: %s\n",
		path, solver.ETA(params.Steps, profile.SquaringsPerSecond))
	return nil
}

func runSolve(log *logger.Logger, recordPath string) error {
	sink := checkpoint.NewFileSink(recordPath)
	state, err := sink.Load()
	if err != nil {
		return err
	}
	if err := state.Validate(); err != nil {
		return err
	}

	bits := state.N.BitLen()
	if bits%2 != 0 {
		bits++
	}
	profile, err := solver.Calibrate(bits)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	params := state.Parameters()
	s := solver.New(log, profile,
		solver.WithSink(sink),
		solver.WithPayloadRef(state.Payload),
	)

	result, err := s.Solve(ctx, params, state)
	if err != nil {
		return err
	}

	key, err := puzzle.Recover(params, result)
	if err != nil {
		return err
	}

	if state.Payload == "" {
		fmt.Printf("key: %s\n", hex.EncodeToString(key))
		return nil
	}

	decrypted := state.Payload + ".dec"
	if err := crypto.DecryptFile(key, state.Payload, decrypted); err != nil {
		return err
	}
	if err := os.Rename(decrypted, state.Payload); err != nil {
		return err
	}
	fmt.Printf("decrypted %s\n", state.Payload)
	return nil
}

// buildPuzzle calibrates the host, converts the requested delay into a step
// count and constructs the puzzle plus its serialized cipher key.
func buildPuzzle(log *logger.Logger, seconds, bits int) (*puzzle.Parameters, []byte, *solver.SpeedProfile, error) {
	log.Infof("calibrating %d-bit squaring throughput", bits)
	profile, err := solver.Calibrate(bits)
	if err != nil {
		return nil, nil, nil, err
	}
	log.Infof("%.0f squarings/s", profile.SquaringsPerSecond)

	difficulty := uint64(float64(seconds) * profile.SquaringsPerSecond)
	if difficulty == 0 {
		difficulty = 1
	}

	secret, err := puzzle.NewSecretKey(nil)
	if err != nil {
		return nil, nil, nil, err
	}

	params, err := puzzle.Build(nil, difficulty, secret, bits)
	if err != nil {
		return nil, nil, nil, err
	}

	key := make([]byte, puzzle.KeyLength)
	secret.FillBytes(key)
	return params, key, profile, nil
}
