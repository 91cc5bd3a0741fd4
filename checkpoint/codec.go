package checkpoint

import (
	"crypto/hmac"
	"fmt"
	"math/big"

	"github.com/iotaledger/hive.go/serializer/v2/marshalutil"
	"golang.org/x/crypto/blake2b"
)

// Binary record layout:
//
//	magic     4 bytes "TLP1"
//	steps     uint64
//	remaining uint64
//	value     uint32 length + big-endian bytes
//	N         uint32 length + big-endian bytes
//	cipherKey uint32 length + big-endian bytes
//	payload   uint32 length + raw bytes
//	checksum  16 bytes, truncated BLAKE2b-256 over everything above
//
// The decoder is strict: unknown magic, truncated fields, trailing bytes and
// checksum mismatches are all ErrCorrupt. Records are never executed or
// interpreted beyond this schema.

var recordMagic = []byte("TLP1")

const checksumLength = 16

// Bytes serializes the state into its durable binary form.
func (s *State) Bytes() []byte {
	ms := marshalutil.New()
	ms.WriteBytes(recordMagic)
	ms.WriteUint64(s.Steps)
	ms.WriteUint64(s.Remaining)
	writeBigInt(ms, s.Value)
	writeBigInt(ms, s.N)
	writeBigInt(ms, s.CipherKey)
	ms.WriteUint32(uint32(len(s.Payload)))
	ms.WriteBytes([]byte(s.Payload))

	body := ms.Bytes()
	sum := blake2b.Sum256(body)
	return append(body, sum[:checksumLength]...)
}

// FromBytes parses and integrity-checks a durable record. The returned state
// still needs Validate before it may seed a solver.
func FromBytes(data []byte) (*State, error) {
	if len(data) < len(recordMagic)+checksumLength {
		return nil, fmt.Errorf("%w: record truncated (%d bytes)", ErrCorrupt, len(data))
	}

	body := data[:len(data)-checksumLength]
	sum := blake2b.Sum256(body)
	if !hmac.Equal(sum[:checksumLength], data[len(body):]) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	ms := marshalutil.New(body)
	magic, err := ms.ReadBytes(len(recordMagic))
	if err != nil || string(magic) != string(recordMagic) {
		return nil, fmt.Errorf("%w: bad magic", ErrCorrupt)
	}

	state := &State{}
	consumed := len(recordMagic)

	if state.Steps, err = ms.ReadUint64(); err != nil {
		return nil, fmt.Errorf("%w: steps field: %s", ErrCorrupt, err)
	}
	if state.Remaining, err = ms.ReadUint64(); err != nil {
		return nil, fmt.Errorf("%w: remaining field: %s", ErrCorrupt, err)
	}
	consumed += 8 + 8

	var n int
	if state.Value, n, err = readBigInt(ms); err != nil {
		return nil, fmt.Errorf("%w: intermediate value field: %s", ErrCorrupt, err)
	}
	consumed += n
	if state.N, n, err = readBigInt(ms); err != nil {
		return nil, fmt.Errorf("%w: modulus field: %s", ErrCorrupt, err)
	}
	consumed += n
	if state.CipherKey, n, err = readBigInt(ms); err != nil {
		return nil, fmt.Errorf("%w: cipher key field: %s", ErrCorrupt, err)
	}
	consumed += n

	payloadLen, err := ms.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("%w: payload length field: %s", ErrCorrupt, err)
	}
	payload, err := ms.ReadBytes(int(payloadLen))
	if err != nil {
		return nil, fmt.Errorf("%w: payload field: %s", ErrCorrupt, err)
	}
	state.Payload = string(payload)
	consumed += 4 + int(payloadLen)

	if consumed != len(body) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, len(body)-consumed)
	}

	return state, nil
}

func writeBigInt(ms *marshalutil.MarshalUtil, x *big.Int) {
	raw := x.Bytes()
	ms.WriteUint32(uint32(len(raw)))
	ms.WriteBytes(raw)
}

// readBigInt returns the parsed integer and the number of record bytes it
// occupied including the length prefix.
func readBigInt(ms *marshalutil.MarshalUtil) (*big.Int, int, error) {
	length, err := ms.ReadUint32()
	if err != nil {
		return nil, 0, err
	}
	raw, err := ms.ReadBytes(int(length))
	if err != nil {
		return nil, 0, err
	}
	return new(big.Int).SetBytes(raw), 4 + int(length), nil
}
