package checkpoint

import (
	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/serializer/v2/marshalutil"
	"github.com/pkg/errors"
)

const (
	// Storage key prefixes within the checkpoint realm.
	storePrefixRecord byte = 0
)

// checkpointRealm separates checkpoint records from anything else an
// embedding application keeps in the same store.
var checkpointRealm = []byte{0x74, 0x6C} // "tl"

// KVSink persists records in a key-value store, one record per puzzle ID.
// KV stores commit a Set atomically, which satisfies the no-torn-reads
// requirement. Useful for embedders that already run a kvstore-backed
// database; the CLI uses FileSink instead.
type KVSink struct {
	store    kvstore.KVStore
	puzzleID string
}

// NewKVSink creates a sink for one puzzle inside the given store.
func NewKVSink(store kvstore.KVStore, puzzleID string) (*KVSink, error) {
	realm, err := store.WithRealm(checkpointRealm)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open checkpoint realm")
	}
	return &KVSink{store: realm, puzzleID: puzzleID}, nil
}

// Save implements Sink.
func (k *KVSink) Save(state *State) error {
	if err := k.store.Set(k.recordKey(), state.Bytes()); err != nil {
		return errors.Wrapf(err, "failed to store checkpoint for puzzle %s", k.puzzleID)
	}
	return nil
}

// Load implements Sink.
func (k *KVSink) Load() (*State, error) {
	value, err := k.store.Get(k.recordKey())
	if errors.Is(err, kvstore.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load checkpoint for puzzle %s", k.puzzleID)
	}
	return FromBytes(value)
}

func (k *KVSink) recordKey() []byte {
	ms := marshalutil.New(1 + len(k.puzzleID))
	ms.WriteByte(storePrefixRecord)
	ms.WriteBytes([]byte(k.puzzleID))
	return ms.Bytes()
}
