package checkpoint

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// FileSink persists records to a single file, replacing it via
// write-then-rename so a crash mid-write can never leave a torn record
// behind.
type FileSink struct {
	path string
}

// NewFileSink creates a sink writing to path. The file does not have to
// exist yet.
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

// Path returns the record location.
func (f *FileSink) Path() string {
	return f.path
}

// Save implements Sink.
func (f *FileSink) Save(state *State) error {
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, state.Bytes(), 0o600); err != nil {
		return errors.Wrap(err, "failed to write checkpoint file")
	}
	if err := os.Rename(tmp, f.path); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(err, "failed to replace checkpoint file")
	}
	return nil
}

// Load implements Sink.
func (f *FileSink) Load() (*State, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read checkpoint file %s", filepath.Base(f.path))
	}
	return FromBytes(data)
}
