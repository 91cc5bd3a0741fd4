package checkpoint

// Sink persists checkpoint records. Implementations must replace the previous
// record atomically: a Load observes either the old record or the new one in
// full, never a torn write. A sink is owned by a single in-flight solver; the
// caller is responsible for the single-writer convention.
type Sink interface {
	// Save durably replaces the current record.
	Save(state *State) error
	// Load returns the most recently saved record, or ErrNotFound.
	Load() (*State, error)
}
