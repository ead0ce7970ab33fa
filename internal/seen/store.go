package seen

import "context"

// Store persists the set of already-notified appointment ids.
type Store interface {
	// Load reads durable state. A missing or corrupt record yields an
	// empty Set; a fresh store is always a legal start. An error means
	// the backing store is unreachable, not that it is empty.
	Load(ctx context.Context) (Set, error)

	// Flush durably persists the set such that a subsequent Load on the
	// same location reconstructs an equal set. Implementations must be
	// atomic with respect to a process crash.
	Flush(ctx context.Context, s Set) error
}
