package mast

import "errors"

// Error kinds the core distinguishes. Higher-level recovery (retry,
// reopen) belongs to callers; the core itself only ever aborts.
var (
	// ErrEmptyKey is returned when an operation is given a zero-length key.
	// It is checked before any store interaction.
	ErrEmptyKey = errors.New("mast: key must not be empty")

	// ErrCorruption indicates a violated structural assumption: a
	// referenced child hash missing from the table, a record that fails to
	// decode, or a reference count that underflowed. The core never
	// silently repairs; the caller's transaction must abort.
	ErrCorruption = errors.New("mast: corrupt tree state")

	// ErrStore wraps a failure reported by the backing kvstore.Table. It is
	// used as fmt.Errorf("%w: <operation>: %v", ErrStore, ..., cause), so
	// errors.Is matches ErrStore; the underlying cause is kept only as text
	// in the message and is not itself unwrappable.
	ErrStore = errors.New("mast: store error")
)
