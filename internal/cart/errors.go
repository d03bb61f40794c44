package cart

import "fmt"

// FetchError reports a failed cart load. The store keeps its last-known-good
// state; the caller may retry.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("cart fetch failed: %v", e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// MutationError reports a failed cart write. Local state is unchanged and
// the operation is user-retryable.
type MutationError struct {
	Op      string
	EntryID string
	Err     error
}

func (e *MutationError) Error() string {
	if e.EntryID != "" {
		return fmt.Sprintf("cart %s failed for entry %s: %v", e.Op, e.EntryID, e.Err)
	}
	return fmt.Sprintf("cart %s failed: %v", e.Op, e.Err)
}

func (e *MutationError) Unwrap() error { return e.Err }
