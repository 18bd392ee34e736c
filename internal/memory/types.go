package memory

import "context"

// Store is the long-term conversational memory: key-less append plus a
// nearest-neighbor style text query. Best effort by contract; no ordering
// guarantee exists between an Add and a subsequent Query.
type Store interface {
	Add(ctx context.Context, text string) error
	Query(ctx context.Context, text string, k int) ([]string, error)
	Close() error
}
