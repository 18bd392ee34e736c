package memory

import (
	"context"
	"strings"
)

// NewStore picks the backing implementation: Postgres when a database URL
// is configured, the in-process store for local runs and tests otherwise.
func NewStore(ctx context.Context, databaseURL string) (Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return NewInMemoryStore(), nil
	}
	return NewPostgresStore(ctx, databaseURL)
}
