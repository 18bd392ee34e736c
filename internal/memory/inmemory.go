package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// InMemoryStore is a simple in-process memory store for local/dev use.
// Query ranks entries by token overlap with the query text, newest first on
// ties.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Add(_ context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, text)
	return nil
}

func (s *InMemoryStore) Query(_ context.Context, text string, k int) ([]string, error) {
	if k <= 0 {
		k = 3
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.entries) == 0 {
		return nil, nil
	}

	query := tokens(text)
	type scored struct {
		idx   int
		score int
	}
	ranked := make([]scored, 0, len(s.entries))
	for i, e := range s.entries {
		ranked = append(ranked, scored{idx: i, score: overlap(query, tokens(e))})
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		if ranked[a].score != ranked[b].score {
			return ranked[a].score > ranked[b].score
		}
		return ranked[a].idx > ranked[b].idx
	})

	if k > len(ranked) {
		k = len(ranked)
	}
	out := make([]string, 0, k)
	for _, r := range ranked[:k] {
		out = append(out, s.entries[r.idx])
	}
	return out, nil
}

func (s *InMemoryStore) Close() error { return nil }

func tokens(text string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,!?;:\"'()")
		if len(w) > 2 {
			out[w] = struct{}{}
		}
	}
	return out
}

func overlap(a, b map[string]struct{}) int {
	n := 0
	for w := range a {
		if _, ok := b[w]; ok {
			n++
		}
	}
	return n
}
