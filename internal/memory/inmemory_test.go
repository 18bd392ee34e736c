package memory

import (
	"context"
	"testing"
)

func TestInMemoryAddAndQuery(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	seeds := []string{
		"User loves jazz records from the sixties",
		"User has a cat named Miso",
		"User works as a florist downtown",
	}
	for _, e := range seeds {
		if err := s.Add(ctx, e); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}

	got, err := s.Query(ctx, "tell me about jazz records", 2)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Query() returned %d entries, want 2", len(got))
	}
	if got[0] != seeds[0] {
		t.Fatalf("top match = %q, want jazz entry", got[0])
	}
}

func TestInMemoryQueryEmptyStore(t *testing.T) {
	s := NewInMemoryStore()
	got, err := s.Query(context.Background(), "anything", 3)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("Query() on empty store = %v, want none", got)
	}
}

func TestInMemoryAddIgnoresBlank(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	if err := s.Add(ctx, "   "); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	got, _ := s.Query(ctx, "x", 3)
	if len(got) != 0 {
		t.Fatalf("blank entry should not be stored, got %v", got)
	}
}

func TestInMemoryQueryCapsAtStoreSize(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	_ = s.Add(ctx, "only entry about gardening")

	got, err := s.Query(ctx, "gardening", 5)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Query() returned %d entries, want 1", len(got))
	}
}
