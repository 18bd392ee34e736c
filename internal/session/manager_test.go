package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/antoniostano/elysia/internal/prompt"
)

func TestSessionHistoryWindow(t *testing.T) {
	s := NewSession(3)
	for i := 0; i < 10; i++ {
		s.AppendExchange(fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
		if got := len(s.History()); got > 6 {
			t.Fatalf("history length = %d after exchange %d, window of 3 exchanges allows 6", got, i)
		}
	}

	h := s.History()
	if len(h) != 6 {
		t.Fatalf("history length = %d, want 6", len(h))
	}
	if h[0].Content != "q7" || h[0].Role != prompt.RoleUser {
		t.Fatalf("oldest retained = %+v, want user q7", h[0])
	}
	if h[5].Content != "a9" || h[5].Role != prompt.RoleAssistant {
		t.Fatalf("newest retained = %+v, want assistant a9", h[5])
	}
}

func TestSessionHistoryCopyIsolated(t *testing.T) {
	s := NewSession(5)
	s.AppendExchange("hi", "hello")
	h := s.History()
	h[0].Content = "mutated"
	if s.History()[0].Content != "hi" {
		t.Fatalf("History() must return a copy")
	}
}

func TestRegistryRegisterUnregister(t *testing.T) {
	r := NewRegistry()
	a := NewSession(5)
	b := NewSession(5)

	r.Register(a)
	r.Register(b)
	if got := r.Count(); got != 2 {
		t.Fatalf("Count() = %d, want 2", got)
	}

	r.Unregister(a)
	r.Unregister(a) // removing twice is a no-op
	if got := r.Count(); got != 1 {
		t.Fatalf("Count() = %d, want 1", got)
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := NewSession(5)
			r.Register(s)
			r.Count()
			r.Unregister(s)
		}()
	}
	wg.Wait()
	if got := r.Count(); got != 0 {
		t.Fatalf("Count() = %d after churn, want 0", got)
	}
}
