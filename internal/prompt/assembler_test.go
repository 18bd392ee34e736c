package prompt

import (
	"reflect"
	"testing"
)

func TestAssembleOrdering(t *testing.T) {
	history := []Message{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello!"},
	}
	got := Assemble("persona text", []string{"likes jazz"}, history, "how are you?")

	if len(got) != 5 {
		t.Fatalf("message count = %d, want 5", len(got))
	}
	if got[0].Role != RoleSystem || got[0].Content != "persona text" {
		t.Fatalf("first message = %+v, want persona system message", got[0])
	}
	if got[1].Role != RoleSystem {
		t.Fatalf("second message role = %q, want system memory summary", got[1].Role)
	}
	if got[2] != history[0] || got[3] != history[1] {
		t.Fatalf("history not preserved oldest-first: %+v", got[2:4])
	}
	last := got[len(got)-1]
	if last.Role != RoleUser || last.Content != "how are you?" {
		t.Fatalf("last message = %+v, want current user input", last)
	}
}

func TestAssembleOmitsEmptyMemories(t *testing.T) {
	got := Assemble("p", []string{"", "   "}, nil, "hey")
	if len(got) != 2 {
		t.Fatalf("message count = %d, want 2 (no memory message)", len(got))
	}
	for _, m := range got {
		if m.Content == "" {
			t.Fatalf("assembled list contains empty-content message")
		}
	}
}

func TestAssembleDeterministic(t *testing.T) {
	history := []Message{{Role: RoleUser, Content: "a"}}
	memories := []string{"m1", "m2"}

	first := Assemble("p", memories, history, "b")
	second := Assemble("p", memories, history, "b")
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("Assemble is not deterministic:\n%+v\n%+v", first, second)
	}
}

func TestHasSystemMessage(t *testing.T) {
	if HasSystemMessage([]Message{{Role: RoleUser, Content: "x"}}) {
		t.Fatalf("no system message expected")
	}
	if !HasSystemMessage([]Message{{Role: RoleSystem, Content: "x"}}) {
		t.Fatalf("system message expected")
	}
}
