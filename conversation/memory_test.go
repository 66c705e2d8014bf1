package conversation

import "testing"

func TestSessionAppendOrder(t *testing.T) {
	s := NewSession("s1")
	s.Append(RoleUser, "What was revenue in 2023?")
	s.Append(RoleAssistant, "Revenue was $12.5 million.")

	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}

	turns := s.Turns()
	if turns[0].Role != RoleUser || turns[1].Role != RoleAssistant {
		t.Errorf("turn order not preserved: %+v", turns)
	}
	if turns[0].At.IsZero() || turns[1].At.IsZero() {
		t.Error("turn timestamps not set")
	}

	// Turns returns a copy; mutating it must not touch the log.
	turns[0].Text = "mutated"
	if s.Turns()[0].Text != "What was revenue in 2023?" {
		t.Error("Turns exposed internal state")
	}
}

func TestSessionRecentWindow(t *testing.T) {
	s := NewSession("s1")
	for _, text := range []string{"one", "two", "three", "four"} {
		s.Append(RoleUser, text)
	}

	recent := s.Recent(2)
	if len(recent) != 2 {
		t.Fatalf("Recent(2) returned %d turns", len(recent))
	}
	if recent[0].Text != "three" || recent[1].Text != "four" {
		t.Errorf("wrong window: %+v", recent)
	}

	if got := s.Recent(10); len(got) != 4 {
		t.Errorf("Recent larger than log should return all turns, got %d", len(got))
	}
	if got := s.Recent(0); got != nil {
		t.Errorf("Recent(0) = %+v, want nil", got)
	}
}

func TestRegistrySessionsAreIsolated(t *testing.T) {
	r := NewRegistry()

	a := r.Get("a")
	b := r.Get("b")
	if a == b {
		t.Fatal("distinct IDs share a session")
	}

	a.Append(RoleUser, "hello")
	if b.Len() != 0 {
		t.Error("appending to one session leaked into another")
	}

	if r.Get("a") != a {
		t.Error("Get did not return the existing session")
	}
	if r.Get("a").Len() != 1 {
		t.Error("session history lost between Get calls")
	}
}
