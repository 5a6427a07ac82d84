package memory

import (
	"strings"
	"testing"
)

func TestAppendSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir, "Scout")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("fresh journal has %d entries", s.Len())
	}
	if err := s.Append("met Ava near the speakers"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Append("Ava owns car-1"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s2, err := Open(dir, "Scout")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	if s2.Len() != 2 {
		t.Fatalf("reopened journal has %d entries, want 2", s2.Len())
	}
	text := s2.Text()
	if !strings.Contains(text, "met Ava near the speakers") || !strings.Contains(text, "Ava owns car-1") {
		t.Fatalf("journal text missing entries:\n%s", text)
	}

	// Appends after reopen extend, never truncate.
	if err := s2.Append("third fact"); err != nil {
		t.Fatalf("append after reopen: %v", err)
	}
	if s2.Len() != 3 {
		t.Fatalf("entries = %d, want 3", s2.Len())
	}
}

func TestBlankAppendIgnored(t *testing.T) {
	s, err := Open(t.TempDir(), "Scout")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	if err := s.Append("   "); err != nil {
		t.Fatalf("append: %v", err)
	}
	if s.Len() != 0 {
		t.Fatal("blank entry recorded")
	}
}

func TestJournalsIsolatedPerAgent(t *testing.T) {
	dir := t.TempDir()
	a, _ := Open(dir, "Scout")
	b, _ := Open(dir, "Guide")
	defer a.Close()
	defer b.Close()

	_ = a.Append("scout fact")
	if strings.Contains(b.Text(), "scout fact") {
		t.Fatal("journals shared between agents")
	}
}

func TestNameSanitized(t *testing.T) {
	s, err := Open(t.TempDir(), "week given/name..")
	if err != nil {
		t.Fatalf("open with hostile name: %v", err)
	}
	defer s.Close()
	if err := s.Append("ok"); err != nil {
		t.Fatalf("append: %v", err)
	}
}
