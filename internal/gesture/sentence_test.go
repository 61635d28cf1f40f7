package gesture

import "testing"

func TestSentence(t *testing.T) {
	t.Run("appends in order", func(t *testing.T) {
		var s Sentence
		for _, c := range []string{"H", "I", " ", "Y", "O"} {
			s.Append(c)
		}
		if got := s.String(); got != "HI YO" {
			t.Errorf("String() = %q, want %q", got, "HI YO")
		}
		if s.Len() != 5 {
			t.Errorf("Len() = %d, want 5", s.Len())
		}
	})

	t.Run("read does not mutate", func(t *testing.T) {
		var s Sentence
		s.Append("A")
		_ = s.String()
		if s.String() != "A" {
			t.Errorf("String() = %q after read, want A", s.String())
		}
	})

	t.Run("clear is idempotent", func(t *testing.T) {
		var s Sentence
		s.Append("A")
		s.Append("B")

		s.Clear()
		if s.String() != "" {
			t.Fatalf("expected empty sentence, got %q", s.String())
		}
		s.Clear()
		if s.String() != "" {
			t.Errorf("expected empty sentence after second clear, got %q", s.String())
		}

		s.Append("C")
		if s.String() != "C" {
			t.Errorf("expected append after clear to work, got %q", s.String())
		}
	})
}

func TestPipeline_EngineIntoSentence(t *testing.T) {
	e := newTestEngine(t)
	var s Sentence

	script := []struct {
		label Label
		ms    int
	}{
		{"H", 0}, {"H", 1500},
		{"I", 1600}, {"I", 3100},
		{"Space", 3200}, {"Space", 4700},
		{Sentinel, 4800},
		{"A", 4900}, {"A", 5500},
		{"B", 5600}, {"B", 7100},
	}
	for _, f := range script {
		if step := e.Observe(f.label, at(f.ms)); step.Committed != "" {
			s.Append(step.Committed)
		}
	}

	if got := s.String(); got != "HI B" {
		t.Errorf("sentence = %q, want %q", got, "HI B")
	}
}
