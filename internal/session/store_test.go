package session

import (
	"testing"

	"github.com/intervo-ai/intervo/internal/interview"
)

func TestStore_PutIsUpsert(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.Put(interview.Answer{Kind: interview.AnswerText, QuestionID: "q1", Text: "draft"})
	s.Put(interview.Answer{Kind: interview.AnswerText, QuestionID: "q1", Text: "final"})

	if got := s.Len(); got != 1 {
		t.Fatalf("Len() = %d, want 1", got)
	}
	ans, ok := s.Get("q1")
	if !ok {
		t.Fatal("Get(q1) missing")
	}
	if ans.Text != "final" {
		t.Errorf("Text = %q, want %q", ans.Text, "final")
	}
}

func TestStore_DrainKeepsFirstCaptureOrder(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.Put(interview.Answer{QuestionID: "q2", Text: "b"})
	s.Put(interview.Answer{QuestionID: "q1", Text: "a"})
	// Re-answering q2 must not move it to the back.
	s.Put(interview.Answer{QuestionID: "q2", Text: "b2"})

	got := s.Drain()
	if len(got) != 2 {
		t.Fatalf("Drain() returned %d answers, want 2", len(got))
	}
	if got[0].QuestionID != "q2" || got[1].QuestionID != "q1" {
		t.Errorf("order = [%s %s], want [q2 q1]", got[0].QuestionID, got[1].QuestionID)
	}
	if got[0].Text != "b2" {
		t.Errorf("q2 text = %q, want %q", got[0].Text, "b2")
	}
}

func TestStore_DrainDoesNotClear(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.Put(interview.Answer{QuestionID: "q1"})

	if got := len(s.Drain()); got != 1 {
		t.Fatalf("first Drain() = %d answers, want 1", got)
	}
	if got := len(s.Drain()); got != 1 {
		t.Errorf("second Drain() = %d answers, want 1 (drain must not clear)", got)
	}

	s.Clear()
	if got := s.Len(); got != 0 {
		t.Errorf("Len() after Clear = %d, want 0", got)
	}
	if got := len(s.Drain()); got != 0 {
		t.Errorf("Drain() after Clear = %d answers, want 0", got)
	}
}
