package session

import (
	"testing"

	"github.com/intervo-ai/intervo/internal/interview"
)

func TestSequencer_OrdersByOrderField(t *testing.T) {
	t.Parallel()

	seq := NewSequencer([]interview.Question{
		{ID: "q3", Order: 3},
		{ID: "q1", Order: 1},
		{ID: "q2", Order: 2},
	})

	var got []string
	for {
		got = append(got, seq.Current().ID)
		if !seq.HasNext() {
			break
		}
		seq.Advance()
	}

	want := []string{"q1", "q2", "q3"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d = %q, want %q (full order %v)", i, got[i], want[i], got)
		}
	}
}

func TestSequencer_TiesKeepListPosition(t *testing.T) {
	t.Parallel()

	seq := NewSequencer([]interview.Question{
		{ID: "first", Order: 1},
		{ID: "second", Order: 1},
		{ID: "third", Order: 1},
	})

	if seq.Current().ID != "first" {
		t.Errorf("Current().ID = %q, want %q", seq.Current().ID, "first")
	}
	seq.Advance()
	if seq.Current().ID != "second" {
		t.Errorf("after advance, Current().ID = %q, want %q", seq.Current().ID, "second")
	}
	seq.Advance()
	if seq.Current().ID != "third" {
		t.Errorf("after second advance, Current().ID = %q, want %q", seq.Current().ID, "third")
	}
}

func TestSequencer_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	in := []interview.Question{
		{ID: "b", Order: 2},
		{ID: "a", Order: 1},
	}
	NewSequencer(in)

	if in[0].ID != "b" || in[1].ID != "a" {
		t.Errorf("input slice was reordered: %v", in)
	}
}

func TestSequencer_TotalSeconds(t *testing.T) {
	t.Parallel()

	seq := NewSequencer([]interview.Question{
		{ID: "q1", TimeLimit: 5},
		{ID: "q2", TimeLimit: 10},
		{ID: "q3", TimeLimit: 15},
	})

	if got := seq.TotalSeconds(); got != 1800 {
		t.Errorf("TotalSeconds() = %d, want 1800", got)
	}
}

func TestSequencer_AdvanceClampsAtEnd(t *testing.T) {
	t.Parallel()

	seq := NewSequencer([]interview.Question{{ID: "only", Order: 1}})

	if seq.HasNext() {
		t.Error("HasNext() = true for single-question sequencer")
	}
	seq.Advance()
	if seq.Index() != 0 {
		t.Errorf("Index() = %d after advance at end, want 0", seq.Index())
	}
	if seq.Current().ID != "only" {
		t.Errorf("Current().ID = %q, want %q", seq.Current().ID, "only")
	}
}
