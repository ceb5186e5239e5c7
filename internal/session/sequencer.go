package session

import (
	"sort"

	"github.com/intervo-ai/intervo/internal/interview"
)

// Sequencer orders the question list deterministically and tracks the
// current position. The working order is fixed at construction: ascending
// by Order, with ties keeping their original list position (stable sort),
// so the interview order never depends on map iteration or backend whims.
//
// Sequencer is not safe for concurrent use; the runner serializes access.
type Sequencer struct {
	questions    []interview.Question
	index        int
	totalSeconds int
}

// NewSequencer builds the immutable working order from a raw question list.
func NewSequencer(questions []interview.Question) *Sequencer {
	sorted := make([]interview.Question, len(questions))
	copy(sorted, questions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Order < sorted[j].Order
	})

	total := 0
	for _, q := range sorted {
		total += q.TimeLimit * 60
	}

	return &Sequencer{questions: sorted, totalSeconds: total}
}

// Current returns the active question. Callers must not invoke Current on
// an empty sequencer; the runner rejects empty sessions at load time.
func (s *Sequencer) Current() interview.Question {
	return s.questions[s.index]
}

// HasNext reports whether a question follows the current one.
func (s *Sequencer) HasNext() bool {
	return s.index < len(s.questions)-1
}

// Advance moves to the next question. At the last question it is a no-op;
// the runner checks HasNext first and submits instead of advancing.
func (s *Sequencer) Advance() {
	if s.HasNext() {
		s.index++
	}
}

// Index returns the zero-based position of the current question.
func (s *Sequencer) Index() int {
	return s.index
}

// Len returns the number of questions in the working order.
func (s *Sequencer) Len() int {
	return len(s.questions)
}

// TotalSeconds returns the whole-session time budget: the sum of all
// per-question allotments, computed once at construction.
func (s *Sequencer) TotalSeconds() int {
	return s.totalSeconds
}
