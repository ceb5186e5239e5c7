package session

import (
	"sync"

	"github.com/intervo-ai/intervo/internal/interview"
)

// Store is the in-memory answer store for one session: a mapping from
// question ID to the captured answer, accumulated across the interview and
// drained once at final submission.
//
// Put is an upsert — a later capture for the same question replaces the
// earlier one, never appends. Drain does not clear the store; clearing is
// the caller's responsibility after a confirmed submission, so a retried
// submission can reuse the held answers. Only the runner mutates the store.
// All exported methods are safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	answers map[string]interview.Answer
	order   []string
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{answers: make(map[string]interview.Answer)}
}

// Put records the answer for ans.QuestionID, overwriting any prior answer.
func (s *Store) Put(ans interview.Answer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.answers[ans.QuestionID]; !exists {
		s.order = append(s.order, ans.QuestionID)
	}
	s.answers[ans.QuestionID] = ans
}

// Get returns the answer for questionID and whether one exists.
func (s *Store) Get(questionID string) (interview.Answer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ans, ok := s.answers[questionID]
	return ans, ok
}

// Drain returns all held answers in first-capture order. The store keeps
// its contents so a failed submission can be retried without recapturing.
func (s *Store) Drain() []interview.Answer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]interview.Answer, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.answers[id])
	}
	return out
}

// Clear discards all held answers. Called after a confirmed submission.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers = make(map[string]interview.Answer)
	s.order = nil
}

// Len returns the number of held answers.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.answers)
}
