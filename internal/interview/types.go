// Package interview defines the domain types shared across the Intervo
// session runtime: questions, sessions, answers, and scoring summaries.
//
// All types are plain data. Sessions are created by the assessment backend
// and fetched read-only; the runtime never mutates a question after load.
package interview

// QuestionType discriminates how a question is answered.
type QuestionType string

const (
	// QuestionText expects a typed text answer.
	QuestionText QuestionType = "TEXT"

	// QuestionVideo expects a recorded video answer.
	QuestionVideo QuestionType = "VIDEO"
)

// IsValid reports whether t is a recognised question type.
func (t QuestionType) IsValid() bool {
	return t == QuestionText || t == QuestionVideo
}

// Question is a single interview question as delivered by the backend.
// Questions are immutable once loaded.
type Question struct {
	// ID is the backend-assigned stable identifier.
	ID string `json:"id"`

	// Text is the question prompt shown to the candidate.
	Text string `json:"questionText"`

	// Type selects text or video answering.
	Type QuestionType `json:"questionType"`

	// TimeLimit is the per-question allotment in minutes. It is only used
	// to compute the total session time; it is not enforced individually.
	TimeLimit int `json:"timeLimit"`

	// Order positions the question in the interview. Lower values come
	// first; ties keep their original list position.
	Order int `json:"order"`
}

// Session is an interview session fetched from the backend by ID.
type Session struct {
	ID        string     `json:"id"`
	Questions []Question `json:"interviewQuestions"`
}

// AnswerKind discriminates the two members of the Answer union.
type AnswerKind string

const (
	AnswerText  AnswerKind = "text"
	AnswerVideo AnswerKind = "video"
)

// Answer is a captured answer for one question. Exactly one of Text or
// Video is populated depending on Kind. At most one answer exists per
// question; a later capture replaces the earlier one.
type Answer struct {
	Kind       AnswerKind
	QuestionID string

	// Text holds the typed answer for AnswerText.
	Text string

	// Video holds the finalized clip bytes for AnswerVideo.
	Video []byte

	// MimeType is the container format of Video (e.g. "video/webm").
	MimeType string
}

// QuestionFeedback is the backend's per-question scoring detail.
type QuestionFeedback struct {
	QuestionID string  `json:"questionId"`
	Score      float64 `json:"score"`
	Feedback   string  `json:"feedback"`
}

// Summary is the AI-generated scoring result for a completed session.
// The runtime only consumes it; the scoring algorithm is opaque.
type Summary struct {
	SessionID        string             `json:"sessionId"`
	OverallScore     float64            `json:"overallScore"`
	Strengths        []string           `json:"strengths"`
	Weaknesses       []string           `json:"weaknesses"`
	Recommendations  []string           `json:"recommendations"`
	DetailedFeedback []QuestionFeedback `json:"detailedFeedback"`
}
