package domain

import (
	"fmt"
	"time"
)

// DefaultTimeLimit is used when the backend omits a quiz time limit.
const DefaultTimeLimit = 300

// Option represents a possible answer for a question.
type Option struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct,omitempty"`
}

// Question models an MCQ question with exactly one correct option.
type Question struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Options []Option `json:"options"`
	Points  int      `json:"points,omitempty"` // defaults to 1 if zero
}

// Quiz is a collection of questions played under a time limit (seconds).
type Quiz struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	TimeLimit int        `json:"time_limit,omitempty"`
	Questions []Question `json:"questions"`
}

// Public returns a copy of the quiz without correct-option flags.
func (q Quiz) Public() Quiz {
	out := q
	out.Questions = CloneQuestions(q.Questions)
	for i := range out.Questions {
		for j := range out.Questions[i].Options {
			out.Questions[i].Options[j].Correct = false
		}
	}
	return out
}

// CloneQuestions deep-copies a question list so callers cannot alias option slices.
func CloneQuestions(questions []Question) []Question {
	if questions == nil {
		return nil
	}
	out := make([]Question, len(questions))
	for i, q := range questions {
		out[i] = q
		out[i].Options = append([]Option(nil), q.Options...)
	}
	return out
}

// AttemptStarted is what the backend hands out when an attempt opens.
type AttemptStarted struct {
	QuizID    string     `json:"quizId"`
	Title     string     `json:"title"`
	TimeLimit int        `json:"timeLimit"`
	Questions []Question `json:"questions"`
}

// AttemptStatus is the lifecycle position of a quiz attempt.
// Transitions only move forward: NotStarted, InProgress, Submitting, Finished.
type AttemptStatus int

const (
	StatusNotStarted AttemptStatus = iota
	StatusInProgress
	StatusSubmitting
	StatusFinished
)

func (s AttemptStatus) String() string {
	switch s {
	case StatusNotStarted:
		return "not_started"
	case StatusInProgress:
		return "in_progress"
	case StatusSubmitting:
		return "submitting"
	case StatusFinished:
		return "finished"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

func (s AttemptStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// FinishTrigger records what ended an attempt.
type FinishTrigger string

const (
	TriggerManual  FinishTrigger = "manual"
	TriggerTimeout FinishTrigger = "timeout"
)

// AttemptSnapshot is a point-in-time view of an attempt, pushed to subscribers.
type AttemptSnapshot struct {
	QuizID           string        `json:"quizId"`
	ParticipantID    string        `json:"participantId"`
	Status           AttemptStatus `json:"status"`
	CurrentIndex     int           `json:"currentIndex"`
	TotalQuestions   int           `json:"totalQuestions"`
	RemainingSeconds int           `json:"remainingSeconds"`
	Countdown        string        `json:"countdown"`
	Answered         int           `json:"answered"`
	Question         *Question     `json:"question,omitempty"`
	Selected         string        `json:"selected,omitempty"`
	Trigger          FinishTrigger `json:"trigger,omitempty"`
	Message          string        `json:"message,omitempty"`
}

// FormatCountdown renders seconds as m:ss.
func FormatCountdown(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// Participation is the backend's record of one participant playing one quiz.
type Participation struct {
	QuizID        string            `json:"quiz_id"`
	ParticipantID string            `json:"participant_id"`
	StartedAt     time.Time         `json:"started_at"`
	FinishedAt    *time.Time        `json:"finished_at"`
	Score         int               `json:"score"`
	MaxScore      int               `json:"max_score"`
	Answers       map[string]string `json:"-"`
}

// Finished reports whether the participant already submitted.
func (p Participation) Finished() bool {
	return p.FinishedAt != nil
}
