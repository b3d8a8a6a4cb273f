package backend

import (
	"bytes"
	"encoding/json"
	"time"

	"quizplay-service/internal/domain"
)

// flexID accepts both JSON strings and numbers as identifiers.
type flexID string

func (id *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = flexID(n.String())
	return nil
}

type wireOption struct {
	ID   flexID `json:"id"`
	Text string `json:"text"`
}

// wireQuestion carries options under either "options" or "answers".
type wireQuestion struct {
	ID      flexID       `json:"id"`
	Text    string       `json:"text"`
	Options []wireOption `json:"options"`
	Answers []wireOption `json:"answers"`
}

type wireQuiz struct {
	ID        flexID         `json:"id"`
	Title     string         `json:"title"`
	TimeLimit int            `json:"time_limit"`
	Questions []wireQuestion `json:"questions"`
}

// startResponse accepts the quiz nested under "quiz" or flattened at the top level.
type startResponse struct {
	Quiz *wireQuiz `json:"quiz"`
	wireQuiz
}

func (r startResponse) normalize() domain.AttemptStarted {
	flat := r.wireQuiz
	out := domain.AttemptStarted{
		QuizID:    string(flat.ID),
		Title:     flat.Title,
		TimeLimit: flat.TimeLimit,
	}
	questions := flat.Questions
	if r.Quiz != nil {
		if r.Quiz.ID != "" {
			out.QuizID = string(r.Quiz.ID)
		}
		if r.Quiz.Title != "" {
			out.Title = r.Quiz.Title
		}
		if r.Quiz.TimeLimit > 0 {
			out.TimeLimit = r.Quiz.TimeLimit
		}
		if r.Quiz.Questions != nil {
			questions = r.Quiz.Questions
		}
	}

	out.Questions = make([]domain.Question, 0, len(questions))
	for _, q := range questions {
		options := q.Options
		if options == nil {
			options = q.Answers
		}
		question := domain.Question{ID: string(q.ID), Text: q.Text, Options: make([]domain.Option, 0, len(options))}
		for _, o := range options {
			question.Options = append(question.Options, domain.Option{ID: string(o.ID), Text: o.Text})
		}
		out.Questions = append(out.Questions, question)
	}
	return out
}

type finishRequest struct {
	Answers map[string]string `json:"answers"`
}

type statusResponse struct {
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
	Score      int        `json:"score"`
	MaxScore   int        `json:"max_score"`
}

type answersResponse struct {
	Answers map[string]flexID `json:"answers"`
}
