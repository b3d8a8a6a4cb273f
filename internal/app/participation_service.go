package app

import (
	"context"
	"errors"
	"time"

	"quizplay-service/internal/domain"
)

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// ParticipationStore persists who started and finished which quiz.
type ParticipationStore interface {
	Get(ctx context.Context, quizID, participantID string) (domain.Participation, error)
	// MarkStarted records the start once; later calls return the existing record.
	MarkStarted(ctx context.Context, quizID, participantID string, at time.Time) (domain.Participation, error)
	// MarkFinished returns ErrParticipationNotFound when no start exists and
	// ErrAlreadyPlayed when the participant already finished.
	MarkFinished(ctx context.Context, p domain.Participation) (domain.Participation, error)
}

// ParticipationService contains the reference backend use cases.
type ParticipationService struct {
	store   ParticipationStore
	quizzes QuizRepository
	now     func() time.Time
}

func NewParticipationService(store ParticipationStore, quizzes QuizRepository) *ParticipationService {
	return &ParticipationService{store: store, quizzes: quizzes, now: time.Now}
}

// NewParticipationServiceWithClock is test-only for deterministic timestamps.
func NewParticipationServiceWithClock(store ParticipationStore, quizzes QuizRepository, now func() time.Time) *ParticipationService {
	return &ParticipationService{store: store, quizzes: quizzes, now: now}
}

// Start opens (or re-opens, while unfinished) a participation and returns the
// quiz without its answer key.
func (s *ParticipationService) Start(ctx context.Context, quizID, participantID string) (domain.Quiz, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}

	existing, err := s.store.Get(ctx, quizID, participantID)
	switch {
	case err == nil && existing.Finished():
		return domain.Quiz{}, domain.ErrAlreadyPlayed
	case err != nil && !errors.Is(err, domain.ErrParticipationNotFound):
		return domain.Quiz{}, err
	}

	if _, err := s.store.MarkStarted(ctx, quizID, participantID, s.now()); err != nil {
		return domain.Quiz{}, err
	}
	return quiz.Public(), nil
}

// Finish scores the submitted answers and closes the participation.
func (s *ParticipationService) Finish(ctx context.Context, quizID, participantID string, answers map[string]string) (domain.Participation, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Participation{}, err
	}

	score, maxScore, err := scoreAnswers(quiz, answers)
	if err != nil {
		return domain.Participation{}, err
	}

	finishedAt := s.now()
	return s.store.MarkFinished(ctx, domain.Participation{
		QuizID:        quizID,
		ParticipantID: participantID,
		FinishedAt:    &finishedAt,
		Score:         score,
		MaxScore:      maxScore,
		Answers:       answers,
	})
}

// Status returns the participation record.
func (s *ParticipationService) Status(ctx context.Context, quizID, participantID string) (domain.Participation, error) {
	return s.store.Get(ctx, quizID, participantID)
}

// Answers returns the answers submitted at finish (empty before that).
func (s *ParticipationService) Answers(ctx context.Context, quizID, participantID string) (map[string]string, error) {
	p, err := s.store.Get(ctx, quizID, participantID)
	if err != nil {
		return nil, err
	}
	if p.Answers == nil {
		return map[string]string{}, nil
	}
	return p.Answers, nil
}

// scoreAnswers validates answers against quiz content and returns (score, max).
// Questions absent from answers are unanswered and score nothing.
func scoreAnswers(quiz domain.Quiz, answers map[string]string) (int, int, error) {
	byID := make(map[string]*domain.Question, len(quiz.Questions))
	maxScore := 0
	for i := range quiz.Questions {
		q := &quiz.Questions[i]
		byID[q.ID] = q
		maxScore += questionPoints(*q)
	}

	score := 0
	for questionID, optionID := range answers {
		question, ok := byID[questionID]
		if !ok {
			return 0, 0, domain.ErrQuestionNotFound
		}
		var selected *domain.Option
		for i := range question.Options {
			if question.Options[i].ID == optionID {
				selected = &question.Options[i]
				break
			}
		}
		if selected == nil {
			return 0, 0, domain.ErrOptionNotFound
		}
		if selected.Correct {
			score += questionPoints(*question)
		}
	}
	return score, maxScore, nil
}

func questionPoints(q domain.Question) int {
	if q.Points > 0 {
		return q.Points
	}
	return 1
}
