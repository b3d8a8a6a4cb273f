package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"quizplay-service/internal/app"
	"quizplay-service/internal/domain"
	"quizplay-service/internal/infra/memory"
)

func TestParticipationStartHidesAnswerKey(t *testing.T) {
	service := newParticipationService()

	quiz, err := service.Start(context.Background(), "quiz-1", "p1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	for _, q := range quiz.Questions {
		for _, o := range q.Options {
			if o.Correct {
				t.Fatalf("start must not leak correct options: %+v", q)
			}
		}
	}
	if quiz.TimeLimit != 120 || quiz.Title != "Geography" {
		t.Fatalf("unexpected quiz header %+v", quiz)
	}
}

func TestParticipationFinishScores(t *testing.T) {
	ctx := context.Background()
	service := newParticipationService()

	if _, err := service.Start(ctx, "quiz-1", "p1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	p, err := service.Finish(ctx, "quiz-1", "p1", map[string]string{"q1": "o2", "q2": "o3"})
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	// q1 correct (2 points), q2 wrong, q3 unanswered
	if p.Score != 2 || p.MaxScore != 4 || !p.Finished() {
		t.Fatalf("unexpected participation %+v", p)
	}

	answers, err := service.Answers(ctx, "quiz-1", "p1")
	if err != nil || answers["q1"] != "o2" || len(answers) != 2 {
		t.Fatalf("unexpected answers %v err=%v", answers, err)
	}

	if _, err := service.Start(ctx, "quiz-1", "p1"); !errors.Is(err, domain.ErrAlreadyPlayed) {
		t.Fatalf("expected replay refused, got %v", err)
	}
	if _, err := service.Finish(ctx, "quiz-1", "p1", nil); !errors.Is(err, domain.ErrAlreadyPlayed) {
		t.Fatalf("expected double finish refused, got %v", err)
	}
}

func TestParticipationFinishValidation(t *testing.T) {
	ctx := context.Background()
	service := newParticipationService()

	if _, err := service.Finish(ctx, "quiz-1", "p1", nil); !errors.Is(err, domain.ErrParticipationNotFound) {
		t.Fatalf("expected finish without start refused, got %v", err)
	}
	_, _ = service.Start(ctx, "quiz-1", "p1")
	if _, err := service.Finish(ctx, "quiz-1", "p1", map[string]string{"q9": "o1"}); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected question error, got %v", err)
	}
	if _, err := service.Finish(ctx, "quiz-1", "p1", map[string]string{"q1": "o9"}); !errors.Is(err, domain.ErrOptionNotFound) {
		t.Fatalf("expected option error, got %v", err)
	}
	if _, err := service.Start(ctx, "missing", "p1"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz not found, got %v", err)
	}
}

func TestParticipationStatusUsesClock(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	service := app.NewParticipationServiceWithClock(memory.NewParticipationStore(), sampleQuizRepository(), func() time.Time { return at })

	_, _ = service.Start(ctx, "quiz-1", "p1")
	p, err := service.Status(ctx, "quiz-1", "p1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !p.StartedAt.Equal(at) || p.Finished() {
		t.Fatalf("unexpected status %+v", p)
	}
}

func newParticipationService() *app.ParticipationService {
	return app.NewParticipationService(memory.NewParticipationStore(), sampleQuizRepository())
}

func sampleQuizRepository() *memory.QuizRepository {
	return memory.NewQuizRepository(memory.NewStaticQuizLoader(map[string]domain.Quiz{
		"quiz-1": {
			ID:        "quiz-1",
			Title:     "Geography",
			TimeLimit: 120,
			Questions: []domain.Question{
				{ID: "q1", Text: "Capital of Peru?", Points: 2, Options: []domain.Option{
					{ID: "o1", Text: "Cusco"}, {ID: "o2", Text: "Lima", Correct: true},
				}},
				{ID: "q2", Text: "Capital of Chile?", Options: []domain.Option{
					{ID: "o3", Text: "Valparaiso"}, {ID: "o4", Text: "Santiago", Correct: true},
				}},
				{ID: "q3", Text: "Capital of Bolivia?", Options: []domain.Option{
					{ID: "o5", Text: "Sucre", Correct: true}, {ID: "o6", Text: "Oruro"},
				}},
			},
		},
	}), 5*time.Minute)
}
