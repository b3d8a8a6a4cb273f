package memory

import (
	"context"
	"sync"
	"time"

	"quizplay-service/internal/domain"
)

// ParticipationStore is an in-memory implementation of app.ParticipationStore.
type ParticipationStore struct {
	mu      sync.RWMutex
	records map[string]domain.Participation
}

func NewParticipationStore() *ParticipationStore {
	return &ParticipationStore{records: make(map[string]domain.Participation)}
}

func (s *ParticipationStore) Get(_ context.Context, quizID, participantID string) (domain.Participation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.records[attemptKey(quizID, participantID)]
	if !ok {
		return domain.Participation{}, domain.ErrParticipationNotFound
	}
	return copyParticipation(p), nil
}

func (s *ParticipationStore) MarkStarted(_ context.Context, quizID, participantID string, at time.Time) (domain.Participation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := attemptKey(quizID, participantID)
	if p, ok := s.records[key]; ok {
		return copyParticipation(p), nil
	}
	p := domain.Participation{QuizID: quizID, ParticipantID: participantID, StartedAt: at}
	s.records[key] = p
	return p, nil
}

func (s *ParticipationStore) MarkFinished(_ context.Context, finished domain.Participation) (domain.Participation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := attemptKey(finished.QuizID, finished.ParticipantID)
	p, ok := s.records[key]
	if !ok {
		return domain.Participation{}, domain.ErrParticipationNotFound
	}
	if p.Finished() {
		return domain.Participation{}, domain.ErrAlreadyPlayed
	}
	p.FinishedAt = finished.FinishedAt
	p.Score = finished.Score
	p.MaxScore = finished.MaxScore
	p.Answers = make(map[string]string, len(finished.Answers))
	for k, v := range finished.Answers {
		p.Answers[k] = v
	}
	s.records[key] = p
	return copyParticipation(p), nil
}

func copyParticipation(p domain.Participation) domain.Participation {
	if p.Answers != nil {
		answers := make(map[string]string, len(p.Answers))
		for k, v := range p.Answers {
			answers[k] = v
		}
		p.Answers = answers
	}
	return p
}
