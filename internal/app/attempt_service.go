package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"quizplay-service/internal/domain"
)

// AttemptRegistry tracks which (quiz, participant) pairs have an attempt open.
// Extend renews a held slot and returns domain.ErrLeaseLost once it is gone.
type AttemptRegistry interface {
	Acquire(ctx context.Context, quizID, participantID string) (bool, error)
	Extend(ctx context.Context, quizID, participantID string) error
	Release(ctx context.Context, quizID, participantID string)
}

// ParticipationLookup reports what the backend knows about a prior attempt.
type ParticipationLookup interface {
	ParticipationStatus(ctx context.Context, quizID, participantID string) (domain.Participation, error)
	SubmittedAnswers(ctx context.Context, quizID, participantID string) (map[string]string, error)
}

// AttemptService opens attempts for the play gateway.
type AttemptService struct {
	registry AttemptRegistry
	backend  AttemptBackend
	lookup   ParticipationLookup
	logger   *zap.Logger
	observer AttemptObserver
	opts     []AttemptOption
	refresh  time.Duration
}

// NewAttemptService wires the gateway use cases. lookup may be nil, in which
// case the played check is skipped.
func NewAttemptService(registry AttemptRegistry, backend AttemptBackend, lookup ParticipationLookup, logger *zap.Logger, observer AttemptObserver, opts ...AttemptOption) *AttemptService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &AttemptService{
		registry: registry,
		backend:  backend,
		lookup:   lookup,
		logger:   logger,
		observer: observer,
		opts:     opts,
	}
}

// SetLeaseRefresh makes every open attempt renew its registry slot at the given
// interval until released. Zero disables renewal.
func (s *AttemptService) SetLeaseRefresh(every time.Duration) {
	s.refresh = every
}

// Open creates the attempt for a participant. The returned release function
// closes the attempt and frees the (quiz, participant) slot; it is safe to call
// more than once.
func (s *AttemptService) Open(ctx context.Context, quizID, participantID string) (*Attempt, func(), error) {
	if s.lookup != nil {
		status, err := s.lookup.ParticipationStatus(ctx, quizID, participantID)
		switch {
		case err == nil && status.Finished():
			return nil, nil, domain.ErrAlreadyPlayed
		case err != nil:
			// an unknown status is treated as not played
			s.logger.Debug("participation lookup failed",
				zap.String("quiz_id", quizID),
				zap.String("participant_id", participantID),
				zap.Error(err))
		}
	}

	ok, err := s.registry.Acquire(ctx, quizID, participantID)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, domain.ErrAttemptInFlight
	}
	s.observer.AttemptOpened()

	opts := append([]AttemptOption{WithLogger(s.logger), WithObserver(s.observer)}, s.opts...)
	attempt := NewAttempt(quizID, participantID, s.backend, opts...)

	stop := make(chan struct{})
	if s.refresh > 0 {
		go s.keepLease(quizID, participantID, stop)
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			close(stop)
			attempt.Close()
			s.registry.Release(context.Background(), quizID, participantID)
			s.observer.AttemptReleased()
		})
	}
	return attempt, release, nil
}

// SubmittedAnswers returns the answers the backend recorded for a finished
// attempt. Without a lookup it returns nil.
func (s *AttemptService) SubmittedAnswers(ctx context.Context, quizID, participantID string) (map[string]string, error) {
	if s.lookup == nil {
		return nil, nil
	}
	return s.lookup.SubmittedAnswers(ctx, quizID, participantID)
}

func (s *AttemptService) keepLease(quizID, participantID string, stop <-chan struct{}) {
	ticker := time.NewTicker(s.refresh)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			err := s.registry.Extend(context.Background(), quizID, participantID)
			if err == nil {
				continue
			}
			s.logger.Warn("extend attempt lease",
				zap.String("quiz_id", quizID),
				zap.String("participant_id", participantID),
				zap.Error(err))
			if errors.Is(err, domain.ErrLeaseLost) {
				return
			}
		}
	}
}
