package memory

import (
	"context"
	"sync"

	"quizplay-service/internal/domain"
)

// AttemptRegistry is an in-memory implementation of app.AttemptRegistry for a
// single gateway instance.
type AttemptRegistry struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func NewAttemptRegistry() *AttemptRegistry {
	return &AttemptRegistry{active: make(map[string]struct{})}
}

func (r *AttemptRegistry) Acquire(_ context.Context, quizID, participantID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := attemptKey(quizID, participantID)
	if _, ok := r.active[key]; ok {
		return false, nil
	}
	r.active[key] = struct{}{}
	return true, nil
}

// Extend keeps a held slot; in-process slots never expire.
func (r *AttemptRegistry) Extend(_ context.Context, quizID, participantID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.active[attemptKey(quizID, participantID)]; !ok {
		return domain.ErrLeaseLost
	}
	return nil
}

func (r *AttemptRegistry) Release(_ context.Context, quizID, participantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, attemptKey(quizID, participantID))
}

// Active reports whether an attempt is open for the pair.
func (r *AttemptRegistry) Active(quizID, participantID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[attemptKey(quizID, participantID)]
	return ok
}

func attemptKey(quizID, participantID string) string {
	return quizID + "\x00" + participantID
}
