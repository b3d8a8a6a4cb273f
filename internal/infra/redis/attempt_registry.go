package redis

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"quizplay-service/internal/domain"
)

// Lease scripts only touch the key while it still carries this instance's token.
var (
	extendLease = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
	releaseLease = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
)

// AttemptRegistry leases (quiz, participant) pairs in Redis so that only one
// gateway instance hosts a given attempt at a time. A lease expires after ttl
// unless extended, which recovers slots from instances that died without
// releasing.
type AttemptRegistry struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger

	mu     sync.Mutex
	tokens map[string]string
}

func NewAttemptRegistry(client *redis.Client, ttl time.Duration, logger *zap.Logger) *AttemptRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttemptRegistry{client: client, ttl: ttl, logger: logger, tokens: make(map[string]string)}
}

func (r *AttemptRegistry) Acquire(ctx context.Context, quizID, participantID string) (bool, error) {
	key := r.key(quizID, participantID)
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
	if err != nil || !ok {
		return false, err
	}
	r.mu.Lock()
	r.tokens[key] = token
	r.mu.Unlock()
	return true, nil
}

// Extend pushes the lease expiry ttl into the future. It returns
// domain.ErrLeaseLost when the lease expired or another instance owns it.
func (r *AttemptRegistry) Extend(ctx context.Context, quizID, participantID string) error {
	key := r.key(quizID, participantID)
	token, ok := r.token(key)
	if !ok {
		return domain.ErrLeaseLost
	}
	n, err := extendLease.Run(ctx, r.client, []string{key}, token, r.ttl.Milliseconds()).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrLeaseLost
	}
	return nil
}

func (r *AttemptRegistry) Release(ctx context.Context, quizID, participantID string) {
	key := r.key(quizID, participantID)
	token, ok := r.token(key)
	if !ok {
		return
	}
	r.mu.Lock()
	delete(r.tokens, key)
	r.mu.Unlock()

	if err := releaseLease.Run(ctx, r.client, []string{key}, token).Err(); err != nil {
		r.logger.Warn("release attempt lease",
			zap.String("quiz_id", quizID),
			zap.String("participant_id", participantID),
			zap.Error(err))
	}
}

func (r *AttemptRegistry) token(key string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.tokens[key]
	return token, ok
}

func (r *AttemptRegistry) key(quizID, participantID string) string {
	return "quiz:attempt:" + quizID + ":" + participantID
}
