package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"quizplay-service/internal/domain"
)

func TestAttemptRegistrySetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	registry := NewAttemptRegistry(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute, nil)

	ok, err := registry.Acquire(ctx, "quiz-1", "p1")
	if err != nil || !ok {
		t.Fatalf("expected acquire, ok=%v err=%v", ok, err)
	}
	if !mr.Exists("quiz:attempt:quiz-1:p1") {
		t.Fatalf("expected redis key to be set")
	}
	if ok, _ := registry.Acquire(ctx, "quiz-1", "p1"); ok {
		t.Fatalf("expected second acquire to fail while leased")
	}

	registry.Release(ctx, "quiz-1", "p1")
	if mr.Exists("quiz:attempt:quiz-1:p1") {
		t.Fatalf("expected redis key to be removed")
	}
}

func TestAttemptRegistryLeaseExpires(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	registry := NewAttemptRegistry(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute, nil)

	if ok, _ := registry.Acquire(ctx, "quiz-1", "p1"); !ok {
		t.Fatalf("expected acquire")
	}
	mr.FastForward(2 * time.Minute)
	if ok, _ := registry.Acquire(ctx, "quiz-1", "p1"); !ok {
		t.Fatalf("expected acquire after lease expiry")
	}
}

func TestAttemptRegistryExtendKeepsLeaseAlive(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	first := NewAttemptRegistry(client, time.Minute, nil)
	second := NewAttemptRegistry(client, time.Minute, nil)

	if ok, _ := first.Acquire(ctx, "quiz-1", "p1"); !ok {
		t.Fatalf("expected acquire")
	}
	for i := 0; i < 3; i++ {
		mr.FastForward(45 * time.Second)
		if err := first.Extend(ctx, "quiz-1", "p1"); err != nil {
			t.Fatalf("extend %d: %v", i, err)
		}
	}
	if ok, _ := second.Acquire(ctx, "quiz-1", "p1"); ok {
		t.Fatalf("expected extended lease to block another instance")
	}
	if err := second.Extend(ctx, "quiz-1", "p1"); !errors.Is(err, domain.ErrLeaseLost) {
		t.Fatalf("expected non-owner extend to fail, got %v", err)
	}
}

func TestAttemptRegistryReleaseLeavesForeignLease(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	first := NewAttemptRegistry(client, time.Minute, nil)
	second := NewAttemptRegistry(client, time.Minute, nil)

	if ok, _ := first.Acquire(ctx, "quiz-1", "p1"); !ok {
		t.Fatalf("expected first acquire")
	}
	mr.FastForward(2 * time.Minute)
	if ok, _ := second.Acquire(ctx, "quiz-1", "p1"); !ok {
		t.Fatalf("expected second instance to take the expired lease")
	}

	if err := first.Extend(ctx, "quiz-1", "p1"); !errors.Is(err, domain.ErrLeaseLost) {
		t.Fatalf("expected lost lease, got %v", err)
	}
	first.Release(ctx, "quiz-1", "p1")
	if !mr.Exists("quiz:attempt:quiz-1:p1") {
		t.Fatalf("stale release removed the other instance's lease")
	}

	second.Release(ctx, "quiz-1", "p1")
	if mr.Exists("quiz:attempt:quiz-1:p1") {
		t.Fatalf("expected owner release to remove the lease")
	}
}
