package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"quizplay-service/internal/domain"
)

// AttemptBackend is the quiz backend as seen by a single attempt.
type AttemptBackend interface {
	StartAttempt(ctx context.Context, quizID, participantID string) (domain.AttemptStarted, error)
	FinishAttempt(ctx context.Context, quizID, participantID string, answers map[string]string) error
}

// AttemptObserver receives lifecycle events (metrics).
type AttemptObserver interface {
	AttemptOpened()
	AttemptReleased()
	AttemptStarted()
	AttemptStartFailed()
	AttemptFinished(trigger domain.FinishTrigger, err error)
}

type nopObserver struct{}

func (nopObserver) AttemptOpened()                               {}
func (nopObserver) AttemptReleased()                             {}
func (nopObserver) AttemptStarted()                              {}
func (nopObserver) AttemptStartFailed()                          {}
func (nopObserver) AttemptFinished(domain.FinishTrigger, error) {}

// Ticker is the one-second clock driving the countdown.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

func newTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// AttemptOption customises an Attempt.
type AttemptOption func(*Attempt)

// WithLogger sets the attempt logger.
func WithLogger(logger *zap.Logger) AttemptOption {
	return func(a *Attempt) { a.logger = logger }
}

// WithObserver sets the attempt lifecycle observer.
func WithObserver(observer AttemptObserver) AttemptOption {
	return func(a *Attempt) { a.observer = observer }
}

// WithDefaultTimeLimit overrides the limit used when the backend sends none.
func WithDefaultTimeLimit(seconds int) AttemptOption {
	return func(a *Attempt) {
		if seconds > 0 {
			a.defaultLimit = seconds
		}
	}
}

// WithTicker replaces the wall-clock ticker used by Run (tests).
func WithTicker(newTicker func(time.Duration) Ticker) AttemptOption {
	return func(a *Attempt) { a.newTicker = newTicker }
}

type startPhase int

const (
	startIdle startPhase = iota
	startPending
	startDone
	startFailed
)

// Attempt is one participant's timed pass through one quiz.
//
// The start latch and the status field are the only guards: the first Start
// call claims the latch before any network traffic, and Finish moves the
// status to Submitting before the backend call so that a manual submit and
// the timeout cannot both submit.
type Attempt struct {
	quizID        string
	participantID string
	backend       AttemptBackend
	logger        *zap.Logger
	observer      AttemptObserver
	defaultLimit  int
	newTicker     func(time.Duration) Ticker

	mu           sync.Mutex
	phase        startPhase
	status       domain.AttemptStatus
	title        string
	questions    []domain.Question
	current      int
	answers      map[string]string
	remaining    int
	startMessage string
	trigger      domain.FinishTrigger
	finishErr    error
	closed       bool
	done         chan struct{}
	doneClosed   bool
	subscribers  map[chan domain.AttemptSnapshot]struct{}
}

// NewAttempt creates an attempt in NotStarted state.
func NewAttempt(quizID, participantID string, backend AttemptBackend, opts ...AttemptOption) *Attempt {
	a := &Attempt{
		quizID:        quizID,
		participantID: participantID,
		backend:       backend,
		logger:        zap.NewNop(),
		observer:      nopObserver{},
		defaultLimit:  domain.DefaultTimeLimit,
		newTicker:     newTimeTicker,
		answers:       make(map[string]string),
		done:          make(chan struct{}),
		subscribers:   make(map[chan domain.AttemptSnapshot]struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With(zap.String("quiz_id", quizID), zap.String("participant_id", participantID))
	return a
}

// Start asks the backend to open the attempt. Only the first call reaches the
// backend; every later call returns ErrAlreadyStarted.
func (a *Attempt) Start(ctx context.Context) (domain.AttemptStarted, error) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return domain.AttemptStarted{}, domain.ErrAttemptClosed
	}
	if a.phase != startIdle {
		a.mu.Unlock()
		return domain.AttemptStarted{}, domain.ErrAlreadyStarted
	}
	a.phase = startPending
	a.mu.Unlock()

	started, err := a.backend.StartAttempt(ctx, a.quizID, a.participantID)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return domain.AttemptStarted{}, domain.ErrAttemptClosed
	}
	if err != nil {
		failure := domain.StartFailure(err)
		a.phase = startFailed
		a.startMessage = failure.Message
		a.logger.Warn("attempt start failed", zap.Error(err))
		a.observer.AttemptStartFailed()
		a.broadcastLocked()
		return domain.AttemptStarted{}, failure
	}

	a.phase = startDone
	a.title = started.Title
	a.questions = domain.CloneQuestions(started.Questions)
	a.remaining = started.TimeLimit
	if a.remaining <= 0 {
		a.remaining = a.defaultLimit
	}
	a.status = domain.StatusInProgress
	a.logger.Info("attempt started",
		zap.Int("questions", len(a.questions)),
		zap.Int("time_limit", a.remaining))
	a.observer.AttemptStarted()
	a.broadcastLocked()

	return domain.AttemptStarted{
		QuizID:    a.quizID,
		Title:     a.title,
		TimeLimit: a.remaining,
		Questions: domain.CloneQuestions(a.questions),
	}, nil
}

// SelectAnswer records the option chosen for a question. Later selections for
// the same question replace earlier ones.
func (a *Attempt) SelectAnswer(questionID, optionID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.requireInProgressLocked(); err != nil {
		return err
	}

	question := a.findQuestionLocked(questionID)
	if question == nil {
		return domain.ErrQuestionNotFound
	}
	found := false
	for _, opt := range question.Options {
		if opt.ID == optionID {
			found = true
			break
		}
	}
	if !found {
		return domain.ErrOptionNotFound
	}

	a.answers[questionID] = optionID
	a.broadcastLocked()
	return nil
}

// Advance moves to the next question. At the last question it does nothing.
func (a *Attempt) Advance() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.requireInProgressLocked(); err != nil {
		return err
	}
	if a.current >= len(a.questions)-1 {
		return nil
	}
	a.current++
	a.broadcastLocked()
	return nil
}

// Tick consumes one second of the time budget. Reaching zero submits the
// attempt exactly as a manual Finish would.
func (a *Attempt) Tick(ctx context.Context) {
	a.mu.Lock()
	if a.closed || a.status != domain.StatusInProgress {
		a.mu.Unlock()
		return
	}
	if a.remaining > 0 {
		a.remaining--
	}
	expired := a.remaining == 0
	a.broadcastLocked()
	a.mu.Unlock()

	if expired {
		_, _ = a.finish(ctx, domain.TriggerTimeout)
	}
}

// Finish submits the accumulated answers. It reports whether this call
// performed the submission; calls made while another submission is under way
// or after it completed are no-ops.
//
// A failed submission still ends the attempt as Finished and is returned to
// the caller (and logged); there is no retry path.
func (a *Attempt) Finish(ctx context.Context) (bool, error) {
	return a.finish(ctx, domain.TriggerManual)
}

func (a *Attempt) finish(ctx context.Context, trigger domain.FinishTrigger) (bool, error) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return false, domain.ErrAttemptClosed
	}
	switch a.status {
	case domain.StatusNotStarted:
		a.mu.Unlock()
		return false, domain.ErrInvalidTransition
	case domain.StatusSubmitting, domain.StatusFinished:
		a.mu.Unlock()
		return false, nil
	}
	a.status = domain.StatusSubmitting
	a.trigger = trigger
	answers := make(map[string]string, len(a.answers))
	for k, v := range a.answers {
		answers[k] = v
	}
	a.broadcastLocked()
	a.mu.Unlock()

	err := a.backend.FinishAttempt(ctx, a.quizID, a.participantID, answers)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		// torn down mid-flight; the result is dropped but still counted
		a.logger.Info("attempt finished after teardown",
			zap.String("trigger", string(trigger)),
			zap.Error(err))
		a.observer.AttemptFinished(trigger, domain.ErrAttemptClosed)
		return true, err
	}
	a.status = domain.StatusFinished
	a.finishErr = err
	if err != nil {
		a.logger.Warn("attempt finish failed",
			zap.String("trigger", string(trigger)),
			zap.Int("answered", len(answers)),
			zap.Error(err))
	} else {
		a.logger.Info("attempt finished",
			zap.String("trigger", string(trigger)),
			zap.Int("answered", len(answers)))
	}
	a.observer.AttemptFinished(trigger, err)
	a.broadcastLocked()
	a.closeDoneLocked()
	return true, err
}

// Run drives Tick once per second until the attempt leaves InProgress, the
// attempt is closed or ctx is cancelled.
func (a *Attempt) Run(ctx context.Context) {
	ticker := a.newTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.done:
			return
		case <-ticker.C():
			a.Tick(ctx)
		}
	}
}

// Close tears the attempt down: the driver stops, subscribers are released and
// any backend result still in flight is ignored.
func (a *Attempt) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.closed = true
	for ch := range a.subscribers {
		delete(a.subscribers, ch)
		close(ch)
	}
	a.closeDoneLocked()
}

// Done is closed once the attempt is finished or closed.
func (a *Attempt) Done() <-chan struct{} {
	return a.done
}

// Subscribe returns a channel of snapshots, starting with the current one.
// The caller must invoke the returned cancel function to avoid leaks.
func (a *Attempt) Subscribe() (<-chan domain.AttemptSnapshot, func()) {
	ch := make(chan domain.AttemptSnapshot, 8)

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	a.subscribers[ch] = struct{}{}
	ch <- a.snapshotLocked()
	a.mu.Unlock()

	cancel := func() {
		a.mu.Lock()
		if _, ok := a.subscribers[ch]; ok {
			delete(a.subscribers, ch)
			close(ch)
		}
		a.mu.Unlock()
	}
	return ch, cancel
}

// Snapshot returns the current view of the attempt.
func (a *Attempt) Snapshot() domain.AttemptSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

func (a *Attempt) Status() domain.AttemptStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

func (a *Attempt) CurrentIndex() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

func (a *Attempt) RemainingSeconds() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.remaining
}

// Answers returns a copy of the selections made so far.
func (a *Attempt) Answers() map[string]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]string, len(a.answers))
	for k, v := range a.answers {
		out[k] = v
	}
	return out
}

// StartMessage is the user-facing reason of a failed start, empty otherwise.
func (a *Attempt) StartMessage() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.startMessage
}

// FinishErr is the error of the submission, if it failed.
func (a *Attempt) FinishErr() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.finishErr
}

func (a *Attempt) requireInProgressLocked() error {
	if a.closed {
		return domain.ErrAttemptClosed
	}
	if a.status != domain.StatusInProgress {
		return domain.ErrInvalidTransition
	}
	return nil
}

func (a *Attempt) findQuestionLocked(questionID string) *domain.Question {
	for i := range a.questions {
		if a.questions[i].ID == questionID {
			return &a.questions[i]
		}
	}
	return nil
}

func (a *Attempt) closeDoneLocked() {
	if !a.doneClosed {
		a.doneClosed = true
		close(a.done)
	}
}

func (a *Attempt) broadcastLocked() {
	snap := a.snapshotLocked()
	for ch := range a.subscribers {
		select {
		case ch <- snap:
		default:
			// drop the stale snapshot so the latest one always lands
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func (a *Attempt) snapshotLocked() domain.AttemptSnapshot {
	snap := domain.AttemptSnapshot{
		QuizID:           a.quizID,
		ParticipantID:    a.participantID,
		Status:           a.status,
		CurrentIndex:     a.current,
		TotalQuestions:   len(a.questions),
		RemainingSeconds: a.remaining,
		Countdown:        domain.FormatCountdown(a.remaining),
		Answered:         len(a.answers),
		Trigger:          a.trigger,
		Message:          a.startMessage,
	}
	if a.current < len(a.questions) {
		q := domain.CloneQuestions(a.questions[a.current : a.current+1])[0]
		for i := range q.Options {
			q.Options[i].Correct = false
		}
		snap.Question = &q
		snap.Selected = a.answers[q.ID]
	}
	return snap
}
