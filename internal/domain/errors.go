package domain

import (
	"errors"
	"net/http"
)

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuestionNotFound indicates a submitted question ID is invalid.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrOptionNotFound indicates a submitted option ID is invalid.
	ErrOptionNotFound = errors.New("option not found")

	// ErrAlreadyStarted is returned by every start call after the first one.
	// It is never shown to the player.
	ErrAlreadyStarted = errors.New("attempt already started")
	// ErrInvalidTransition means an operation was invoked outside its allowed state.
	ErrInvalidTransition = errors.New("invalid attempt transition")
	// ErrAttemptClosed is returned once the hosting view has torn the attempt down.
	ErrAttemptClosed = errors.New("attempt closed")
	// ErrAttemptInFlight means another attempt for the same quiz and participant is open.
	ErrAttemptInFlight = errors.New("attempt already in flight")
	// ErrLeaseLost means the attempt slot is no longer held by this instance.
	ErrLeaseLost = errors.New("attempt lease lost")
	// ErrAlreadyPlayed means the participant already finished this quiz.
	ErrAlreadyPlayed = errors.New("quiz already played")

	// ErrNetwork wraps transport and timeout failures talking to the backend.
	ErrNetwork = errors.New("backend unreachable")

	// ErrParticipationNotFound is returned when no start was recorded.
	ErrParticipationNotFound = errors.New("participation not found")
)

// StartFailedMessage is shown when the backend gives no reason for a failed start.
const StartFailedMessage = "could not start the quiz"

// ServerError is a non-2xx backend answer carrying its structured message.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return http.StatusText(e.Status)
}

// StartError is a failed start. Its Error text is the user-facing message.
type StartError struct {
	Message string
	Err     error
}

func (e *StartError) Error() string { return e.Message }

func (e *StartError) Unwrap() error { return e.Err }

// StartFailure builds the user-facing error for a failed start: the server's
// message verbatim when it sent one, the generic message otherwise.
func StartFailure(err error) *StartError {
	msg := StartFailedMessage
	var serverErr *ServerError
	if errors.As(err, &serverErr) && serverErr.Message != "" {
		msg = serverErr.Message
	}
	return &StartError{Message: msg, Err: err}
}
