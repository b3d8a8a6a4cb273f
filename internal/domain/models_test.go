package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestFormatCountdown(t *testing.T) {
	cases := map[int]string{0: "0:00", 5: "0:05", 65: "1:05", 300: "5:00", -3: "0:00"}
	for in, want := range cases {
		if got := FormatCountdown(in); got != want {
			t.Fatalf("FormatCountdown(%d)=%q want %q", in, got, want)
		}
	}
}

func TestPublicStripsCorrectFlags(t *testing.T) {
	quiz := Quiz{ID: "quiz-1", Questions: []Question{{ID: "q1", Options: []Option{{ID: "o1", Correct: true}}}}}
	public := quiz.Public()
	if public.Questions[0].Options[0].Correct {
		t.Fatalf("expected correct flag stripped")
	}
	if !quiz.Questions[0].Options[0].Correct {
		t.Fatalf("original quiz must not be mutated")
	}
}

func TestStartFailureMessage(t *testing.T) {
	err := StartFailure(&ServerError{Status: 409, Message: "Quiz ya fue jugado"})
	if err.Error() != "Quiz ya fue jugado" {
		t.Fatalf("expected server message verbatim, got %q", err.Error())
	}

	err = StartFailure(fmt.Errorf("%w: %w", ErrNetwork, errors.New("dial tcp: refused")))
	if err.Error() != StartFailedMessage {
		t.Fatalf("expected generic message, got %q", err.Error())
	}
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected network error to stay in the chain")
	}
}
