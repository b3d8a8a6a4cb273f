package cli

import (
	"testing"

	"quizplay-service/internal/config"
)

func TestListenPortDefaultsPerCommand(t *testing.T) {
	var cfg config.Config
	play := listenPort("", cfg.PlayPort())
	backend := listenPort("", cfg.BackendPort())
	if play != "8080" || backend != "8081" {
		t.Fatalf("unexpected default ports play=%q backend=%q", play, backend)
	}
	if got := listenPort("9999", cfg.PlayPort()); got != "9999" {
		t.Fatalf("expected flag to win, got %q", got)
	}
}
