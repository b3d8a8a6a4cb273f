package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"quizplay-service/internal/app"
	"quizplay-service/internal/domain"
	"quizplay-service/internal/infra/backend"
	"quizplay-service/internal/infra/memory"
)

func TestWebSocketAttemptFlow(t *testing.T) {
	client, gateway := newGateway(t, 60)

	conn := dial(t, gateway, "quiz-1", "u1")
	defer conn.Close()

	started := readUntil(t, conn, "started")
	var header domain.AttemptStarted
	if err := json.Unmarshal(started, &header); err != nil {
		t.Fatalf("decode started: %v", err)
	}
	if header.TimeLimit != 60 || len(header.Questions) != 2 {
		t.Fatalf("unexpected started payload %+v", header)
	}

	send(t, conn, "answer", map[string]string{"questionId": "q1", "optionId": "o2"})
	send(t, conn, "advance", nil)
	send(t, conn, "answer", map[string]string{"questionId": "q2", "optionId": "o5"})
	send(t, conn, "finish", nil)

	var finished finishedPayload
	if err := json.Unmarshal(readUntil(t, conn, "finished"), &finished); err != nil {
		t.Fatalf("decode finished: %v", err)
	}
	if finished.Trigger != domain.TriggerManual || finished.Answered != 2 || finished.Error != "" {
		t.Fatalf("unexpected finished payload %+v", finished)
	}
	if finished.Recorded["q1"] != "o2" || finished.Recorded["q2"] != "o5" {
		t.Fatalf("expected recorded answers from the backend, got %v", finished.Recorded)
	}

	status, err := client.ParticipationStatus(context.Background(), "quiz-1", "u1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !status.Finished() || status.Score != 1 {
		t.Fatalf("expected finished with score 1, got %+v", status)
	}

	// a finished quiz cannot be opened again
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(gateway, "quiz-1", "u1"), nil)
	if !errors.Is(err, websocket.ErrBadHandshake) || resp == nil || resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected conflict on replay, got err=%v", err)
	}
}

func TestWebSocketStartFailure(t *testing.T) {
	_, gateway := newGateway(t, 60)

	conn := dial(t, gateway, "missing", "u1")
	defer conn.Close()

	var payload errorPayload
	if err := json.Unmarshal(readUntil(t, conn, "error"), &payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if payload.Message != "quiz not found" {
		t.Fatalf("expected backend message verbatim, got %q", payload.Message)
	}
}

func TestWebSocketTimeoutSubmits(t *testing.T) {
	client, gateway := newGateway(t, 2)

	conn := dial(t, gateway, "quiz-1", "u2")
	defer conn.Close()
	readUntil(t, conn, "started")
	send(t, conn, "answer", map[string]string{"questionId": "q1", "optionId": "o2"})

	var finished finishedPayload
	if err := json.Unmarshal(readUntil(t, conn, "finished"), &finished); err != nil {
		t.Fatalf("decode finished: %v", err)
	}
	if finished.Trigger != domain.TriggerTimeout {
		t.Fatalf("expected timeout trigger, got %q", finished.Trigger)
	}

	send(t, conn, "answer", map[string]string{"questionId": "q2", "optionId": "o4"})
	var payload errorPayload
	if err := json.Unmarshal(readUntil(t, conn, "error"), &payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if payload.Message != "attempt is not in progress" {
		t.Fatalf("unexpected error %q", payload.Message)
	}

	answers, err := client.SubmittedAnswers(context.Background(), "quiz-1", "u2")
	if err != nil {
		t.Fatalf("answers: %v", err)
	}
	if len(answers) != 1 || answers["q1"] != "o2" {
		t.Fatalf("unexpected submitted answers %v", answers)
	}
}

func TestWebSocketRejectsSecondConnection(t *testing.T) {
	_, gateway := newGateway(t, 60)

	conn := dial(t, gateway, "quiz-1", "u3")
	defer conn.Close()
	readUntil(t, conn, "started")

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(gateway, "quiz-1", "u3"), nil)
	if err == nil || resp == nil || resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected in-flight conflict, got err=%v", err)
	}
}

func TestWebSocketMissingParams(t *testing.T) {
	_, gateway := newGateway(t, 60)
	resp, err := http.Get(gateway.URL + "/ws?quizId=quiz-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func newGateway(t *testing.T, timeLimit int) (*backend.Client, *httptest.Server) {
	t.Helper()
	quizzes := memory.NewQuizRepository(memory.NewStaticQuizLoader(sampleQuiz(timeLimit)), time.Minute)
	participations := app.NewParticipationService(memory.NewParticipationStore(), quizzes)
	r := chi.NewRouter()
	NewRESTHandler(participations, nil).Register(r)
	backendServer := httptest.NewServer(r)
	t.Cleanup(backendServer.Close)

	client := backend.NewClient(backendServer.URL)
	service := app.NewAttemptService(memory.NewAttemptRegistry(), client, client, nil, nil)
	wsHandler := NewWSHandler(service, WithInboundRate(100, 100))

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	gateway := httptest.NewServer(mux)
	t.Cleanup(gateway.Close)
	return client, gateway
}

func wsURL(server *httptest.Server, quizID, participantID string) string {
	return "ws" + server.URL[len("http"):] + "/ws?quizId=" + quizID + "&participantId=" + participantID
}

func dial(t *testing.T, server *httptest.Server, quizID, participantID string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server, quizID, participantID), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	msg := map[string]any{"type": typ}
	if payload != nil {
		msg["payload"] = payload
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

// readUntil skips messages until one of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, want string) json.RawMessage {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		var msg struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		_ = conn.SetReadDeadline(deadline)
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %s: %v", want, err)
		}
		if msg.Type == want {
			return msg.Payload
		}
	}
}
