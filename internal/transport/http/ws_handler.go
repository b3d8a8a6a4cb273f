package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"quizplay-service/internal/app"
	"quizplay-service/internal/domain"
)

// WSHandler hosts one quiz attempt per WebSocket connection. The connection is
// the attempt's view: closing it tears the attempt down.
type WSHandler struct {
	service  *app.AttemptService
	upgrader websocket.Upgrader
	logger   *zap.Logger
	limit    rate.Limit
	burst    int
}

// WSOption customises a WSHandler.
type WSOption func(*WSHandler)

// WithInboundRate throttles client messages per connection.
func WithInboundRate(perSecond float64, burst int) WSOption {
	return func(h *WSHandler) {
		if perSecond > 0 {
			h.limit = rate.Limit(perSecond)
		}
		if burst > 0 {
			h.burst = burst
		}
	}
}

func WithWSLogger(logger *zap.Logger) WSOption {
	return func(h *WSHandler) { h.logger = logger }
}

func NewWSHandler(service *app.AttemptService, opts ...WSOption) *WSHandler {
	h := &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: zap.NewNop(),
		limit:  rate.Limit(10),
		burst:  20,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionID string `json:"questionId"`
	OptionID   string `json:"optionId"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// finishedPayload carries the answers the backend recorded when the submit
// went through.
type finishedPayload struct {
	Trigger  domain.FinishTrigger `json:"trigger"`
	Answered int                  `json:"answered"`
	Recorded map[string]string    `json:"recorded,omitempty"`
	Error    string               `json:"error,omitempty"`
}

// ServeWS upgrades the request, starts the attempt and relays player actions.
//
// Client messages: answer {questionId, optionId}, advance, finish.
// Server messages: started, state (every snapshot), finished, error.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	participantID := r.URL.Query().Get("participantId")
	if quizID == "" || participantID == "" {
		http.Error(w, "missing quizId or participantId", http.StatusBadRequest)
		return
	}

	attempt, release, err := h.service.Open(r.Context(), quizID, participantID)
	switch {
	case errors.Is(err, domain.ErrAlreadyPlayed), errors.Is(err, domain.ErrAttemptInFlight):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		h.logger.Error("open attempt", zap.Error(err))
		http.Error(w, "could not open attempt", http.StatusServiceUnavailable)
		return
	}
	defer release()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	updates, unsubscribe := attempt.Subscribe()
	defer unsubscribe()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// single writer: gorilla connections do not support concurrent writes
	go func() {
		defer close(writerDone)
		broken := false
		for msg := range send {
			if broken {
				// keep draining so producers never block on a dead connection
				continue
			}
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("ws write error", zap.Error(err))
				broken = true
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		finishedSent := false
		for {
			select {
			case snap, ok := <-updates:
				if !ok {
					return
				}
				msgs := []outboundMessage[any]{{Type: "state", Payload: snap}}
				if snap.Status == domain.StatusFinished && !finishedSent {
					finishedSent = true
					payload := finishedPayload{Trigger: snap.Trigger, Answered: snap.Answered}
					if err := attempt.FinishErr(); err != nil {
						payload.Error = err.Error()
					} else {
						payload.Recorded = h.recordedAnswers(ctx, quizID, participantID)
					}
					msgs = append(msgs, outboundMessage[any]{Type: "finished", Payload: payload})
				}
				for _, msg := range msgs {
					select {
					case send <- msg:
					case <-closeSignals:
						return
					}
				}
			case <-closeSignals:
				return
			}
		}
	}()

	go attempt.Run(ctx)

	started, err := attempt.Start(ctx)
	if err != nil {
		message := domain.StartFailedMessage
		var startErr *domain.StartError
		if errors.As(err, &startErr) {
			message = startErr.Message
		}
		h.sendOrDrop(send, closeSignals, outboundMessage[any]{Type: "error", Payload: errorPayload{Message: message}})
	} else {
		h.sendOrDrop(send, closeSignals, outboundMessage[any]{Type: "started", Payload: started})
		h.readLoop(ctx, conn, attempt, send, closeSignals)
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, attempt *app.Attempt, send chan<- outboundMessage[any], closeSignals <-chan struct{}) {
	limiter := rate.NewLimiter(h.limit, h.burst)
	reply := func(msg string) {
		h.sendOrDrop(send, closeSignals, outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}})
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}
		if !limiter.Allow() {
			reply("too many messages")
			continue
		}

		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				reply("invalid answer payload")
				continue
			}
			if err := attempt.SelectAnswer(payload.QuestionID, payload.OptionID); err != nil {
				reply(actionError(err))
			}
		case "advance":
			if err := attempt.Advance(); err != nil {
				reply(actionError(err))
			}
		case "finish":
			if _, err := attempt.Finish(ctx); errors.Is(err, domain.ErrInvalidTransition) {
				reply(actionError(err))
			}
		default:
			reply("unsupported message type")
		}
	}
}

func (h *WSHandler) recordedAnswers(ctx context.Context, quizID, participantID string) map[string]string {
	answers, err := h.service.SubmittedAnswers(ctx, quizID, participantID)
	if err != nil {
		h.logger.Debug("recorded answers lookup failed",
			zap.String("quiz_id", quizID),
			zap.String("participant_id", participantID),
			zap.Error(err))
		return nil
	}
	return answers
}

func (h *WSHandler) sendOrDrop(send chan<- outboundMessage[any], closeSignals <-chan struct{}, msg outboundMessage[any]) {
	select {
	case send <- msg:
	case <-closeSignals:
	}
}

func actionError(err error) string {
	if errors.Is(err, domain.ErrInvalidTransition) {
		return "attempt is not in progress"
	}
	return err.Error()
}
