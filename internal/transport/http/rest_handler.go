package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"quizplay-service/internal/app"
	"quizplay-service/internal/domain"
)

// RESTHandler serves the quiz participation API of the reference backend.
type RESTHandler struct {
	service *app.ParticipationService
	logger  *zap.Logger
}

func NewRESTHandler(service *app.ParticipationService, logger *zap.Logger) *RESTHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RESTHandler{service: service, logger: logger}
}

// Register mounts the participation routes on r.
func (h *RESTHandler) Register(r chi.Router) {
	r.Route("/quiz-participation/{quizID}/participant/{participantID}", func(r chi.Router) {
		r.Get("/", h.handleStatus)
		r.Post("/start", h.handleStart)
		r.Post("/finish", h.handleFinish)
		r.Get("/answers", h.handleAnswers)
	})
}

type startResponse struct {
	Quiz domain.Quiz `json:"quiz"`
}

type finishRequest struct {
	Answers map[string]string `json:"answers"`
}

type finishResponse struct {
	Score      int    `json:"score"`
	MaxScore   int    `json:"max_score"`
	FinishedAt string `json:"finished_at"`
}

type answersResponse struct {
	Answers map[string]string `json:"answers"`
}

func (h *RESTHandler) handleStart(w http.ResponseWriter, r *http.Request) {
	quizID, participantID := chi.URLParam(r, "quizID"), chi.URLParam(r, "participantID")
	quiz, err := h.service.Start(r.Context(), quizID, participantID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, startResponse{Quiz: quiz})
}

func (h *RESTHandler) handleFinish(w http.ResponseWriter, r *http.Request) {
	quizID, participantID := chi.URLParam(r, "quizID"), chi.URLParam(r, "participantID")
	var req finishRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p, err := h.service.Finish(r.Context(), quizID, participantID, req.Answers)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	resp := finishResponse{Score: p.Score, MaxScore: p.MaxScore}
	if p.FinishedAt != nil {
		resp.FinishedAt = p.FinishedAt.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *RESTHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	quizID, participantID := chi.URLParam(r, "quizID"), chi.URLParam(r, "participantID")
	p, err := h.service.Status(r.Context(), quizID, participantID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *RESTHandler) handleAnswers(w http.ResponseWriter, r *http.Request) {
	quizID, participantID := chi.URLParam(r, "quizID"), chi.URLParam(r, "participantID")
	answers, err := h.service.Answers(r.Context(), quizID, participantID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answersResponse{Answers: answers})
}

func (h *RESTHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrQuizNotFound), errors.Is(err, domain.ErrParticipationNotFound):
		writeError(w, http.StatusNotFound, rootMessage(err))
	case errors.Is(err, domain.ErrAlreadyPlayed):
		writeError(w, http.StatusConflict, domain.ErrAlreadyPlayed.Error())
	case errors.Is(err, domain.ErrQuestionNotFound), errors.Is(err, domain.ErrOptionNotFound):
		writeError(w, http.StatusBadRequest, rootMessage(err))
	default:
		h.logger.Error("participation request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func rootMessage(err error) string {
	for _, sentinel := range []error{
		domain.ErrQuizNotFound, domain.ErrParticipationNotFound,
		domain.ErrQuestionNotFound, domain.ErrOptionNotFound,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
