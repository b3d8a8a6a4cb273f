package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"quizplay-service/internal/domain"
)

// DefaultTimeout matches the request budget of the web client.
const DefaultTimeout = 10 * time.Second

// RequestObserver receives one call per backend round trip (metrics).
type RequestObserver interface {
	ObserveBackendRequest(endpoint string, status int, elapsed time.Duration)
}

// Client talks to the quiz participation REST API.
type Client struct {
	baseURL  string
	token    string
	http     *http.Client
	logger   *zap.Logger
	observer RequestObserver
}

// ClientOption customises a Client.
type ClientOption func(*Client)

// WithToken sends the token as a bearer Authorization header.
func WithToken(token string) ClientOption {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

func WithClientLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

func WithRequestObserver(observer RequestObserver) ClientOption {
	return func(c *Client) { c.observer = observer }
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StartAttempt opens an attempt and returns its normalised question set.
func (c *Client) StartAttempt(ctx context.Context, quizID, participantID string) (domain.AttemptStarted, error) {
	var resp startResponse
	if err := c.do(ctx, http.MethodPost, "start", participationPath(quizID, participantID, "start"), nil, &resp); err != nil {
		return domain.AttemptStarted{}, err
	}
	started := resp.normalize()
	if started.QuizID == "" {
		started.QuizID = quizID
	}
	return started, nil
}

// FinishAttempt submits the answers map. Absent questions are unanswered.
func (c *Client) FinishAttempt(ctx context.Context, quizID, participantID string, answers map[string]string) error {
	if answers == nil {
		answers = map[string]string{}
	}
	body := finishRequest{Answers: answers}
	return c.do(ctx, http.MethodPost, "finish", participationPath(quizID, participantID, "finish"), body, nil)
}

// ParticipationStatus fetches the prior attempt record.
func (c *Client) ParticipationStatus(ctx context.Context, quizID, participantID string) (domain.Participation, error) {
	var resp statusResponse
	if err := c.do(ctx, http.MethodGet, "status", participationPath(quizID, participantID, ""), nil, &resp); err != nil {
		return domain.Participation{}, err
	}
	return domain.Participation{
		QuizID:        quizID,
		ParticipantID: participantID,
		StartedAt:     resp.StartedAt,
		FinishedAt:    resp.FinishedAt,
		Score:         resp.Score,
		MaxScore:      resp.MaxScore,
	}, nil
}

// SubmittedAnswers fetches the answers recorded at finish.
func (c *Client) SubmittedAnswers(ctx context.Context, quizID, participantID string) (map[string]string, error) {
	var resp answersResponse
	if err := c.do(ctx, http.MethodGet, "answers", participationPath(quizID, participantID, "answers"), nil, &resp); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(resp.Answers))
	for k, v := range resp.Answers {
		out[k] = string(v)
	}
	return out, nil
}

func participationPath(quizID, participantID, action string) string {
	path := "/quiz-participation/" + url.PathEscape(quizID) + "/participant/" + url.PathEscape(participantID)
	if action != "" {
		path += "/" + action
	}
	return path
}

func (c *Client) do(ctx context.Context, method, endpoint, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", endpoint, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	began := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(endpoint, 0, began)
		return fmt.Errorf("%w: %s %s: %w", domain.ErrNetwork, method, path, err)
	}
	defer resp.Body.Close()
	c.observe(endpoint, resp.StatusCode, began)

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read %s response: %w", domain.ErrNetwork, endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serverErr := &domain.ServerError{Status: resp.StatusCode, Message: errorMessage(payload)}
		c.logger.Debug("backend rejected request",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
			zap.String("message", serverErr.Message))
		return serverErr
	}

	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

func (c *Client) observe(endpoint string, status int, began time.Time) {
	if c.observer != nil {
		c.observer.ObserveBackendRequest(endpoint, status, time.Since(began))
	}
}

// errorMessage extracts "error", then "message" from an error body.
func errorMessage(payload []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}
	if body.Error != "" {
		return body.Error
	}
	return body.Message
}
