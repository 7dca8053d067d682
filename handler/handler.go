package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"gift-concierge/internal/domain"
	"gift-concierge/internal/wizard"
)

const (
	correlationHeader = "X-Correlation-Id"
	maxBodyBytes      = 64 << 10
	analyticsLimit    = 100
	errorInternal     = "INTERNAL_ERROR"
)

type dialogStore interface {
	Create() (string, *wizard.Controller, error)
	Get(id string) (*wizard.Controller, error)
}

type analyticsReader interface {
	GetSessionAnalytics(ctx context.Context, sessionID string, limit int) (domain.SessionAnalytics, error)
}

type Option func(*Handler)

// WithAnalytics enables GET /analytics/{sessionId}.
func WithAnalytics(r analyticsReader) Option {
	return func(h *Handler) { h.analytics = r }
}

// WithMetrics mounts a metrics endpoint on the router.
func WithMetrics(m http.Handler) Option {
	return func(h *Handler) { h.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// Handler exposes the gift dialogs over API Gateway and plain HTTP.
type Handler struct {
	dialogs   dialogStore
	analytics analyticsReader
	metrics   http.Handler
	logger    *slog.Logger
}

type dialogResponse struct {
	DialogID string          `json:"dialogId"`
	State    wizard.Snapshot `json:"state"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

func NewHandler(dialogs dialogStore, opts ...Option) (*Handler, error) {
	if dialogs == nil {
		return nil, errors.New("handler: dialogs must not be nil")
	}
	h := &Handler{dialogs: dialogs, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Handle is the Lambda entry point for API Gateway proxy events.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := correlationIDFrom(req.Headers)
	logger := h.logger.With("correlationId", correlationID)

	var (
		status int
		body   any
		err    error
	)
	segments := splitPath(req.Path)
	switch {
	case req.HTTPMethod == http.MethodPost && matches(segments, "dialogs"):
		status, body, err = h.createDialog()
	case req.HTTPMethod == http.MethodGet && matches(segments, "dialogs", "*"):
		status, body, err = h.getDialog(segments[1])
	case req.HTTPMethod == http.MethodPost && matches(segments, "dialogs", "*", "events"):
		if len(req.Body) > maxBodyBytes {
			err = errBodyTooLarge()
			break
		}
		status, body, err = h.postEvent(ctx, segments[1], []byte(req.Body))
	case req.HTTPMethod == http.MethodGet && matches(segments, "analytics", "*"):
		status, body, err = h.getAnalytics(ctx, segments[1])
	case req.HTTPMethod == http.MethodGet && matches(segments, "healthz"):
		status, body = http.StatusOK, map[string]string{"status": "ok"}
	default:
		err = &wizard.Error{Code: wizard.ErrorNotFound, Reason: "route_not_found"}
	}
	if err != nil {
		status, body = h.errorBody(logger, err)
	}
	return jsonResponse(status, correlationID, body), nil
}

func (h *Handler) createDialog() (int, any, error) {
	id, ctrl, err := h.dialogs.Create()
	if err != nil {
		return 0, nil, err
	}
	return http.StatusCreated, dialogResponse{DialogID: id, State: ctrl.Snapshot()}, nil
}

func (h *Handler) getDialog(id string) (int, any, error) {
	ctrl, err := h.dialogs.Get(id)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, ctrl.Snapshot(), nil
}

func (h *Handler) postEvent(ctx context.Context, id string, raw []byte) (int, any, error) {
	var ev eventRequest
	if err := json.Unmarshal(raw, &ev); err != nil {
		return 0, nil, &wizard.Error{Code: wizard.ErrorInvalidInput, Reason: "invalid_json", Err: err}
	}
	ctrl, err := h.dialogs.Get(id)
	if err != nil {
		return 0, nil, err
	}
	if err := ev.apply(ctx, ctrl); err != nil {
		return 0, nil, err
	}
	return http.StatusOK, ctrl.Snapshot(), nil
}

func (h *Handler) getAnalytics(ctx context.Context, sessionID string) (int, any, error) {
	if h.analytics == nil {
		return 0, nil, &wizard.Error{Code: wizard.ErrorNotFound, Reason: "analytics_not_configured"}
	}
	out, err := h.analytics.GetSessionAnalytics(ctx, sessionID, analyticsLimit)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, out, nil
}

func (h *Handler) errorBody(logger *slog.Logger, err error) (int, errorResponse) {
	var wErr *wizard.Error
	if !errors.As(err, &wErr) {
		logger.Error("handler: unexpected error", "err", err)
		return http.StatusInternalServerError, errorResponse{Error: errorInternal, Reason: "internal_error"}
	}
	status := statusFor(wErr.Code)
	if status >= http.StatusInternalServerError {
		logger.Warn("handler: upstream failure", "code", wErr.Code, "reason", wErr.Reason, "err", wErr.Err)
	}
	return status, errorResponse{Error: string(wErr.Code), Reason: wErr.Reason}
}

func errBodyTooLarge() error {
	return &wizard.Error{Code: wizard.ErrorInvalidInput, Reason: "body_too_large"}
}

func statusFor(code wizard.ErrorCode) int {
	switch code {
	case wizard.ErrorInvalidInput, wizard.ErrorInvalidTransition:
		return http.StatusBadRequest
	case wizard.ErrorBusy:
		return http.StatusConflict
	case wizard.ErrorNotFound:
		return http.StatusNotFound
	case wizard.ErrorRateLimited:
		return http.StatusTooManyRequests
	case wizard.ErrorUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func jsonResponse(status int, correlationID string, body any) events.APIGatewayProxyResponse {
	b, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		b = []byte(`{"error":"INTERNAL_ERROR","reason":"encode_error"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: correlationID,
		},
		Body: string(b),
	}
}

// correlationIDFrom looks the header up case-insensitively; API Gateway does
// not normalise header names.
func correlationIDFrom(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, correlationHeader) && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return uuid.NewString()
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// matches reports whether segments fit pattern; "*" matches any non-empty
// segment.
func matches(segments []string, pattern ...string) bool {
	if len(segments) != len(pattern) {
		return false
	}
	for i, p := range pattern {
		if p == "*" {
			if segments[i] == "" {
				return false
			}
			continue
		}
		if segments[i] != p {
			return false
		}
	}
	return true
}
