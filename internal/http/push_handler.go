package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/pilltime/internal/application"
	"github.com/example/pilltime/internal/push"
)

type subscriptionService interface {
	VAPIDPublicKey() (string, error)
	Subscribe(ctx context.Context, input application.SubscriptionInput) error
	Unsubscribe(ctx context.Context, endpoint string) error
	SendTest(ctx context.Context) (push.Result, error)
}

type PushHandler struct {
	service   subscriptionService
	responder responder
	logger    *slog.Logger
}

func NewPushHandler(service subscriptionService, logger *slog.Logger) *PushHandler {
	base := defaultLogger(logger)
	return &PushHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *PushHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "PushHandler", operation, attrs...)
}

func (h *PushHandler) VAPIDKey(w http.ResponseWriter, r *http.Request) {
	key, err := h.service.VAPIDPublicKey()
	if err != nil {
		h.log(r.Context(), "VAPIDKey").ErrorContext(r.Context(), "vapid key unavailable", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, vapidKeyResponse{PublicKey: key})
}

func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Subscribe", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode subscription", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Subscribe")

	var userAgent *string
	if ua := strings.TrimSpace(r.UserAgent()); ua != "" {
		userAgent = &ua
	}

	err := h.service.Subscribe(r.Context(), application.SubscriptionInput{
		Endpoint:  req.Endpoint,
		P256dh:    req.Keys.P256dh,
		Auth:      req.Keys.Auth,
		UserAgent: userAgent,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "subscription failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "subscription registered")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, statusResponse{Status: "subscribed"})
}

func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req unsubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Unsubscribe", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode unsubscribe request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Unsubscribe")

	if err := h.service.Unsubscribe(r.Context(), req.Endpoint); err != nil {
		logger.ErrorContext(r.Context(), "unsubscribe failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "subscription removed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, statusResponse{Status: "unsubscribed"})
}

func (h *PushHandler) SendTest(w http.ResponseWriter, r *http.Request) {
	logger := h.log(r.Context(), "SendTest")

	result, err := h.service.SendTest(r.Context())
	if err != nil {
		logger.ErrorContext(r.Context(), "test notification failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "test notification dispatched", "sent", result.Sent, "failed", result.Failed)
	h.responder.writeJSON(r.Context(), w, http.StatusOK, sendTestResponse{Sent: result.Sent, Failed: result.Failed})
}

type subscribeRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

type unsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

type vapidKeyResponse struct {
	PublicKey string `json:"public_key"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type sendTestResponse struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}
