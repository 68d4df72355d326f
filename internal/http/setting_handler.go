package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/pilltime/internal/application"
	"github.com/example/pilltime/internal/persistence"
)

type settingService interface {
	ListSettings(ctx context.Context) ([]persistence.Setting, error)
	GetSetting(ctx context.Context, key string) (persistence.Setting, error)
	UpsertSetting(ctx context.Context, key, value string) error
	DeleteSetting(ctx context.Context, key string) error
}

type SettingHandler struct {
	service   settingService
	responder responder
	logger    *slog.Logger
}

func NewSettingHandler(service settingService, logger *slog.Logger) *SettingHandler {
	base := defaultLogger(logger)
	return &SettingHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *SettingHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "SettingHandler", operation, attrs...)
}

func (h *SettingHandler) List(w http.ResponseWriter, r *http.Request) {
	settings, err := h.service.ListSettings(r.Context())
	if err != nil {
		h.log(r.Context(), "List").ErrorContext(r.Context(), "setting list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listSettingsResponse{Settings: toSettingDTOs(settings)})
}

func (h *SettingHandler) Get(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if strings.TrimSpace(key) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSettingKey)
		return
	}

	setting, err := h.service.GetSetting(r.Context(), key)
	if err != nil {
		h.log(r.Context(), "Get", "key", key).ErrorContext(r.Context(), "setting lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, settingResponse{Setting: toSettingDTO(setting)})
}

func (h *SettingHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if strings.TrimSpace(key) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSettingKey)
		return
	}

	var req settingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Upsert", "key", key, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode setting request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Upsert", "key", key)

	if err := h.service.UpsertSetting(r.Context(), key, req.Value); err != nil {
		logger.ErrorContext(r.Context(), "setting upsert failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "setting saved")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, statusResponse{Status: "saved"})
}

func (h *SettingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if strings.TrimSpace(key) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSettingKey)
		return
	}

	logger := h.log(r.Context(), "Delete", "key", key)
	if err := h.service.DeleteSetting(r.Context(), key); err != nil {
		logger.ErrorContext(r.Context(), "setting delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "setting deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type settingRequest struct {
	Value string `json:"value"`
}

type settingResponse struct {
	Setting settingDTO `json:"setting"`
}

type listSettingsResponse struct {
	Settings []settingDTO `json:"settings"`
}
