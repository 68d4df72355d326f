package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/pilltime/internal/application"
	"github.com/example/pilltime/internal/persistence"
)

type logService interface {
	ListLogs(ctx context.Context, query application.LogQuery) ([]persistence.MedicationLog, error)
	TodayView(ctx context.Context) (application.TodayView, error)
	History(ctx context.Context, days int) (application.History, error)
	MarkTaken(ctx context.Context, id string) (persistence.MedicationLog, error)
	MarkSkipped(ctx context.Context, id string) (persistence.MedicationLog, error)
	CreateLog(ctx context.Context, input application.LogInput) (persistence.MedicationLog, error)
	UpdateLog(ctx context.Context, id string, update application.LogUpdate) (persistence.MedicationLog, error)
	DeleteLog(ctx context.Context, id string) error
}

type LogHandler struct {
	service   logService
	responder responder
	logger    *slog.Logger
}

func NewLogHandler(service logService, logger *slog.Logger) *LogHandler {
	base := defaultLogger(logger)
	return &LogHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *LogHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "LogHandler", operation, attrs...)
}

func (h *LogHandler) List(w http.ResponseWriter, r *http.Request) {
	logger := h.log(r.Context(), "List")

	query := application.LogQuery{MedicationID: strings.TrimSpace(r.URL.Query().Get("medication_id"))}
	if from := strings.TrimSpace(r.URL.Query().Get("from")); from != "" {
		parsed, err := parseDate(from)
		if err != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
			return
		}
		query.From = &parsed
	}
	if to := strings.TrimSpace(r.URL.Query().Get("to")); to != "" {
		parsed, err := parseDate(to)
		if err != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
			return
		}
		query.To = &parsed
	}

	logs, err := h.service.ListLogs(r.Context(), query)
	if err != nil {
		logger.ErrorContext(r.Context(), "log list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listLogsResponse{Logs: toLogDTOs(logs)})
}

func (h *LogHandler) Today(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.TodayView(r.Context())
	if err != nil {
		h.log(r.Context(), "Today").ErrorContext(r.Context(), "today view failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, todayResponse{
		Logs:     toLogDTOs(view.Logs),
		Upcoming: toLogDTOs(view.Upcoming),
		Stats: dayStatsDTO{
			Total:   view.Stats.Total,
			Taken:   view.Stats.Taken,
			Missed:  view.Stats.Missed,
			Pending: view.Stats.Pending,
			Skipped: view.Stats.Skipped,
		},
	})
}

func (h *LogHandler) History(w http.ResponseWriter, r *http.Request) {
	days := 30
	if value := strings.TrimSpace(r.URL.Query().Get("days")); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
			return
		}
		days = parsed
	}

	history, err := h.service.History(r.Context(), days)
	if err != nil {
		h.log(r.Context(), "History").ErrorContext(r.Context(), "history report failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	byMedication := make(map[string]medicationTotalsDTO, len(history.ByMedication))
	for id, totals := range history.ByMedication {
		byMedication[id] = medicationTotalsDTO{
			Name:    totals.Name,
			Total:   totals.Total,
			Taken:   totals.Taken,
			Missed:  totals.Missed,
			Pending: totals.Pending,
			Skipped: totals.Skipped,
		}
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, historyResponse{
		Logs:           toLogDTOs(history.Logs),
		TotalDays:      history.TotalDays,
		TotalLogs:      history.TotalLogs,
		Taken:          history.Taken,
		ComplianceRate: history.ComplianceRate,
		Streak:         history.Streak,
		ByMedication:   byMedication,
	})
}

func (h *LogHandler) MarkTaken(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "MarkTaken", h.service.MarkTaken)
}

func (h *LogHandler) MarkSkipped(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "MarkSkipped", h.service.MarkSkipped)
}

func (h *LogHandler) transition(w http.ResponseWriter, r *http.Request, operation string, fn func(context.Context, string) (persistence.MedicationLog, error)) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidLogID)
		return
	}

	logger := h.log(r.Context(), operation, "log_id", id)

	log, err := fn(r.Context(), id)
	if err != nil {
		logger.ErrorContext(r.Context(), "log transition failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "log transitioned", "status", string(log.Status))
	h.responder.writeJSON(r.Context(), w, http.StatusOK, logResponse{Log: toLogDTO(log)})
}

func (h *LogHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req logRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode log request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create", "medication_id", req.MedicationID)

	input, err := req.toInput()
	if err != nil {
		logger.ErrorContext(r.Context(), "invalid log request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	log, err := h.service.CreateLog(r.Context(), input)
	if err != nil {
		logger.ErrorContext(r.Context(), "log creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("log_id", log.ID).InfoContext(r.Context(), "log created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, logResponse{Log: toLogDTO(log)})
}

func (h *LogHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidLogID)
		return
	}

	var req logUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Update", "log_id", id, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode log update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Update", "log_id", id)

	update, err := req.toUpdate()
	if err != nil {
		logger.ErrorContext(r.Context(), "invalid log update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	log, err := h.service.UpdateLog(r.Context(), id, update)
	if err != nil {
		logger.ErrorContext(r.Context(), "log update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "log updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, logResponse{Log: toLogDTO(log)})
}

func (h *LogHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidLogID)
		return
	}

	logger := h.log(r.Context(), "Delete", "log_id", id)
	if err := h.service.DeleteLog(r.Context(), id); err != nil {
		logger.ErrorContext(r.Context(), "log delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "log deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type logRequest struct {
	MedicationID string  `json:"medication_id"`
	ScheduledAt  *string `json:"scheduled_at"`
	TakenAt      *string `json:"taken_at"`
	Status       string  `json:"status"`
	Notes        *string `json:"notes"`
}

func (r logRequest) toInput() (application.LogInput, error) {
	input := application.LogInput{
		MedicationID: strings.TrimSpace(r.MedicationID),
		Status:       persistence.LogStatus(r.Status),
		Notes:        r.Notes,
	}
	if input.Status == "" {
		input.Status = persistence.StatusPending
	}
	if r.ScheduledAt != nil {
		scheduledAt, err := parseTimestamp(*r.ScheduledAt)
		if err != nil {
			return application.LogInput{}, err
		}
		input.ScheduledAt = scheduledAt
	}
	if r.TakenAt != nil {
		takenAt, err := parseTimestamp(*r.TakenAt)
		if err != nil {
			return application.LogInput{}, err
		}
		input.TakenAt = &takenAt
	}
	return input, nil
}

type logUpdateRequest struct {
	Status  *string `json:"status"`
	TakenAt *string `json:"taken_at"`
	Notes   *string `json:"notes"`
}

func (r logUpdateRequest) toUpdate() (application.LogUpdate, error) {
	update := application.LogUpdate{Notes: r.Notes}
	if r.Status != nil {
		status := persistence.LogStatus(*r.Status)
		update.Status = &status
	}
	if r.TakenAt != nil {
		takenAt, err := parseTimestamp(*r.TakenAt)
		if err != nil {
			return application.LogUpdate{}, err
		}
		update.TakenAt = &takenAt
	}
	return update, nil
}

func parseTimestamp(value string) (time.Time, error) {
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, errBadRequestBody
	}
	return parsed, nil
}

type logResponse struct {
	Log logDTO `json:"log"`
}

type listLogsResponse struct {
	Logs []logDTO `json:"logs"`
}

type dayStatsDTO struct {
	Total   int `json:"total"`
	Taken   int `json:"taken"`
	Missed  int `json:"missed"`
	Pending int `json:"pending"`
	Skipped int `json:"skipped"`
}

type todayResponse struct {
	Logs     []logDTO    `json:"logs"`
	Upcoming []logDTO    `json:"upcoming"`
	Stats    dayStatsDTO `json:"stats"`
}

type medicationTotalsDTO struct {
	Name    string `json:"name"`
	Total   int    `json:"total"`
	Taken   int    `json:"taken"`
	Missed  int    `json:"missed"`
	Pending int    `json:"pending"`
	Skipped int    `json:"skipped"`
}

type historyResponse struct {
	Logs           []logDTO                       `json:"logs"`
	TotalDays      int                            `json:"total_days"`
	TotalLogs      int                            `json:"total_logs"`
	Taken          int                            `json:"taken"`
	ComplianceRate float64                        `json:"compliance_rate"`
	Streak         int                            `json:"streak"`
	ByMedication   map[string]medicationTotalsDTO `json:"by_medication"`
}
