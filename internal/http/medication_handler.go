package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/pilltime/internal/application"
	"github.com/example/pilltime/internal/persistence"
)

type medicationService interface {
	CreateMedication(ctx context.Context, input application.MedicationInput) (persistence.Medication, error)
	UpdateMedication(ctx context.Context, id string, update application.MedicationUpdate) (persistence.Medication, error)
	GetMedication(ctx context.Context, id string) (persistence.Medication, error)
	ListMedications(ctx context.Context) ([]persistence.Medication, error)
	DeleteMedication(ctx context.Context, id string) error
}

type MedicationHandler struct {
	service   medicationService
	responder responder
	logger    *slog.Logger
}

func NewMedicationHandler(service medicationService, logger *slog.Logger) *MedicationHandler {
	base := defaultLogger(logger)
	return &MedicationHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *MedicationHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "MedicationHandler", operation, attrs...)
}

func (h *MedicationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req medicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode medication request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create")

	input, err := req.toInput()
	if err != nil {
		logger.ErrorContext(r.Context(), "invalid medication request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	medication, err := h.service.CreateMedication(r.Context(), input)
	if err != nil {
		logger.ErrorContext(r.Context(), "medication creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("medication_id", medication.ID).InfoContext(r.Context(), "medication created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, medicationResponse{Medication: toMedicationDTO(medication)})
}

func (h *MedicationHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidMedicationID)
		return
	}

	var req medicationUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Update", "medication_id", id, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode medication update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Update", "medication_id", id)

	update, err := req.toUpdate()
	if err != nil {
		logger.ErrorContext(r.Context(), "invalid medication update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	medication, err := h.service.UpdateMedication(r.Context(), id, update)
	if err != nil {
		logger.ErrorContext(r.Context(), "medication update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "medication updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, medicationResponse{Medication: toMedicationDTO(medication)})
}

func (h *MedicationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidMedicationID)
		return
	}

	medication, err := h.service.GetMedication(r.Context(), id)
	if err != nil {
		h.log(r.Context(), "Get", "medication_id", id).ErrorContext(r.Context(), "medication lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, medicationResponse{Medication: toMedicationDTO(medication)})
}

func (h *MedicationHandler) List(w http.ResponseWriter, r *http.Request) {
	logger := h.log(r.Context(), "List")

	medications, err := h.service.ListMedications(r.Context())
	if err != nil {
		logger.ErrorContext(r.Context(), "medication list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(medications)).InfoContext(r.Context(), "medications listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listMedicationsResponse{Medications: toMedicationDTOs(medications)})
}

func (h *MedicationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidMedicationID)
		return
	}

	logger := h.log(r.Context(), "Delete", "medication_id", id)
	if err := h.service.DeleteMedication(r.Context(), id); err != nil {
		logger.ErrorContext(r.Context(), "medication delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "medication deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type medicationRequest struct {
	Name      string   `json:"name"`
	Dosage    *string  `json:"dosage"`
	Frequency string   `json:"frequency"`
	Times     []string `json:"times"`
	StartDate string   `json:"start_date"`
	EndDate   *string  `json:"end_date"`
	Notes     *string  `json:"notes"`
}

func (r medicationRequest) toInput() (application.MedicationInput, error) {
	input := application.MedicationInput{
		Name:      r.Name,
		Dosage:    r.Dosage,
		Frequency: r.Frequency,
		Times:     r.Times,
		Notes:     r.Notes,
	}
	if strings.TrimSpace(r.StartDate) != "" {
		startDate, err := parseDate(r.StartDate)
		if err != nil {
			return application.MedicationInput{}, err
		}
		input.StartDate = startDate
	}
	if r.EndDate != nil && strings.TrimSpace(*r.EndDate) != "" {
		endDate, err := parseDate(*r.EndDate)
		if err != nil {
			return application.MedicationInput{}, err
		}
		input.EndDate = &endDate
	}
	return input, nil
}

// medicationUpdateRequest distinguishes an absent end_date from an explicit
// null, which clears the stored value.
type medicationUpdateRequest struct {
	Name      *string         `json:"name"`
	Dosage    *string         `json:"dosage"`
	Frequency *string         `json:"frequency"`
	Times     []string        `json:"times"`
	StartDate *string         `json:"start_date"`
	EndDate   json.RawMessage `json:"end_date"`
	Active    *bool           `json:"active"`
	Notes     *string         `json:"notes"`
}

func (r medicationUpdateRequest) toUpdate() (application.MedicationUpdate, error) {
	update := application.MedicationUpdate{
		Name:      r.Name,
		Dosage:    r.Dosage,
		Frequency: r.Frequency,
		Times:     r.Times,
		Active:    r.Active,
		Notes:     r.Notes,
	}
	if r.StartDate != nil {
		startDate, err := parseDate(*r.StartDate)
		if err != nil {
			return application.MedicationUpdate{}, err
		}
		update.StartDate = &startDate
	}
	if len(r.EndDate) > 0 {
		update.EndDateSet = true
		if !bytes.Equal(bytes.TrimSpace(r.EndDate), []byte("null")) {
			var value string
			if err := json.Unmarshal(r.EndDate, &value); err != nil {
				return application.MedicationUpdate{}, errBadRequestBody
			}
			endDate, err := parseDate(value)
			if err != nil {
				return application.MedicationUpdate{}, err
			}
			update.EndDate = &endDate
		}
	}
	return update, nil
}

type medicationResponse struct {
	Medication medicationDTO `json:"medication"`
}

type listMedicationsResponse struct {
	Medications []medicationDTO `json:"medications"`
}
