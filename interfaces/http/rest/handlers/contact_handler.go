package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"contact-service/application/services"
	"contact-service/domain/core/entities"
	apperrors "contact-service/pkg/errors"
)

// ContactService is the use-case surface the handler drives.
type ContactService interface {
	List(ctx context.Context) (services.Outcome, error)
	Get(ctx context.Context, id int) (services.Outcome, error)
	Create(ctx context.Context, contact *entities.Contact) (services.Outcome, error)
	Update(ctx context.Context, contact *entities.Contact, id int) (services.Outcome, error)
	Delete(ctx context.Context, id int) (services.Outcome, error)
}

// ContactHandler handles contact-related HTTP requests. Handlers return
// failures to the request pipeline instead of writing error responses.
type ContactHandler struct {
	service ContactService
	logger  *zap.Logger
}

// NewContactHandler creates a new contact handler
func NewContactHandler(service ContactService, logger *zap.Logger) *ContactHandler {
	return &ContactHandler{
		service: service,
		logger:  logger,
	}
}

// ListContacts handles GET /contact
func (h *ContactHandler) ListContacts(w http.ResponseWriter, r *http.Request) error {
	outcome, err := h.service.List(r.Context())
	if err != nil {
		return err
	}
	return h.render(w, outcome)
}

// GetContact handles GET /contact/{id}
func (h *ContactHandler) GetContact(w http.ResponseWriter, r *http.Request) error {
	id, err := contactID(r)
	if err != nil {
		return err
	}

	outcome, err := h.service.Get(r.Context(), id)
	if err != nil {
		return err
	}
	return h.render(w, outcome)
}

// CreateContact handles POST /contact
func (h *ContactHandler) CreateContact(w http.ResponseWriter, r *http.Request) error {
	contact, err := decodeContact(r)
	if err != nil {
		return err
	}

	outcome, err := h.service.Create(r.Context(), contact)
	if err != nil {
		return err
	}
	return h.render(w, outcome)
}

// UpdateContact handles PUT /contact/{id}
func (h *ContactHandler) UpdateContact(w http.ResponseWriter, r *http.Request) error {
	id, err := contactID(r)
	if err != nil {
		return err
	}
	contact, err := decodeContact(r)
	if err != nil {
		return err
	}

	outcome, err := h.service.Update(r.Context(), contact, id)
	if err != nil {
		return err
	}
	return h.render(w, outcome)
}

// DeleteContact handles DELETE /contact/{id}
func (h *ContactHandler) DeleteContact(w http.ResponseWriter, r *http.Request) error {
	id, err := contactID(r)
	if err != nil {
		return err
	}

	outcome, err := h.service.Delete(r.Context(), id)
	if err != nil {
		return err
	}
	return h.render(w, outcome)
}

func contactID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.MalformedRequest("contact id must be an integer, got "+strconv.Quote(raw), err)
	}
	return id, nil
}

func decodeContact(r *http.Request) (*entities.Contact, error) {
	var contact entities.Contact
	if err := json.NewDecoder(r.Body).Decode(&contact); err != nil {
		return nil, apperrors.MalformedRequest("invalid request body", err)
	}
	return &contact, nil
}

// render writes an outcome. InternalError outcomes become failures so the
// classifier answers them like any other.
func (h *ContactHandler) render(w http.ResponseWriter, outcome services.Outcome) error {
	switch outcome.Kind {
	case services.OutcomeOk:
		h.respondJSON(w, http.StatusOK, outcome.Payload)
	case services.OutcomeCreated:
		w.Header().Set("Location", outcome.Location)
		h.respondJSON(w, http.StatusCreated, outcome.Payload)
	case services.OutcomeNoContent:
		w.WriteHeader(http.StatusNoContent)
	case services.OutcomeNotFound:
		w.WriteHeader(http.StatusNotFound)
	case services.OutcomeBadRequest:
		h.respondJSON(w, http.StatusBadRequest, outcome.Errors)
	default:
		return apperrors.Internal(outcome.Message, nil)
	}
	return nil
}

// respondJSON sends a JSON response
func (h *ContactHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}
