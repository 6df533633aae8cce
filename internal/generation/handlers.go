package generation

import (
	"net/http"

	"github.com/adgenie/backend/internal/auth"
	apperrors "github.com/adgenie/backend/internal/errors"
	"github.com/google/uuid"
)

type Handlers struct {
	service *Service
}

func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

func caller(r *http.Request) (*auth.UserContext, error) {
	user := auth.GetUserFromContext(r.Context())
	if user == nil {
		return nil, apperrors.Unauthorized("authentication required")
	}
	return user, nil
}

func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) error {
	user, err := caller(r)
	if err != nil {
		return err
	}

	jobID := r.PathValue("id")
	if _, err := uuid.Parse(jobID); err != nil {
		return apperrors.BadRequest("invalid id")
	}

	job, err := h.service.GetJob(r.Context(), user.UserID, jobID)
	if err != nil {
		return err
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, job)
	return nil
}

func (h *Handlers) ListProjectJobs(w http.ResponseWriter, r *http.Request) error {
	user, err := caller(r)
	if err != nil {
		return err
	}

	projectID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return apperrors.BadRequest("invalid id")
	}

	jobs, err := h.service.ListProjectJobs(r.Context(), user.UserID, projectID)
	if err != nil {
		return err
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK,
		map[string]any{"jobs": jobs})
	return nil
}

func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) error {
	user, err := caller(r)
	if err != nil {
		return err
	}

	jobs, err := h.service.ListJobs(r.Context(), user.UserID)
	if err != nil {
		return err
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK,
		map[string]any{"jobs": jobs})
	return nil
}
