package projects

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/adgenie/backend/internal/auth"
	"github.com/adgenie/backend/internal/db"
	apperrors "github.com/adgenie/backend/internal/errors"
)

type Handlers struct {
	service *Service
}

func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

type ProjectView struct {
	ID        string       `json:"id"`
	BrandID   string       `json:"brand_id"`
	Status    string       `json:"status"`
	AdDetails db.AdDetails `json:"ad_details"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func NewProjectView(p *db.AdProject) *ProjectView {
	return &ProjectView{
		ID:        p.ID.String(),
		BrandID:   p.BrandID.String(),
		Status:    string(p.Status),
		AdDetails: p.AdDetails,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

type ScriptView struct {
	ID            string     `json:"id"`
	ProjectID     string     `json:"project_id"`
	Storyline     string     `json:"storyline"`
	Scenes        []db.Scene `json:"scenes"`
	VoiceoverText string     `json:"voiceover_text,omitempty"`
	ApprovedAt    *time.Time `json:"approved_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func NewScriptView(s *db.Script) *ScriptView {
	scenes := s.Scenes
	if scenes == nil {
		scenes = []db.Scene{}
	}
	return &ScriptView{
		ID:            s.ID.String(),
		ProjectID:     s.ProjectID.String(),
		Storyline:     s.Storyline,
		Scenes:        scenes,
		VoiceoverText: s.VoiceoverText,
		ApprovedAt:    s.ApprovedAt,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

func caller(r *http.Request) (*auth.UserContext, error) {
	user := auth.GetUserFromContext(r.Context())
	if user == nil {
		return nil, apperrors.Unauthorized("authentication required")
	}
	return user, nil
}

func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, apperrors.BadRequest("invalid " + name)
	}
	return id, nil
}

type createRequest struct {
	BrandID string `json:"brand_id"`
}

func (h *Handlers) Create(w http.ResponseWriter, r *http.Request) error {
	user, err := caller(r)
	if err != nil {
		return err
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("invalid request body")
	}
	brandID, err := uuid.Parse(req.BrandID)
	if err != nil {
		return apperrors.ValidationError("invalid brand_id")
	}

	project, err := h.service.Create(r.Context(), user.UserID, brandID)
	if err != nil {
		return err
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusCreated, NewProjectView(project))
	return nil
}

func (h *Handlers) List(w http.ResponseWriter, r *http.Request) error {
	user, err := caller(r)
	if err != nil {
		return err
	}

	projects, err := h.service.List(r.Context(), user.UserID)
	if err != nil {
		return err
	}

	views := make([]*ProjectView, 0, len(projects))
	for _, p := range projects {
		views = append(views, NewProjectView(p))
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK,
		map[string]any{"projects": views})
	return nil
}

func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) error {
	user, err := caller(r)
	if err != nil {
		return err
	}
	projectID, err := pathID(r, "id")
	if err != nil {
		return err
	}

	project, err := h.service.Get(r.Context(), user.UserID, projectID)
	if err != nil {
		return err
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, NewProjectView(project))
	return nil
}

func (h *Handlers) UpdateDetails(w http.ResponseWriter, r *http.Request) error {
	user, err := caller(r)
	if err != nil {
		return err
	}
	projectID, err := pathID(r, "id")
	if err != nil {
		return err
	}

	var details db.AdDetails
	if err := json.NewDecoder(r.Body).Decode(&details); err != nil {
		return apperrors.BadRequest("invalid request body")
	}

	project, err := h.service.UpdateDetails(r.Context(), user.UserID, projectID, details)
	if err != nil {
		return err
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, NewProjectView(project))
	return nil
}

func (h *Handlers) Delete(w http.ResponseWriter, r *http.Request) error {
	user, err := caller(r)
	if err != nil {
		return err
	}
	projectID, err := pathID(r, "id")
	if err != nil {
		return err
	}

	if err := h.service.Delete(r.Context(), user.UserID, projectID); err != nil {
		return err
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}

type scriptRequest struct {
	Storyline     string     `json:"storyline"`
	Scenes        []db.Scene `json:"scenes"`
	VoiceoverText string     `json:"voiceover_text"`
}

func (h *Handlers) SetScript(w http.ResponseWriter, r *http.Request) error {
	user, err := caller(r)
	if err != nil {
		return err
	}
	projectID, err := pathID(r, "id")
	if err != nil {
		return err
	}

	var req scriptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("invalid request body")
	}

	script, err := h.service.SetScript(r.Context(), user.UserID, projectID, ScriptInput{
		Storyline:     req.Storyline,
		Scenes:        req.Scenes,
		VoiceoverText: req.VoiceoverText,
	})
	if err != nil {
		return err
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, NewScriptView(script))
	return nil
}

func (h *Handlers) GetScript(w http.ResponseWriter, r *http.Request) error {
	user, err := caller(r)
	if err != nil {
		return err
	}
	projectID, err := pathID(r, "id")
	if err != nil {
		return err
	}

	script, err := h.service.GetScript(r.Context(), user.UserID, projectID)
	if err != nil {
		return err
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, NewScriptView(script))
	return nil
}

func (h *Handlers) ApproveScript(w http.ResponseWriter, r *http.Request) error {
	user, err := caller(r)
	if err != nil {
		return err
	}
	projectID, err := pathID(r, "id")
	if err != nil {
		return err
	}

	script, err := h.service.ApproveScript(r.Context(), user.UserID, projectID)
	if err != nil {
		return err
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, NewScriptView(script))
	return nil
}
