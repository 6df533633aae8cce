package projects

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/adgenie/backend/internal/brands"
	"github.com/adgenie/backend/internal/db"
	apperrors "github.com/adgenie/backend/internal/errors"
	"github.com/adgenie/backend/internal/logger"
)

type ProjectStore interface {
	Create(ctx context.Context, project *db.AdProject) error
	GetByID(ctx context.Context, id uuid.UUID) (*db.AdProject, error)
	ListByBrand(ctx context.Context, brandID uuid.UUID) ([]*db.AdProject, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*db.AdProject, error)
	Update(ctx context.Context, project *db.AdProject) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status db.ProjectStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type ScriptStore interface {
	Upsert(ctx context.Context, script *db.Script) error
	GetByProject(ctx context.Context, projectID uuid.UUID) (*db.Script, error)
	Approve(ctx context.Context, projectID uuid.UUID) error
}

// BrandGetter verifies brand existence and ownership on project creation.
type BrandGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*db.Brand, error)
}

// Enqueuer hands approved projects to the generation pipeline.
type Enqueuer interface {
	EnqueueForProject(ctx context.Context, userID, projectID uuid.UUID) error
}

// statusOrder defines the forward path of the project machine. failed is
// reachable from any generating state; completed only from video_generating.
var allowedTransitions = map[db.ProjectStatus][]db.ProjectStatus{
	db.StatusInitial:         {db.StatusChatInProgress, db.StatusScriptGenerated},
	db.StatusChatInProgress:  {db.StatusScriptGenerated},
	db.StatusScriptGenerated: {db.StatusScriptApproved, db.StatusChatInProgress},
	db.StatusScriptApproved:  {db.StatusVideoGenerating},
	db.StatusVideoGenerating: {db.StatusCompleted, db.StatusFailed},
	db.StatusFailed:          {db.StatusScriptApproved},
}

func canTransition(from, to db.ProjectStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Service struct {
	projects ProjectStore
	scripts  ScriptStore
	brands   BrandGetter
	enqueue  Enqueuer
	log      *logger.Logger
}

func NewService(projects ProjectStore, scripts ScriptStore, brands BrandGetter, enqueue Enqueuer) *Service {
	return &Service{
		projects: projects,
		scripts:  scripts,
		brands:   brands,
		enqueue:  enqueue,
		log:      logger.WithComponent("projects"),
	}
}

func (s *Service) Create(ctx context.Context, userID, brandID uuid.UUID) (*db.AdProject, error) {
	brand, err := s.brands.GetByID(ctx, brandID)
	if err != nil {
		if errors.Is(err, db.ErrBrandNotFound) {
			return nil, apperrors.BrandNotFound()
		}
		return nil, apperrors.DatabaseError("failed to load brand").WithCause(err)
	}
	if brand.UserID != userID {
		return nil, apperrors.Forbidden("you do not own this brand")
	}
	if len(brand.ProductImages) < brands.MinProductImages {
		return nil, apperrors.Conflict("brand needs at least 2 product images before ads can be created")
	}

	now := time.Now()
	project := &db.AdProject{
		ID:                  uuid.New(),
		BrandID:             brandID,
		UserID:              userID,
		Status:              db.StatusInitial,
		ConversationHistory: []db.ChatMessage{},
		AdDetails:           db.AdDetails{},
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := s.projects.Create(ctx, project); err != nil {
		return nil, apperrors.DatabaseError("failed to create project").WithCause(err)
	}

	s.log.Info(ctx, "project created", map[string]any{
		"project_id": project.ID.String(), "brand_id": brandID.String(),
	})
	return project, nil
}

func (s *Service) Get(ctx context.Context, userID, projectID uuid.UUID) (*db.AdProject, error) {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, db.ErrProjectNotFound) {
			return nil, apperrors.ProjectNotFound()
		}
		return nil, apperrors.DatabaseError("failed to load project").WithCause(err)
	}
	if project.UserID != userID {
		return nil, apperrors.Forbidden("you do not own this project")
	}
	return project, nil
}

func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]*db.AdProject, error) {
	projects, err := s.projects.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.DatabaseError("failed to list projects").WithCause(err)
	}
	if projects == nil {
		projects = []*db.AdProject{}
	}
	return projects, nil
}

// UpdateDetails replaces the extracted ad brief.
func (s *Service) UpdateDetails(ctx context.Context, userID, projectID uuid.UUID, details db.AdDetails) (*db.AdProject, error) {
	project, err := s.Get(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}

	project.AdDetails = details
	if err := s.projects.Update(ctx, project); err != nil {
		return nil, apperrors.DatabaseError("failed to update project").WithCause(err)
	}
	return project, nil
}

func (s *Service) Delete(ctx context.Context, userID, projectID uuid.UUID) error {
	if _, err := s.Get(ctx, userID, projectID); err != nil {
		return err
	}
	if err := s.projects.Delete(ctx, projectID); err != nil {
		return apperrors.DatabaseError("failed to delete project").WithCause(err)
	}
	s.log.Info(ctx, "project deleted", map[string]any{"project_id": projectID.String()})
	return nil
}

// ScriptInput is a storyline draft for a project.
type ScriptInput struct {
	Storyline     string
	Scenes        []db.Scene
	VoiceoverText string
}

// SetScript writes the project's script draft and moves the project to
// script_generated. Re-drafting clears any earlier approval.
func (s *Service) SetScript(ctx context.Context, userID, projectID uuid.UUID, in ScriptInput) (*db.Script, error) {
	project, err := s.Get(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	if in.Storyline == "" {
		return nil, apperrors.ValidationError("storyline is required")
	}
	if !canTransition(project.Status, db.StatusScriptGenerated) && project.Status != db.StatusScriptGenerated {
		return nil, apperrors.Conflict("project cannot accept a script in status " + string(project.Status))
	}

	now := time.Now()
	script := &db.Script{
		ID:            uuid.New(),
		ProjectID:     projectID,
		Storyline:     in.Storyline,
		Scenes:        in.Scenes,
		VoiceoverText: in.VoiceoverText,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if script.Scenes == nil {
		script.Scenes = []db.Scene{}
	}

	if err := s.scripts.Upsert(ctx, script); err != nil {
		return nil, apperrors.DatabaseError("failed to save script").WithCause(err)
	}

	if project.Status != db.StatusScriptGenerated {
		if err := s.projects.UpdateStatus(ctx, projectID, db.StatusScriptGenerated); err != nil {
			return nil, apperrors.DatabaseError("failed to update project status").WithCause(err)
		}
	}

	return script, nil
}

func (s *Service) GetScript(ctx context.Context, userID, projectID uuid.UUID) (*db.Script, error) {
	if _, err := s.Get(ctx, userID, projectID); err != nil {
		return nil, err
	}

	script, err := s.scripts.GetByProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, db.ErrScriptNotFound) {
			return nil, apperrors.ScriptNotFound()
		}
		return nil, apperrors.DatabaseError("failed to load script").WithCause(err)
	}
	return script, nil
}

// ApproveScript stamps the script approved, advances the project to
// script_approved, and hands it to the generation pipeline.
func (s *Service) ApproveScript(ctx context.Context, userID, projectID uuid.UUID) (*db.Script, error) {
	project, err := s.Get(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	if !canTransition(project.Status, db.StatusScriptApproved) {
		return nil, apperrors.Conflict("project cannot be approved in status " + string(project.Status))
	}

	if err := s.scripts.Approve(ctx, projectID); err != nil {
		if errors.Is(err, db.ErrScriptNotFound) {
			return nil, apperrors.ScriptNotFound()
		}
		return nil, apperrors.DatabaseError("failed to approve script").WithCause(err)
	}

	if err := s.projects.UpdateStatus(ctx, projectID, db.StatusScriptApproved); err != nil {
		return nil, apperrors.DatabaseError("failed to update project status").WithCause(err)
	}

	if s.enqueue != nil {
		if err := s.enqueue.EnqueueForProject(ctx, userID, projectID); err != nil {
			// Approval stands; generation can be retried.
			s.log.Error(ctx, "failed to enqueue generation", err, map[string]any{
				"project_id": projectID.String(),
			})
		}
	}

	script, err := s.scripts.GetByProject(ctx, projectID)
	if err != nil {
		return nil, apperrors.DatabaseError("failed to reload script").WithCause(err)
	}

	s.log.Info(ctx, "script approved", map[string]any{"project_id": projectID.String()})
	return script, nil
}
