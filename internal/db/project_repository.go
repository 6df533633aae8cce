package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrProjectNotFound = errors.New("project not found")

type ProjectStatus string

const (
	StatusInitial         ProjectStatus = "initial"
	StatusChatInProgress  ProjectStatus = "chat_in_progress"
	StatusScriptGenerated ProjectStatus = "script_generated"
	StatusScriptApproved  ProjectStatus = "script_approved"
	StatusVideoGenerating ProjectStatus = "video_generating"
	StatusCompleted       ProjectStatus = "completed"
	StatusFailed          ProjectStatus = "failed"
)

// ChatMessage is one turn of the ad-brief conversation.
type ChatMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// AdDetails collects the brief extracted from the conversation.
type AdDetails struct {
	Product      string `json:"product,omitempty"`
	TargetGroup  string `json:"target_group,omitempty"`
	Duration     int    `json:"duration,omitempty"`
	CallToAction string `json:"call_to_action,omitempty"`
	Platform     string `json:"platform,omitempty"`
}

type AdProject struct {
	ID                  uuid.UUID
	BrandID             uuid.UUID
	UserID              uuid.UUID
	Status              ProjectStatus
	ConversationHistory []ChatMessage
	AdDetails           AdDetails
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

type ProjectRepository struct {
	db *DB
}

func NewProjectRepository(db *DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

const projectColumns = "id, brand_id, user_id, status, conversation_history, ad_details, created_at, updated_at"

func scanProject(row interface{ Scan(...any) error }) (*AdProject, error) {
	project := &AdProject{}
	var history, details []byte

	err := row.Scan(
		&project.ID, &project.BrandID, &project.UserID, &project.Status,
		&history, &details, &project.CreatedAt, &project.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(history, &project.ConversationHistory); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(details, &project.AdDetails); err != nil {
		return nil, err
	}

	return project, nil
}

func (r *ProjectRepository) Create(ctx context.Context, project *AdProject) error {
	history, err := json.Marshal(project.ConversationHistory)
	if err != nil {
		return err
	}
	details, err := json.Marshal(project.AdDetails)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO ad_projects (id, brand_id, user_id, status, conversation_history, ad_details, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = r.db.ExecContext(ctx, query,
		project.ID, project.BrandID, project.UserID, project.Status,
		history, details, project.CreatedAt, project.UpdatedAt,
	)
	return err
}

func (r *ProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*AdProject, error) {
	query := `SELECT ` + projectColumns + ` FROM ad_projects WHERE id = $1`

	project, err := scanProject(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	return project, nil
}

func (r *ProjectRepository) ListByBrand(ctx context.Context, brandID uuid.UUID) ([]*AdProject, error) {
	query := `SELECT ` + projectColumns + ` FROM ad_projects WHERE brand_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, brandID)
}

func (r *ProjectRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*AdProject, error) {
	query := `SELECT ` + projectColumns + ` FROM ad_projects WHERE user_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, userID)
}

func (r *ProjectRepository) list(ctx context.Context, query string, arg any) ([]*AdProject, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []*AdProject
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

// CountByBrand is used to block brand deletion while projects still exist.
func (r *ProjectRepository) CountByBrand(ctx context.Context, brandID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ad_projects WHERE brand_id = $1`, brandID,
	).Scan(&count)
	return count, err
}

func (r *ProjectRepository) Update(ctx context.Context, project *AdProject) error {
	history, err := json.Marshal(project.ConversationHistory)
	if err != nil {
		return err
	}
	details, err := json.Marshal(project.AdDetails)
	if err != nil {
		return err
	}

	query := `
		UPDATE ad_projects
		SET status = $1, conversation_history = $2, ad_details = $3, updated_at = NOW()
		WHERE id = $4
	`

	result, err := r.db.ExecContext(ctx, query, project.Status, history, details, project.ID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrProjectNotFound
	}
	return nil
}

func (r *ProjectRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status ProjectStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE ad_projects SET status = $1, updated_at = NOW() WHERE id = $2`, status, id,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrProjectNotFound
	}
	return nil
}

func (r *ProjectRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM ad_projects WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrProjectNotFound
	}
	return nil
}
