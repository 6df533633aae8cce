package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrScriptNotFound = errors.New("script not found")

// Scene is one shot of the generated ad script.
type Scene struct {
	Index       int    `json:"index"`
	Description string `json:"description"`
	DurationSec int    `json:"duration_sec"`
	Visual      string `json:"visual,omitempty"`
}

// Script is the approved storyline for a project. A project has at most one.
type Script struct {
	ID            uuid.UUID
	ProjectID     uuid.UUID
	Storyline     string
	Scenes        []Scene
	VoiceoverText string
	ApprovedAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type ScriptRepository struct {
	db *DB
}

func NewScriptRepository(db *DB) *ScriptRepository {
	return &ScriptRepository{db: db}
}

const scriptColumns = "id, project_id, storyline, scenes, voiceover_text, approved_at, created_at, updated_at"

func scanScript(row interface{ Scan(...any) error }) (*Script, error) {
	script := &Script{}
	var scenes []byte
	var voiceover sql.NullString

	err := row.Scan(
		&script.ID, &script.ProjectID, &script.Storyline, &scenes,
		&voiceover, &script.ApprovedAt, &script.CreatedAt, &script.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	script.VoiceoverText = voiceover.String
	if err := json.Unmarshal(scenes, &script.Scenes); err != nil {
		return nil, err
	}

	return script, nil
}

// Upsert writes the script for a project, replacing any earlier draft.
// Re-generating a script clears a previous approval.
func (r *ScriptRepository) Upsert(ctx context.Context, script *Script) error {
	scenes, err := json.Marshal(script.Scenes)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO scripts (id, project_id, storyline, scenes, voiceover_text, approved_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (project_id) DO UPDATE
		SET storyline = EXCLUDED.storyline,
			scenes = EXCLUDED.scenes,
			voiceover_text = EXCLUDED.voiceover_text,
			approved_at = NULL,
			updated_at = NOW()
	`

	_, err = r.db.ExecContext(ctx, query,
		script.ID, script.ProjectID, script.Storyline, scenes,
		NullStringOf(script.VoiceoverText), script.ApprovedAt, script.CreatedAt, script.UpdatedAt,
	)
	return err
}

func (r *ScriptRepository) GetByProject(ctx context.Context, projectID uuid.UUID) (*Script, error) {
	query := `SELECT ` + scriptColumns + ` FROM scripts WHERE project_id = $1`

	script, err := scanScript(r.db.QueryRowContext(ctx, query, projectID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrScriptNotFound
		}
		return nil, err
	}
	return script, nil
}

func (r *ScriptRepository) Approve(ctx context.Context, projectID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE scripts SET approved_at = NOW(), updated_at = NOW() WHERE project_id = $1`, projectID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrScriptNotFound
	}
	return nil
}
