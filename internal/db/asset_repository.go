package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrAssetNotFound = errors.New("asset not found")

type AssetType string

const (
	AssetBrandImage     AssetType = "brand_image"
	AssetGeneratedVideo AssetType = "generated_video"
	AssetBRollImage     AssetType = "b_roll_image"
	AssetSceneVideo     AssetType = "scene_video"
	AssetGeneratedAudio AssetType = "generated_audio"
)

// ValidAssetType reports whether t is one of the accepted upload types.
func ValidAssetType(t AssetType) bool {
	switch t {
	case AssetBrandImage, AssetGeneratedVideo, AssetBRollImage, AssetSceneVideo, AssetGeneratedAudio:
		return true
	}
	return false
}

type Asset struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	StorageKey       string
	OriginalFilename string
	FileSize         int64
	MimeType         string
	AssetType        AssetType
	Metadata         map[string]any
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type AssetRepository struct {
	db *DB
}

func NewAssetRepository(db *DB) *AssetRepository {
	return &AssetRepository{db: db}
}

const assetColumns = "id, user_id, storage_key, original_filename, file_size, mime_type, asset_type, metadata, created_at, updated_at"

func scanAsset(row interface{ Scan(...any) error }) (*Asset, error) {
	asset := &Asset{}
	var metadata []byte

	err := row.Scan(
		&asset.ID, &asset.UserID, &asset.StorageKey, &asset.OriginalFilename,
		&asset.FileSize, &asset.MimeType, &asset.AssetType, &metadata,
		&asset.CreatedAt, &asset.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &asset.Metadata); err != nil {
			return nil, err
		}
	}

	return asset, nil
}

func (r *AssetRepository) Create(ctx context.Context, asset *Asset) error {
	var metadata []byte
	if asset.Metadata != nil {
		var err error
		metadata, err = json.Marshal(asset.Metadata)
		if err != nil {
			return err
		}
	}

	query := `
		INSERT INTO assets (id, user_id, storage_key, original_filename, file_size, mime_type, asset_type, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		asset.ID, asset.UserID, asset.StorageKey, asset.OriginalFilename,
		asset.FileSize, asset.MimeType, asset.AssetType, metadata,
		asset.CreatedAt, asset.UpdatedAt,
	)
	return err
}

func (r *AssetRepository) GetByID(ctx context.Context, id uuid.UUID) (*Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets WHERE id = $1`

	asset, err := scanAsset(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAssetNotFound
		}
		return nil, err
	}
	return asset, nil
}

func (r *AssetRepository) GetByStorageKey(ctx context.Context, key string) (*Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets WHERE storage_key = $1`

	asset, err := scanAsset(r.db.QueryRowContext(ctx, query, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAssetNotFound
		}
		return nil, err
	}
	return asset, nil
}

// ListByUser returns the user's assets newest first, optionally filtered by
// type. Pass an empty assetType to list everything.
func (r *AssetRepository) ListByUser(ctx context.Context, userID uuid.UUID, assetType AssetType, limit, offset int) ([]*Asset, error) {
	var rows *sql.Rows
	var err error

	if assetType == "" {
		query := `SELECT ` + assetColumns + ` FROM assets WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		rows, err = r.db.QueryContext(ctx, query, userID, limit, offset)
	} else {
		query := `SELECT ` + assetColumns + ` FROM assets WHERE user_id = $1 AND asset_type = $2 ORDER BY created_at DESC LIMIT $3 OFFSET $4`
		rows, err = r.db.QueryContext(ctx, query, userID, assetType, limit, offset)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []*Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}
	return assets, rows.Err()
}

func (r *AssetRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM assets WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrAssetNotFound
	}
	return nil
}
