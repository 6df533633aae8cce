package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrBrandNotFound = errors.New("brand not found")

// ProductImage describes one uploaded product photo attached to a brand.
type ProductImage struct {
	StorageKey string `json:"storage_key"`
	Filename   string `json:"filename"`
	MimeType   string `json:"mime_type"`
	FileSize   int64  `json:"file_size"`
}

// BrandGuidelines holds the free-form styling hints used during generation.
type BrandGuidelines struct {
	Tone         string   `json:"tone,omitempty"`
	ColorPalette []string `json:"color_palette,omitempty"`
	Keywords     []string `json:"keywords,omitempty"`
	Audience     string   `json:"audience,omitempty"`
}

type Brand struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	Title         string
	Description   string
	ProductImages []ProductImage
	Guidelines    BrandGuidelines
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type BrandRepository struct {
	db *DB
}

func NewBrandRepository(db *DB) *BrandRepository {
	return &BrandRepository{db: db}
}

const brandColumns = "id, user_id, title, description, product_images, brand_guidelines, created_at, updated_at"

func scanBrand(row interface{ Scan(...any) error }) (*Brand, error) {
	brand := &Brand{}
	var description sql.NullString
	var images, guidelines []byte

	err := row.Scan(
		&brand.ID, &brand.UserID, &brand.Title, &description,
		&images, &guidelines, &brand.CreatedAt, &brand.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	brand.Description = description.String
	if err := json.Unmarshal(images, &brand.ProductImages); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(guidelines, &brand.Guidelines); err != nil {
		return nil, err
	}

	return brand, nil
}

func (r *BrandRepository) Create(ctx context.Context, brand *Brand) error {
	images, err := json.Marshal(brand.ProductImages)
	if err != nil {
		return err
	}
	guidelines, err := json.Marshal(brand.Guidelines)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO brands (id, user_id, title, description, product_images, brand_guidelines, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = r.db.ExecContext(ctx, query,
		brand.ID, brand.UserID, brand.Title, NullStringOf(brand.Description),
		images, guidelines, brand.CreatedAt, brand.UpdatedAt,
	)
	return err
}

func (r *BrandRepository) GetByID(ctx context.Context, id uuid.UUID) (*Brand, error) {
	query := `SELECT ` + brandColumns + ` FROM brands WHERE id = $1`

	brand, err := scanBrand(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBrandNotFound
		}
		return nil, err
	}
	return brand, nil
}

func (r *BrandRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Brand, error) {
	query := `SELECT ` + brandColumns + ` FROM brands WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var brands []*Brand
	for rows.Next() {
		brand, err := scanBrand(rows)
		if err != nil {
			return nil, err
		}
		brands = append(brands, brand)
	}
	return brands, rows.Err()
}

func (r *BrandRepository) Update(ctx context.Context, brand *Brand) error {
	images, err := json.Marshal(brand.ProductImages)
	if err != nil {
		return err
	}
	guidelines, err := json.Marshal(brand.Guidelines)
	if err != nil {
		return err
	}

	query := `
		UPDATE brands
		SET title = $1, description = $2, product_images = $3, brand_guidelines = $4, updated_at = NOW()
		WHERE id = $5
	`

	result, err := r.db.ExecContext(ctx, query,
		brand.Title, NullStringOf(brand.Description), images, guidelines, brand.ID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrBrandNotFound
	}
	return nil
}

func (r *BrandRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM brands WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrBrandNotFound
	}
	return nil
}
