package brands

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/adgenie/backend/internal/db"
	apperrors "github.com/adgenie/backend/internal/errors"
	"github.com/adgenie/backend/internal/logger"
	"github.com/adgenie/backend/internal/storage"
	"github.com/adgenie/backend/internal/upload"
)

// BrandStore is the persistence surface the brand service needs.
type BrandStore interface {
	Create(ctx context.Context, brand *db.Brand) error
	GetByID(ctx context.Context, id uuid.UUID) (*db.Brand, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*db.Brand, error)
	Update(ctx context.Context, brand *db.Brand) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ProjectCounter reports how many projects reference a brand.
type ProjectCounter interface {
	CountByBrand(ctx context.Context, brandID uuid.UUID) (int, error)
}

// ObjectStore is the slice of blob storage used for product images.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	DeleteObject(ctx context.Context, key string) error
}

type Service struct {
	brands   BrandStore
	projects ProjectCounter
	objects  ObjectStore
	log      *logger.Logger
}

func NewService(brands BrandStore, projects ProjectCounter, objects ObjectStore) *Service {
	return &Service{
		brands:   brands,
		projects: projects,
		objects:  objects,
		log:      logger.WithComponent("brands"),
	}
}

type CreateInput struct {
	Title       string
	Description string
	Guidelines  db.BrandGuidelines
}

func (s *Service) Create(ctx context.Context, userID uuid.UUID, in CreateInput) (*db.Brand, error) {
	if in.Title == "" {
		return nil, apperrors.ValidationError("title is required")
	}

	now := time.Now()
	brand := &db.Brand{
		ID:            uuid.New(),
		UserID:        userID,
		Title:         in.Title,
		Description:   in.Description,
		ProductImages: []db.ProductImage{},
		Guidelines:    in.Guidelines,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.brands.Create(ctx, brand); err != nil {
		return nil, apperrors.DatabaseError("failed to create brand").WithCause(err)
	}

	s.log.Info(ctx, "brand created", map[string]any{"brand_id": brand.ID.String(), "user_id": userID.String()})
	return brand, nil
}

// Get returns a brand the caller owns. Foreign brands read as forbidden, not
// hidden, since brand IDs are not secret.
func (s *Service) Get(ctx context.Context, userID, brandID uuid.UUID) (*db.Brand, error) {
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
	return brand, nil
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// List returns one page of the user's brands, newest first. page is
// 1-based; limit is clamped to 100.
func (s *Service) List(ctx context.Context, userID uuid.UUID, page, limit int) ([]*db.Brand, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	brands, err := s.brands.ListByUser(ctx, userID, limit, (page-1)*limit)
	if err != nil {
		return nil, apperrors.DatabaseError("failed to list brands").WithCause(err)
	}
	if brands == nil {
		brands = []*db.Brand{}
	}
	return brands, nil
}

type UpdateInput struct {
	Title       *string
	Description *string
	Guidelines  *db.BrandGuidelines
}

func (s *Service) Update(ctx context.Context, userID, brandID uuid.UUID, in UpdateInput) (*db.Brand, error) {
	brand, err := s.Get(ctx, userID, brandID)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		if *in.Title == "" {
			return nil, apperrors.ValidationError("title cannot be empty")
		}
		brand.Title = *in.Title
	}
	if in.Description != nil {
		brand.Description = *in.Description
	}
	if in.Guidelines != nil {
		brand.Guidelines = *in.Guidelines
	}

	if err := s.brands.Update(ctx, brand); err != nil {
		return nil, apperrors.DatabaseError("failed to update brand").WithCause(err)
	}
	return brand, nil
}

// Delete removes a brand and its stored product images. Brands with live
// projects cannot be deleted.
func (s *Service) Delete(ctx context.Context, userID, brandID uuid.UUID) error {
	brand, err := s.Get(ctx, userID, brandID)
	if err != nil {
		return err
	}

	count, err := s.projects.CountByBrand(ctx, brandID)
	if err != nil {
		return apperrors.DatabaseError("failed to count brand projects").WithCause(err)
	}
	if count > 0 {
		return apperrors.Conflict("brand has projects; delete them first")
	}

	if err := s.brands.Delete(ctx, brandID); err != nil {
		return apperrors.DatabaseError("failed to delete brand").WithCause(err)
	}

	for _, img := range brand.ProductImages {
		if err := s.objects.DeleteObject(ctx, img.StorageKey); err != nil {
			// The database row is gone; orphaned objects only cost storage.
			s.log.Warn(ctx, "failed to delete product image", map[string]any{
				"key": img.StorageKey, "error": err.Error(),
			})
		}
	}

	s.log.Info(ctx, "brand deleted", map[string]any{"brand_id": brandID.String()})
	return nil
}

// Product image bounds. A brand needs MinProductImages before it can back
// an ad project and never holds more than MaxProductImages.
const (
	MinProductImages = 2
	MaxProductImages = 10
)

// AddProductImage validates and stores an uploaded product photo, then
// appends it to the brand's image list.
func (s *Service) AddProductImage(ctx context.Context, userID, brandID uuid.UUID, filename, contentType string, size int64, r io.Reader) (*db.Brand, error) {
	brand, err := s.Get(ctx, userID, brandID)
	if err != nil {
		return nil, err
	}

	if len(brand.ProductImages) >= MaxProductImages {
		return nil, apperrors.ValidationError("a brand can have at most 10 product images")
	}

	head := make([]byte, upload.SniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, apperrors.BadRequest("failed to read upload")
	}
	head = head[:n]

	if err := upload.Validate(upload.KindImage, filename, size, head); err != nil {
		return nil, err
	}

	imageID := uuid.New()
	key := storage.UploadKey(userID, imageID, filename)

	body := io.MultiReader(bytes.NewReader(head), r)
	if err := s.objects.PutObject(ctx, key, body, size, contentType); err != nil {
		return nil, apperrors.StorageError("failed to store product image").WithCause(err)
	}

	brand.ProductImages = append(brand.ProductImages, db.ProductImage{
		StorageKey: key,
		Filename:   filename,
		MimeType:   contentType,
		FileSize:   size,
	})

	if err := s.brands.Update(ctx, brand); err != nil {
		if delErr := s.objects.DeleteObject(ctx, key); delErr != nil {
			s.log.Warn(ctx, "failed to clean up orphaned image", map[string]any{"key": key})
		}
		return nil, apperrors.DatabaseError("failed to attach product image").WithCause(err)
	}

	return brand, nil
}

// RemoveProductImage detaches an image by storage key and deletes the object.
func (s *Service) RemoveProductImage(ctx context.Context, userID, brandID uuid.UUID, storageKey string) (*db.Brand, error) {
	brand, err := s.Get(ctx, userID, brandID)
	if err != nil {
		return nil, err
	}

	found := false
	images := brand.ProductImages[:0]
	for _, img := range brand.ProductImages {
		if img.StorageKey == storageKey {
			found = true
			continue
		}
		images = append(images, img)
	}
	if !found {
		return nil, apperrors.NotFound("product image")
	}
	brand.ProductImages = images

	if err := s.brands.Update(ctx, brand); err != nil {
		return nil, apperrors.DatabaseError("failed to detach product image").WithCause(err)
	}

	if err := s.objects.DeleteObject(ctx, storageKey); err != nil {
		s.log.Warn(ctx, "failed to delete detached image", map[string]any{"key": storageKey})
	}

	return brand, nil
}
