package assets

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/adgenie/backend/internal/db"
	apperrors "github.com/adgenie/backend/internal/errors"
	"github.com/adgenie/backend/internal/logger"
	"github.com/adgenie/backend/internal/storage"
	"github.com/adgenie/backend/internal/upload"
)

type AssetStore interface {
	Create(ctx context.Context, asset *db.Asset) error
	GetByID(ctx context.Context, id uuid.UUID) (*db.Asset, error)
	ListByUser(ctx context.Context, userID uuid.UUID, assetType db.AssetType, limit, offset int) ([]*db.Asset, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ObjectStore is the slice of blob storage assets live in.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	DeleteObject(ctx context.Context, key string) error
}

// URLSigner mints presigned download URLs for stored objects.
type URLSigner interface {
	DownloadURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

const (
	defaultPageSize = 20
	maxPageSize     = 100

	// MaxFilesPerUpload bounds a single multipart upload request.
	MaxFilesPerUpload = 10

	MinDownloadExpiry = time.Hour
	MaxDownloadExpiry = 168 * time.Hour
)

type Service struct {
	assets  AssetStore
	objects ObjectStore
	signer  URLSigner
	log     *logger.Logger
}

func NewService(assets AssetStore, objects ObjectStore, signer URLSigner) *Service {
	return &Service{
		assets:  assets,
		objects: objects,
		signer:  signer,
		log:     logger.WithComponent("assets"),
	}
}

func kindForAssetType(t db.AssetType) upload.Kind {
	switch t {
	case db.AssetGeneratedVideo, db.AssetSceneVideo:
		return upload.KindVideo
	case db.AssetGeneratedAudio:
		return upload.KindAudio
	default:
		return upload.KindImage
	}
}

// generatedType reports whether assets of this type come out of the
// pipeline rather than straight from the user.
func generatedType(t db.AssetType) bool {
	switch t {
	case db.AssetGeneratedVideo, db.AssetSceneVideo, db.AssetGeneratedAudio:
		return true
	}
	return false
}

// storageKey picks the key scheme for an asset: pipeline outputs are laid
// out by type, user uploads keep their filename.
func storageKey(assetType db.AssetType, userID, assetID uuid.UUID, filename string) string {
	if generatedType(assetType) {
		return storage.GeneratedKey(assetType, userID, assetID, filepath.Ext(filename))
	}
	return storage.UploadKey(userID, assetID, filename)
}

// Upload validates and stores one file, then records it as an asset.
func (s *Service) Upload(ctx context.Context, userID uuid.UUID, assetType db.AssetType, filename, contentType string, size int64, r io.Reader) (*db.Asset, error) {
	if !db.ValidAssetType(assetType) {
		return nil, apperrors.ValidationError("unknown asset type " + string(assetType))
	}

	head := make([]byte, upload.SniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, apperrors.BadRequest("failed to read upload")
	}
	head = head[:n]

	kind := kindForAssetType(assetType)
	if err := upload.Validate(kind, filename, size, head); err != nil {
		return nil, err
	}

	assetID := uuid.New()
	key := storageKey(assetType, userID, assetID, filename)

	body := io.MultiReader(bytes.NewReader(head), r)
	if err := s.objects.PutObject(ctx, key, body, size, contentType); err != nil {
		return nil, apperrors.StorageError("failed to store asset").WithCause(err)
	}

	now := time.Now()
	asset := &db.Asset{
		ID:               assetID,
		UserID:           userID,
		StorageKey:       key,
		OriginalFilename: filename,
		FileSize:         size,
		MimeType:         contentType,
		AssetType:        assetType,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.assets.Create(ctx, asset); err != nil {
		if delErr := s.objects.DeleteObject(ctx, key); delErr != nil {
			s.log.Warn(ctx, "failed to clean up orphaned object", map[string]any{"key": key})
		}
		return nil, apperrors.DatabaseError("failed to record asset").WithCause(err)
	}

	s.log.Info(ctx, "asset uploaded", map[string]any{
		"asset_id": assetID.String(), "asset_type": string(assetType), "size": size,
	})
	return asset, nil
}

func (s *Service) Get(ctx context.Context, userID, assetID uuid.UUID) (*db.Asset, error) {
	asset, err := s.assets.GetByID(ctx, assetID)
	if err != nil {
		if errors.Is(err, db.ErrAssetNotFound) {
			return nil, apperrors.AssetNotFound()
		}
		return nil, apperrors.DatabaseError("failed to load asset").WithCause(err)
	}
	if asset.UserID != userID {
		return nil, apperrors.Forbidden("you do not own this asset")
	}
	return asset, nil
}

// List returns the caller's assets, optionally filtered by type.
func (s *Service) List(ctx context.Context, userID uuid.UUID, assetType db.AssetType, page, limit int) ([]*db.Asset, error) {
	if assetType != "" && !db.ValidAssetType(assetType) {
		return nil, apperrors.ValidationError("unknown asset type " + string(assetType))
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	assets, err := s.assets.ListByUser(ctx, userID, assetType, limit, (page-1)*limit)
	if err != nil {
		return nil, apperrors.DatabaseError("failed to list assets").WithCause(err)
	}
	if assets == nil {
		assets = []*db.Asset{}
	}
	return assets, nil
}

// Delete removes the asset row and its stored object.
func (s *Service) Delete(ctx context.Context, userID, assetID uuid.UUID) error {
	asset, err := s.Get(ctx, userID, assetID)
	if err != nil {
		return err
	}

	if err := s.assets.Delete(ctx, assetID); err != nil {
		return apperrors.DatabaseError("failed to delete asset").WithCause(err)
	}
	if err := s.objects.DeleteObject(ctx, asset.StorageKey); err != nil {
		s.log.Warn(ctx, "failed to delete stored object", map[string]any{"key": asset.StorageKey})
	}

	s.log.Info(ctx, "asset deleted", map[string]any{"asset_id": assetID.String()})
	return nil
}

// DownloadURL presigns a time-limited GET for the asset's object. Expiry is
// clamped to [1h, 168h].
func (s *Service) DownloadURL(ctx context.Context, userID, assetID uuid.UUID, expiry time.Duration) (string, error) {
	asset, err := s.Get(ctx, userID, assetID)
	if err != nil {
		return "", err
	}

	if expiry < MinDownloadExpiry {
		expiry = MinDownloadExpiry
	}
	if expiry > MaxDownloadExpiry {
		expiry = MaxDownloadExpiry
	}

	url, err := s.signer.DownloadURL(ctx, asset.StorageKey, expiry)
	if err != nil {
		return "", apperrors.StorageError("failed to presign download").WithCause(err)
	}
	return url, nil
}
