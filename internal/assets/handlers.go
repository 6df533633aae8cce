package assets

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/adgenie/backend/internal/auth"
	"github.com/adgenie/backend/internal/db"
	apperrors "github.com/adgenie/backend/internal/errors"
	"github.com/adgenie/backend/internal/upload"
)

type Handlers struct {
	service *Service
}

func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// AssetView is the JSON shape of an asset.
type AssetView struct {
	ID               string    `json:"id"`
	AssetType        string    `json:"asset_type"`
	OriginalFilename string    `json:"original_filename"`
	FileSize         int64     `json:"file_size"`
	MimeType         string    `json:"mime_type"`
	CreatedAt        time.Time `json:"created_at"`
}

func NewAssetView(asset *db.Asset) *AssetView {
	return &AssetView{
		ID:               asset.ID.String(),
		AssetType:        string(asset.AssetType),
		OriginalFilename: asset.OriginalFilename,
		FileSize:         asset.FileSize,
		MimeType:         asset.MimeType,
		CreatedAt:        asset.CreatedAt,
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

// Upload accepts up to MaxFilesPerUpload multipart files under the "files"
// field, all sharing the asset type from the "asset_type" form value.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) error {
	user, err := caller(r)
	if err != nil {
		return err
	}

	r.Body = http.MaxBytesReader(w, r.Body, int64(MaxFilesPerUpload)*upload.MaxVideoSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return apperrors.PayloadTooLarge("upload too large")
	}

	assetType := db.AssetType(r.FormValue("asset_type"))
	if !db.ValidAssetType(assetType) {
		return apperrors.ValidationError("unknown asset type " + string(assetType))
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		return apperrors.BadRequest("missing files field")
	}
	if len(files) > MaxFilesPerUpload {
		return apperrors.ValidationError("at most " + strconv.Itoa(MaxFilesPerUpload) + " files per upload")
	}

	views := make([]*AssetView, 0, len(files))
	for _, header := range files {
		file, err := header.Open()
		if err != nil {
			return apperrors.BadRequest("failed to read upload")
		}

		asset, err := h.service.Upload(r.Context(), user.UserID, assetType,
			header.Filename, header.Header.Get("Content-Type"), header.Size, file)
		file.Close()
		if err != nil {
			return err
		}
		views = append(views, NewAssetView(asset))
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusCreated,
		map[string]any{"assets": views})
	return nil
}

func (h *Handlers) List(w http.ResponseWriter, r *http.Request) error {
	user, err := caller(r)
	if err != nil {
		return err
	}

	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	assetType := db.AssetType(q.Get("type"))

	assets, err := h.service.List(r.Context(), user.UserID, assetType, page, limit)
	if err != nil {
		return err
	}

	views := make([]*AssetView, 0, len(assets))
	for _, asset := range assets {
		views = append(views, NewAssetView(asset))
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK,
		map[string]any{"assets": views})
	return nil
}

func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) error {
	user, err := caller(r)
	if err != nil {
		return err
	}
	assetID, err := pathID(r, "id")
	if err != nil {
		return err
	}

	asset, err := h.service.Get(r.Context(), user.UserID, assetID)
	if err != nil {
		return err
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, NewAssetView(asset))
	return nil
}

func (h *Handlers) Delete(w http.ResponseWriter, r *http.Request) error {
	user, err := caller(r)
	if err != nil {
		return err
	}
	assetID, err := pathID(r, "id")
	if err != nil {
		return err
	}

	if err := h.service.Delete(r.Context(), user.UserID, assetID); err != nil {
		return err
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}

// DownloadURL returns a presigned GET for the asset. The optional
// expiry_hours query parameter is clamped to [1, 168].
func (h *Handlers) DownloadURL(w http.ResponseWriter, r *http.Request) error {
	user, err := caller(r)
	if err != nil {
		return err
	}
	assetID, err := pathID(r, "id")
	if err != nil {
		return err
	}

	expiry := MinDownloadExpiry
	if raw := r.URL.Query().Get("expiry_hours"); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil {
			return apperrors.BadRequest("invalid expiry_hours")
		}
		expiry = time.Duration(hours) * time.Hour
	}
	if expiry < MinDownloadExpiry {
		expiry = MinDownloadExpiry
	}
	if expiry > MaxDownloadExpiry {
		expiry = MaxDownloadExpiry
	}

	url, err := h.service.DownloadURL(r.Context(), user.UserID, assetID, expiry)
	if err != nil {
		return err
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK,
		map[string]any{
			"url":        url,
			"expires_at": time.Now().Add(expiry).UTC(),
		})
	return nil
}
