package brands

import (
	"encoding/json"
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

// BrandView is the JSON shape of a brand.
type BrandView struct {
	ID            string             `json:"id"`
	Title         string             `json:"title"`
	Description   string             `json:"description,omitempty"`
	ProductImages []db.ProductImage  `json:"product_images"`
	Guidelines    db.BrandGuidelines `json:"brand_guidelines"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

func NewBrandView(brand *db.Brand) *BrandView {
	images := brand.ProductImages
	if images == nil {
		images = []db.ProductImage{}
	}
	return &BrandView{
		ID:            brand.ID.String(),
		Title:         brand.Title,
		Description:   brand.Description,
		ProductImages: images,
		Guidelines:    brand.Guidelines,
		CreatedAt:     brand.CreatedAt,
		UpdatedAt:     brand.UpdatedAt,
	}
}

type createRequest struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Guidelines  db.BrandGuidelines `json:"brand_guidelines"`
}

type updateRequest struct {
	Title       *string             `json:"title"`
	Description *string             `json:"description"`
	Guidelines  *db.BrandGuidelines `json:"brand_guidelines"`
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

func (h *Handlers) Create(w http.ResponseWriter, r *http.Request) error {
	user, err := caller(r)
	if err != nil {
		return err
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("invalid request body")
	}

	brand, err := h.service.Create(r.Context(), user.UserID, CreateInput{
		Title:       req.Title,
		Description: req.Description,
		Guidelines:  req.Guidelines,
	})
	if err != nil {
		return err
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusCreated, NewBrandView(brand))
	return nil
}

func (h *Handlers) List(w http.ResponseWriter, r *http.Request) error {
	user, err := caller(r)
	if err != nil {
		return err
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	brands, err := h.service.List(r.Context(), user.UserID, page, limit)
	if err != nil {
		return err
	}

	views := make([]*BrandView, 0, len(brands))
	for _, b := range brands {
		views = append(views, NewBrandView(b))
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK,
		map[string]any{"brands": views})
	return nil
}

func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) error {
	user, err := caller(r)
	if err != nil {
		return err
	}
	brandID, err := pathID(r, "id")
	if err != nil {
		return err
	}

	brand, err := h.service.Get(r.Context(), user.UserID, brandID)
	if err != nil {
		return err
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, NewBrandView(brand))
	return nil
}

func (h *Handlers) Update(w http.ResponseWriter, r *http.Request) error {
	user, err := caller(r)
	if err != nil {
		return err
	}
	brandID, err := pathID(r, "id")
	if err != nil {
		return err
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("invalid request body")
	}

	brand, err := h.service.Update(r.Context(), user.UserID, brandID, UpdateInput{
		Title:       req.Title,
		Description: req.Description,
		Guidelines:  req.Guidelines,
	})
	if err != nil {
		return err
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, NewBrandView(brand))
	return nil
}

func (h *Handlers) Delete(w http.ResponseWriter, r *http.Request) error {
	user, err := caller(r)
	if err != nil {
		return err
	}
	brandID, err := pathID(r, "id")
	if err != nil {
		return err
	}

	if err := h.service.Delete(r.Context(), user.UserID, brandID); err != nil {
		return err
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}

// UploadImage accepts a multipart product photo under the "image" field.
func (h *Handlers) UploadImage(w http.ResponseWriter, r *http.Request) error {
	user, err := caller(r)
	if err != nil {
		return err
	}
	brandID, err := pathID(r, "id")
	if err != nil {
		return err
	}

	r.Body = http.MaxBytesReader(w, r.Body, upload.MaxImageSize+1<<20)
	if err := r.ParseMultipartForm(4 << 20); err != nil {
		return apperrors.PayloadTooLarge("upload too large")
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		return apperrors.BadRequest("missing image field")
	}
	defer file.Close()

	brand, err := h.service.AddProductImage(r.Context(), user.UserID, brandID,
		header.Filename, header.Header.Get("Content-Type"), header.Size, file)
	if err != nil {
		return err
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusCreated, NewBrandView(brand))
	return nil
}

func (h *Handlers) DeleteImage(w http.ResponseWriter, r *http.Request) error {
	user, err := caller(r)
	if err != nil {
		return err
	}
	brandID, err := pathID(r, "id")
	if err != nil {
		return err
	}

	key := r.URL.Query().Get("key")
	if key == "" {
		return apperrors.BadRequest("missing key parameter")
	}

	brand, err := h.service.RemoveProductImage(r.Context(), user.UserID, brandID, key)
	if err != nil {
		return err
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, NewBrandView(brand))
	return nil
}
