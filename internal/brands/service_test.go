package brands

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/adgenie/backend/internal/db"
	apperrors "github.com/adgenie/backend/internal/errors"
)

type fakeBrandStore struct {
	mu     sync.Mutex
	brands map[uuid.UUID]*db.Brand
}

func newFakeBrandStore() *fakeBrandStore {
	return &fakeBrandStore{brands: make(map[uuid.UUID]*db.Brand)}
}

func (s *fakeBrandStore) Create(_ context.Context, brand *db.Brand) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *brand
	s.brands[brand.ID] = &clone
	return nil
}

func (s *fakeBrandStore) GetByID(_ context.Context, id uuid.UUID) (*db.Brand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.brands[id]
	if !ok {
		return nil, db.ErrBrandNotFound
	}
	clone := *b
	return &clone, nil
}

func (s *fakeBrandStore) ListByUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]*db.Brand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*db.Brand
	for _, b := range s.brands {
		if b.UserID == userID {
			clone := *b
			out = append(out, &clone)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeBrandStore) Update(_ context.Context, brand *db.Brand) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.brands[brand.ID]; !ok {
		return db.ErrBrandNotFound
	}
	clone := *brand
	s.brands[brand.ID] = &clone
	return nil
}

func (s *fakeBrandStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.brands[id]; !ok {
		return db.ErrBrandNotFound
	}
	delete(s.brands, id)
	return nil
}

type fakeProjectCounter struct {
	counts map[uuid.UUID]int
}

func (c *fakeProjectCounter) CountByBrand(_ context.Context, brandID uuid.UUID) (int, error) {
	return c.counts[brandID], nil
}

type fakeObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: make(map[string][]byte)}
}

func (s *fakeObjectStore) PutObject(_ context.Context, key string, reader io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *fakeObjectStore) DeleteObject(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func newTestService() (*Service, *fakeBrandStore, *fakeProjectCounter, *fakeObjectStore) {
	brands := newFakeBrandStore()
	projects := &fakeProjectCounter{counts: make(map[uuid.UUID]int)}
	objects := newFakeObjectStore()
	return NewService(brands, projects, objects), brands, projects, objects
}

func wantCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error code %s, got nil", code)
	}
	if got := apperrors.Code(err); got != code {
		t.Fatalf("error code = %s, want %s (err: %v)", got, code, err)
	}
}

func TestCreateAndGet(t *testing.T) {
	service, _, _, _ := newTestService()
	ctx := context.Background()
	userID := uuid.New()

	brand, err := service.Create(ctx, userID, CreateInput{Title: "Acme Coffee"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	got, err := service.Get(ctx, userID, brand.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Title != "Acme Coffee" {
		t.Errorf("title = %q, want %q", got.Title, "Acme Coffee")
	}
}

func TestCreateRequiresTitle(t *testing.T) {
	service, _, _, _ := newTestService()

	_, err := service.Create(context.Background(), uuid.New(), CreateInput{})
	wantCode(t, err, apperrors.CodeValidationError)
}

func TestGetEnforcesOwnership(t *testing.T) {
	service, _, _, _ := newTestService()
	ctx := context.Background()

	brand, err := service.Create(ctx, uuid.New(), CreateInput{Title: "Mine"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	_, err = service.Get(ctx, uuid.New(), brand.ID)
	wantCode(t, err, apperrors.CodeForbidden)

	_, err = service.Get(ctx, uuid.New(), uuid.New())
	wantCode(t, err, apperrors.CodeBrandNotFound)
}

func TestUpdatePartialFields(t *testing.T) {
	service, _, _, _ := newTestService()
	ctx := context.Background()
	userID := uuid.New()

	brand, err := service.Create(ctx, userID, CreateInput{Title: "Before", Description: "keep me"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	title := "After"
	updated, err := service.Update(ctx, userID, brand.ID, UpdateInput{Title: &title})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Title != "After" {
		t.Errorf("title = %q, want After", updated.Title)
	}
	if updated.Description != "keep me" {
		t.Errorf("description changed unexpectedly: %q", updated.Description)
	}
}

func TestDeleteBlockedByProjects(t *testing.T) {
	service, _, projects, _ := newTestService()
	ctx := context.Background()
	userID := uuid.New()

	brand, err := service.Create(ctx, userID, CreateInput{Title: "Busy"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	projects.counts[brand.ID] = 2

	err = service.Delete(ctx, userID, brand.ID)
	wantCode(t, err, apperrors.CodeConflict)

	// Still there.
	if _, err := service.Get(ctx, userID, brand.ID); err != nil {
		t.Errorf("brand should survive a blocked delete: %v", err)
	}
}

func TestDeleteRemovesImages(t *testing.T) {
	service, _, _, objects := newTestService()
	ctx := context.Background()
	userID := uuid.New()

	brand, err := service.Create(ctx, userID, CreateInput{Title: "Acme"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 100)...)
	updated, err := service.AddProductImage(ctx, userID, brand.ID, "shot.png", "image/png",
		int64(len(png)), bytes.NewReader(png))
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if len(updated.ProductImages) != 1 {
		t.Fatalf("image count = %d, want 1", len(updated.ProductImages))
	}
	key := updated.ProductImages[0].StorageKey
	if _, ok := objects.objects[key]; !ok {
		t.Fatal("object not stored")
	}

	if err := service.Delete(ctx, userID, brand.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, ok := objects.objects[key]; ok {
		t.Error("object should be deleted with the brand")
	}
}

func TestAddProductImageRejectsBadContent(t *testing.T) {
	service, _, _, _ := newTestService()
	ctx := context.Background()
	userID := uuid.New()

	brand, err := service.Create(ctx, userID, CreateInput{Title: "Acme"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	text := []byte("this is not an image at all, just plain text bytes")
	_, err = service.AddProductImage(ctx, userID, brand.ID, "shot.png", "image/png",
		int64(len(text)), bytes.NewReader(text))
	wantCode(t, err, apperrors.CodeValidationError)
}

func TestAddProductImageCeiling(t *testing.T) {
	service, store, _, objects := newTestService()
	ctx := context.Background()
	userID := uuid.New()

	brand, err := service.Create(ctx, userID, CreateInput{Title: "Acme"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	full := store.brands[brand.ID]
	for i := 0; i < MaxProductImages; i++ {
		full.ProductImages = append(full.ProductImages, db.ProductImage{StorageKey: "uploads/existing"})
	}

	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 100)...)
	_, err = service.AddProductImage(ctx, userID, brand.ID, "shot.png", "image/png",
		int64(len(png)), bytes.NewReader(png))
	wantCode(t, err, apperrors.CodeValidationError)

	if len(objects.objects) != 0 {
		t.Errorf("rejected upload stored %d objects, want 0", len(objects.objects))
	}
}

func TestAddProductImageStoresFullBody(t *testing.T) {
	service, _, _, objects := newTestService()
	ctx := context.Background()
	userID := uuid.New()

	brand, err := service.Create(ctx, userID, CreateInput{Title: "Acme"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// Body longer than the sniff window; both halves must be stored.
	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{7}, 1024)...)
	updated, err := service.AddProductImage(ctx, userID, brand.ID, "shot.png", "image/png",
		int64(len(png)), bytes.NewReader(png))
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}

	stored := objects.objects[updated.ProductImages[0].StorageKey]
	if !bytes.Equal(stored, png) {
		t.Errorf("stored %d bytes, want %d identical bytes", len(stored), len(png))
	}
}

func TestRemoveProductImage(t *testing.T) {
	service, _, _, objects := newTestService()
	ctx := context.Background()
	userID := uuid.New()

	brand, err := service.Create(ctx, userID, CreateInput{Title: "Acme"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)
	updated, err := service.AddProductImage(ctx, userID, brand.ID, "shot.png", "image/png",
		int64(len(png)), bytes.NewReader(png))
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	key := updated.ProductImages[0].StorageKey

	after, err := service.RemoveProductImage(ctx, userID, brand.ID, key)
	if err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if len(after.ProductImages) != 0 {
		t.Errorf("image count = %d, want 0", len(after.ProductImages))
	}
	if _, ok := objects.objects[key]; ok {
		t.Error("object should be deleted")
	}

	_, err = service.RemoveProductImage(ctx, userID, brand.ID, key)
	wantCode(t, err, apperrors.CodeNotFound)
}

func TestListScopedToUser(t *testing.T) {
	service, _, _, _ := newTestService()
	ctx := context.Background()
	alice := uuid.New()
	bob := uuid.New()

	if _, err := service.Create(ctx, alice, CreateInput{Title: "A1"}); err != nil {
		t.Fatal(err)
	}
	if _, err := service.Create(ctx, alice, CreateInput{Title: "A2"}); err != nil {
		t.Fatal(err)
	}
	if _, err := service.Create(ctx, bob, CreateInput{Title: "B1"}); err != nil {
		t.Fatal(err)
	}

	got, err := service.List(ctx, alice, 1, 20)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("alice's brands = %d, want 2", len(got))
	}

	paged, err := service.List(ctx, alice, 1, 1)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(paged) != 1 {
		t.Errorf("page of one = %d brands, want 1", len(paged))
	}

	empty, err := service.List(ctx, uuid.New(), 1, 20)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Error("unknown user should get an empty, non-nil list")
	}
}
