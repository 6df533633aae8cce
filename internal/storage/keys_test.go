package storage

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/adgenie/backend/internal/db"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "photo.jpg", want: "photo.jpg"},
		{name: "spaces collapsed", in: "my  product photo.jpg", want: "my-product-photo.jpg"},
		{name: "diacritics stripped", in: "café-menü.png", want: "cafe-menu.png"},
		{name: "path discarded", in: "../../etc/passwd", want: "passwd"},
		{name: "windows path discarded", in: `C:\Users\me\photo.jpg`, want: "photo.jpg"},
		{name: "special characters", in: "ad (final) [v2]!.mp4", want: "ad-final-v2-.mp4"},
		{name: "empty becomes placeholder", in: "", want: "file"},
		{name: "only junk becomes placeholder", in: "???", want: "file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFilename(tt.in); got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeFilenameLength(t *testing.T) {
	long := strings.Repeat("a", 200) + ".jpg"
	got := SanitizeFilename(long)
	if len(got) > 100 {
		t.Errorf("length = %d, want <= 100", len(got))
	}
	if !strings.HasSuffix(got, ".jpg") {
		t.Errorf("extension lost: %q", got)
	}
}

func TestUploadKey(t *testing.T) {
	userID := uuid.New()
	assetID := uuid.New()

	key := UploadKey(userID, assetID, "my photo.jpg")

	if !strings.HasPrefix(key, "uploads/"+userID.String()+"/") {
		t.Errorf("key %q not under the user's prefix", key)
	}
	if !strings.Contains(key, assetID.String()) {
		t.Errorf("key %q does not embed the asset ID", key)
	}
	if strings.Contains(key, " ") {
		t.Errorf("key %q contains a space", key)
	}
}

func TestGeneratedKey(t *testing.T) {
	userID := uuid.New()
	assetID := uuid.New()

	key := GeneratedKey(db.AssetGeneratedVideo, userID, assetID, ".mp4")
	want := "generated/generated_video/" + userID.String() + "/" + assetID.String() + ".mp4"
	if key != want {
		t.Errorf("key = %q, want %q", key, want)
	}
}
