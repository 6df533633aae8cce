package storage

import (
	"fmt"
	"path"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/adgenie/backend/internal/db"
)

// Object key layout:
//
//	uploads/<user_id>/<asset_id>-<filename>        user uploads (product images)
//	generated/<asset_type>/<user_id>/<asset_id>.<ext>  pipeline outputs
//
// Keys embed the asset ID so they are unique even for identical filenames.

// UploadKey builds the storage key for a user-uploaded file.
func UploadKey(userID, assetID uuid.UUID, filename string) string {
	return fmt.Sprintf("uploads/%s/%s-%s", userID, assetID, SanitizeFilename(filename))
}

// GeneratedKey builds the storage key for a pipeline output.
func GeneratedKey(assetType db.AssetType, userID, assetID uuid.UUID, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	return fmt.Sprintf("generated/%s/%s/%s.%s", assetType, userID, assetID, ext)
}

// SanitizeFilename makes an arbitrary client filename safe for an object
// key: diacritics stripped, spaces collapsed, anything outside a small safe
// set replaced. Path components are discarded.
func SanitizeFilename(filename string) string {
	filename = path.Base(strings.ReplaceAll(filename, `\`, "/"))

	// Strip diacritics: decompose, drop combining marks, recompose.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if stripped, _, err := transform.String(t, filename); err == nil {
		filename = stripped
	}

	var b strings.Builder
	lastDash := false
	for _, r := range filename {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteRune('-')
				lastDash = true
			}
		}
	}

	out := strings.Trim(b.String(), "-.")
	if out == "" {
		return "file"
	}
	if len(out) > 100 {
		out = out[len(out)-100:]
	}
	return out
}
