package upload

import (
	"net/http"
	"path/filepath"
	"strings"

	apperrors "github.com/adgenie/backend/internal/errors"
)

const (
	MaxImageSize = 10 << 20  // 10 MB
	MaxVideoSize = 500 << 20 // 500 MB
	MaxAudioSize = 50 << 20  // 50 MB

	// SniffLen is how many leading bytes are needed for content sniffing.
	SniffLen = 512
)

// Kind groups MIME families with their own size ceilings.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
)

var imageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

var videoTypes = map[string]bool{
	"video/mp4":       true,
	"video/quicktime": true,
	"video/webm":      true,
}

var audioTypes = map[string]bool{
	"audio/mpeg": true,
	"audio/wav":  true,
	"audio/aac":  true,
	"audio/ogg":  true,
}

var extByKind = map[Kind]map[string]bool{
	KindImage: {".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true},
	KindVideo: {".mp4": true, ".mov": true, ".webm": true},
	KindAudio: {".mp3": true, ".wav": true, ".aac": true, ".ogg": true},
}

// MaxSize returns the size ceiling for a kind.
func MaxSize(kind Kind) int64 {
	switch kind {
	case KindVideo:
		return MaxVideoSize
	case KindAudio:
		return MaxAudioSize
	default:
		return MaxImageSize
	}
}

// Validate checks a client upload against the kind's extension allowlist,
// size ceiling, and sniffed content type. head holds the file's first bytes
// (up to SniffLen); the declared Content-Type header is advisory only and
// never trusted on its own.
func Validate(kind Kind, filename string, size int64, head []byte) error {
	ext := strings.ToLower(filepath.Ext(filename))
	allowed, ok := extByKind[kind]
	if !ok {
		return apperrors.ValidationError("unsupported upload kind")
	}
	if !allowed[ext] {
		return apperrors.ValidationError("file extension " + ext + " is not allowed")
	}

	if size <= 0 {
		return apperrors.ValidationError("file is empty")
	}
	if size > MaxSize(kind) {
		return apperrors.PayloadTooLarge("file exceeds the size limit for " + string(kind) + " uploads")
	}

	sniffed := http.DetectContentType(head)
	if !matchesKind(kind, sniffed) {
		return apperrors.ValidationError("file content does not match its extension")
	}

	return nil
}

func matchesKind(kind Kind, contentType string) bool {
	// DetectContentType may append parameters ("; charset=...").
	contentType = strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])

	switch kind {
	case KindImage:
		return imageTypes[contentType]
	case KindVideo:
		// mp4 sniffing is unreliable across muxers; accept the generic
		// octet-stream fallback for video payloads.
		return videoTypes[contentType] || contentType == "application/octet-stream"
	case KindAudio:
		return audioTypes[contentType] || contentType == "application/octet-stream"
	}
	return false
}
