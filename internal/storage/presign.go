package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/adgenie/backend/internal/config"
)

// DefaultPresignExpiry bounds how long a download link stays valid.
const DefaultPresignExpiry = 15 * time.Minute

// Presigner issues time-limited download URLs so asset bytes are served
// directly from object storage rather than proxied through the API.
type Presigner struct {
	presign *s3.PresignClient
	bucket  string
}

func NewPresigner(cfg *config.Config) (*Presigner, error) {
	opts := s3.Options{
		Region:       cfg.S3Region,
		Credentials:  awscreds.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		UsePathStyle: cfg.S3UsePathStyle,
	}

	if cfg.S3Endpoint != "" {
		endpoint := cfg.S3Endpoint
		if cfg.S3UseSSL {
			endpoint = "https://" + trimScheme(endpoint)
		} else {
			endpoint = "http://" + trimScheme(endpoint)
		}
		opts.BaseEndpoint = aws.String(endpoint)
	}

	client := s3.New(opts)

	return &Presigner{
		presign: s3.NewPresignClient(client),
		bucket:  cfg.S3Bucket,
	}, nil
}

// DownloadURL returns a presigned GET URL for the given key.
func (p *Presigner) DownloadURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if expiry <= 0 {
		expiry = DefaultPresignExpiry
	}

	req, err := p.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}

	return req.URL, nil
}

func trimScheme(endpoint string) string {
	for _, prefix := range []string{"http://", "https://"} {
		if len(endpoint) > len(prefix) && endpoint[:len(prefix)] == prefix {
			return endpoint[len(prefix):]
		}
	}
	return endpoint
}
