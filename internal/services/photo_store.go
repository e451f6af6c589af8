package services

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"accounts/internal/config"
)

// PhotoStore persists uploaded profile photos and returns a public URL.
type PhotoStore interface {
	Save(ctx context.Context, key string, contentType string, body io.Reader) (string, error)
	URL(key string) string
}

type s3PhotoStore struct {
	uploader      *manager.Uploader
	bucket        string
	publicBaseURL string
}

func NewS3PhotoStore(cfg *config.S3Config) PhotoStore {
	return &s3PhotoStore{
		uploader:      manager.NewUploader(cfg.Client),
		bucket:        cfg.Bucket,
		publicBaseURL: cfg.PublicBaseURL,
	}
}

func (s *s3PhotoStore) Save(ctx context.Context, key string, contentType string, body io.Reader) (string, error) {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String("profiles/" + key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload photo: %w", err)
	}
	return s.URL(key), nil
}

func (s *s3PhotoStore) URL(key string) string {
	if s.publicBaseURL != "" {
		return fmt.Sprintf("%s/profiles/%s", s.publicBaseURL, key)
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/profiles/%s", s.bucket, key)
}
