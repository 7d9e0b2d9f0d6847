// Package blobstore stores downloaded listing thumbnails in a Google Cloud
// Storage bucket. It is a single-bucket trim of
// internal/platform/gcp.BucketService — that file splits storage into
// "avatar"/"material" categories with CDN domains per category; this
// domain only ever stores one kind of object (listing images), so the
// category split and its attrs/copy/list surface are dropped down to
// upload/delete/public-URL.
package blobstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/avitoscout/orchestrator/internal/logging"
)

type Store interface {
	UploadListingImage(ctx context.Context, key string, file io.Reader) error
	DeleteListingImage(ctx context.Context, key string) error
	PublicURL(key string) string
}

type gcsStore struct {
	log           *logging.Logger
	client        *storage.Client
	bucketName    string
	publicBaseURL string
}

// NewFromEnv builds a Store from LISTING_IMAGES_GCS_BUCKET plus the usual
// GCS credential environment (GOOGLE_APPLICATION_CREDENTIALS or
// STORAGE_EMULATOR_HOST for local development), using the same env-driven
// bucket construction as internal/platform/gcp.BucketService.
func NewFromEnv(ctx context.Context, log *logging.Logger) (Store, error) {
	bucketName := strings.TrimSpace(os.Getenv("LISTING_IMAGES_GCS_BUCKET"))
	if bucketName == "" {
		return nil, fmt.Errorf("blobstore: missing LISTING_IMAGES_GCS_BUCKET")
	}

	var opts []option.ClientOption
	if emulatorHost := strings.TrimSpace(os.Getenv("STORAGE_EMULATOR_HOST")); emulatorHost != "" {
		opts = append(opts, option.WithoutAuthentication())
	} else {
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("blobstore: create storage client: %w", err)
	}

	publicBaseURL := strings.TrimRight(strings.TrimSpace(os.Getenv("LISTING_IMAGES_PUBLIC_BASE_URL")), "/")

	log.With("component", "BlobStore").Info("listing image storage initialized", "bucket", bucketName)

	return &gcsStore{
		log:           log.With("component", "BlobStore"),
		client:        client,
		bucketName:    bucketName,
		publicBaseURL: publicBaseURL,
	}, nil
}

func (s *gcsStore) UploadListingImage(ctx context.Context, key string, file io.Reader) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucketName).Object(key).NewWriter(ctx)
	if ct := contentTypeForKey(key); ct != "" {
		w.ContentType = ct
	}
	if _, err := io.Copy(w, file); err != nil {
		_ = w.Close()
		return fmt.Errorf("blobstore: write %q: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("blobstore: close writer for %q: %w", key, err)
	}
	return nil
}

func (s *gcsStore) DeleteListingImage(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := s.client.Bucket(s.bucketName).Object(key).Delete(ctx); err != nil {
		return fmt.Errorf("blobstore: delete %q: %w", key, err)
	}
	return nil
}

func (s *gcsStore) PublicURL(key string) string {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if s.publicBaseURL != "" {
		return fmt.Sprintf("%s/%s/%s", s.publicBaseURL, s.bucketName, key)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucketName, key)
}

func contentTypeForKey(key string) string {
	s := strings.ToLower(strings.TrimSpace(key))
	switch {
	case strings.HasSuffix(s, ".png"):
		return "image/png"
	case strings.HasSuffix(s, ".jpg"), strings.HasSuffix(s, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(s, ".webp"):
		return "image/webp"
	default:
		return ""
	}
}
