package blob

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const DefaultURLExpiry = 15 * time.Minute

type Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

var ErrIncompleteConfig = errors.New("incomplete blob storage config: endpoint, bucket, access key and secret key are required")

func (cfg Config) Validate() error {
	if cfg.Endpoint == "" || cfg.Bucket == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return ErrIncompleteConfig
	}

	return nil
}

// Store keeps uploaded images in an S3 compatible bucket. A nil *Store is
// valid: it hands out no URLs and deletes nothing.
type Store struct {
	client *minio.Client
	bucket string
	expiry time.Duration
}

func NewStore(cfg Config) (*Store, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &Store{client: client, bucket: cfg.Bucket, expiry: DefaultURLExpiry}, nil
}

func objectKey(id string) string {
	return "images/" + id
}

// UploadURL reserves a new blob id and returns a presigned PUT URL for it.
func (s *Store) UploadURL(ctx context.Context) (string, string, error) {
	if s == nil {
		return "", "", nil
	}

	id := uuid.NewString()

	u, err := s.client.PresignedPutObject(ctx, s.bucket, objectKey(id), s.expiry)
	if err != nil {
		return "", "", fmt.Errorf("failed to presign upload: %w", err)
	}

	return id, u.String(), nil
}

func (s *Store) URL(ctx context.Context, id string) (string, error) {
	if s == nil || id == "" {
		return "", nil
	}

	u, err := s.client.PresignedGetObject(ctx, s.bucket, objectKey(id), s.expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to presign download: %w", err)
	}

	return u.String(), nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if s == nil || id == "" {
		return nil
	}

	err := s.client.RemoveObject(ctx, s.bucket, objectKey(id), minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to remove object: %w", err)
	}

	return nil
}
