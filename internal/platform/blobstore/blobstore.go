// Package blobstore issues presigned upload URLs so clients can send files
// such as order signatures straight to object storage. File bytes never pass
// through the API.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var (
	ErrInvalidContentType = errors.New("content type is not allowed")
	ErrMissingFileName    = errors.New("file name is required")
)

// DefaultExpiry is how long an upload URL stays valid.
const DefaultExpiry = 15 * time.Minute

// SignatureContentTypes lists what may be uploaded as an order signature.
var SignatureContentTypes = map[string]bool{
	"image/png":       true,
	"image/jpeg":      true,
	"application/pdf": true,
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Upload is a presigned PUT target.
type Upload struct {
	URL       string    `json:"uploadUrl"`
	Key       string    `json:"fileKey"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Presigner signs a PUT for one object key.
type Presigner interface {
	PresignPut(ctx context.Context, key string, expiry time.Duration) (*url.URL, error)
}

// Config locates the S3-compatible bucket.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// MinioPresigner signs URLs with minio-go. With Region set no network call
// is made to resolve the bucket location.
type MinioPresigner struct {
	client *minio.Client
	bucket string
}

func NewMinioPresigner(cfg Config) (*MinioPresigner, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, errors.New("storage endpoint and bucket are required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &MinioPresigner{client: client, bucket: cfg.Bucket}, nil
}

func (p *MinioPresigner) PresignPut(ctx context.Context, key string, expiry time.Duration) (*url.URL, error) {
	u, err := p.client.PresignedPutObject(ctx, p.bucket, key, expiry)
	if err != nil {
		return nil, fmt.Errorf("presign %s: %w", key, err)
	}
	return u, nil
}

// Store hands out upload targets under a fixed key layout.
type Store struct {
	presigner Presigner
	expiry    time.Duration
	now       func() time.Time
}

func NewStore(p Presigner, expiry time.Duration) *Store {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Store{presigner: p, expiry: expiry, now: time.Now}
}

// SignatureUpload returns a presigned URL for an order signature file.
// The key is uploads/orders/<orderID>/signatures/<uuid>_<file>.
func (s *Store) SignatureUpload(ctx context.Context, orderID int64, contentType, fileName string) (*Upload, error) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if !SignatureContentTypes[ct] {
		return nil, fmt.Errorf("%w: %q", ErrInvalidContentType, contentType)
	}
	name := SanitizeFileName(fileName)
	if name == "" {
		return nil, ErrMissingFileName
	}

	key := SignatureKeyPrefix(orderID) + uuid.NewString() + "_" + name
	u, err := s.presigner.PresignPut(ctx, key, s.expiry)
	if err != nil {
		return nil, err
	}
	return &Upload{URL: u.String(), Key: key, ExpiresAt: s.now().Add(s.expiry).UTC()}, nil
}

// SignatureKeyPrefix is the object key prefix under which an order's
// signature files are stored.
func SignatureKeyPrefix(orderID int64) string {
	return fmt.Sprintf("uploads/orders/%d/signatures/", orderID)
}

// SanitizeFileName drops any directory part and replaces characters that are
// unsafe in object keys.
func SanitizeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	if name == "." || name == "/" {
		return ""
	}
	return strings.Trim(unsafeFileChars.ReplaceAllString(name, "_"), "_")
}
