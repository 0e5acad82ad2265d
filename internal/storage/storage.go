// Package storage keeps fetched content in an S3-compatible object store.
// Content is addressed by locations of the form s3://bucket/key.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/jonesrussell/north-cloud/curator/internal/config"
)

const scheme = "s3://"

// ErrInvalidLocation is returned for a content location that is not s3://bucket/key.
var ErrInvalidLocation = errors.New("invalid content location")

// ObjectClient is the subset of *minio.Client used by the curator.
type ObjectClient interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64,
		opts minio.PutObjectOptions) (minio.UploadInfo, error)
	CopyObject(ctx context.Context, dst minio.CopyDestOptions, src minio.CopySrcOptions) (minio.UploadInfo, error)
}

var _ ObjectClient = (*minio.Client)(nil)

// Location returns the content location of an object.
func Location(bucket, key string) string {
	return scheme + bucket + "/" + key
}

// ParseLocation splits an s3://bucket/key location.
func ParseLocation(location string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(location, scheme)
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidLocation, location)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidLocation, location)
	}
	return bucket, key, nil
}

// ContentStore writes fetched entry content into one bucket.
type ContentStore struct {
	client ObjectClient
	bucket string
	now    func() time.Time
}

// NewContentStore creates a store writing to bucket.
func NewContentStore(client ObjectClient, bucket string) *ContentStore {
	return &ContentStore{client: client, bucket: bucket, now: time.Now}
}

// Put stores data under <entryID>/<timestamp>/<name> and returns its location.
// Every call writes a new object so earlier submissions keep their content.
func (s *ContentStore) Put(ctx context.Context, entryID, name, contentType string, data []byte) (string, error) {
	key := path.Join(entryID, s.now().UTC().Format("20060102T150405.000000000Z"), name)
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("put object %s/%s: %w", s.bucket, key, err)
	}
	return Location(s.bucket, key), nil
}

// NewMinIOClient connects to the configured object store.
func NewMinIOClient(cfg config.ObjectStoreConfig) (*minio.Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("object_store.endpoint is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return client, nil
}

// EnsureBuckets creates the content and archive buckets when missing.
func EnsureBuckets(ctx context.Context, client *minio.Client, cfg config.ObjectStoreConfig) error {
	for _, bucket := range []string{cfg.ContentBucket, cfg.ArchiveBucket} {
		exists, err := client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("check bucket %s: %w", bucket, err)
		}
		if exists {
			continue
		}
		if err = client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}
	return nil
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
