package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/jonesrussell/north-cloud/curator/internal/domain"
	"github.com/jonesrussell/north-cloud/curator/internal/storage"
)

const (
	archiveStyleObject    = "style.sld"
	archiveMetadataObject = "entry.json"
)

// ArchiveSettings is the channel settings document of an archive channel.
type ArchiveSettings struct {
	// Bucket overrides the default archive bucket.
	Bucket string `json:"bucket"`
	Prefix string `json:"prefix"`
}

// Archive copies published content into a long-term object store bucket.
type Archive struct {
	client        storage.ObjectClient
	defaultBucket string
	now           func() time.Time
}

// NewArchive creates an archive backend writing to defaultBucket unless a
// channel names its own.
func NewArchive(client storage.ObjectClient, defaultBucket string) *Archive {
	return &Archive{client: client, defaultBucket: defaultBucket, now: time.Now}
}

func (a *Archive) Kind() domain.BackendKind { return domain.BackendArchive }

// Publish copies the active content and writes the entry metadata under
// <prefix>/<entryID>/. A symbology-only request writes the style alone.
func (a *Archive) Publish(ctx context.Context, req Request) error {
	var s ArchiveSettings
	if err := decodeSettings(req.Channel.Settings, &s); err != nil {
		return err
	}
	bucket := s.Bucket
	if bucket == "" {
		bucket = a.defaultBucket
	}
	dir := path.Join(strings.Trim(s.Prefix, "/"), req.Entry.ID)

	if req.SymbologyOnly {
		return a.putStyle(ctx, bucket, dir, req.Entry)
	}

	if req.ContentLocation == "" {
		return fmt.Errorf("%w: entry %s has no active content", domain.ErrValidation, req.Entry.ID)
	}
	srcBucket, srcKey, err := storage.ParseLocation(req.ContentLocation)
	if err != nil {
		return err
	}

	dst := minio.CopyDestOptions{Bucket: bucket, Object: path.Join(dir, path.Base(srcKey))}
	src := minio.CopySrcOptions{Bucket: srcBucket, Object: srcKey}
	if _, err = a.client.CopyObject(ctx, dst, src); err != nil {
		return fmt.Errorf("archive content %s: %w", req.ContentLocation, err)
	}

	meta, err := json.Marshal(map[string]any{
		"entry":       req.Entry,
		"source":      req.ContentLocation,
		"archived_at": a.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode archive metadata: %w", err)
	}
	if err = a.put(ctx, bucket, path.Join(dir, archiveMetadataObject), "application/json", meta); err != nil {
		return err
	}
	return a.putStyle(ctx, bucket, dir, req.Entry)
}

func (a *Archive) putStyle(ctx context.Context, bucket, dir string, e *domain.Entry) error {
	if e.Symbology == nil {
		return nil
	}
	return a.put(ctx, bucket, path.Join(dir, archiveStyleObject), "application/vnd.ogc.sld+xml", []byte(*e.Symbology))
}

func (a *Archive) put(ctx context.Context, bucket, key, contentType string, data []byte) error {
	_, err := a.client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("archive put %s/%s: %w", bucket, key, err)
	}
	return nil
}
