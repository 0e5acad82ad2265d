package bootstrap

import (
	"context"
	"fmt"

	es "github.com/elastic/go-elasticsearch/v8"
	"github.com/minio/minio-go/v7"

	"github.com/jonesrussell/north-cloud/curator/internal/logger"
	"github.com/jonesrussell/north-cloud/curator/internal/storage"
)

// StorageComponents holds the object store and search clients.
type StorageComponents struct {
	Objects *minio.Client
	Content *storage.ContentStore
	// Search is nil when no Elasticsearch address is configured.
	Search *es.Client
}

// SetupStorage connects to the object store, makes sure its buckets exist,
// and creates the Elasticsearch client when configured.
func SetupStorage(ctx context.Context, deps *CommandDeps) (*StorageComponents, error) {
	cfg := deps.Config

	objects, err := storage.NewMinIOClient(cfg.ObjectStore)
	if err != nil {
		return nil, err
	}
	if err = storage.EnsureBuckets(ctx, objects, cfg.ObjectStore); err != nil {
		return nil, err
	}

	components := &StorageComponents{
		Objects: objects,
		Content: storage.NewContentStore(objects, cfg.ObjectStore.ContentBucket),
	}

	if len(cfg.Elasticsearch.Addresses) == 0 {
		deps.Logger.Warn("Elasticsearch not configured, catalogue channels will fail")
		return components, nil
	}
	search, err := es.NewClient(es.Config{
		Addresses: cfg.Elasticsearch.Addresses,
		Username:  cfg.Elasticsearch.Username,
		Password:  cfg.Elasticsearch.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	components.Search = search
	deps.Logger.Info("Elasticsearch client created", logger.Strings("addresses", cfg.Elasticsearch.Addresses))

	return components, nil
}
