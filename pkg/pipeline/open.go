package pipeline

import (
	"context"
	"log/slog"

	"github.com/orneryd/edgepredict/pkg/blobstore"
	"github.com/orneryd/edgepredict/pkg/config"
	"github.com/orneryd/edgepredict/pkg/dataio"
	"github.com/orneryd/edgepredict/pkg/storage"
)

// OpenSource returns the configured edge source. path, when non-empty,
// overrides the configured edge file. The returned close func is never nil.
func OpenSource(ctx context.Context, cfg config.SourceConfig, path string) (dataio.EdgeSource, func(), error) {
	if path == "" && cfg.Neo4jURI != "" {
		src, err := dataio.NewNeo4jSource(ctx, dataio.Neo4jConfig{
			URI:      cfg.Neo4jURI,
			Username: cfg.Neo4jUser,
			Password: cfg.Neo4jPassword,
			Database: cfg.Neo4jDatabase,
			Query:    cfg.Neo4jQuery,
		})
		if err != nil {
			return nil, func() {}, err
		}
		return src, func() { src.Close(context.Background()) }, nil
	}
	if path == "" {
		path = cfg.EdgeFile
	}
	return dataio.FileSource{Path: path}, func() {}, nil
}

// OpenOutput returns S3 storage when a bucket is configured, otherwise the
// output directory.
func OpenOutput(ctx context.Context, cfg config.OutputConfig) (blobstore.BlobStore, error) {
	if cfg.S3Bucket != "" {
		return blobstore.NewS3StoreFromEnv(ctx, cfg.S3Region, cfg.S3Bucket, cfg.S3Prefix)
	}
	return blobstore.NewLocalStore(cfg.Dir), nil
}

// OpenCache opens the feature cache, or returns nil when no cache directory
// is configured.
func OpenCache(cfg config.FeaturesConfig, logger *slog.Logger) (*storage.FeatureStore, error) {
	if cfg.CacheDir == "" {
		return nil, nil
	}
	return storage.OpenFeatureStore(storage.FeatureStoreOptions{
		Dir:    cfg.CacheDir,
		Logger: logger,
	})
}
