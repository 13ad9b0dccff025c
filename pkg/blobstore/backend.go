// Package blobstore persists pipeline artefacts (feature files, prediction
// files, evaluation reports) to a local directory or an S3 bucket.
package blobstore

import (
	"context"
	"errors"
)

// Errors returned by BlobStore implementations.
var (
	ErrNotFound = errors.New("blob not found")
	ErrExists   = errors.New("blob already exists")
)

// BlobStore defines the interface for abstract storage backends.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	// Create writes data only if key does not exist yet, else ErrExists.
	Create(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]string, error)
}
