// Package storage provides the FileStore abstraction over raw bytes that
// the download/render/import workers move around: local filesystem by
// default (spec §6's literal `cache/`, `staging/`, and library paths), or
// an optional S3-compatible backend through MinioFileStore.
package storage

import (
	"context"
	"io"
)

// FileStore is the narrow file-blob surface the worker fleet needs. Keys
// are always slash-separated relative paths (e.g.
// "cache/previews/telegram/<design_id>/<uuid>.jpg").
type FileStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// URL returns a reference a caller can hand to a browser/client, or ""
	// when the backend has no notion of a retrievable URL (plain local
	// paths are instead read back through Get).
	URL(ctx context.Context, key string) (string, error)
}
