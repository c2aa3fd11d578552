package storage

import (
	"context"
	"fmt"
	"path"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/JakeFAU/stackexchange-crawler/internal/metrics"
)

// Uploader copies written record files to a Provider under a key prefix.
type Uploader struct {
	provider Provider
	prefix   string
	logger   *zap.Logger
}

// NewUploader wraps provider. prefix may be empty.
func NewUploader(provider Provider, prefix string, logger *zap.Logger) *Uploader {
	if provider == nil {
		provider = &NoOpProvider{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Uploader{provider: provider, prefix: prefix, logger: logger}
}

// ObjectName maps a local file path to its object key: the base name under
// the prefix.
func (u *Uploader) ObjectName(filePath string) string {
	name := filepath.Base(filePath)
	if u.prefix == "" {
		return name
	}
	return path.Join(u.prefix, name)
}

// UploadFile saves data, the contents of filePath, and returns the object key.
func (u *Uploader) UploadFile(ctx context.Context, filePath string, data []byte) (string, error) {
	object := u.ObjectName(filePath)
	if err := u.provider.Save(ctx, object, data); err != nil {
		metrics.ObserveUpload("error")
		return object, fmt.Errorf("upload %s: %w", object, err)
	}
	metrics.ObserveUpload("ok")
	u.logger.Debug("record uploaded", zap.String("object", object))
	return object, nil
}
