package storage

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/stackexchange-crawler/internal/storage/local"
)

// Provider names accepted by New.
const (
	ProviderNone  = "none"
	ProviderS3    = "s3"
	ProviderGCS   = "gcs"
	ProviderLocal = "local"
)

// Config selects and configures a Provider.
type Config struct {
	Provider string
	Bucket   string
	Prefix   string
	S3       S3Config
	LocalDir string
}

// New builds the configured Provider. The empty name and "none" select
// NoOpProvider.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderNone:
		return &NoOpProvider{}, nil
	case ProviderS3:
		s3cfg := cfg.S3
		if s3cfg.Bucket == "" {
			s3cfg.Bucket = cfg.Bucket
		}
		p, err := NewS3Provider(ctx, s3cfg, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	case ProviderGCS:
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("gcs bucket is required")
		}
		p, err := NewGCSProvider(ctx, cfg.Bucket, nil, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	case ProviderLocal:
		p, err := local.New(local.Config{BaseDir: cfg.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("local storage: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}
