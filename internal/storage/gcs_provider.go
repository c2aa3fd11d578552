package storage

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
)

// GCSClientFactory creates GCS clients; tests substitute one wired to a fake
// endpoint.
type GCSClientFactory interface {
	NewClient(ctx context.Context) (*storage.Client, error)
}

// DefaultGCSClientFactory authenticates with Application Default Credentials.
type DefaultGCSClientFactory struct{}

// NewClient creates a client using ADC.
func (DefaultGCSClientFactory) NewClient(ctx context.Context) (*storage.Client, error) {
	return storage.NewClient(ctx) //nolint:wrapcheck
}

// GCSProvider implements Provider for Google Cloud Storage.
type GCSProvider struct {
	Client     *storage.Client
	BucketName string
	Logger     *zap.Logger
}

// NewGCSProvider creates a client and fails fast if the bucket is not
// reachable.
func NewGCSProvider(ctx context.Context, bucketName string, factory GCSClientFactory, logger *zap.Logger) (*GCSProvider, error) {
	if factory == nil {
		factory = DefaultGCSClientFactory{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := factory.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	if _, err := client.Bucket(bucketName).Attrs(ctx); err != nil {
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn("failed to close GCS client after bucket check failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("failed to get GCS bucket '%s' attributes: %w", bucketName, err)
	}

	return &GCSProvider{
		Client:     client,
		BucketName: bucketName,
		Logger:     logger,
	}, nil
}

// Save uploads data as a JSON object.
func (g *GCSProvider) Save(ctx context.Context, objectName string, data []byte) error {
	wc := g.Client.Bucket(g.BucketName).Object(objectName).NewWriter(ctx)
	wc.ContentType = "application/json"

	if _, err := wc.Write(data); err != nil {
		if closeErr := wc.Close(); closeErr != nil && g.Logger != nil {
			g.Logger.Warn("failed to close GCS writer after write failure", zap.Error(closeErr))
		}
		return fmt.Errorf("failed to write data to GCS object %s: %w", objectName, err)
	}
	// Close finalizes the upload.
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer for object %s: %w", objectName, err)
	}
	return nil
}

// Close releases the client.
func (g *GCSProvider) Close() error {
	return g.Client.Close() //nolint:wrapcheck
}
