// Package storage uploads written records to a blob store. Records always
// land on local disk first; a Provider mirrors them to S3, GCS or another
// directory.
package storage

import (
	"context"
)

// Provider saves one object to a blob store.
type Provider interface {
	// Save uploads data to objectName, replacing any existing object.
	Save(ctx context.Context, objectName string, data []byte) error
}

// NoOpProvider discards every upload. It backs runs with uploads disabled.
type NoOpProvider struct{}

// Save for NoOpProvider does nothing and always returns nil.
func (n *NoOpProvider) Save(_ context.Context, _ string, _ []byte) error {
	return nil
}
