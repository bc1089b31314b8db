package storage

import "context"

// StoredObject is the handle persisted alongside the record that owns the
// image: url for serving, key for later deletion.
type StoredObject struct {
	URL string `json:"url"`
	Key string `json:"key"`
}

// ObjectStorage is the two-method capability the core depends on. The
// provider behind it is interchangeable.
type ObjectStorage interface {
	Put(ctx context.Context, data []byte, suggestedName string) (StoredObject, error)
	Delete(ctx context.Context, key string) error
}
