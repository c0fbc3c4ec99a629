package storage

import (
	"context"
	"errors"
)

// NotFoundError is wrapped by every backend when the requested object does not exist.
var NotFoundError = errors.New("not found")

type Storage interface {
	// Put stores data with the given key and returns the storage URL
	Put(ctx context.Context, key string, data []byte) (string, error)
	// Get retrieves data by key or by a URL previously returned from Put
	Get(ctx context.Context, key string) ([]byte, error)
	// URL reports where key is stored, in the form Put returns
	URL(key string) string
}
