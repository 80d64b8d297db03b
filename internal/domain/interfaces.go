package domain

//go:generate mockgen -destination=mocks/mock_interfaces.go -package=mocks . TreeLister,Cache

import (
	"context"
	"time"
)

// TreeLister lists repository content at a revision without a full checkout
type TreeLister interface {
	// ListTree returns the entries below prefix, at most depth directory
	// levels deep. depth <= 0 means unbounded.
	ListTree(ctx context.Context, ref RepoRef, prefix string, depth int) ([]TreeEntry, error)
}

// Cache defines the interface for scan result caching
type Cache interface {
	// Get retrieves a value from cache
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores a value in cache with TTL
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes a key from cache
	Delete(ctx context.Context, key string) error
	// Close releases cache resources
	Close() error
}
