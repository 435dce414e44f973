package cache

import (
	"errors"
	"fmt"
)

var (
	// ErrCacheUnavailable is returned when the backend cannot be reached
	ErrCacheUnavailable = errors.New("cache unavailable")

	// ErrCorruptEntry is returned when a stored value cannot be decoded
	ErrCorruptEntry = errors.New("corrupt cache entry")

	// ErrInvalidCacheKey is returned for empty keys
	ErrInvalidCacheKey = errors.New("invalid cache key")
)

// CacheError wraps a failed backend operation
type CacheError struct {
	Op  string
	Key string
	Err error
}

func (e *CacheError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("cache %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("cache %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *CacheError) Unwrap() error {
	return e.Err
}
