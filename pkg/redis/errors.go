package redis

import (
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheDisabled means the manager was configured with enabled: false
	ErrCacheDisabled = errors.New("redis is disabled")

	// ErrClientNotInitialized means the manager is enabled but has no client
	ErrClientNotInitialized = errors.New("redis client not initialized")

	// ErrKeyNotFound is a cache miss
	ErrKeyNotFound = errors.New("cache key not found")

	// ErrConnectionFailed wraps errors where the server could not be reached
	ErrConnectionFailed = errors.New("redis connection failed")

	// ErrInvalidKey is returned for empty key or sequence names
	ErrInvalidKey = errors.New("invalid cache key")

	// ErrSerializationFailed wraps msgpack encoding and decoding errors
	ErrSerializationFailed = errors.New("cache serialization failed")
)

// IsCacheDisabled reports whether err comes from a disabled manager
func IsCacheDisabled(err error) bool {
	return errors.Is(err, ErrCacheDisabled)
}

// IsKeyNotFound reports a cache miss
func IsKeyNotFound(err error) bool {
	return errors.Is(err, ErrKeyNotFound)
}

// IsConnectionFailed reports whether err means Redis is unreachable, as
// opposed to a failing command
func IsConnectionFailed(err error) bool {
	return errors.Is(err, ErrConnectionFailed)
}

// commandError wraps a failed client call, marking network failures with
// ErrConnectionFailed
func commandError(op string, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, io.EOF) || errors.Is(err, redis.ErrClosed) {
		return fmt.Errorf("redis %s: %w: %v", op, ErrConnectionFailed, err)
	}
	return fmt.Errorf("redis %s: %w", op, err)
}
