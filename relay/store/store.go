// Package store persists small JSON documents under string keys. The relay
// keeps its ban list and enabled flag here.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Store reads and writes whole JSON documents. Save replaces the document
// atomically; a failed Save leaves the previous value readable.
type Store interface {
	// Load decodes the document under key into v and reports whether it existed.
	Load(ctx context.Context, key string, v any) (bool, error)
	Save(ctx context.Context, key string, v any) error
	Close() error
}

// Drivers accepted by Config.Driver.
const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverMemory   = "memory"
)

// ErrInvalidKey is returned for keys that cannot be mapped to a document.
var ErrInvalidKey = errors.New("store: invalid key")

func checkKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
