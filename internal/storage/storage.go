// Package storage defines the object-storage capability exercised by the
// benchmark workers and the backends that implement it.
//
// Backends are selected by kind through [New] and receive their settings as a
// flat [Config] mapping. Each backend translates its native failures into the
// shared taxonomy ([TimeoutError], [InterruptedError], [Error] and
// [ErrNotFound]) before returning them.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Storage is an object store with containers, objects and per-object metadata.
// Implementations must be safe for concurrent use by many workers.
type Storage interface {
	// GetObject opens an object for reading. The caller closes the reader.
	GetObject(ctx context.Context, container, object string) (io.ReadCloser, error)

	// CreateContainer creates a container. An existing container is not an error.
	CreateContainer(ctx context.Context, container string) error

	// DeleteContainer removes a container. A missing container is not an error.
	DeleteContainer(ctx context.Context, container string) error

	// CreateObject stores length bytes read from data.
	CreateObject(ctx context.Context, container, object string, data io.Reader, length int64) error

	// DeleteObject removes an object.
	DeleteObject(ctx context.Context, container, object string) error

	// GetMetadata returns the user metadata of an object.
	GetMetadata(ctx context.Context, container, object string) (map[string]string, error)

	// SetMetadata replaces the user metadata of an object.
	SetMetadata(ctx context.Context, container, object string, meta map[string]string) error

	// Close releases any resources held by the backend.
	Close() error
}

// Kind names a storage backend.
type Kind string

const (
	KindNone   Kind = "none"
	KindMemory Kind = "memory"
	KindPebble Kind = "pebble"
	KindSwift  Kind = "swift"
)

// ErrUnknownKind is returned by New for an unregistered backend kind.
var ErrUnknownKind = errors.New("unknown storage type")

type factory func(cfg Config) (Storage, error)

var factories = map[Kind]factory{
	KindNone:   func(Config) (Storage, error) { return NewNone(), nil },
	KindMemory: func(Config) (Storage, error) { return NewMemory(), nil },
	KindPebble: func(cfg Config) (Storage, error) {
		s, err := NewPebble(cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	},
	KindSwift: func(cfg Config) (Storage, error) {
		s, err := NewSwift(cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	},
}

// New creates the backend registered for kind.
func New(kind Kind, cfg Config) (Storage, error) {
	f, ok := factories[Kind(strings.ToLower(strings.TrimSpace(string(kind))))]
	if !ok {
		return nil, fmt.Errorf("%w %q (supported: %s)", ErrUnknownKind, kind, strings.Join(Kinds(), ", "))
	}
	return f(cfg)
}

// Kinds lists the registered backend kinds in sorted order.
func Kinds() []string {
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, string(k))
	}
	sort.Strings(out)
	return out
}

func copyMeta(meta map[string]string) map[string]string {
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}
