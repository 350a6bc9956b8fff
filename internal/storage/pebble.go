package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/pebble"
	"github.com/rs/zerolog/log"
)

// Key layout:
//
//	c/<container>             container marker
//	o/<container>/<object>    object data
//	m/<container>/<object>    object metadata (JSON)
const (
	containerPrefix = "c/"
	objectPrefix    = "o/"
	metaPrefix      = "m/"
)

// Pebble stores objects in a local Pebble LSM database.
//
// Config keys: path (default: a temporary directory removed on Close),
// cache_size in bytes (negative disables the block cache), sync (fsync every
// write, default false).
type Pebble struct {
	db      *pebble.DB
	cache   *pebble.Cache
	opts    *pebble.WriteOptions
	tempDir string
}

// NewPebble opens the database described by cfg.
func NewPebble(cfg Config) (*Pebble, error) {
	path := cfg.String("path", "")
	tempDir := ""
	if path == "" {
		dir, err := os.MkdirTemp("", "crankstore-pebble-")
		if err != nil {
			return nil, fmt.Errorf("create pebble directory: %w", err)
		}
		path, tempDir = dir, dir
	}

	opts := &pebble.Options{}
	var cache *pebble.Cache
	if size := cfg.Int64("cache_size", 64<<20); size >= 0 {
		cache = pebble.NewCache(size)
		opts.Cache = cache
		log.Debug().Int64("block_cache_size", size).Str("path", path).Msg("Opening pebble store")
	} else {
		log.Debug().Str("path", path).Msg("Opening pebble store with block cache disabled")
	}

	db, err := pebble.Open(path, opts)
	if err != nil {
		if cache != nil {
			cache.Unref()
		}
		if tempDir != "" {
			_ = os.RemoveAll(tempDir)
		}
		return nil, fmt.Errorf("open pebble store: %w", err)
	}

	writeOpts := pebble.NoSync
	if cfg.Bool("sync", false) {
		writeOpts = pebble.Sync
	}
	return &Pebble{db: db, cache: cache, opts: writeOpts, tempDir: tempDir}, nil
}

func objectKey(prefix, container, object string) []byte {
	return []byte(prefix + container + "/" + object)
}

func (p *Pebble) has(key []byte) (bool, error) {
	_, closer, err := p.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, closer.Close()
}

func (p *Pebble) get(op string, key []byte) ([]byte, error) {
	value, closer, err := p.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, fmt.Errorf("%s %s: %w", op, key, ErrNotFound)
	}
	if err != nil {
		return nil, wrap(op, err)
	}
	out := make([]byte, len(value))
	copy(out, value)
	if err := closer.Close(); err != nil {
		return nil, wrap(op, err)
	}
	return out, nil
}

func (p *Pebble) requireContainer(op, container string) error {
	ok, err := p.has([]byte(containerPrefix + container))
	if err != nil {
		return wrap(op, err)
	}
	if !ok {
		return fmt.Errorf("container %q: %w", container, ErrNotFound)
	}
	return nil
}

func (p *Pebble) GetObject(ctx context.Context, container, object string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrap("get object", err)
	}
	data, err := p.get("get object", objectKey(objectPrefix, container, object))
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (p *Pebble) CreateContainer(ctx context.Context, container string) error {
	if err := ctx.Err(); err != nil {
		return wrap("create container", err)
	}
	return wrap("create container", p.db.Set([]byte(containerPrefix+container), nil, p.opts))
}

func (p *Pebble) DeleteContainer(ctx context.Context, container string) error {
	if err := ctx.Err(); err != nil {
		return wrap("delete container", err)
	}
	batch := p.db.NewBatch()
	defer batch.Close()
	for _, prefix := range []string{objectPrefix, metaPrefix} {
		start := []byte(prefix + container + "/")
		end := []byte(prefix + container + "0") // '0' sorts right after '/'
		if err := batch.DeleteRange(start, end, nil); err != nil {
			return wrap("delete container", err)
		}
	}
	if err := batch.Delete([]byte(containerPrefix+container), nil); err != nil {
		return wrap("delete container", err)
	}
	return wrap("delete container", batch.Commit(p.opts))
}

func (p *Pebble) CreateObject(ctx context.Context, container, object string, data io.Reader, length int64) error {
	if err := ctx.Err(); err != nil {
		return wrap("create object", err)
	}
	if err := p.requireContainer("create object", container); err != nil {
		return err
	}
	buf := bytes.NewBuffer(make([]byte, 0, max(length, 0)))
	if _, err := io.Copy(buf, data); err != nil {
		return wrap("create object", err)
	}
	batch := p.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(objectKey(objectPrefix, container, object), buf.Bytes(), nil); err != nil {
		return wrap("create object", err)
	}
	if err := batch.Delete(objectKey(metaPrefix, container, object), nil); err != nil {
		return wrap("create object", err)
	}
	return wrap("create object", batch.Commit(p.opts))
}

func (p *Pebble) DeleteObject(ctx context.Context, container, object string) error {
	if err := ctx.Err(); err != nil {
		return wrap("delete object", err)
	}
	key := objectKey(objectPrefix, container, object)
	ok, err := p.has(key)
	if err != nil {
		return wrap("delete object", err)
	}
	if !ok {
		return fmt.Errorf("delete object %s/%s: %w", container, object, ErrNotFound)
	}
	batch := p.db.NewBatch()
	defer batch.Close()
	if err := batch.Delete(key, nil); err != nil {
		return wrap("delete object", err)
	}
	if err := batch.Delete(objectKey(metaPrefix, container, object), nil); err != nil {
		return wrap("delete object", err)
	}
	return wrap("delete object", batch.Commit(p.opts))
}

func (p *Pebble) GetMetadata(ctx context.Context, container, object string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrap("get metadata", err)
	}
	ok, err := p.has(objectKey(objectPrefix, container, object))
	if err != nil {
		return nil, wrap("get metadata", err)
	}
	if !ok {
		return nil, fmt.Errorf("get metadata %s/%s: %w", container, object, ErrNotFound)
	}
	raw, err := p.get("get metadata", objectKey(metaPrefix, container, object))
	if errors.Is(err, ErrNotFound) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	meta := map[string]string{}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, &Error{Op: "get metadata", Status: "corrupt metadata", Err: err}
	}
	return meta, nil
}

func (p *Pebble) SetMetadata(ctx context.Context, container, object string, meta map[string]string) error {
	if err := ctx.Err(); err != nil {
		return wrap("set metadata", err)
	}
	ok, err := p.has(objectKey(objectPrefix, container, object))
	if err != nil {
		return wrap("set metadata", err)
	}
	if !ok {
		return fmt.Errorf("set metadata %s/%s: %w", container, object, ErrNotFound)
	}
	raw, err := json.Marshal(copyMeta(meta))
	if err != nil {
		return wrap("set metadata", err)
	}
	return wrap("set metadata", p.db.Set(objectKey(metaPrefix, container, object), raw, p.opts))
}

// Close flushes and closes the database and removes a temporary directory.
func (p *Pebble) Close() error {
	var err error
	if p.db != nil {
		err = p.db.Close()
		p.db = nil
	}
	if p.cache != nil {
		p.cache.Unref()
		p.cache = nil
	}
	if p.tempDir != "" {
		if rmErr := os.RemoveAll(p.tempDir); rmErr != nil && err == nil {
			err = rmErr
		}
		p.tempDir = ""
	}
	return err
}
