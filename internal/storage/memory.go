package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

type memObject struct {
	data []byte
	meta map[string]string
}

// Memory keeps containers and objects in process memory.
type Memory struct {
	mu         sync.RWMutex
	containers map[string]map[string]*memObject
}

func NewMemory() *Memory {
	return &Memory{containers: make(map[string]map[string]*memObject)}
}

func (m *Memory) lookup(container, object string) (*memObject, error) {
	objects, ok := m.containers[container]
	if !ok {
		return nil, fmt.Errorf("container %q: %w", container, ErrNotFound)
	}
	obj, ok := objects[object]
	if !ok {
		return nil, fmt.Errorf("object %s/%s: %w", container, object, ErrNotFound)
	}
	return obj, nil
}

func (m *Memory) GetObject(ctx context.Context, container, object string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrap("get object", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, err := m.lookup(container, object)
	if err != nil {
		return nil, err
	}
	// stored slices are replaced, never written in place
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (m *Memory) CreateContainer(ctx context.Context, container string) error {
	if err := ctx.Err(); err != nil {
		return wrap("create container", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.containers[container]; !ok {
		m.containers[container] = make(map[string]*memObject)
	}
	return nil
}

func (m *Memory) DeleteContainer(ctx context.Context, container string) error {
	if err := ctx.Err(); err != nil {
		return wrap("delete container", err)
	}
	m.mu.Lock()
	delete(m.containers, container)
	m.mu.Unlock()
	return nil
}

func (m *Memory) CreateObject(ctx context.Context, container, object string, data io.Reader, length int64) error {
	if err := ctx.Err(); err != nil {
		return wrap("create object", err)
	}
	buf := bytes.NewBuffer(make([]byte, 0, max(length, 0)))
	if _, err := io.Copy(buf, data); err != nil {
		return wrap("create object", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	objects, ok := m.containers[container]
	if !ok {
		return fmt.Errorf("container %q: %w", container, ErrNotFound)
	}
	objects[object] = &memObject{data: buf.Bytes(), meta: map[string]string{}}
	return nil
}

func (m *Memory) DeleteObject(ctx context.Context, container, object string) error {
	if err := ctx.Err(); err != nil {
		return wrap("delete object", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.lookup(container, object); err != nil {
		return err
	}
	delete(m.containers[container], object)
	return nil
}

func (m *Memory) GetMetadata(ctx context.Context, container, object string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrap("get metadata", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, err := m.lookup(container, object)
	if err != nil {
		return nil, err
	}
	return copyMeta(obj.meta), nil
}

func (m *Memory) SetMetadata(ctx context.Context, container, object string, meta map[string]string) error {
	if err := ctx.Err(); err != nil {
		return wrap("set metadata", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, err := m.lookup(container, object)
	if err != nil {
		return err
	}
	obj.meta = copyMeta(meta)
	return nil
}

func (m *Memory) Close() error { return nil }
