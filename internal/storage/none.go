package storage

import (
	"context"
	"io"
	"strings"
)

// None accepts every operation without storing anything. Running a workload
// against it measures the overhead of the harness itself.
type None struct{}

func NewNone() *None { return &None{} }

func (None) GetObject(ctx context.Context, container, object string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrap("get object", err)
	}
	return io.NopCloser(strings.NewReader("")), nil
}

func (None) CreateContainer(ctx context.Context, container string) error {
	return wrap("create container", ctx.Err())
}

func (None) DeleteContainer(ctx context.Context, container string) error {
	return wrap("delete container", ctx.Err())
}

func (None) CreateObject(ctx context.Context, container, object string, data io.Reader, length int64) error {
	if err := ctx.Err(); err != nil {
		return wrap("create object", err)
	}
	if _, err := io.Copy(io.Discard, data); err != nil {
		return wrap("create object", err)
	}
	return nil
}

func (None) DeleteObject(ctx context.Context, container, object string) error {
	return wrap("delete object", ctx.Err())
}

func (None) GetMetadata(ctx context.Context, container, object string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrap("get metadata", err)
	}
	return map[string]string{}, nil
}

func (None) SetMetadata(ctx context.Context, container, object string, meta map[string]string) error {
	return wrap("set metadata", ctx.Err())
}

func (None) Close() error { return nil }
