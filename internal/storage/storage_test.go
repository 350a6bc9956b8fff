package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

// exerciseStorage runs the behaviour every backend shares.
func exerciseStorage(t *testing.T, s Storage) {
	t.Helper()
	ctx := context.Background()

	if err := s.CreateContainer(ctx, "bench-c1"); err != nil {
		t.Fatalf("CreateContainer: %v", err)
	}
	if err := s.CreateContainer(ctx, "bench-c1"); err != nil {
		t.Fatalf("CreateContainer on existing container: %v", err)
	}

	payload := []byte(strings.Repeat("abc", 1000))
	if err := s.CreateObject(ctx, "bench-c1", "o1", bytes.NewReader(payload), int64(len(payload))); err != nil {
		t.Fatalf("CreateObject: %v", err)
	}

	r, err := s.GetObject(ctx, "bench-c1", "o1")
	if err != nil {
		t.Fatalf("GetObject: %v", err)
	}
	got, err := io.ReadAll(r)
	r.Close()
	if err != nil {
		t.Fatalf("read object: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("object content mismatch: got %d bytes, want %d", len(got), len(payload))
	}

	if err := s.SetMetadata(ctx, "bench-c1", "o1", map[string]string{"owner": "bench"}); err != nil {
		t.Fatalf("SetMetadata: %v", err)
	}
	meta, err := s.GetMetadata(ctx, "bench-c1", "o1")
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if meta["owner"] != "bench" {
		t.Errorf("metadata = %v", meta)
	}

	if _, err := s.GetObject(ctx, "bench-c1", "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetObject missing error = %v, want ErrNotFound", err)
	}
	if _, err := s.GetMetadata(ctx, "bench-c1", "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetMetadata missing error = %v, want ErrNotFound", err)
	}

	if err := s.DeleteObject(ctx, "bench-c1", "o1"); err != nil {
		t.Fatalf("DeleteObject: %v", err)
	}
	if err := s.DeleteObject(ctx, "bench-c1", "o1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteObject error = %v, want ErrNotFound", err)
	}
	if _, err := s.GetObject(ctx, "bench-c1", "o1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetObject after delete error = %v, want ErrNotFound", err)
	}

	if err := s.DeleteContainer(ctx, "bench-c1"); err != nil {
		t.Fatalf("DeleteContainer: %v", err)
	}
	if err := s.DeleteContainer(ctx, "bench-c1"); err != nil {
		t.Fatalf("DeleteContainer on missing container: %v", err)
	}
}

func TestMemoryStorage(t *testing.T) {
	s := NewMemory()
	defer s.Close()
	exerciseStorage(t, s)

	err := s.CreateObject(context.Background(), "nope", "o", strings.NewReader("x"), 1)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("CreateObject in missing container error = %v, want ErrNotFound", err)
	}
}

func TestNoneStorage(t *testing.T) {
	s := NewNone()
	ctx := context.Background()
	if err := s.CreateObject(ctx, "c", "o", strings.NewReader("data"), 4); err != nil {
		t.Fatalf("CreateObject: %v", err)
	}
	r, err := s.GetObject(ctx, "c", "o")
	if err != nil {
		t.Fatalf("GetObject: %v", err)
	}
	if n, _ := io.Copy(io.Discard, r); n != 0 {
		t.Errorf("expected empty object, got %d bytes", n)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	var ie *InterruptedError
	if err := s.DeleteObject(cancelled, "c", "o"); !errors.As(err, &ie) {
		t.Errorf("cancelled DeleteObject error = %v, want InterruptedError", err)
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		kind    Kind
		cfg     Config
		wantErr bool
	}{
		{kind: KindNone},
		{kind: "MEMORY"},
		{kind: KindPebble, cfg: Config{"path": t.TempDir()}},
		{kind: KindSwift, cfg: Config{"storage_url": "http://127.0.0.1:1/v1/AUTH_test"}},
		{kind: KindSwift, wantErr: true},
		{kind: "s3", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			s, err := New(tt.kind, tt.cfg)
			if tt.wantErr {
				if err == nil {
					s.Close()
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New(%q) error = %v", tt.kind, err)
			}
			if err := s.Close(); err != nil {
				t.Errorf("Close() error = %v", err)
			}
		})
	}

	if _, err := New("s3", nil); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("unknown kind error = %v, want ErrUnknownKind", err)
	}
	if got := strings.Join(Kinds(), ","); got != "memory,none,pebble,swift" {
		t.Errorf("Kinds() = %s", got)
	}
}
