package httpclient

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestClientTimeoutApplied(t *testing.T) {
	timeout := 50 * time.Millisecond
	client := NewClient(timeout, 4)
	defer client.CloseIdleConnections()

	if client.Timeout != timeout {
		t.Fatalf("expected client timeout %s, got %s", timeout, client.Timeout)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(timeout * 3)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if resp != nil {
		resp.Body.Close()
	}
	if err == nil {
		t.Fatalf("expected timeout error, got nil")
	}

	elapsed := time.Since(start)
	if elapsed < timeout {
		t.Fatalf("request returned too quickly: %s < %s", elapsed, timeout)
	}
	if elapsed > timeout*5 {
		t.Fatalf("request took too long: %s", elapsed)
	}

	if !errors.Is(err, context.DeadlineExceeded) {
		var netErr net.Error
		if !errors.As(err, &netErr) || !netErr.Timeout() {
			t.Fatalf("expected timeout error, got %v", err)
		}
	}
}

func TestClientConnectionLimits(t *testing.T) {
	tests := []struct {
		name     string
		maxConns int
		wantIdle int
	}{
		{name: "explicit", maxConns: 64, wantIdle: 64},
		{name: "default", maxConns: 0, wantIdle: DefaultMaxConnsPerHost},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient(-time.Second, tt.maxConns)
			if client.Timeout != 0 {
				t.Errorf("negative timeout should clamp to 0, got %s", client.Timeout)
			}
			transport, ok := client.Transport.(*http.Transport)
			if !ok {
				t.Fatalf("expected *http.Transport, got %T", client.Transport)
			}
			if transport.MaxIdleConnsPerHost != tt.wantIdle {
				t.Errorf("MaxIdleConnsPerHost = %d, want %d", transport.MaxIdleConnsPerHost, tt.wantIdle)
			}
			if transport.IdleConnTimeout == 0 {
				t.Error("expected transport to set idle connection timeout")
			}
		})
	}
}

type closeRecorder struct {
	io.Reader
	closed bool
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return nil
}

func TestDrain(t *testing.T) {
	body := &closeRecorder{Reader: strings.NewReader(strings.Repeat("x", 100_000))}
	n, err := Drain(body)
	if err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	if n != 100_000 {
		t.Errorf("Drain() = %d, want 100000", n)
	}
	if !body.closed {
		t.Error("Drain must close the body")
	}

	if n, err := Drain(nil); n != 0 || err != nil {
		t.Errorf("Drain(nil) = %d, %v", n, err)
	}
}
