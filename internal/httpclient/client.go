package httpclient

import (
	"net"
	"net/http"
	"time"
)

// DefaultMaxConnsPerHost is used when NewClient is given a non-positive limit.
const DefaultMaxConnsPerHost = 32

// NewClient creates an HTTP client for benchmark traffic. maxConnsPerHost
// should be at least the number of concurrent workers so that idle
// connections are reused instead of re-dialed.
func NewClient(timeout time.Duration, maxConnsPerHost int) *http.Client {
	if timeout < 0 {
		timeout = 0
	}
	if maxConnsPerHost <= 0 {
		maxConnsPerHost = DefaultMaxConnsPerHost
	}

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	if timeout > 0 && timeout < dialer.Timeout {
		dialer.Timeout = timeout
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          maxConnsPerHost * 2,
		MaxIdleConnsPerHost:   maxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
