package auth

import (
	"context"
	"sync"
	"time"
)

type fetchFunc func(ctx context.Context) (Token, error)

// tokenCache shares one token between all workers. Only one goroutine fetches
// at a time; the others wait for its result.
type tokenCache struct {
	fetch               fetchFunc
	refreshBeforeExpiry time.Duration
	now                 func() time.Time

	mu              sync.Mutex
	cached          Token
	valid           bool
	fetchInProgress bool
	fetchCond       *sync.Cond
}

func newTokenCache(fetch fetchFunc, refreshBeforeExpiry time.Duration) *tokenCache {
	c := &tokenCache{
		fetch:               fetch,
		refreshBeforeExpiry: refreshBeforeExpiry,
		now:                 time.Now,
	}
	c.fetchCond = sync.NewCond(&c.mu)
	return c
}

// usable must be called with mu held.
func (c *tokenCache) usable() bool {
	if !c.valid {
		return false
	}
	if c.cached.Expires.IsZero() {
		return true
	}
	return c.now().Before(c.cached.Expires.Add(-c.refreshBeforeExpiry))
}

func (c *tokenCache) Token(ctx context.Context) (Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.usable() {
		return c.cached, nil
	}

	for c.fetchInProgress {
		c.fetchCond.Wait()
		if c.usable() {
			return c.cached, nil
		}
	}

	c.fetchInProgress = true
	c.mu.Unlock()

	tok, err := c.fetch(ctx)

	c.mu.Lock()
	c.fetchInProgress = false
	c.fetchCond.Broadcast()

	if err != nil {
		return Token{}, err
	}
	c.cached = tok
	c.valid = true
	return c.cached, nil
}

func (c *tokenCache) Invalidate() {
	c.mu.Lock()
	c.valid = false
	c.mu.Unlock()
}
