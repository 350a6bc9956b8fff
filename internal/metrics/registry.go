package metrics

import (
	"fmt"
	"hash/maphash"
	"sync"
)

const registryShards = 16

// Registry holds the latest Metrics per Type. It is safe for concurrent use by
// many readers and writers. Values are replaced whole, so a reader never
// observes a partially written Metrics.
type Registry struct {
	seed   maphash.Seed
	shards [registryShards]*registryShard
}

type registryShard struct {
	mu    sync.RWMutex
	items map[Type]Metrics
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	r := &Registry{seed: maphash.MakeSeed()}
	for i := range r.shards {
		r.shards[i] = &registryShard{items: make(map[Type]Metrics)}
	}
	return r
}

func (r *Registry) shard(key Type) *registryShard {
	var h maphash.Hash
	h.SetSeed(r.seed)
	h.WriteString(key.Op)
	h.WriteByte(0)
	h.WriteString(key.Sample)
	return r.shards[h.Sum64()%registryShards]
}

// Upsert stores m under key, replacing any previous value, and returns the
// value it replaced. key must be m's own Type; otherwise nothing is stored and
// the error wraps ErrMixedTypes.
func (r *Registry) Upsert(key Type, m Metrics) (prev Metrics, replaced bool, err error) {
	if m.Type() != key {
		return Metrics{}, false, fmt.Errorf("%w: %s stored under %s", ErrMixedTypes, m.Type().Name(), key.Name())
	}
	s := r.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, replaced = s.items[key]
	s.items[key] = m
	return prev, replaced, nil
}

// Get returns the current value for key.
func (r *Registry) Get(key Type) (Metrics, error) {
	s := r.shard(key)
	s.mu.RLock()
	m, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return Metrics{}, fmt.Errorf("%w: %s", ErrNotFound, key.Name())
	}
	return m, nil
}

// GetByName looks up a value by its serialized name.
func (r *Registry) GetByName(name string) (Metrics, error) {
	key, err := ParseType(name)
	if err != nil {
		return Metrics{}, err
	}
	return r.Get(key)
}

// Len returns the number of stored types.
func (r *Registry) Len() int {
	n := 0
	for _, s := range r.shards {
		s.mu.RLock()
		n += len(s.items)
		s.mu.RUnlock()
	}
	return n
}

// Snapshot returns every stored value sorted by name. Each shard is read
// atomically; values written while Snapshot runs may or may not be included.
func (r *Registry) Snapshot() []Metrics {
	var out []Metrics
	for _, s := range r.shards {
		s.mu.RLock()
		for _, m := range s.items {
			out = append(out, m)
		}
		s.mu.RUnlock()
	}
	sortByName(out)
	return out
}
