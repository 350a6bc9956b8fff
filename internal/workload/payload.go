package workload

import (
	"hash/fnv"
	"io"
	"math/rand"
)

const payloadBlockSize = 64 * 1024

// Payloads produces deterministic object contents. All payloads are windows
// into one random block generated from the seed; the starting offset depends
// on the object name so different objects carry different bytes.
type Payloads struct {
	block []byte
}

// NewPayloads generates the payload block for seed.
func NewPayloads(seed int64) *Payloads {
	block := make([]byte, payloadBlockSize)
	rnd := rand.New(rand.NewSource(seed))
	_, _ = rnd.Read(block)
	return &Payloads{block: block}
}

// Reader returns size bytes of content for container/object. Readers are
// independent and may be used concurrently.
func (p *Payloads) Reader(container, object string, size int64) io.Reader {
	h := fnv.New32a()
	_, _ = h.Write([]byte(container))
	_, _ = h.Write([]byte{'/'})
	_, _ = h.Write([]byte(object))
	off := int(h.Sum32() % uint32(len(p.block)))
	return io.LimitReader(&cyclicReader{block: p.block, off: off}, size)
}

// cyclicReader repeats block forever starting at off.
type cyclicReader struct {
	block []byte
	off   int
}

func (r *cyclicReader) Read(b []byte) (int, error) {
	n := 0
	for n < len(b) {
		c := copy(b[n:], r.block[r.off:])
		n += c
		r.off = (r.off + c) % len(r.block)
	}
	return n, nil
}
