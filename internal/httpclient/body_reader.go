package httpclient

import (
	"io"
	"sync"
)

var copyBuffers = sync.Pool{
	New: func() any {
		b := make([]byte, 32*1024)
		return &b
	},
}

// Drain reads r to EOF, discarding the data, closes it, and returns the
// number of bytes read. Workers use it to consume downloaded objects.
func Drain(r io.ReadCloser) (int64, error) {
	if r == nil {
		return 0, nil
	}
	bufp := copyBuffers.Get().(*[]byte)
	n, err := io.CopyBuffer(io.Discard, r, *bufp)
	copyBuffers.Put(bufp)
	if closeErr := r.Close(); err == nil {
		err = closeErr
	}
	return n, err
}
