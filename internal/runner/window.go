package runner

import "time"

// window is one sampling interval. Windows form a chain: the rotation
// goroutine sets end and next, then closes done. Workers wait on done and
// follow next, so every worker observes every window in order and reads end
// and next only after the close has published them.
type window struct {
	seq   int
	start time.Time
	end   time.Time
	next  *window
	done  chan struct{}
}

func newWindow(seq int, start time.Time) *window {
	return &window{seq: seq, start: start, done: make(chan struct{})}
}

// rotate closes w at now and returns its successor.
func (w *window) rotate(now time.Time) *window {
	next := newWindow(w.seq+1, now)
	w.end = now
	w.next = next
	close(w.done)
	return next
}

// length returns the window length, cutting an open window at runEnd.
func (w *window) length(runEnd time.Time) time.Duration {
	end := w.end
	if end.IsZero() || end.After(runEnd) {
		end = runEnd
	}
	return end.Sub(w.start)
}

// rotator closes windows every interval until stop is closed.
type rotator struct {
	interval time.Duration
	stop     chan struct{}
	stopped  chan struct{}
	count    int
}

func startRotator(first *window, interval time.Duration, now func() time.Time) *rotator {
	r := &rotator{interval: interval, stop: make(chan struct{}), stopped: make(chan struct{})}
	if interval <= 0 {
		close(r.stopped)
		return r
	}
	go func() {
		defer close(r.stopped)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		cur := first
		for {
			select {
			case <-r.stop:
				return
			case <-ticker.C:
				cur = cur.rotate(now())
				r.count++
			}
		}
	}()
	return r
}

// Stop halts rotation and waits for the goroutine; afterwards every window
// field is safe to read.
func (r *rotator) Stop() int {
	close(r.stop)
	<-r.stopped
	return r.count
}
