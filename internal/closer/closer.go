package closer

import "sync"

// Closer is a one-shot stop signal shared between a supervising goroutine and
// the component it supervises. Close may be called from any goroutine and
// any number of times; only the first call has effect.
type Closer struct {
	mtx    sync.Mutex
	closed bool
	done   chan struct{}
}

// NewCloser returns a Closer in the open state.
func NewCloser() *Closer {
	return &Closer{done: make(chan struct{})}
}

// Close signals the stop condition. Safe to call more than once.
func (c *Closer) Close() {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
}

// Done returns a channel that is closed once Close has been called.
func (c *Closer) Done() <-chan struct{} {
	return c.done
}

// IsClosed reports whether Close has already been called.
func (c *Closer) IsClosed() bool {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.closed
}
