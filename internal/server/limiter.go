package server

import "sync/atomic"

// ConnectionLimiter bounds the number of concurrently served clients. The
// accept loop claims a slot per connection; teardown releases it.
type ConnectionLimiter struct {
	limit  int64
	active atomic.Int64
}

// NewConnectionLimiter creates a limiter allowing at most limit slots.
func NewConnectionLimiter(limit int) *ConnectionLimiter {
	return &ConnectionLimiter{limit: int64(limit)}
}

// TryAcquire claims a slot, reporting false when the server is at capacity.
func (l *ConnectionLimiter) TryAcquire() bool {
	for {
		active := l.active.Load()
		if active >= l.limit {
			return false
		}
		if l.active.CompareAndSwap(active, active+1) {
			return true
		}
	}
}

// Release frees a slot claimed by TryAcquire.
func (l *ConnectionLimiter) Release() {
	l.active.Add(-1)
}

// Active returns the number of claimed slots.
func (l *ConnectionLimiter) Active() int64 {
	return l.active.Load()
}
