package booking

import (
	"sync"
	"time"
)

type IDGenerator interface {
	Next() int64
}

// MonotonicIDs derives ids from the wall clock in milliseconds but never
// hands out the same value twice, even for calls within one millisecond.
type MonotonicIDs struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewMonotonicIDs(now func() time.Time) *MonotonicIDs {
	if now == nil {
		now = time.Now
	}
	return &MonotonicIDs{now: now}
}

func (g *MonotonicIDs) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.now().UnixMilli()
	if id <= g.last {
		id = g.last + 1
	}
	g.last = id
	return id
}
