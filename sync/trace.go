package sync

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// TraceEntry records one gossip relay decision for the debug view.
type TraceEntry struct {
	Source   string
	ID       uint64
	Type     MessageType
	Forward  int // number of connections it was relayed to
	Dropped  bool
	Observed time.Time
}

const traceCapacity = 256

// Trace is a bounded ring of recent gossip activity, keyed by nothing in
// particular — it's a debug aid, not an index, so an LRU of fixed capacity
// is a convenient circular buffer.
type Trace struct {
	cache *lru.Cache[uint64, TraceEntry]
	next  uint64
}

// NewTrace creates an empty trace buffer.
func NewTrace() *Trace {
	c, err := lru.New[uint64, TraceEntry](traceCapacity)
	if err != nil {
		// Only returns an error for a non-positive size, which traceCapacity
		// never is.
		panic(err)
	}
	return &Trace{cache: c}
}

// Record appends an entry, evicting the oldest if the buffer is full.
func (t *Trace) Record(e TraceEntry) {
	t.cache.Add(t.next, e)
	t.next++
}

// Recent returns the currently buffered entries in no particular order;
// callers sort by Observed if order matters.
func (t *Trace) Recent() []TraceEntry {
	out := make([]TraceEntry, 0, t.cache.Len())
	for _, k := range t.cache.Keys() {
		if e, ok := t.cache.Peek(k); ok {
			out = append(out, e)
		}
	}
	return out
}
