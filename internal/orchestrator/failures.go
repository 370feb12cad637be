package orchestrator

import "sync"

// FailureCollector gathers failure records from the producer and from every
// extraction unit. Its buffer holds one record per id in the batch, so Send
// never blocks; the records are only read once after Close.
type FailureCollector struct {
	ch        chan Failure
	closeOnce sync.Once
}

// NewFailureCollector sizes the collector for a batch of capacity ids.
func NewFailureCollector(capacity int) *FailureCollector {
	return &FailureCollector{ch: make(chan Failure, max(capacity, 1))}
}

// Send records f. Each id sends at most once.
func (c *FailureCollector) Send(f Failure) {
	c.ch <- f
}

// Close marks the end of sending. Call it only after every sender returned.
func (c *FailureCollector) Close() {
	c.closeOnce.Do(func() { close(c.ch) })
}

// Drain returns every record in arrival order. It must follow Close.
func (c *FailureCollector) Drain() []Failure {
	var out []Failure
	for f := range c.ch {
		out = append(out, f)
	}
	return out
}
