package metrics

import (
	"sync"
)

// Channel names used by the pipeline.
const (
	ChannelIntermediate  = "intermediate_results"
	ChannelVariables     = "variables"
	ChannelResultEntries = "result_entries"
	ChannelProfiles      = "profiles"
)

// Curve is an array metric: paired x/y data for a profile curve.
type Curve struct {
	X []float64 `json:"x"`
	Y []float64 `json:"y"`
}

// Sample is one value offered to a metric stream. Value is a scalar
// (float64) or an array (for profile curves).
type Sample struct {
	Channel string      `json:"channel"`
	Key     string      `json:"key"`
	Value   interface{} `json:"value"`
}

// Handle is one registered (channel, key, sample step) stream bound to an
// internal queue. One producer (the fit loop) offers values, one consumer
// (the render loop) drains them.
type Handle struct {
	Channel string
	Key     string
	Step    int

	mu    sync.Mutex
	count int
	queue []interface{}
}

// Offer counts the call and forwards the value to the queue only when the
// counter is a multiple of the sample step. Dropped values are gone: this
// is a sampling filter, not a lossless log.
func (h *Handle) Offer(value interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	if h.count%h.Step == 0 {
		h.queue = append(h.queue, value)
	}
}

// Drain pops the oldest queued value without blocking. The boolean
// reports whether a value was available.
func (h *Handle) Drain() (interface{}, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.queue) == 0 {
		return nil, false
	}
	value := h.queue[0]
	h.queue = h.queue[1:]
	return value, true
}

// Len returns the number of queued values.
func (h *Handle) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.queue)
}

// Bus is the sampling-throttled fan-out of named metrics. Handles are
// registered up front; producers offer values through their handle and
// consumers drain them.
type Bus struct {
	mu      sync.Mutex
	handles []*Handle
}

// NewBus returns an empty metric stream bus.
func NewBus() *Bus {
	return &Bus{}
}

// Register binds a (channel, key) pair to a queue with the given sample
// step. A step below 1 is treated as 1 (every value forwarded).
func (b *Bus) Register(channel, key string, step int) *Handle {
	if step < 1 {
		step = 1
	}
	h := &Handle{Channel: channel, Key: key, Step: step}
	b.mu.Lock()
	b.handles = append(b.handles, h)
	b.mu.Unlock()
	return h
}

// Handles returns all registered handles in registration order.
func (b *Bus) Handles() []*Handle {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Handle(nil), b.handles...)
}

// Lookup returns the handle for a (channel, key) pair, or nil.
func (b *Bus) Lookup(channel, key string) *Handle {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, h := range b.handles {
		if h.Channel == channel && h.Key == key {
			return h
		}
	}
	return nil
}

// Snapshot copies all non-empty queues without draining them, for the
// offline metric dump written when the operator console exits.
func (b *Bus) Snapshot() []Sample {
	var samples []Sample
	for _, h := range b.Handles() {
		h.mu.Lock()
		for _, value := range h.queue {
			samples = append(samples, Sample{Channel: h.Channel, Key: h.Key, Value: value})
		}
		h.mu.Unlock()
	}
	return samples
}
