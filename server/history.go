package crowdsafe

// HistorySeries is a fixed capacity ring buffer.
// Insertion order is temporal order, the oldest value is evicted when full.
type HistorySeries[T any] struct {
	data    []T
	start   int
	size    int
	initial T
}

// NewHistorySeries panics on a capacity below 1,
// configuration validation rejects that before we get here
func NewHistorySeries[T any](capacity int, initial T) *HistorySeries[T] {
	if capacity < 1 {
		panic("history capacity must be positive")
	}
	return &HistorySeries[T]{
		data:    make([]T, capacity),
		initial: initial,
	}
}

func (h *HistorySeries[T]) Push(v T) {
	if h.size < len(h.data) {
		h.data[(h.start+h.size)%len(h.data)] = v
		h.size++
		return
	}
	h.data[h.start] = v
	h.start = (h.start + 1) % len(h.data)
}

// Latest returns the newest value, or the initial value when empty
func (h *HistorySeries[T]) Latest() T {
	if h.size == 0 {
		return h.initial
	}
	return h.data[(h.start+h.size-1)%len(h.data)]
}

// Snapshot copies the series oldest to newest
func (h *HistorySeries[T]) Snapshot() []T {
	out := make([]T, h.size)
	for i := 0; i < h.size; i++ {
		out[i] = h.data[(h.start+i)%len(h.data)]
	}
	return out
}

func (h *HistorySeries[T]) Len() int { return h.size }
func (h *HistorySeries[T]) Cap() int { return len(h.data) }
