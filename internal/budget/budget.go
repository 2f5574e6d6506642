// Package budget tracks a byte-budget allocation with a bounded history
// ring. The Persistent Store uses it for its total size limit.
package budget

import (
	"sync"
	"time"

	"github.com/postdevai/postdevai/internal/apperrors"
)

// maxHistory bounds the allocation/free event ring, matching the
// 1000-entry cap the original memory manager keeps in memory.
const maxHistory = 1000

// Event records a single allocate or free call.
type Event struct {
	Size      uint64
	Source    string
	Free      bool
	Timestamp time.Time
}

// Budgeter tracks current vs. maximum byte usage for one store.
type Budgeter struct {
	mu          sync.Mutex
	maxSize     uint64
	currentSize uint64
	history     []Event
	next        int
	filled      bool
}

// New creates a Budgeter with the given maximum size in bytes.
func New(maxSize uint64) *Budgeter {
	return &Budgeter{
		maxSize: maxSize,
		history: make([]Event, 0, maxHistory),
	}
}

// Reserve records an allocation of size bytes tagged with source. It
// returns an OverBudget error if the allocation would exceed MaxSize, and
// an InvalidSize error for a zero-size request.
func (b *Budgeter) Reserve(size uint64, source string) error {
	if size == 0 {
		return apperrors.New(apperrors.ErrCodeInvalidSize, "allocation size must be non-zero", nil)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.currentSize+size > b.maxSize {
		return apperrors.OverBudget(size, b.maxSize-b.currentSize)
	}

	b.currentSize += size
	b.record(Event{Size: size, Source: source, Timestamp: time.Now()})
	return nil
}

// Release records a free of size bytes. Releasing more than is currently
// allocated is an InvalidSize error, not a budget error.
func (b *Budgeter) Release(size uint64, source string) error {
	if size == 0 {
		return apperrors.New(apperrors.ErrCodeInvalidSize, "release size must be non-zero", nil)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if size > b.currentSize {
		return apperrors.New(apperrors.ErrCodeInvalidSize, "release exceeds current allocation", nil)
	}

	b.currentSize -= size
	b.record(Event{Size: size, Source: source, Free: true, Timestamp: time.Now()})
	return nil
}

// record appends to the fixed-capacity ring, evicting the oldest entry
// FIFO once full.
func (b *Budgeter) record(e Event) {
	if len(b.history) < maxHistory {
		b.history = append(b.history, e)
		return
	}
	b.history[b.next] = e
	b.next = (b.next + 1) % maxHistory
	b.filled = true
}

// Resize changes MaxSize by delta (positive grows, negative shrinks). A
// shrink that would drop MaxSize below CurrentSize fails with OutOfMemory
// and leaves MaxSize unchanged.
func (b *Budgeter) Resize(delta int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var newMax uint64
	if delta >= 0 {
		newMax = b.maxSize + uint64(delta)
	} else {
		reduction := uint64(-delta)
		if reduction > b.maxSize {
			newMax = 0
		} else {
			newMax = b.maxSize - reduction
		}
		if b.currentSize > newMax {
			return apperrors.New(apperrors.ErrCodeOutOfMemory, "insufficient free memory to shrink budget", nil)
		}
	}
	b.maxSize = newMax
	return nil
}

// CurrentSize returns bytes currently allocated.
func (b *Budgeter) CurrentSize() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentSize
}

// MaxSize returns the current byte budget.
func (b *Budgeter) MaxSize() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.maxSize
}

// Available returns the remaining unallocated bytes.
func (b *Budgeter) Available() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.maxSize - b.currentSize
}

// UtilizationPercent returns CurrentSize/MaxSize*100, or 0 if MaxSize is 0.
func (b *Budgeter) UtilizationPercent() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.maxSize == 0 {
		return 0
	}
	return float64(b.currentSize) / float64(b.maxSize) * 100
}

// Recent returns up to n most-recent events, newest first.
func (b *Budgeter) Recent(n int) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ordered := b.orderedLocked()
	if n > len(ordered) {
		n = len(ordered)
	}
	out := make([]Event, n)
	for i := 0; i < n; i++ {
		out[i] = ordered[len(ordered)-1-i]
	}
	return out
}

// BySource returns every retained event tagged with source, oldest first.
func (b *Budgeter) BySource(source string) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []Event
	for _, e := range b.orderedLocked() {
		if e.Source == source {
			out = append(out, e)
		}
	}
	return out
}

// orderedLocked returns the ring contents oldest-first. Caller must hold mu.
func (b *Budgeter) orderedLocked() []Event {
	if !b.filled {
		return b.history
	}
	ordered := make([]Event, 0, len(b.history))
	ordered = append(ordered, b.history[b.next:]...)
	ordered = append(ordered, b.history[:b.next]...)
	return ordered
}

// Reset clears CurrentSize and the history ring without changing MaxSize.
func (b *Budgeter) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.currentSize = 0
	b.history = b.history[:0]
	b.next = 0
	b.filled = false
}
