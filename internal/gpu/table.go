package gpu

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrBudgetExceeded means an allocation does not fit the memory
	// budget even at reduced resolution.
	ErrBudgetExceeded = errors.New("gpu: memory budget exceeded")
	// ErrUnknownAllocation means the table has no entry for the
	// logical id.
	ErrUnknownAllocation = errors.New("gpu: unknown allocation")
)

// DefaultBudgetBytes is the default GPU memory budget (256 MB).
const DefaultBudgetBytes = 256 << 20

// EventKind classifies resource lifecycle events.
type EventKind uint8

const (
	// EventDegraded means an allocation fell back to half resolution
	// to fit the budget.
	EventDegraded EventKind = iota
	// EventLost means the device was invalidated and all allocations
	// were dropped.
	EventLost
	// EventRecovered means replay finished and allocations are live
	// again.
	EventRecovered
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case EventDegraded:
		return "degraded"
	case EventLost:
		return "lost"
	case EventRecovered:
		return "recovered"
	default:
		return "unknown"
	}
}

// Event is a resource lifecycle notification. Degradation events are
// warnings; the engine keeps running on the reduced allocation.
type Event struct {
	Kind    EventKind
	Logical uuid.UUID
	Message string
}

// Handler receives resource events. Handlers must not call back into
// the table.
type Handler func(Event)

// Allocation is one row of the ownership table: a logical layer buffer
// bound to a physical allocation of a size and generation.
type Allocation struct {
	Logical    uuid.UUID
	Width      int
	Height     int
	Scale      int // 1 full resolution, 2 half
	Bytes      uint64
	Generation uint64
}

// Degraded reports whether the allocation runs below full resolution.
func (a *Allocation) Degraded() bool { return a.Scale > 1 }

// Table is the ownership table mapping logical ids to allocations.
// It enforces the memory budget and is the single place that knows
// which generation of the device an allocation belongs to.
//
// Table is safe for concurrent use.
type Table struct {
	mu         sync.Mutex
	budget     uint64
	used       uint64
	generation uint64
	entries    map[uuid.UUID]*Allocation
	dirty      map[uuid.UUID]struct{}
	handler    Handler
}

// NewTable creates a table with the given budget in bytes. A budget of
// zero uses DefaultBudgetBytes.
func NewTable(budget uint64) *Table {
	if budget == 0 {
		budget = DefaultBudgetBytes
	}
	return &Table{
		budget:  budget,
		entries: make(map[uuid.UUID]*Allocation),
		dirty:   make(map[uuid.UUID]struct{}),
	}
}

// SetHandler installs the event handler. Passing nil removes it.
func (t *Table) SetHandler(h Handler) {
	t.mu.Lock()
	t.handler = h
	t.mu.Unlock()
}

// Ensure binds the logical id to an allocation of the given full
// resolution, reusing an existing binding when present. When the full
// size does not fit the budget the allocation degrades to half
// resolution and an EventDegraded is emitted.
func (t *Table) Ensure(logical uuid.UUID, width, height int) (*Allocation, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if a, ok := t.entries[logical]; ok {
		return a, nil
	}

	a := &Allocation{
		Logical:    logical,
		Width:      width,
		Height:     height,
		Scale:      1,
		Bytes:      pixelBytes(width, height),
		Generation: t.generation,
	}
	if t.used+a.Bytes > t.budget {
		a.Width = (width + 1) / 2
		a.Height = (height + 1) / 2
		a.Scale = 2
		a.Bytes = pixelBytes(a.Width, a.Height)
		if t.used+a.Bytes > t.budget {
			return nil, ErrBudgetExceeded
		}
		slogger().Warn("gpu: allocation degraded to half resolution",
			"logical", logical, "width", a.Width, "height", a.Height)
		t.emit(Event{Kind: EventDegraded, Logical: logical,
			Message: "allocated at half resolution"})
	}

	t.entries[logical] = a
	t.used += a.Bytes
	return a, nil
}

// Lookup returns the allocation bound to the logical id.
func (t *Table) Lookup(logical uuid.UUID) (*Allocation, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	a, ok := t.entries[logical]
	if !ok {
		return nil, ErrUnknownAllocation
	}
	return a, nil
}

// Free drops the binding for the logical id. Unknown ids are a no-op.
func (t *Table) Free(logical uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if a, ok := t.entries[logical]; ok {
		t.used -= a.Bytes
		delete(t.entries, logical)
	}
}

// Used returns the allocated byte count.
func (t *Table) Used() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.used
}

// Budget returns the budget in bytes.
func (t *Table) Budget() uint64 { return t.budget }

// Generation returns the current device generation. It increments on
// every invalidation.
func (t *Table) Generation() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.generation
}

// Len returns the number of live allocations.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// MarkDirty records that the logical buffer has committed CPU-side
// history not yet reflected in its allocation. The mark survives
// invalidation and clears when the buffer is refreshed or recovered.
func (t *Table) MarkDirty(logical uuid.UUID) {
	t.mu.Lock()
	t.dirty[logical] = struct{}{}
	t.mu.Unlock()
}

// ClearDirty removes the pending-history mark after the allocation has
// been refreshed. Unknown ids are a no-op.
func (t *Table) ClearDirty(logical uuid.UUID) {
	t.mu.Lock()
	delete(t.dirty, logical)
	t.mu.Unlock()
}

// IsDirty reports whether the logical buffer has pending history.
func (t *Table) IsDirty(logical uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.dirty[logical]
	return ok
}

// Dirty returns the logical ids with pending history, in no particular
// order.
func (t *Table) Dirty() []uuid.UUID {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(t.dirty))
	for id := range t.dirty {
		ids = append(ids, id)
	}
	return ids
}

// InvalidateAll drops every allocation and starts a new generation.
// This is the device-lost entry point: everything on the GPU is a
// derived cache, so dropping it is always safe.
func (t *Table) InvalidateAll() {
	t.mu.Lock()
	t.entries = make(map[uuid.UUID]*Allocation)
	t.used = 0
	t.generation++
	gen := t.generation
	t.mu.Unlock()

	slogger().Warn("gpu: all allocations invalidated", "generation", gen)
	t.notify(Event{Kind: EventLost, Message: "device resources invalidated"})
}

// RegenerateFunc re-renders the content of one logical buffer into its
// fresh allocation. The allocation is nil when the buffer did not fit
// the budget even at reduced resolution; content then lives CPU-side
// only.
type RegenerateFunc func(ctx context.Context, logical uuid.UUID, a *Allocation) error

// Recover reallocates every listed logical buffer at the given full
// resolution and replays its content through regen. A buffer that fails
// to allocate or replay degrades alone: it is reported as a warning
// event and recovery moves on to the next buffer. Only cancellation of
// ctx stops the whole recovery.
func (t *Table) Recover(ctx context.Context, ids []uuid.UUID, width, height int, regen RegenerateFunc) error {
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		a, err := t.Ensure(id, width, height)
		if err != nil {
			slogger().Warn("gpu: recovery left buffer without allocation",
				"logical", id, "err", err)
			t.notify(Event{Kind: EventDegraded, Logical: id,
				Message: "no allocation within budget"})
			a = nil
		}
		if regen != nil {
			if err := regen(ctx, id, a); err != nil {
				if ctx.Err() != nil {
					return err
				}
				slogger().Warn("gpu: replay failed", "logical", id, "err", err)
				t.notify(Event{Kind: EventDegraded, Logical: id,
					Message: "replay failed"})
				continue
			}
		}
		t.ClearDirty(id)
	}
	slogger().Info("gpu: recovery complete", "buffers", len(ids))
	t.notify(Event{Kind: EventRecovered, Message: "replay complete"})
	return nil
}

// emit delivers an event while t.mu is held.
func (t *Table) emit(e Event) {
	if t.handler != nil {
		h := t.handler
		t.mu.Unlock()
		h(e)
		t.mu.Lock()
	}
}

// notify delivers an event without holding t.mu.
func (t *Table) notify(e Event) {
	t.mu.Lock()
	h := t.handler
	t.mu.Unlock()
	if h != nil {
		h(e)
	}
}

func pixelBytes(width, height int) uint64 {
	return uint64(width) * uint64(height) * 4
}
