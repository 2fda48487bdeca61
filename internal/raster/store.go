package raster

import (
	"sync"

	"github.com/google/uuid"
)

// Store owns one accumulation buffer per layer, keyed by layer id.
//
// Exactly one layer owns a given buffer at a time; buffers are never
// aliased across layers. The store hands buffers to writers through
// AcquireWriter, which enforces the single-writer rule: a second
// concurrent acquisition of the same buffer returns ErrBufferBusy, which
// callers treat as a defect.
type Store struct {
	mu      sync.Mutex
	width   int
	height  int
	pool    *Pool
	entries map[uuid.UUID]*storeEntry
}

type storeEntry struct {
	buf     *Buffer
	writing bool
}

// NewStore creates a store for buffers of the given canvas size.
// A nil pool gets a default.
func NewStore(width, height int, pool *Pool) *Store {
	if pool == nil {
		pool = NewPool(8)
	}
	return &Store{
		width:   width,
		height:  height,
		pool:    pool,
		entries: make(map[uuid.UUID]*storeEntry),
	}
}

// Width returns the buffer width in pixels.
func (s *Store) Width() int { return s.width }

// Height returns the buffer height in pixels.
func (s *Store) Height() int { return s.height }

// Ensure returns the layer's buffer, allocating a cleared one on first
// use. Idempotent afterwards.
func (s *Store) Ensure(id uuid.UUID) (*Buffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureLocked(id)
}

func (s *Store) ensureLocked(id uuid.UUID) (*Buffer, error) {
	if e, ok := s.entries[id]; ok {
		return e.buf, nil
	}
	buf := s.pool.Get(s.width, s.height)
	if buf == nil {
		return nil, ErrInvalidDimensions
	}
	s.entries[id] = &storeEntry{buf: buf}
	return buf, nil
}

// Buffer returns the layer's buffer for reading, or ErrUnknownBuffer when
// none has been allocated.
func (s *Store) Buffer(id uuid.UUID) (*Buffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, ErrUnknownBuffer
	}
	return e.buf, nil
}

// AcquireWriter returns the layer's buffer for mutation plus a release
// function. Allocates on first use. A second acquisition before release
// returns ErrBufferBusy.
func (s *Store) AcquireWriter(id uuid.UUID) (*Buffer, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.ensureLocked(id); err != nil {
		return nil, nil, err
	}
	e := s.entries[id]
	if e.writing {
		return nil, nil, ErrBufferBusy
	}
	e.writing = true

	release := func() {
		s.mu.Lock()
		e.writing = false
		s.mu.Unlock()
	}
	return e.buf, release, nil
}

// Release drops a layer's buffer back to the pool, e.g. when the layer is
// deleted. Unknown ids are a no-op.
func (s *Store) Release(id uuid.UUID) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if ok {
		delete(s.entries, id)
	}
	s.mu.Unlock()
	if ok {
		s.pool.Put(e.buf)
	}
}

// Retain drops every buffer whose id is not in keep, returning the ids
// that were pruned. Mirrors allocate-and-prune during document changes:
// buffers for deleted layers must not linger.
func (s *Store) Retain(keep map[uuid.UUID]bool) []uuid.UUID {
	s.mu.Lock()
	var pruned []uuid.UUID
	var bufs []*Buffer
	for id, e := range s.entries {
		if !keep[id] {
			pruned = append(pruned, id)
			bufs = append(bufs, e.buf)
			delete(s.entries, id)
		}
	}
	s.mu.Unlock()
	for _, b := range bufs {
		s.pool.Put(b)
	}
	return pruned
}

// IDs returns the ids that currently have buffers.
func (s *Store) IDs() []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	return ids
}
