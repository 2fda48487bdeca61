package raster

import "sync"

// Pool reuses Buffers of identical dimensions to cut allocation churn
// during replay and frame compositing.
//
// Thread safety: all methods are safe for concurrent use.
type Pool struct {
	mu      sync.Mutex
	buckets map[poolKey][]*Buffer
	maxSize int // max buffers retained per bucket
}

type poolKey struct {
	width  int
	height int
}

// NewPool creates a pool retaining at most maxPerBucket buffers of each
// size. Zero means unlimited.
func NewPool(maxPerBucket int) *Pool {
	return &Pool{
		buckets: make(map[poolKey][]*Buffer),
		maxSize: maxPerBucket,
	}
}

// Get returns a cleared buffer of the requested size, reusing a pooled one
// when available. Returns nil for invalid dimensions.
func (p *Pool) Get(width, height int) *Buffer {
	key := poolKey{width, height}

	p.mu.Lock()
	bucket := p.buckets[key]
	if n := len(bucket); n > 0 {
		buf := bucket[n-1]
		p.buckets[key] = bucket[:n-1]
		p.mu.Unlock()
		buf.Clear()
		return buf
	}
	p.mu.Unlock()

	buf, err := NewBuffer(width, height)
	if err != nil {
		return nil
	}
	return buf
}

// Put returns a buffer for reuse. Nil buffers and overflowing buckets are
// discarded.
func (p *Pool) Put(buf *Buffer) {
	if buf == nil {
		return
	}
	key := poolKey{buf.width, buf.height}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.maxSize > 0 && len(p.buckets[key]) >= p.maxSize {
		return
	}
	p.buckets[key] = append(p.buckets[key], buf)
}
