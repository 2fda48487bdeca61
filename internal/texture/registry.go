package texture

import (
	"sync"

	"github.com/google/uuid"
)

// Registry maps channel ids to loaded channels. Channels are immutable
// once registered, so lookups hand out shared pointers and stroke
// rasterization can sample them concurrently without copies.
type Registry struct {
	mu       sync.RWMutex
	channels map[uuid.UUID]*Channel
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{channels: make(map[uuid.UUID]*Channel)}
}

// Register stores a channel under a fresh id and returns the id.
func (r *Registry) Register(c *Channel) uuid.UUID {
	id := uuid.New()
	r.mu.Lock()
	r.channels[id] = c
	r.mu.Unlock()
	return id
}

// Channel returns the channel registered under id.
func (r *Registry) Channel(id uuid.UUID) (*Channel, error) {
	r.mu.RLock()
	c, ok := r.channels[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownChannel
	}
	return c, nil
}

// Remove drops a channel. Removing an unknown id is a no-op.
func (r *Registry) Remove(id uuid.UUID) {
	r.mu.Lock()
	delete(r.channels, id)
	r.mu.Unlock()
}

// Len returns the number of registered channels.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}

// Resolve looks up every id and returns a single sampler that
// multiplies the channels together, the combination rule for mixed
// shape-and-grain brushes. No ids yields a nil sampler, which callers
// treat as an untextured brush.
func (r *Registry) Resolve(ids []uuid.UUID) (func(u, v float32) byte, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	channels := make([]*Channel, len(ids))
	for i, id := range ids {
		c, err := r.Channel(id)
		if err != nil {
			return nil, err
		}
		channels[i] = c
	}
	if len(channels) == 1 {
		c := channels[0]
		return c.Sample, nil
	}
	return func(u, v float32) byte {
		cov := channels[0].Sample(u, v)
		for _, c := range channels[1:] {
			cov = mul8(cov, c.Sample(u, v))
		}
		return cov
	}, nil
}
