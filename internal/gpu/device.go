// Package gpu owns the device, the compositing pipelines, and the
// ownership table that maps logical layer buffers to GPU allocations.
//
// Everything on the GPU is a derived cache. The CPU side keeps the
// authoritative stroke history and layer buffers, so a lost device is
// recovered by reallocating and replaying, never by reading anything
// back from the GPU.
package gpu

import (
	"errors"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

var (
	// ErrNoGPU means no usable adapter was found.
	ErrNoGPU = errors.New("gpu: no suitable adapter")
	// ErrNotInitialized means the backend was used before Open or
	// after Close.
	ErrNotInitialized = errors.New("gpu: backend not initialized")
)

// Backend holds the hal instance, device and queue.
//
// A nil or unopened Backend is valid: resource bookkeeping then runs in
// logical mode with no real allocations, which is how the engine works
// headless and how tests exercise recovery without hardware.
type Backend struct {
	mu sync.RWMutex

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	name     string

	initialized bool
}

// NewBackend returns an unopened backend.
func NewBackend() *Backend {
	return &Backend{}
}

// Open creates the instance, picks an adapter and opens a device.
// Discrete and integrated GPUs are preferred over software adapters.
func (b *Backend) Open() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.initialized {
		return nil
	}

	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return ErrNoGPU
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return err
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		return ErrNoGPU
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		return err
	}

	b.instance = instance
	b.device = openDev.Device
	b.queue = openDev.Queue
	b.name = selected.Info.Name
	b.initialized = true

	slogger().Info("gpu: backend opened", "adapter", b.name)
	return nil
}

// Available reports whether a device is open.
func (b *Backend) Available() bool {
	if b == nil {
		return false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.initialized
}

// AdapterName returns the selected adapter's name, or "" when closed.
func (b *Backend) AdapterName() string {
	if b == nil {
		return ""
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.name
}

// Device returns the open hal device.
func (b *Backend) Device() (hal.Device, error) {
	if b == nil {
		return nil, ErrNotInitialized
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.initialized {
		return nil, ErrNotInitialized
	}
	return b.device, nil
}

// Close destroys the device. Safe on an unopened backend.
func (b *Backend) Close() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return
	}
	if b.device != nil {
		b.device.Destroy()
	}
	b.instance = nil
	b.device = nil
	b.queue = nil
	b.name = ""
	b.initialized = false
	slogger().Info("gpu: backend closed")
}
