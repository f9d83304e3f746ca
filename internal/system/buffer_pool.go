package system

import (
	"image"
	"sync"
	"sync/atomic"
)

// FramePool hands out RGBA snapshot buffers, one sync.Pool per frame size.
type FramePool struct {
	mu    sync.RWMutex
	sizes map[image.Point]*sync.Pool
	fresh atomic.Int64
}

var frames = NewFramePool()

func NewFramePool() *FramePool {
	return &FramePool{sizes: make(map[image.Point]*sync.Pool)}
}

// AcquireFrame returns a frame with the given bounds from the shared pool.
// Pixel contents are unspecified.
func AcquireFrame(bounds image.Rectangle) *image.RGBA {
	return frames.Acquire(bounds)
}

// ReleaseFrame returns a frame to the shared pool.
func ReleaseFrame(img *image.RGBA) {
	frames.Release(img)
}

// FramesAllocated counts buffers the shared pool had to allocate.
func FramesAllocated() int64 {
	return frames.Allocated()
}

func (p *FramePool) sizePool(size image.Point, create bool) *sync.Pool {
	p.mu.RLock()
	sp := p.sizes[size]
	p.mu.RUnlock()
	if sp != nil || !create {
		return sp
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if sp = p.sizes[size]; sp == nil {
		sp = &sync.Pool{New: func() any {
			p.fresh.Add(1)
			return image.NewRGBA(image.Rectangle{Max: size})
		}}
		p.sizes[size] = sp
	}
	return sp
}

func (p *FramePool) Acquire(bounds image.Rectangle) *image.RGBA {
	img := p.sizePool(bounds.Size(), true).Get().(*image.RGBA)
	// Buffers are keyed by size; move the origin to the requested one.
	img.Rect = bounds
	return img
}

// Release ignores nil and frames of sizes the pool never handed out.
func (p *FramePool) Release(img *image.RGBA) {
	if img == nil {
		return
	}
	if sp := p.sizePool(img.Rect.Size(), false); sp != nil {
		sp.Put(img)
	}
}

func (p *FramePool) Allocated() int64 {
	return p.fresh.Load()
}
