package system

import (
	"image"
	"sync"
)

// FramePool recycles *image.RGBA frame buffers per size so that rendering
// a long composition does not allocate a new canvas for every frame.
type FramePool struct {
	pools map[image.Point]*sync.Pool
	mu    sync.RWMutex
}

func NewFramePool() *FramePool {
	return &FramePool{pools: make(map[image.Point]*sync.Pool)}
}

// Get returns a reused buffer of rect's size, or a new one. Callers
// overwrite every pixel, so contents are not cleared.
func (p *FramePool) Get(rect image.Rectangle) *image.RGBA {
	rect = rect.Sub(rect.Min)
	key := rect.Size()

	p.mu.RLock()
	pool, ok := p.pools[key]
	p.mu.RUnlock()

	if !ok {
		p.mu.Lock()
		pool, ok = p.pools[key]
		if !ok {
			pool = &sync.Pool{
				New: func() any {
					return image.NewRGBA(rect)
				},
			}
			p.pools[key] = pool
		}
		p.mu.Unlock()
	}

	return pool.Get().(*image.RGBA)
}

// Put ignores buffers of a size the pool never handed out.
func (p *FramePool) Put(img *image.RGBA) {
	if img == nil {
		return
	}
	p.mu.RLock()
	pool, ok := p.pools[img.Rect.Size()]
	p.mu.RUnlock()

	if ok {
		pool.Put(img)
	}
}
