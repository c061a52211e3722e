package camera

import (
	"sync"

	"weaponwatch/internal/model"
)

// CurrentFrame is the latest annotated frame shared between the pipeline (single writer)
// and the video stream handlers (many readers).
type CurrentFrame struct {
	mu    sync.RWMutex
	frame *model.Frame
}

// NewCurrentFrame returns an empty exchange.
func NewCurrentFrame() *CurrentFrame {
	return &CurrentFrame{}
}

// Publish replaces the current frame. The caller hands over ownership of f and must not
// modify its pixels afterwards.
func (c *CurrentFrame) Publish(f *model.Frame) {
	if f == nil {
		return
	}
	c.mu.Lock()
	c.frame = f
	c.mu.Unlock()
}

// Snapshot returns a deep copy of the current frame, or false when none was published yet.
func (c *CurrentFrame) Snapshot() (*model.Frame, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.frame == nil {
		return nil, false
	}
	return c.frame.Clone(), true
}

// Seq returns the sequence number of the current frame, 0 if none.
func (c *CurrentFrame) Seq() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.frame == nil {
		return 0
	}
	return c.frame.Seq
}
