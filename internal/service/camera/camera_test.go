package camera

import (
	"context"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"weaponwatch/internal/logger"
	"weaponwatch/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scriptedCapturer replays a fixed availability pattern, then keeps succeeding.
type scriptedCapturer struct {
	mu      sync.Mutex
	pattern []bool
	calls   int
}

func (c *scriptedCapturer) Capture() (*image.RGBA, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ok := true
	if c.calls < len(c.pattern) {
		ok = c.pattern[c.calls]
	}
	c.calls++
	if !ok {
		return nil, false
	}
	return image.NewRGBA(image.Rect(0, 0, 8, 8)), true
}

func (c *scriptedCapturer) Close() error { return nil }

func TestSource_SkipsFailedTicks(t *testing.T) {
	capturer := &scriptedCapturer{pattern: []bool{true, false, false, true, true}}
	src := NewSource(capturer, 500, logger.Discard(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var seqs []uint64
	done := make(chan error, 1)
	go func() {
		done <- src.Run(ctx, func(_ context.Context, f *model.Frame) {
			seqs = append(seqs, f.Seq)
			if len(seqs) == 3 {
				cancel()
			}
		})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("capture loop did not stop")
	}

	assert.Equal(t, []uint64{1, 2, 3}, seqs, "failed ticks must not consume sequence numbers")
}

func TestSource_StopsOnCancel(t *testing.T) {
	src := NewSource(&scriptedCapturer{pattern: []bool{false}}, 1000, logger.Discard(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, src.Run(ctx, func(context.Context, *model.Frame) {}))
}

func TestCurrentFrame_SnapshotIsCopy(t *testing.T) {
	cf := NewCurrentFrame()

	_, ok := cf.Snapshot()
	assert.False(t, ok)
	assert.Zero(t, cf.Seq())

	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	cf.Publish(&model.Frame{Image: img, Seq: 4})

	snap, ok := cf.Snapshot()
	require.True(t, ok)
	assert.Equal(t, uint64(4), snap.Seq)
	assert.Equal(t, uint64(4), cf.Seq())

	snap.Image.Pix[0] = 99
	again, _ := cf.Snapshot()
	assert.Zero(t, again.Image.Pix[0])
}

func TestCurrentFrame_ConcurrentReaders(t *testing.T) {
	cf := NewCurrentFrame()

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(2)
		go func(seq uint64) {
			defer wg.Done()
			cf.Publish(&model.Frame{Image: image.NewRGBA(image.Rect(0, 0, 4, 4)), Seq: seq})
		}(uint64(i))
		go func() {
			defer wg.Done()
			if f, ok := cf.Snapshot(); ok {
				assert.Len(t, f.Image.Pix, 4*4*4)
			}
		}()
	}
	wg.Wait()
}

func TestPlaceholder(t *testing.T) {
	img := Placeholder()
	require.NotNil(t, img)
	assert.Equal(t, image.Rect(0, 0, PlaceholderWidth, PlaceholderHeight), img.Bounds())

	corner := img.RGBAAt(0, 0)
	assert.Equal(t, uint8(50), corner.R)
	assert.Equal(t, uint8(50), corner.G)
	assert.Equal(t, uint8(50), corner.B)

	assert.Same(t, img, Placeholder(), "placeholder is rendered once")
}
