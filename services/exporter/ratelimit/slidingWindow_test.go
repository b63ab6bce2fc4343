package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSlidingWindow(t *testing.T) {
	t.Parallel()

	t.Run("invalid limit should error", func(t *testing.T) {
		sw, err := NewSlidingWindow(0, time.Second)
		assert.True(t, sw.IsInterfaceNil())
		assert.Equal(t, ErrInvalidLimit, err)
	})
	t.Run("invalid period should error", func(t *testing.T) {
		sw, err := NewSlidingWindow(1, 0)
		assert.True(t, sw.IsInterfaceNil())
		assert.Equal(t, ErrInvalidPeriod, err)
	})
	t.Run("should work", func(t *testing.T) {
		sw, err := NewSlidingWindow(10, time.Second)
		assert.False(t, sw.IsInterfaceNil())
		assert.Nil(t, err)
	})
}

func TestSlidingWindow_TryAdmit(t *testing.T) {
	t.Parallel()

	sw, _ := NewSlidingWindow(2, time.Second)
	current := time.Unix(1000, 0)
	sw.now = func() time.Time {
		return current
	}

	assert.Zero(t, sw.tryAdmit())
	current = current.Add(300 * time.Millisecond)
	assert.Zero(t, sw.tryAdmit())

	// window full: the first admission leaves the window 700ms from now
	assert.Equal(t, 700*time.Millisecond, sw.tryAdmit())

	current = current.Add(700 * time.Millisecond)
	assert.Zero(t, sw.tryAdmit())
	// second admission (t=300ms) is still inside the window
	assert.Equal(t, 300*time.Millisecond, sw.tryAdmit())
}

func TestSlidingWindow_WaitDelaysExcessCalls(t *testing.T) {
	t.Parallel()

	period := 200 * time.Millisecond
	sw, _ := NewSlidingWindow(3, period)

	var mut sync.Mutex
	numLimited := 0
	wg := sync.WaitGroup{}
	start := time.Now()
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			limited, err := sw.Wait(context.Background())
			require.Nil(t, err)

			mut.Lock()
			if limited {
				numLimited++
			}
			mut.Unlock()
		}()
	}
	wg.Wait()

	// 10 calls at 3 per window need at least 3 full windows; none of them was dropped
	assert.GreaterOrEqual(t, time.Since(start), 3*period)
	assert.Equal(t, 7, numLimited)
}

func TestSlidingWindow_WaitContextDone(t *testing.T) {
	t.Parallel()

	sw, _ := NewSlidingWindow(1, time.Hour)
	limited, err := sw.Wait(context.Background())
	assert.False(t, limited)
	assert.Nil(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	limited, err = sw.Wait(ctx)
	assert.True(t, limited)
	assert.Equal(t, context.DeadlineExceeded, err)

	sw.mut.Lock()
	assert.Len(t, sw.admitted, 1)
	sw.mut.Unlock()
}
