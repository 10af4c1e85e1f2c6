package pool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerPool(t *testing.T) {
	t.Run("reused timer fires after its new duration", func(t *testing.T) {
		t1 := GetTimer(time.Hour)
		PutTimer(t1)

		begin := time.Now()
		t2 := GetTimer(30 * time.Millisecond)
		defer PutTimer(t2)

		select {
		case <-t2.C:
			assert.GreaterOrEqual(t, time.Since(begin), 25*time.Millisecond)
		case <-time.After(time.Second):
			t.Fatal("timer did not fire")
		}
	})

	t.Run("stopped timer delivers nothing", func(t *testing.T) {
		t1 := GetTimer(10 * time.Millisecond)
		time.Sleep(30 * time.Millisecond)
		PutTimer(t1)

		t2 := GetTimer(200 * time.Millisecond)
		defer PutTimer(t2)

		select {
		case <-t2.C:
			t.Fatal("stale expiry delivered")
		case <-time.After(50 * time.Millisecond):
		}
	})

	t.Run("concurrency", func(t *testing.T) {
		var wg sync.WaitGroup
		for range 100 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				timer := GetTimer(5 * time.Millisecond)
				defer PutTimer(timer)
				<-timer.C
			}()
		}
		wg.Wait()
	})
}

func TestSleep(t *testing.T) {
	require := require.New(t)

	begin := time.Now()
	require.NoError(Sleep(context.Background(), 20*time.Millisecond))
	require.GreaterOrEqual(time.Since(begin), 20*time.Millisecond)

	require.NoError(Sleep(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	begin = time.Now()
	require.ErrorIs(Sleep(ctx, time.Hour), context.Canceled)
	require.Less(time.Since(begin), time.Second)

	require.ErrorIs(Sleep(ctx, 0), context.Canceled)
}
