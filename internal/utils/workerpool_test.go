package utils

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParallelMap(t *testing.T) {
	t.Parallel()

	t.Run("results keep input order", func(t *testing.T) {
		items := []int{5, 1, 4, 2, 3}
		results, errs := ParallelMap(context.Background(), items, 3, func(_ context.Context, _ int, n int) (int, error) {
			// later items finish first
			time.Sleep(time.Duration(n) * time.Millisecond)
			return n * 10, nil
		})

		assert.Equal(t, []int{50, 10, 40, 20, 30}, results)
		assert.Nil(t, FirstError(errs))
	})

	t.Run("error stays with its item", func(t *testing.T) {
		items := []string{"a", "fail", "c"}
		results, errs := ParallelMap(context.Background(), items, 2, func(_ context.Context, _ int, s string) (string, error) {
			if s == "fail" {
				return "", errors.New("boom")
			}
			return s + "!", nil
		})

		assert.Equal(t, "a!", results[0])
		assert.Equal(t, "c!", results[2])
		assert.NoError(t, errs[0])
		assert.EqualError(t, errs[1], "boom")
		assert.NoError(t, errs[2])
	})

	t.Run("empty items", func(t *testing.T) {
		results, errs := ParallelMap(context.Background(), []int{}, 4, func(_ context.Context, _ int, n int) (int, error) {
			return n, nil
		})
		assert.Empty(t, results)
		assert.Empty(t, errs)
	})

	t.Run("bounded concurrency", func(t *testing.T) {
		var running, peak int32
		items := make([]int, 20)
		ParallelMap(context.Background(), items, 3, func(_ context.Context, _ int, _ int) (int, error) {
			cur := atomic.AddInt32(&running, 1)
			for {
				old := atomic.LoadInt32(&peak)
				if cur <= old || atomic.CompareAndSwapInt32(&peak, old, cur) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			return 0, nil
		})
		assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
	})

	t.Run("zero workers runs sequentially", func(t *testing.T) {
		results, _ := ParallelMap(context.Background(), []int{1, 2}, 0, func(_ context.Context, idx int, n int) (int, error) {
			return idx + n, nil
		})
		assert.Equal(t, []int{1, 3}, results)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		var calls int32
		_, errs := ParallelMap(ctx, []int{1, 2, 3}, 2, func(_ context.Context, _ int, n int) (int, error) {
			atomic.AddInt32(&calls, 1)
			return n, nil
		})

		assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
		for _, err := range errs {
			assert.ErrorIs(t, err, context.Canceled)
		}
	})
}
