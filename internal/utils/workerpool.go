package utils

import (
	"context"
	"sync"
)

// ParallelMap applies fn to every item with at most workers goroutines.
// Results and errors are stored at the index of their input, so callers can
// join them back by position regardless of completion order. Items not
// started before ctx is cancelled get ctx.Err() as their error.
func ParallelMap[T, R any](ctx context.Context, items []T, workers int, fn func(context.Context, int, T) (R, error)) ([]R, []error) {
	results := make([]R, len(items))
	errs := make([]error, len(items))
	if len(items) == 0 {
		return results, errs
	}

	if workers <= 0 {
		workers = 1
	}
	if workers > len(items) {
		workers = len(items)
	}

	taskChan := make(chan int, len(items))
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range taskChan {
				if err := ctx.Err(); err != nil {
					errs[idx] = err
					continue
				}
				// each index is owned by exactly one worker
				results[idx], errs[idx] = fn(ctx, idx, items[idx])
			}
		}()
	}

	for i := range items {
		taskChan <- i
	}
	close(taskChan)
	wg.Wait()

	return results, errs
}
