package util

import (
	"context"
	"errors"
	"sync"
)

// Parallel runs fn for every input using at most workerLimit goroutines.
// Unlike a fail-fast group, every input is processed; the returned error joins
// all failures so a shutdown can release every resource it was given.
func Parallel[T any](ctx context.Context, inputs []T, workerLimit int, fn func(context.Context, T) error) error {
	if len(inputs) == 0 {
		return nil
	}

	if workerLimit <= 0 {
		workerLimit = 1
	}

	tasks := make(chan T)

	var (
		mu   sync.Mutex
		errs []error
		wg   sync.WaitGroup
	)
	for i := 0; i < workerLimit; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range tasks {
				if err := fn(ctx, item); err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
			}
		}()
	}

	for _, item := range inputs {
		tasks <- item
	}
	close(tasks)
	wg.Wait()

	return errors.Join(errs...)
}
