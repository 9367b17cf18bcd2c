// Package parallel splits index ranges across goroutines. Random forests use
// it to grow trees concurrently and the AutoML runner uses it to evaluate
// candidate models side by side.
package parallel

import (
	"runtime"
	"sync"
)

// Parallelize divides items into contiguous chunks, one per CPU core, and
// runs fn(start, end) for each chunk concurrently. It returns once every
// chunk has finished.
func Parallelize(items int, fn func(start, end int)) {
	ParallelizeN(items, runtime.NumCPU(), fn)
}

// ParallelizeN is Parallelize with an explicit worker limit. workers <= 0
// means one worker per CPU core.
func ParallelizeN(items, workers int, fn func(start, end int)) {
	if items <= 0 {
		return
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > items {
		workers = items
	}

	// ceiling division
	chunkSize := (items + workers - 1) / workers

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > items {
			end = items
		}
		if start >= end {
			continue
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ParallelizeWithThreshold runs fn sequentially over the whole range when
// items <= threshold, and in parallel otherwise.
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	if items <= threshold {
		if items > 0 {
			fn(0, items)
		}
		return
	}
	Parallelize(items, fn)
}

// ForEach calls fn(i) for every i in [0, items) using ParallelizeN.
func ForEach(items, workers int, fn func(i int)) {
	ParallelizeN(items, workers, func(start, end int) {
		for i := start; i < end; i++ {
			fn(i)
		}
	})
}
