package raster

import (
	"runtime"
	"sync"
)

// SplitRows partitions h rows into at most workers contiguous [y0, y1) ranges.
func SplitRows(h, workers int) [][2]int {
	if workers < 1 {
		workers = 1
	}
	if workers > h {
		workers = h
	}
	if h <= 0 {
		return nil
	}
	out := make([][2]int, 0, workers)
	base := h / workers
	rem := h % workers
	y := 0
	for i := 0; i < workers; i++ {
		n := base
		if i < rem {
			n++
		}
		out = append(out, [2]int{y, y + n})
		y += n
	}
	return out
}

// ParallelRows runs fn over disjoint row ranges covering [0, h) and waits for all of them.
// Each range is owned by exactly one goroutine, so writes to per-row output are race free.
func ParallelRows(h int, fn func(y0, y1 int)) {
	ranges := SplitRows(h, runtime.GOMAXPROCS(0))
	if len(ranges) <= 1 {
		if h > 0 {
			fn(0, h)
		}
		return
	}
	var wg sync.WaitGroup
	for _, r := range ranges {
		wg.Add(1)
		go func(y0, y1 int) {
			defer wg.Done()
			fn(y0, y1)
		}(r[0], r[1])
	}
	wg.Wait()
}
