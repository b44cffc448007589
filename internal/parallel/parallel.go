// Package parallel provides a chunked parallel-for used by the CPU
// compute kernels.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls how work is split across goroutines.
type Config struct {
	Enabled    bool // run chunks on worker goroutines
	NumWorkers int  // goroutines to spread chunks over
	MinPerCall int  // below this many items, run sequentially
}

// DefaultConfig sizes the pool to the machine.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:    n > 1,
		NumWorkers: n,
		MinPerCall: 64,
	}
}

// For runs f(i) for i in [0, n), splitting the range into contiguous
// chunks. Small ranges run sequentially to avoid goroutine overhead.
// f must be safe to call concurrently for distinct i.
func For(n int, cfg Config, f func(i int)) {
	if !cfg.Enabled || n < cfg.MinPerCall {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	chunk := (n + cfg.NumWorkers - 1) / cfg.NumWorkers
	if chunk < cfg.MinPerCall {
		chunk = cfg.MinPerCall
	}

	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				f(i)
			}
		}(start, end)
	}
	wg.Wait()
}
