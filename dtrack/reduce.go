package dtrack

import (
	"runtime"
	"sync"
	"sync/atomic"

	goutils "go.viam.com/utils"
)

// reduce evaluates every pixel of the current level's depth map and
// combines the per-pixel contributions into a single accumulator.
//
// The flat pixel range [0, total) is split into fixed chunks; a pool
// of one worker per hardware thread claims chunks off a shared
// counter, each accumulating into the chunk's own slot. The final
// join sums the chunk accumulators in ascending chunk order, so the
// result is reproducible for identical inputs regardless of how the
// scheduler interleaves workers.
func (p *poseRefine) reduce(total, chunkSize int) accumulator {
	if total <= 0 {
		return accumulator{}
	}
	numChunks := (total + chunkSize - 1) / chunkSize
	chunks := make([]accumulator, numChunks)

	workers := runtime.GOMAXPROCS(0)
	if workers > numChunks {
		workers = numChunks
	}

	var next int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		goutils.PanicCapturingGo(func() {
			defer wg.Done()
			for {
				idx := int(atomic.AddInt64(&next, 1)) - 1
				if idx >= numChunks {
					return
				}
				from := idx * chunkSize
				to := from + chunkSize
				if to > total {
					to = total
				}
				p.accumulate(from, to, &chunks[idx])
			}
		})
	}
	wg.Wait()

	var out accumulator
	for i := range chunks {
		out.merge(&chunks[i])
	}
	return out
}
