// Package pointing implements the tod2map/map2tod scatter-gather kernels,
// the inner loop of the mapmaker. A flat detector-time array T[ndet*nsamp]
// is gathered from, or scattered into, a flat pixel array M[npix] via a
// precomputed pixel index ipix[ndet*nsamp].
package pointing

import (
	"sync"
	"sync/atomic"

	"github.com/alitto/pond"
)

var (
	nthread  atomic.Int64
	poolMu   sync.Mutex
	pool     *pond.WorkerPool
	poolSize int
)

func init() {
	nthread.Store(1)
}

// SetNThread sets the process-global worker count used by the OMP-style
// kernel variants. A value <= 1 forces the serial code path.
func SetNThread(n int) {
	if n < 1 {
		n = 1
	}
	nthread.Store(int64(n))
}

// GetNThread returns the process-global worker count.
func GetNThread() int {
	return int(nthread.Load())
}

// workerPool returns a pond pool sized to the current worker count,
// resizing or (re)creating it lazily. The pool is process-global and
// outlives any single tod2map/map2tod call; it is reused across every
// PCG iteration.
func workerPool(n int) *pond.WorkerPool {
	poolMu.Lock()
	defer poolMu.Unlock()

	if pool == nil || poolSize != n {
		if pool != nil {
			pool.StopAndWait()
		}
		pool = pond.New(n, 0, pond.MinWorkers(n))
		poolSize = n
	}
	return pool
}

// TodToMapSimple is the serial scatter: M[ipix[i,s]] += T[i,s] for every
// detector i and sample s, processed in a fixed deterministic order.
func TodToMapSimple(m []float64, t []float64, ndet, nsamp int, ipix []int32) {
	n := ndet * nsamp
	for k := 0; k < n; k++ {
		m[ipix[k]] += t[k]
	}
}

// TodToMapOMP is the parallel scatter. Each worker accumulates into a
// private map-sized buffer over a disjoint slice of detectors; the
// private buffers are summed into m once every worker has finished. The
// result equals TodToMapSimple's up to floating-point reassociation.
func TodToMapOMP(m []float64, t []float64, ndet, nsamp int, ipix []int32, npix int) {
	nth := GetNThread()
	if nth <= 1 {
		TodToMapSimple(m, t, ndet, nsamp, ipix)
		return
	}

	p := workerPool(nth)
	chunk := (ndet + nth - 1) / nth
	buffers := make([][]float64, nth)

	var wg sync.WaitGroup
	for w := 0; w < nth; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > ndet {
			hi = ndet
		}
		if lo >= hi {
			continue
		}
		buf := make([]float64, npix)
		buffers[w] = buf
		wg.Add(1)
		p.Submit(func() {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				base := i * nsamp
				for s := 0; s < nsamp; s++ {
					k := base + s
					buf[ipix[k]] += t[k]
				}
			}
		})
	}
	wg.Wait()

	for _, buf := range buffers {
		if buf == nil {
			continue
		}
		for idx, v := range buf {
			if v != 0 {
				m[idx] += v
			}
		}
	}
}

// MapToTodSimple is the serial gather: T[i,s] = (add ? T[i,s] : 0) + M[ipix[i,s]].
func MapToTodSimple(t []float64, m []float64, ndet, nsamp int, ipix []int32, add bool) {
	n := ndet * nsamp
	for k := 0; k < n; k++ {
		if add {
			t[k] += m[ipix[k]]
		} else {
			t[k] = m[ipix[k]]
		}
	}
}

// MapToTodOMP is the parallel gather. The gather has no accumulation
// hazard (every sample writes its own slot), so the detector loop is
// simply partitioned across the worker pool.
func MapToTodOMP(t []float64, m []float64, ndet, nsamp int, ipix []int32, add bool) {
	nth := GetNThread()
	if nth <= 1 {
		MapToTodSimple(t, m, ndet, nsamp, ipix, add)
		return
	}

	p := workerPool(nth)
	chunk := (ndet + nth - 1) / nth

	var wg sync.WaitGroup
	for w := 0; w < nth; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > ndet {
			hi = ndet
		}
		if lo >= hi {
			continue
		}
		wg.Add(1)
		p.Submit(func() {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				base := i * nsamp
				for s := 0; s < nsamp; s++ {
					k := base + s
					if add {
						t[k] += m[ipix[k]]
					} else {
						t[k] = m[ipix[k]]
					}
				}
			}
		})
	}
	wg.Wait()
}
