package mpicomm

import (
	"sync"

	"golang.org/x/sync/errgroup"
)

// LocalComm simulates an N-rank world in a single process, for tests that
// need to check that a reduction is invariant to how TODs are partitioned
// across ranks. It is never constructed by production code paths; each
// simulated rank runs on its own goroutine and calls into a shared
// barrier-style reduction.
type LocalComm struct {
	rank int
	size int
	bus  *localBus
}

type localBus struct {
	mu      sync.Mutex
	cond    *sync.Cond
	arrived int
	size    int
	gen     int
	sum     []float64
	min     float64
	max     float64

	// Completed-round snapshots. Waiters read these after the generation
	// advances; a fast rank starting the next round mutates only the
	// in-progress sum/min/max fields, and cannot complete that round (and
	// overwrite the snapshots) until every waiter has left this one.
	resSum []float64
	resMin float64
	resMax float64
}

func newLocalBus(size int) *localBus {
	b := &localBus{size: size}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// NewLocalWorld builds `size` LocalComm handles sharing one reduction bus.
func NewLocalWorld(size int) []*LocalComm {
	bus := newLocalBus(size)
	comms := make([]*LocalComm, size)
	for r := 0; r < size; r++ {
		comms[r] = &LocalComm{rank: r, size: size, bus: bus}
	}
	return comms
}

func (c *LocalComm) Rank() int { return c.rank }
func (c *LocalComm) Size() int { return c.size }

func (c *LocalComm) AllReduceSum(buf []float64) []float64 {
	b := c.bus
	b.mu.Lock()
	gen := b.gen
	if b.arrived == 0 {
		b.sum = make([]float64, len(buf))
	}
	for i, v := range buf {
		b.sum[i] += v
	}
	b.arrived++
	if b.arrived == b.size {
		b.resSum = b.sum
		b.sum = nil
		b.gen++
		b.arrived = 0
		b.cond.Broadcast()
	} else {
		for b.gen == gen {
			b.cond.Wait()
		}
	}
	out := make([]float64, len(b.resSum))
	copy(out, b.resSum)
	b.mu.Unlock()
	return out
}

func (c *LocalComm) AllReduceMin(v float64) float64 {
	return c.reduceScalar(v, true)
}

func (c *LocalComm) AllReduceMax(v float64) float64 {
	return c.reduceScalar(v, false)
}

func (c *LocalComm) reduceScalar(v float64, wantMin bool) float64 {
	b := c.bus
	b.mu.Lock()
	gen := b.gen
	if b.arrived == 0 {
		b.min = v
		b.max = v
	} else {
		if v < b.min {
			b.min = v
		}
		if v > b.max {
			b.max = v
		}
	}
	b.arrived++
	var result float64
	if b.arrived == b.size {
		b.resMin = b.min
		b.resMax = b.max
		b.gen++
		b.arrived = 0
		b.cond.Broadcast()
	} else {
		for b.gen == gen {
			b.cond.Wait()
		}
	}
	if wantMin {
		result = b.resMin
	} else {
		result = b.resMax
	}
	b.mu.Unlock()
	return result
}

// RunOnLocalWorld runs fn once per simulated rank concurrently, returning
// the first error encountered (if any). fn must call every collective the
// same number of times on every rank, matching real MPI's synchronous
// fan-in discipline.
func RunOnLocalWorld(size int, fn func(rank int, comm *LocalComm) error) error {
	comms := NewLocalWorld(size)
	var g errgroup.Group
	for r, c := range comms {
		r, c := r, c
		g.Go(func() error {
			return fn(r, c)
		})
	}
	return g.Wait()
}
