package minkasi

import (
	"fmt"
	"math"
)

// PCGOptions configures RunPCG. MaxIter defaults to 25 (the baseline
// specification's fixed iteration count; there is no residual-tolerance
// exit in the baseline loop). Verbose prints per-iteration diagnostics,
// and is expected to be set true only on rank 0 by the caller.
type PCGOptions struct {
	MaxIter int
	Verbose bool
}

// DefaultPCGOptions returns MaxIter: 25, Verbose: false.
func DefaultPCGOptions() PCGOptions {
	return PCGOptions{MaxIter: 25}
}

// RunPCG solves A(x) = b for x by preconditioned conjugate gradients,
// starting from x0, where applyA is TodVec.Dot closed over its local TOD
// set (so it implicitly reduces across MPI ranks once per call). K is the
// preconditioner (IdentityPrecon or DiagonalPrecon). Returns the solution
// Mapset; x0 is not mutated.
func RunPCG(b, x0 *Mapset, applyA func(p *Mapset) (*Mapset, error), k Precon, opts PCGOptions) (*Mapset, error) {
	if opts.MaxIter <= 0 {
		opts.MaxIter = 25
	}

	x := x0.Copy()
	ax, err := applyA(x)
	if err != nil {
		return nil, err
	}
	r := b.Copy()
	if err := r.Axpy(ax, -1); err != nil {
		return nil, err
	}

	z, err := k.Apply(r)
	if err != nil {
		return nil, err
	}
	p := z.Copy()
	rho, err := r.Dot(z)
	if err != nil {
		return nil, err
	}

	for iter := 1; iter <= opts.MaxIter; iter++ {
		q, err := applyA(p)
		if err != nil {
			return nil, err
		}
		pq, err := p.Dot(q)
		if err != nil {
			return nil, err
		}
		if pq <= 0 || math.IsNaN(pq) || math.IsInf(pq, 0) {
			return nil, NewMapError(NumericalBreakdown, fmt.Sprintf("p.q = %g is non-positive or non-finite", pq)).WithIter(iter)
		}
		alpha := rho / pq

		if err := x.Axpy(p, alpha); err != nil {
			return nil, err
		}
		if err := r.Axpy(q, -alpha); err != nil {
			return nil, err
		}

		z, err = k.Apply(r)
		if err != nil {
			return nil, err
		}
		rhoNew, err := r.Dot(z)
		if err != nil {
			return nil, err
		}
		if math.IsNaN(rhoNew) || math.IsInf(rhoNew, 0) {
			return nil, NewMapError(NumericalBreakdown, fmt.Sprintf("rho = %g is non-finite", rhoNew)).WithIter(iter)
		}
		beta := rhoNew / rho

		newP := z.Copy()
		if err := newP.Axpy(p, beta); err != nil {
			return nil, err
		}
		p = newP
		rho = rhoNew

		if opts.Verbose {
			fmt.Printf("pcg iter %d: rho=%g alpha=%g beta=%g\n", iter, rho, alpha, beta)
		}
	}

	return x, nil
}
