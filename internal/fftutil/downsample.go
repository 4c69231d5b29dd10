package fftutil

import "github.com/Sulla2012/minkasi-go/internal/fftshim"

// DownsampleVec reduces vec to len(vec)/fac samples in the r2r domain:
// transform, keep the lowest coefficients, transform back at the shorter
// length. The division by 2*(n-1) uses the original length n, so fac == 1
// round-trips to the input unchanged.
func DownsampleVec(vec []float64, fac int) []float64 {
	if fac <= 1 {
		out := make([]float64, len(vec))
		copy(out, vec)
		return out
	}
	rows := DownsampleManyVecs([][]float64{vec}, fac)
	return rows[0]
}

// DownsampleManyVecs applies r2r-domain downsampling independently to
// every row of a [nrows][n] batch, sharing the forward and inverse plans
// across rows.
func DownsampleManyVecs(rows [][]float64, fac int) [][]float64 {
	if len(rows) == 0 || fac <= 1 {
		return rows
	}
	n := len(rows[0])
	nn := n / fac
	fwd := fftshim.NewPlan(n)
	inv := fftshim.NewPlan(nn)
	scale := 2.0 * float64(n-1)
	if n == 1 {
		scale = 1.0
	}

	out := make([][]float64, len(rows))
	for r, row := range rows {
		ft := fwd.R2R(nil, row)
		back := inv.R2R(nil, ft[:nn])
		for i := range back {
			back[i] /= scale
		}
		out[r] = back
	}
	return out
}
