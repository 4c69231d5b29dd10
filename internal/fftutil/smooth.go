package fftutil

import (
	"math"

	"github.com/Sulla2012/minkasi-go/internal/fftshim"
)

// gaussianKernel builds the r2r-domain Gaussian smoothing kernel used by
// SmoothVec/SmoothManyVecs, normalized so that the r2r-domain zero-frequency
// amplitude is preserved (the sum of the spatial-domain kernel, using the
// r2r trapezoid-like normalization of doubling interior samples, equals 1).
func gaussianKernel(n int, fwhm float64) []float64 {
	if n == 1 {
		return []float64{1}
	}
	sigma := fwhm / math.Sqrt(8*math.Log(2))
	kernel := make([]float64, n)
	for x := 0; x < n; x++ {
		kernel[x] = math.Exp(-0.5 * math.Pow(float64(x)/sigma, 2))
	}
	tot := kernel[0] + kernel[n-1]
	for x := 1; x < n-1; x++ {
		tot += 2 * kernel[x]
	}
	for x := range kernel {
		kernel[x] /= tot
	}
	return kernel
}

// SmoothVec Gaussian-smooths a single real vector in the r2r-FFT domain
// with the given FWHM (in samples).
func SmoothVec(vec []float64, fwhm float64) []float64 {
	n := len(vec)
	plan := fftshim.NewPlan(n)
	kernelFT := plan.R2R(nil, gaussianKernel(n, fwhm))
	xtrans := plan.R2R(nil, vec)
	for i := range xtrans {
		xtrans[i] *= kernelFT[i]
	}
	back := plan.R2R(nil, xtrans)
	scale := 2.0 * float64(n-1)
	if n == 1 {
		scale = 1.0
	}
	for i := range back {
		back[i] /= scale
	}
	return back
}

// SmoothManyVecs applies SmoothVec independently to every row of a
// [nrows][n] batch, sharing one transform plan across all rows.
func SmoothManyVecs(rows [][]float64, fwhm float64) [][]float64 {
	if len(rows) == 0 {
		return rows
	}
	n := len(rows[0])
	plan := fftshim.NewPlan(n)
	kernelFT := plan.R2R(nil, gaussianKernel(n, fwhm))
	scale := 2.0 * float64(n-1)
	if n == 1 {
		scale = 1.0
	}

	out := make([][]float64, len(rows))
	for r, row := range rows {
		xtrans := plan.R2R(nil, row)
		for i := range xtrans {
			xtrans[i] *= kernelFT[i]
		}
		back := plan.R2R(nil, xtrans)
		for i := range back {
			back[i] /= scale
		}
		out[r] = back
	}
	return out
}
