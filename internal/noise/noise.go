// Package noise implements the per-TOD noise operator: an SVD-based
// detector rotation followed by an elementwise frequency-domain weight,
// applied via the r2r FFT shim.
package noise

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/Sulla2012/minkasi-go/internal/fftshim"
	"github.com/Sulla2012/minkasi-go/internal/fftutil"
)

// Model holds the rotation matrix V and per-mode frequency weights W
// built once per TOD by FitSmoothedSVD.
type Model struct {
	Ndet  int
	Nsamp int
	Nfreq int
	V     *mat.Dense  // ndet x ndet, V = Uᵀ of the SVD of dat_calib
	W     [][]float64 // ndet rows, each >= Nfreq wide
}

// NFreq returns the canonical frequency-bin count for a row length nsamp
// under the r2r convention used throughout this package.
func NFreq(nsamp int) int {
	return nsamp/2 + 1
}

// FitSmoothedSVD computes the SVD of datCalib (ndet x nsamp, row-major
// flat), sets V = Uᵀ so that rotating datCalib by V yields the
// mode-diagonal form, transforms the rotated rows, squares them to get
// per-mode power spectra, smooths each spectrum with a Gaussian kernel of
// the given FWHM, and sets W = 1/smoothed_power.
func FitSmoothedSVD(datCalib []float64, ndet, nsamp int, fwhm float64) (*Model, error) {
	a := mat.NewDense(ndet, nsamp, datCalib)

	var svd mat.SVD
	ok := svd.Factorize(a, mat.SVDThin)
	if !ok {
		return nil, fmt.Errorf("noise: SVD factorization failed for %dx%d detector block", ndet, nsamp)
	}

	var u mat.Dense
	svd.UTo(&u)

	v := mat.NewDense(ndet, ndet, nil)
	v.CloneFrom(u.T())

	rotated := make([][]float64, ndet)
	for i := 0; i < ndet; i++ {
		row := make([]float64, nsamp)
		for j := 0; j < nsamp; j++ {
			var sum float64
			for k := 0; k < ndet; k++ {
				sum += v.At(i, k) * datCalib[k*nsamp+j]
			}
			row[j] = sum
		}
		rotated[i] = row
	}

	plan := fftshim.NewPlan(nsamp)
	power := make([][]float64, ndet)
	for i, row := range rotated {
		trans := plan.R2R(nil, row)
		sq := make([]float64, len(trans))
		for j, x := range trans {
			sq[j] = x * x
		}
		power[i] = sq
	}

	smoothed := fftutil.SmoothManyVecs(power, fwhm)

	nfreq := NFreq(nsamp)
	w := make([][]float64, ndet)
	for i, row := range smoothed {
		wr := make([]float64, len(row))
		for j, p := range row {
			if p <= 0 {
				wr[j] = 0
				continue
			}
			wr[j] = 1.0 / p
		}
		w[i] = wr
	}

	return &Model{
		Ndet:  ndet,
		Nsamp: nsamp,
		Nfreq: nfreq,
		V:     v,
		W:     w,
	}, nil
}

// Apply applies N⁻¹ to a timestream block x (ndet x nsamp, row-major
// flat): rotate by V, transform, weight the first Nfreq columns, inverse
// transform, rotate back by Vᵀ.
func (m *Model) Apply(x []float64) ([]float64, error) {
	ndet, nsamp := m.Ndet, m.Nsamp
	if len(x) != ndet*nsamp {
		return nil, fmt.Errorf("noise: input length %d does not match model shape %dx%d", len(x), ndet, nsamp)
	}
	for i := 0; i < ndet; i++ {
		if len(m.W[i]) < m.Nfreq {
			return nil, fmt.Errorf("noise: detector %d weight width %d narrower than nfreq %d", i, len(m.W[i]), m.Nfreq)
		}
	}

	rotated := make([][]float64, ndet)
	for i := 0; i < ndet; i++ {
		row := make([]float64, nsamp)
		for j := 0; j < nsamp; j++ {
			var sum float64
			for k := 0; k < ndet; k++ {
				sum += m.V.At(i, k) * x[k*nsamp+j]
			}
			row[j] = sum
		}
		rotated[i] = row
	}

	plan := fftshim.NewPlan(nsamp)
	// R2R is its own inverse only up to a factor of 2*(nsamp-1) (see
	// fftshim's doc comment), so the second application must be rescaled
	// back down for unweighted (W==1) rows to round-trip as the identity,
	// matching the convention internal/fftutil's smoothing round-trip uses.
	// The DCT-I counts interior samples twice, so interior samples are
	// divided by sqrt(2) before the first transform and multiplied by it
	// after the second; this keeps the weighted operator symmetric.
	scale := 2.0 * float64(nsamp-1)
	if nsamp == 1 {
		scale = 1.0
	}
	for i, row := range rotated {
		for j := 1; j < nsamp-1; j++ {
			row[j] /= math.Sqrt2
		}
		trans := plan.R2R(nil, row)
		nn := len(trans)
		if nn > m.Nfreq {
			nn = m.Nfreq
		}
		for j := 0; j < nn; j++ {
			trans[j] *= m.W[i][j]
		}
		back := plan.R2R(nil, trans)
		for j := range back {
			back[j] /= scale
			if j > 0 && j < nsamp-1 {
				back[j] *= math.Sqrt2
			}
		}
		rotated[i] = back
	}

	out := make([]float64, ndet*nsamp)
	for i := 0; i < ndet; i++ {
		for j := 0; j < nsamp; j++ {
			var sum float64
			for k := 0; k < ndet; k++ {
				// Vᵀ[i,k] = V[k,i]
				sum += m.V.At(k, i) * rotated[k][j]
			}
			out[i*nsamp+j] = sum
		}
	}
	return out, nil
}
