// Package fftshim provides the uniform real-to-real transform used by the
// noise operator and spectral smoothing helpers. The convention matches
// DCT-I: applying the transform twice to a length-n row returns the row
// scaled by 2*(n-1).
//
// gonum's dsp/fourier package exposes a real-input complex-output FFT but
// no DCT primitive directly, so the DCT-I is built from that FFT by
// mirror-extending each row to length 2*(n-1) and taking the real part of
// the first n frequency bins — the standard construction of a type-I DCT
// from a real FFT of twice the (padded) length.
package fftshim

import (
	"gonum.org/v1/gonum/dsp/fourier"
)

// Plan caches the FFT machinery for a fixed row length n so repeated
// transforms (e.g. once per PCG iteration, per TOD) don't repay the setup
// cost every call.
type Plan struct {
	n    int
	m    int
	fft  *fourier.FFT
	buf  []float64
	cbuf []complex128
}

// NewPlan builds a transform plan for rows of length n. n must be >= 1.
// The degenerate n == 1 case has no frequency content to rotate (a single
// sample is its own DC component); the transform acts as the identity and
// its "double application" scale factor is 1, not 2*(n-1) == 0.
func NewPlan(n int) *Plan {
	if n < 1 {
		panic("fftshim: r2r transform requires n >= 1")
	}
	if n == 1 {
		return &Plan{n: 1, m: 0}
	}
	m := 2 * (n - 1)
	return &Plan{
		n:   n,
		m:   m,
		fft: fourier.NewFFT(m),
		buf: make([]float64, m),
	}
}

// N returns the row length this plan was built for.
func (p *Plan) N() int { return p.n }

// R2R applies the DCT-I transform in place semantics, writing the result
// into dst (which may alias src) and returning it. R2R is its own inverse
// up to the factor 2*(n-1): R2R(R2R(x)) == 2*(n-1)*x.
func (p *Plan) R2R(dst, src []float64) []float64 {
	if len(src) != p.n {
		panic("fftshim: row length mismatch")
	}
	if dst == nil || len(dst) != p.n {
		dst = make([]float64, p.n)
	}

	if p.n == 1 {
		dst[0] = src[0]
		return dst
	}

	// mirror-extend: y[0..n-1] = x, y[n..m-1] = x[n-2] ... x[1]
	copy(p.buf[:p.n], src)
	for k := 1; k <= p.n-2; k++ {
		p.buf[p.n-1+k] = src[p.n-1-k]
	}

	p.cbuf = p.fft.Coefficients(p.cbuf, p.buf)
	for k := 0; k < p.n; k++ {
		dst[k] = real(p.cbuf[k])
	}
	return dst
}

// R2RRows applies R2R independently to every row of a [nrows][n] batch.
func (p *Plan) R2RRows(rows [][]float64) {
	for i, row := range rows {
		rows[i] = p.R2R(row, row)
	}
}

// R2RFlat applies R2R to every row of a flat [nrows*n] buffer, row-major.
func R2RFlat(flat []float64, nrows, n int) []float64 {
	p := NewPlan(n)
	out := make([]float64, len(flat))
	row := make([]float64, n)
	for r := 0; r < nrows; r++ {
		copy(row, flat[r*n:(r+1)*n])
		res := p.R2R(nil, row)
		copy(out[r*n:(r+1)*n], res)
	}
	return out
}
