// Package fftutil provides the 7-smooth length search and Gaussian
// spectral smoothing helpers used to pick FFT-friendly map dimensions and
// TOD sample counts, and to smooth per-mode noise spectra.
package fftutil

import (
	"sort"

	"github.com/samber/lo"
)

// FindGoodFFTLens returns every integer <= n whose prime factorization
// uses only the given primes, sorted ascending. Used both to pad map
// dimensions and to truncate TOD sample counts to a transform-friendly
// length.
func FindGoodFFTLens(n int, primes []int) []int {
	if n < 1 {
		return nil
	}
	vals := []int{1}
	for _, p := range primes {
		if p < 2 {
			continue
		}
		next := make([]int, 0, len(vals)*4)
		for _, v := range vals {
			for x := v; x <= n; x *= p {
				next = append(next, x)
			}
		}
		vals = append(vals, next...)
	}
	vals = lo.Uniq(vals)
	sort.Ints(vals)
	return vals
}

// IsSmooth reports whether v's prime factorization uses only primes from
// the given set.
func IsSmooth(v int, primes []int) bool {
	if v < 1 {
		return false
	}
	for _, p := range primes {
		for v%p == 0 {
			v /= p
		}
	}
	return v == 1
}
