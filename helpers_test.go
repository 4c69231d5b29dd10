package minkasi

import "math"

// relErr is the relative-error helper shared across this package's tests.
func relErr(a, b float64) float64 {
	d := math.Abs(a - b)
	scale := math.Max(1.0, math.Max(math.Abs(a), math.Abs(b)))
	return d / scale
}

// rawSkyMap builds a bare nx*ny map for tests that don't need world limits.
func rawSkyMap(nx, ny int) *SkyMap {
	return &SkyMap{Nx: nx, Ny: ny, CosDec: 1, Proj: ProjCAR, Pix: make([]float64, nx*ny)}
}
