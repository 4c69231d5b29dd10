package minkasi

import (
	"math"

	tiledb "github.com/TileDB-Inc/TileDB-Go"

	"github.com/Sulla2012/minkasi-go/internal/fftutil"
	"github.com/Sulla2012/minkasi-go/internal/mpicomm"
	"github.com/Sulla2012/minkasi-go/internal/pointing"
	"github.com/Sulla2012/minkasi-go/internal/store"
)

// Projection tags carried by SkyMap and embedded in persisted rasters.
const (
	ProjCAR       = "CAR"
	ProjCARCosDec = "CAR-COSDEC"
)

// SkyMap is a rectangular grid of nx*ny double-precision pixels in
// row-major order, projected CAR (Plate Carrée): x = longitude, y = latitude.
// The cos-dec variant scales x by cos of the central declination, giving
// roughly square pixels on the sky away from the equator.
type SkyMap struct {
	Nx, Ny                 int
	Xmin, Xmax, Ymin, Ymax float64 // radians
	Pixsize                float64 // radians
	CosDec                 float64 // x scale factor; 1 for plain CAR
	Proj                   string
	Pix                    []float64 // len Nx*Ny, row-major [x*Ny+y]
}

// NewSkyMap builds a SkyMap from world limits and a pixel size. nx, ny are
// rounded up to the smallest length whose prime factors lie in primes (the
// map's FFT-friendly padding policy); pass nil for primes to disable
// padding entirely.
func NewSkyMap(xmin, xmax, ymin, ymax, pixsize float64, primes []int) *SkyMap {
	nx := int(math.Ceil((xmax - xmin) / pixsize))
	ny := int(math.Ceil((ymax - ymin) / pixsize))
	if primes != nil {
		nx = padToGoodLen(nx, primes)
		ny = padToGoodLen(ny, primes)
	}
	return &SkyMap{
		Nx: nx, Ny: ny,
		Xmin: xmin, Xmax: xmax, Ymin: ymin, Ymax: ymax,
		Pixsize: pixsize,
		CosDec:  1,
		Proj:    ProjCAR,
		Pix:     make([]float64, nx*ny),
	}
}

// NewSkyMapCosDec builds the simple-equirectangular variant: x distances
// are scaled by cos of the central declination so pixels stay roughly
// square on the sky. The scale factor is derived from the y limits, so a
// persisted raster can recompute it on read without extra metadata.
func NewSkyMapCosDec(xmin, xmax, ymin, ymax, pixsize float64, primes []int) *SkyMap {
	cosdec := math.Cos(0.5 * (ymin + ymax))
	nx := int(math.Ceil((xmax - xmin) / pixsize * cosdec))
	ny := int(math.Ceil((ymax - ymin) / pixsize))
	if primes != nil {
		nx = padToGoodLen(nx, primes)
		ny = padToGoodLen(ny, primes)
	}
	return &SkyMap{
		Nx: nx, Ny: ny,
		Xmin: xmin, Xmax: xmax, Ymin: ymin, Ymax: ymax,
		Pixsize: pixsize,
		CosDec:  cosdec,
		Proj:    ProjCARCosDec,
		Pix:     make([]float64, nx*ny),
	}
}

// padToGoodLen rounds n up to the smallest primes-smooth integer >= n,
// probing upward from n with internal/fftutil.IsSmooth.
func padToGoodLen(n int, primes []int) int {
	if n <= 1 {
		return 1
	}
	for cand := n; ; cand++ {
		if fftutil.IsSmooth(cand, primes) {
			return cand
		}
	}
}

// Npix returns the total pixel count Nx*Ny.
func (m *SkyMap) Npix() int { return m.Nx * m.Ny }

// Copy returns an independent SkyMap; later mutation of one does not
// affect the other.
func (m *SkyMap) Copy() *SkyMap {
	out := *m
	out.Pix = make([]float64, len(m.Pix))
	copy(out.Pix, m.Pix)
	return &out
}

// Clear zeroes all pixels.
func (m *SkyMap) Clear() {
	for i := range m.Pix {
		m.Pix[i] = 0
	}
}

// conformable reports whether m and other share the same pixel grid shape.
func (m *SkyMap) conformable(other *SkyMap) error {
	if m.Nx != other.Nx || m.Ny != other.Ny {
		return NewMapError(Conformability, "map shapes differ")
	}
	return nil
}

// Assign copies a conformable dense array of length Nx*Ny in.
func (m *SkyMap) Assign(data []float64) error {
	if len(data) != m.Npix() {
		return NewMapError(Conformability, "assign: array length does not match map shape")
	}
	copy(m.Pix, data)
	return nil
}

// Axpy performs self += a*other elementwise; requires conformable shape.
func (m *SkyMap) Axpy(other *SkyMap, a float64) error {
	if err := m.conformable(other); err != nil {
		return err
	}
	for i := range m.Pix {
		m.Pix[i] += a * other.Pix[i]
	}
	return nil
}

// Dot returns the sum of elementwise products as a double. Cross-rank
// reduction is the caller's responsibility.
func (m *SkyMap) Dot(other *SkyMap) (float64, error) {
	if err := m.conformable(other); err != nil {
		return 0, err
	}
	var sum float64
	for i := range m.Pix {
		sum += m.Pix[i] * other.Pix[i]
	}
	return sum, nil
}

// Mul returns the elementwise product of m and other as a new map; used
// for diagonal preconditioners.
func (m *SkyMap) Mul(other *SkyMap) (*SkyMap, error) {
	if err := m.conformable(other); err != nil {
		return nil, err
	}
	out := m.Copy()
	for i := range out.Pix {
		out.Pix[i] = m.Pix[i] * other.Pix[i]
	}
	return out, nil
}

// GetPix computes the flat pixel index array ipix[ndet*nsamp] from a TOD's
// (dx,dy) radians arrays. Rounding is round-half-to-even (Go's math.Round
// does round-half-away-from-zero, so math.RoundToEven is used explicitly
// to match the banker's-rounding contract).
func (m *SkyMap) GetPix(t *TOD) []int32 {
	n := t.Ndet * t.Nsamp
	ipix := make([]int32, n)
	cdeltX := m.Pixsize
	cdeltY := m.Pixsize
	crvalX := m.Xmin
	crvalY := m.Ymin
	for k := 0; k < n; k++ {
		xpix := int(math.RoundToEven((t.Dx[k] - crvalX) * m.CosDec / cdeltX))
		ypix := int(math.RoundToEven((t.Dy[k] - crvalY) / cdeltY))
		ipix[k] = int32(xpix*m.Ny + ypix)
	}
	return ipix
}

// Tod2Map dispatches to the pointing scatter kernel; if add is false the
// map is cleared first.
func (m *SkyMap) Tod2Map(t *TOD, data []float64, add bool) {
	if !add {
		m.Clear()
	}
	if pointing.GetNThread() > 1 {
		pointing.TodToMapOMP(m.Pix, data, t.Ndet, t.Nsamp, t.Ipix, m.Npix())
	} else {
		pointing.TodToMapSimple(m.Pix, data, t.Ndet, t.Nsamp, t.Ipix)
	}
}

// Map2Tod dispatches to the pointing gather kernel.
func (m *SkyMap) Map2Tod(t *TOD, data []float64, add bool) {
	if pointing.GetNThread() > 1 {
		pointing.MapToTodOMP(data, m.Pix, t.Ndet, t.Nsamp, t.Ipix, add)
	} else {
		pointing.MapToTodSimple(data, m.Pix, t.Ndet, t.Nsamp, t.Ipix, add)
	}
}

// MPIReduce elementwise sum-reduces the map across the world communicator
// in place. No-op under mpicomm.NoopComm.
func (m *SkyMap) MPIReduce(comm mpicomm.Communicator) {
	m.Pix = comm.AllReduceSum(m.Pix)
}

// RThetaMaps returns per-pixel radius and angle grids centered on the grid
// midpoint, for angular filtering of the map. The midpoint is
// mean(0..n-1), which for even n lands half a pixel off-center; this is
// carried through unchanged rather than silently corrected, matching the
// ambiguity the original implementation leaves open.
func (m *SkyMap) RThetaMaps() (r, theta []float64) {
	cx := mean(arange(m.Nx))
	cy := mean(arange(m.Ny))
	r = make([]float64, m.Npix())
	theta = make([]float64, m.Npix())
	for x := 0; x < m.Nx; x++ {
		dx := float64(x) - cx
		for y := 0; y < m.Ny; y++ {
			dy := float64(y) - cy
			idx := x*m.Ny + y
			r[idx] = math.Hypot(dx, dy)
			theta[idx] = math.Atan2(dx, dy)
		}
	}
	return r, theta
}

func arange(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	var sum float64
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

// Shape, Limits, Projection, Pixels, SetPixels implement store.RasterMap,
// letting internal/store persist a SkyMap without importing this package
// (which would create an import cycle).
func (m *SkyMap) Shape() (nx, ny int) { return m.Nx, m.Ny }

func (m *SkyMap) Limits() (xmin, xmax, ymin, ymax, pixsize float64) {
	return m.Xmin, m.Xmax, m.Ymin, m.Ymax, m.Pixsize
}

func (m *SkyMap) Projection() string { return m.Proj }

func (m *SkyMap) Pixels() []float64 { return m.Pix }

func (m *SkyMap) SetPixels(pix []float64) { m.Pix = pix }

// Write persists the map to a self-describing TileDB raster at uri,
// embedding its projection metadata alongside the pixel grid.
func (m *SkyMap) Write(ctx *tiledb.Context, uri string) error {
	return store.WriteSkyMap(ctx, uri, m)
}

// ReadSkyMap opens a TileDB raster previously written by SkyMap.Write and
// reconstructs the map, including its projection metadata.
func ReadSkyMap(ctx *tiledb.Context, uri string) (*SkyMap, error) {
	m := &SkyMap{}
	md, err := store.ReadSkyMap(ctx, uri, m)
	if err != nil {
		return nil, err
	}
	m.Nx, m.Ny = md.Nx, md.Ny
	m.Xmin, m.Xmax, m.Ymin, m.Ymax = md.Xmin, md.Xmax, md.Ymin, md.Ymax
	m.Pixsize = md.Pixsize
	m.Proj = md.Proj
	m.CosDec = 1
	if m.Proj == ProjCARCosDec {
		m.CosDec = math.Cos(0.5 * (m.Ymin + m.Ymax))
	}
	return m, nil
}
