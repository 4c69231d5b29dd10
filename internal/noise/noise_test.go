package noise

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func identityModel(ndet, nsamp int) *Model {
	v := mat.NewDense(ndet, ndet, nil)
	for i := 0; i < ndet; i++ {
		v.Set(i, i, 1)
	}
	nfreq := NFreq(nsamp)
	w := make([][]float64, ndet)
	for i := range w {
		row := make([]float64, nfreq)
		for j := range row {
			row[j] = 1
		}
		w[i] = row
	}
	return &Model{Ndet: ndet, Nsamp: nsamp, Nfreq: nfreq, V: v, W: w}
}

func TestApplyIdentitySingleSample(t *testing.T) {
	m := identityModel(1, 1)
	out, err := m.Apply([]float64{3.0})
	if err != nil {
		t.Fatal(err)
	}
	if out[0] != 3.0 {
		t.Fatalf("got %v want 3.0", out[0])
	}
}

func TestApplyIdentityIsExactIdentity(t *testing.T) {
	ndet, nsamp := 4, 32
	m := identityModel(ndet, nsamp)
	rng := rand.New(rand.NewSource(11))
	x := make([]float64, ndet*nsamp)
	for i := range x {
		x[i] = rng.NormFloat64()
	}
	out, err := m.Apply(x)
	if err != nil {
		t.Fatal(err)
	}
	for i := range x {
		if math.Abs(out[i]-x[i]) > 1e-9 {
			t.Fatalf("index %d: got %v want %v", i, out[i], x[i])
		}
	}
}

func TestFitSmoothedSVDSymmetry(t *testing.T) {
	ndet, nsamp := 6, 128
	rng := rand.New(rand.NewSource(5))
	dat := make([]float64, ndet*nsamp)
	for i := range dat {
		dat[i] = rng.NormFloat64()
	}

	m, err := FitSmoothedSVD(dat, ndet, nsamp, 10)
	if err != nil {
		t.Fatal(err)
	}

	x := make([]float64, ndet*nsamp)
	y := make([]float64, ndet*nsamp)
	for i := range x {
		x[i] = rng.NormFloat64()
		y[i] = rng.NormFloat64()
	}

	nx, err := m.Apply(x)
	if err != nil {
		t.Fatal(err)
	}
	ny, err := m.Apply(y)
	if err != nil {
		t.Fatal(err)
	}

	var xNy, nxY float64
	for i := range x {
		xNy += x[i] * ny[i]
		nxY += nx[i] * y[i]
	}
	rel := math.Abs(xNy-nxY) / math.Max(1.0, math.Max(math.Abs(xNy), math.Abs(nxY)))
	if rel > 1e-8 {
		t.Fatalf("noise operator not symmetric: <x,Ny>=%v <Nx,y>=%v", xNy, nxY)
	}
}

func TestFitSmoothedSVDPositivity(t *testing.T) {
	ndet, nsamp := 5, 64
	rng := rand.New(rand.NewSource(9))
	dat := make([]float64, ndet*nsamp)
	for i := range dat {
		dat[i] = rng.NormFloat64()
	}
	m, err := FitSmoothedSVD(dat, ndet, nsamp, 8)
	if err != nil {
		t.Fatal(err)
	}

	x := make([]float64, ndet*nsamp)
	for i := range x {
		x[i] = rng.NormFloat64()
	}
	nx, err := m.Apply(x)
	if err != nil {
		t.Fatal(err)
	}
	var xNx float64
	for i := range x {
		xNx += x[i] * nx[i]
	}
	if xNx <= 0 {
		t.Fatalf("expected positive <x, Nx>, got %v", xNx)
	}
}
