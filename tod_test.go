package minkasi

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/Sulla2012/minkasi-go/internal/noise"
)

// identityNoiseModel builds a noise.Model whose Apply is the exact identity,
// for scenarios that want to isolate the pointing operator from the noise
// fit (the same role identityModel plays in internal/noise's own tests).
func identityNoiseModel(ndet, nsamp int) *noise.Model {
	v := mat.NewDense(ndet, ndet, nil)
	for i := 0; i < ndet; i++ {
		v.Set(i, i, 1)
	}
	nfreq := noise.NFreq(nsamp)
	w := make([][]float64, ndet)
	for i := range w {
		row := make([]float64, nfreq)
		for j := range row {
			row[j] = 1
		}
		w[i] = row
	}
	return &noise.Model{Ndet: ndet, Nsamp: nsamp, Nfreq: nfreq, V: v, W: w}
}

func TestTODDotIsSelfAdjointUnderIdentityNoise(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	ndet, nsamp, npix := 6, 64, 20

	ipix := make([]int32, ndet*nsamp)
	for i := range ipix {
		ipix[i] = int32(rng.Intn(npix))
	}
	tod := &TOD{
		Ndet: ndet, Nsamp: nsamp, Ipix: ipix,
		noiseModel: identityNoiseModel(ndet, nsamp),
	}

	x := rawSkyMap(npix, 1)
	y := rawSkyMap(npix, 1)
	for i := range x.Pix {
		x.Pix[i] = rng.NormFloat64()
		y.Pix[i] = rng.NormFloat64()
	}

	ax := NewMapset(rawSkyMap(npix, 1))
	if err := tod.Dot(NewMapset(x), ax); err != nil {
		t.Fatal(err)
	}
	ay := NewMapset(rawSkyMap(npix, 1))
	if err := tod.Dot(NewMapset(y), ay); err != nil {
		t.Fatal(err)
	}

	xAy, err := NewMapset(x).Dot(ay)
	if err != nil {
		t.Fatal(err)
	}
	axY, err := ax.Dot(NewMapset(y))
	if err != nil {
		t.Fatal(err)
	}
	if relErr(xAy, axY) > 1e-9 {
		t.Fatalf("A = P^T N^-1 P not self-adjoint: <x,Ay>=%v <Ax,y>=%v", xAy, axY)
	}
}

func TestTruncateSamplesMakesLengthMinusOneSmooth(t *testing.T) {
	ndet, nsamp := 2, 100
	tod := &TOD{Ndet: ndet, Nsamp: nsamp}
	tod.Dx = make([]float64, ndet*nsamp)
	tod.Dy = make([]float64, ndet*nsamp)
	tod.DatCalib = make([]float64, ndet*nsamp)
	tod.Ipix = make([]int32, ndet*nsamp)
	for i := range tod.DatCalib {
		tod.DatCalib[i] = float64(i)
	}

	tod.TruncateSamples([]int{2, 3, 5, 7})

	// Largest 7-smooth integer <= 99 is 98, so nsamp becomes 99.
	if tod.Nsamp != 99 {
		t.Fatalf("Nsamp: got %d want 99", tod.Nsamp)
	}
	if len(tod.DatCalib) != ndet*99 || len(tod.Ipix) != ndet*99 {
		t.Fatalf("per-sample arrays not truncated: dat=%d ipix=%d", len(tod.DatCalib), len(tod.Ipix))
	}
	// Detector 1's row must start at its original sample 100, not 99.
	if tod.DatCalib[99] != 100 {
		t.Fatalf("detector 1 row start: got %v want 100", tod.DatCalib[99])
	}
}

func TestDownsampleSamplesPreservesConstantRows(t *testing.T) {
	ndet, nsamp, fac := 2, 16, 2
	tod := &TOD{Ndet: ndet, Nsamp: nsamp, Dt: 0.1}
	tod.Dx = make([]float64, ndet*nsamp)
	tod.Dy = make([]float64, ndet*nsamp)
	tod.DatCalib = make([]float64, ndet*nsamp)
	for d := 0; d < ndet; d++ {
		for s := 0; s < nsamp; s++ {
			tod.DatCalib[d*nsamp+s] = float64(d + 1)
		}
	}

	tod.DownsampleSamples(fac)

	if tod.Nsamp != nsamp/fac {
		t.Fatalf("Nsamp: got %d want %d", tod.Nsamp, nsamp/fac)
	}
	if relErr(tod.Dt, 0.2) > 1e-12 {
		t.Fatalf("Dt: got %v want 0.2", tod.Dt)
	}
	for d := 0; d < ndet; d++ {
		for s := 0; s < tod.Nsamp; s++ {
			if relErr(tod.DatCalib[d*tod.Nsamp+s], float64(d+1)) > 1e-10 {
				t.Fatalf("detector %d sample %d: got %v want %v", d, s, tod.DatCalib[d*tod.Nsamp+s], float64(d+1))
			}
		}
	}
}

func TestTODDotSinglePixelSingleSample(t *testing.T) {
	tod := &TOD{
		Ndet: 1, Nsamp: 1,
		Ipix:       []int32{0},
		DatCalib:   []float64{3.0},
		noiseModel: identityNoiseModel(1, 1),
	}

	in := NewMapset(rawSkyMap(1, 1))
	in.Maps[0].Pix[0] = 5.0
	out := NewMapset(rawSkyMap(1, 1))
	if err := tod.Dot(in, out); err != nil {
		t.Fatal(err)
	}
	if out.Maps[0].Pix[0] != 5.0 {
		t.Fatalf("A on 1x1 identity system: got %v want 5.0", out.Maps[0].Pix[0])
	}

	filtered, err := tod.ApplyNoise(tod.DatCalib)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(filtered[0]-3.0) > 1e-12 {
		t.Fatalf("identity noise model changed the sample: got %v want 3.0", filtered[0])
	}
}
