package fftutil

import (
	"sort"
	"testing"
)

func TestFindGoodFFTLensExemplar(t *testing.T) {
	lens := FindGoodFFTLens(1000, []int{2, 3, 5, 7})
	want := []int{1000, 960, 945, 900, 896}
	set := make(map[int]bool, len(lens))
	for _, v := range lens {
		set[v] = true
	}
	for _, w := range want {
		if !set[w] {
			t.Errorf("expected %d in result, not found", w)
		}
	}
	if !sort.IntsAreSorted(lens) {
		t.Errorf("result not sorted: %v", lens)
	}
}

func TestFindGoodFFTLensProperties(t *testing.T) {
	primes := []int{2, 3, 5, 7}
	n := 200
	lens := FindGoodFFTLens(n, primes)

	for i, l := range lens {
		if l > n {
			t.Errorf("length %d exceeds n=%d", l, n)
		}
		if !IsSmooth(l, primes) {
			t.Errorf("length %d is not %v-smooth", l, primes)
		}
		if i > 0 && lens[i-1] >= l {
			t.Errorf("sequence not strictly increasing at index %d: %v", i, lens)
		}
	}

	set := make(map[int]bool, len(lens))
	for _, v := range lens {
		set[v] = true
	}
	for i := 1; i < len(lens); i++ {
		for cand := lens[i-1] + 1; cand < lens[i]; cand++ {
			if IsSmooth(cand, primes) {
				t.Errorf("candidate %d between %d and %d is smooth but missing", cand, lens[i-1], lens[i])
			}
		}
	}
}

func TestDownsampleVecPreservesConstant(t *testing.T) {
	n, fac := 32, 4
	vec := make([]float64, n)
	for i := range vec {
		vec[i] = 2.5
	}
	down := DownsampleVec(vec, fac)
	if len(down) != n/fac {
		t.Fatalf("length: got %d want %d", len(down), n/fac)
	}
	for i, v := range down {
		if diff := v - 2.5; diff > 1e-10 || diff < -1e-10 {
			t.Errorf("index %d: got %v want 2.5", i, v)
		}
	}
}

func TestDownsampleVecFactorOneIsIdentity(t *testing.T) {
	vec := []float64{1, 2, 3, 4, 5}
	down := DownsampleVec(vec, 1)
	for i := range vec {
		if down[i] != vec[i] {
			t.Fatalf("index %d: got %v want %v", i, down[i], vec[i])
		}
	}
}

func TestSmoothVecPreservesDCAmplitude(t *testing.T) {
	n := 64
	vec := make([]float64, n)
	for i := range vec {
		vec[i] = 1.0
	}
	smoothed := SmoothVec(vec, 10)
	for i, v := range smoothed {
		if diff := v - 1.0; diff > 1e-8 || diff < -1e-8 {
			t.Errorf("index %d: constant input not preserved, got %v", i, v)
		}
	}
}
