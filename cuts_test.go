package minkasi

import "testing"

func TestCutDetectorsPrunesAllPerDetectorFields(t *testing.T) {
	tod := &TOD{
		Ndet:  3,
		Nsamp: 2,
		Dx:    []float64{0, 1, 10, 11, 20, 21},
		Dy:    []float64{0, 1, 10, 11, 20, 21},
		DatCalib: []float64{
			1, 2,
			3, 4,
			5, 6,
		},
		Ipix: []int32{0, 1, 2, 3, 4, 5},
		V: []float64{
			1, 0, 0,
			0, 1, 0,
			0, 0, 1,
		},
		MyWt: [][]float64{{1, 1}, {2, 2}, {3, 3}},
	}

	if err := tod.CutDetectors([]bool{true, false, true}); err != nil {
		t.Fatalf("CutDetectors: %v", err)
	}

	if tod.Ndet != 2 {
		t.Fatalf("Ndet: got %d want 2", tod.Ndet)
	}
	wantDx := []float64{0, 1, 20, 21}
	for i, v := range wantDx {
		if tod.Dx[i] != v {
			t.Fatalf("Dx[%d]: got %v want %v (full %v)", i, tod.Dx[i], v, tod.Dx)
		}
	}
	wantDat := []float64{1, 2, 5, 6}
	for i, v := range wantDat {
		if tod.DatCalib[i] != v {
			t.Fatalf("DatCalib[%d]: got %v want %v", i, tod.DatCalib[i], v)
		}
	}
	wantV := []float64{1, 0, 0, 1}
	for i, v := range wantV {
		if tod.V[i] != v {
			t.Fatalf("V[%d]: got %v want %v", i, tod.V[i], v)
		}
	}
	if len(tod.MyWt) != 2 || tod.MyWt[0][0] != 1 || tod.MyWt[1][0] != 3 {
		t.Fatalf("MyWt not pruned correctly: %v", tod.MyWt)
	}
}

func TestCutDetectorsInvalidatesFittedNoiseModel(t *testing.T) {
	ndet, nsamp := 3, 2
	tod := &TOD{
		Ndet:       ndet,
		Nsamp:      nsamp,
		Dx:         make([]float64, ndet*nsamp),
		Dy:         make([]float64, ndet*nsamp),
		DatCalib:   []float64{1, 2, 3, 4, 5, 6},
		Ipix:       make([]int32, ndet*nsamp),
		noiseModel: identityNoiseModel(ndet, nsamp),
	}

	if err := tod.CutDetectors([]bool{true, false, true}); err != nil {
		t.Fatalf("CutDetectors: %v", err)
	}
	if tod.noiseModel != nil {
		t.Fatal("noise model sized for the pre-cut Ndet survived CutDetectors")
	}
	if _, err := tod.ApplyNoise(tod.DatCalib); err == nil {
		t.Fatal("ApplyNoise after CutDetectors should demand a fresh noise fit")
	}
}

func TestCutDetectorsRejectsWrongMaskLength(t *testing.T) {
	tod := &TOD{Ndet: 2, Nsamp: 1}
	if err := tod.CutDetectors([]bool{true}); err == nil {
		t.Fatal("expected conformability error for mismatched mask length")
	}
}

func TestCutDetectorsWithoutNoiseModelFitted(t *testing.T) {
	tod := &TOD{
		Ndet:     2,
		Nsamp:    1,
		Dx:       []float64{0, 1},
		Dy:       []float64{0, 1},
		DatCalib: []float64{1, 2},
		Ipix:     []int32{0, 1},
	}
	if err := tod.CutDetectors([]bool{false, true}); err != nil {
		t.Fatalf("CutDetectors without V/MyWt set: %v", err)
	}
	if tod.Ndet != 1 || tod.DatCalib[0] != 2 {
		t.Fatalf("unexpected result: Ndet=%d DatCalib=%v", tod.Ndet, tod.DatCalib)
	}
}
