package minkasi

import "reflect"

// Cuts holds a per-detector sparse cut mask for a single TOD.
type Cuts struct {
	TodTag int
	IsGood []bool // len ndet
}

// CutsVec is an ordered list of Cuts, one per TOD in a TodVec. Part of the
// data model but not exercised by the PCG inner loop.
type CutsVec struct {
	Cuts []*Cuts
}

// cutDetectorFields lists the exported per-sample TOD fields that
// CutDetectors and TruncateSamples reslice. Dx/Dy/DatCalib/Ipix are
// [ndet*nsamp] flat row-major; V is [ndet*ndet]; MyWt is [ndet][nfreq].
var cutDetectorFields = []string{"Dx", "Dy", "DatCalib", "Ipix"}

// CutDetectors keeps only the detectors for which isgood is true. It walks
// the per-sample fields named in cutDetectorFields by reflection, slicing
// each by the boolean mask, then prunes the rows and columns of V and the
// rows of MyWt directly. Any fitted noise model is dropped.
func (t *TOD) CutDetectors(isgood []bool) error {
	if len(isgood) != t.Ndet {
		return NewMapError(Conformability, "cut_detectors: mask length does not match ndet")
	}
	keep := make([]int, 0, t.Ndet)
	for i, ok := range isgood {
		if ok {
			keep = append(keep, i)
		}
	}
	newNdet := len(keep)

	rv := reflect.ValueOf(t).Elem()
	for _, name := range cutDetectorFields {
		field := rv.FieldByName(name)
		if !field.IsValid() || field.Kind() != reflect.Slice {
			continue
		}
		elemPerDet := field.Len() / t.Ndet
		out := reflect.MakeSlice(field.Type(), newNdet*elemPerDet, newNdet*elemPerDet)
		for newIdx, oldIdx := range keep {
			src := field.Slice(oldIdx*elemPerDet, (oldIdx+1)*elemPerDet)
			reflect.Copy(out.Slice(newIdx*elemPerDet, (newIdx+1)*elemPerDet), src)
		}
		field.Set(out)
	}

	if t.V != nil {
		newV := make([]float64, newNdet*newNdet)
		for newI, oldI := range keep {
			for newJ, oldJ := range keep {
				newV[newI*newNdet+newJ] = t.V[oldI*t.Ndet+oldJ]
			}
		}
		t.V = newV
	}

	if t.MyWt != nil {
		newMyWt := make([][]float64, newNdet)
		for newI, oldI := range keep {
			newMyWt[newI] = t.MyWt[oldI]
		}
		t.MyWt = newMyWt
	}

	t.Ndet = newNdet
	t.noiseModel = nil
	return nil
}
