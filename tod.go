package minkasi

import (
	"reflect"

	"github.com/Sulla2012/minkasi-go/internal/fftutil"
	"github.com/Sulla2012/minkasi-go/internal/noise"
)

// TOD owns one observation's per-sample arrays plus the noise model fitted
// for it. Dx, Dy, DatCalib, Ipix are flat [ndet*nsamp] row-major arrays; V
// is the flat [ndet*ndet] rotation; MyWt is ndet rows of frequency
// weights, each at least Nfreq wide. Extra carries sensor-specific
// processing-parameter metadata that doesn't belong in the fixed record
// shape, mirroring a free-form metadata bag surfaced during ingest.
type TOD struct {
	Tag      int
	Ndet     int
	Nsamp    int
	Dx       []float64
	Dy       []float64
	DatCalib []float64
	Ipix     []int32
	V        []float64 // ndet x ndet
	MyWt     [][]float64
	Dt       float64
	PixID    []int32
	FName    string
	Extra    map[string]any

	noiseModel *noise.Model
}

// SetNoiseSmoothedSVD fits the SVD-based noise model for this TOD: SVD of
// DatCalib, V <- Uᵀ, per-mode power spectra smoothed with the given FWHM,
// W <- 1/smoothed_power. Validates that any caller-supplied MyWt (if this
// TOD already carries one) is at least Nfreq wide before replacing it.
func (t *TOD) SetNoiseSmoothedSVD(fwhm float64) error {
	nfreq := noise.NFreq(t.Nsamp)
	for d, row := range t.MyWt {
		if len(row) < nfreq {
			return NewMapError(IngestFormat, "set_noise_smoothed_svd: mywt narrower than nfreq").
				WithTodTag(t.Tag).WithDetector(d)
		}
	}
	m, err := noise.FitSmoothedSVD(t.DatCalib, t.Ndet, t.Nsamp, fwhm)
	if err != nil {
		return NewMapError(NumericalBreakdown, "set_noise_smoothed_svd: SVD fit failed").
			WithTodTag(t.Tag).WithCause(err)
	}
	t.noiseModel = m
	flatV := make([]float64, t.Ndet*t.Ndet)
	for i := 0; i < t.Ndet; i++ {
		for j := 0; j < t.Ndet; j++ {
			flatV[i*t.Ndet+j] = m.V.At(i, j)
		}
	}
	t.V = flatV
	t.MyWt = m.W
	return nil
}

// ApplyNoise applies N⁻¹ to a timestream block shaped like DatCalib,
// returning the filtered result. The noise model must have been fitted by
// SetNoiseSmoothedSVD first.
func (t *TOD) ApplyNoise(x []float64) ([]float64, error) {
	if t.noiseModel == nil {
		return nil, NewMapError(NumericalBreakdown, "apply_noise: no noise model fitted").WithTodTag(t.Tag)
	}
	out, err := t.noiseModel.Apply(x)
	if err != nil {
		return nil, NewMapError(NumericalBreakdown, "apply_noise: application failed").
			WithTodTag(t.Tag).WithCause(err)
	}
	return out, nil
}

// TruncateSamples shortens every per-sample array so that nsamp-1 factors
// over the given primes, keeping the leading samples. The r2r transform of
// nsamp samples runs at length 2*(nsamp-1), so it is nsamp-1 that must be
// smooth, not nsamp itself. Any fitted noise model is invalidated since
// its shape no longer matches.
func (t *TOD) TruncateSamples(primes []int) {
	if t.Nsamp < 2 {
		return
	}
	lens := fftutil.FindGoodFFTLens(t.Nsamp-1, primes)
	nNew := lens[len(lens)-1] + 1
	if nNew >= t.Nsamp {
		return
	}

	rv := reflect.ValueOf(t).Elem()
	for _, name := range cutDetectorFields {
		field := rv.FieldByName(name)
		if !field.IsValid() || field.Kind() != reflect.Slice || field.Len() != t.Ndet*t.Nsamp {
			continue
		}
		out := reflect.MakeSlice(field.Type(), t.Ndet*nNew, t.Ndet*nNew)
		for d := 0; d < t.Ndet; d++ {
			reflect.Copy(out.Slice(d*nNew, (d+1)*nNew), field.Slice(d*t.Nsamp, d*t.Nsamp+nNew))
		}
		field.Set(out)
	}

	t.Nsamp = nNew
	t.noiseModel = nil
	t.V = nil
	t.MyWt = nil
}

// DownsampleSamples reduces the per-sample float arrays by fac in the r2r
// domain, low-pass filtering in the process. Must run before pixelization:
// the pixel index and any fitted noise model are dropped since their
// shapes no longer match. The sample cadence Dt grows by fac.
func (t *TOD) DownsampleSamples(fac int) {
	if fac <= 1 || t.Nsamp/fac < 1 {
		return
	}
	nn := t.Nsamp / fac
	for _, arr := range []*[]float64{&t.Dx, &t.Dy, &t.DatCalib} {
		if len(*arr) != t.Ndet*t.Nsamp {
			continue
		}
		rows := make([][]float64, t.Ndet)
		for d := range rows {
			rows[d] = (*arr)[d*t.Nsamp : (d+1)*t.Nsamp]
		}
		down := fftutil.DownsampleManyVecs(rows, fac)
		flat := make([]float64, t.Ndet*nn)
		for d, row := range down {
			copy(flat[d*nn:(d+1)*nn], row)
		}
		*arr = flat
	}
	t.Ipix = nil
	t.noiseModel = nil
	t.V = nil
	t.MyWt = nil
	t.Nsamp = nn
	t.Dt *= float64(fac)
}

// Dot applies A = PᵀN⁻¹P for this TOD: gather `in` into a timestream
// block via map2tod, filter it through the noise operator, then scatter
// back into `out` via tod2map, accumulating.
func (t *TOD) Dot(in, out *Mapset) error {
	if err := in.conformable(out); err != nil {
		return err
	}
	tmp := make([]float64, t.Ndet*t.Nsamp)
	for _, m := range in.Maps {
		m.Map2Tod(t, tmp, true)
	}

	filtered, err := t.ApplyNoise(tmp)
	if err != nil {
		return err
	}

	for _, m := range out.Maps {
		m.Tod2Map(t, filtered, true)
	}
	return nil
}
