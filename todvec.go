package minkasi

import (
	"time"

	"github.com/Sulla2012/minkasi-go/internal/mpicomm"
)

// TodVec is the ordered sequence of TODs owned by this rank. Tags are
// assigned 0..ntod-1 on construction.
type TodVec struct {
	Tods []*TOD
	Comm mpicomm.Communicator
}

// NewTodVec wraps tods, assigning sequential tags and defaulting to a
// single-rank no-op communicator when comm is nil.
func NewTodVec(tods []*TOD, comm mpicomm.Communicator) *TodVec {
	if comm == nil {
		comm = mpicomm.NoopComm{}
	}
	for i, t := range tods {
		t.Tag = i
	}
	return &TodVec{Tods: tods, Comm: comm}
}

// Lims computes the global pointing limits (xmin,xmax,ymin,ymax) across
// every local TOD's Dx/Dy, then reduces across ranks via cross-rank
// min/max.
func (v *TodVec) Lims() (xmin, xmax, ymin, ymax float64) {
	first := true
	for _, t := range v.Tods {
		for _, x := range t.Dx {
			if first || x < xmin {
				xmin = x
			}
			if first || x > xmax {
				xmax = x
			}
			first = false
		}
	}
	first = true
	for _, t := range v.Tods {
		for _, y := range t.Dy {
			if first || y < ymin {
				ymin = y
			}
			if first || y > ymax {
				ymax = y
			}
			first = false
		}
	}
	xmin = v.Comm.AllReduceMin(xmin)
	xmax = v.Comm.AllReduceMax(xmax)
	ymin = v.Comm.AllReduceMin(ymin)
	ymax = v.Comm.AllReduceMax(ymax)
	return xmin, xmax, ymin, ymax
}

// Dot applies A = PᵀN⁻¹P across every local TOD, accumulating into out,
// then reduces out across ranks. If out is nil it is allocated by copying
// in and clearing.
func (v *TodVec) Dot(in *Mapset, out *Mapset) (*Mapset, error) {
	out, _, err := v.DotTimed(in, out)
	return out, err
}

// DotTimed is Dot, additionally returning the wall-clock time each local
// TOD spent in its A application, indexed by position in Tods. Rank-level
// load imbalance shows up directly in these timings.
func (v *TodVec) DotTimed(in *Mapset, out *Mapset) (*Mapset, []time.Duration, error) {
	if out == nil {
		out = in.Copy()
		out.Clear()
	}
	timings := make([]time.Duration, len(v.Tods))
	for i, t := range v.Tods {
		start := time.Now()
		if err := t.Dot(in, out); err != nil {
			return nil, nil, err
		}
		timings[i] = time.Since(start)
	}
	out.MPIReduce(v.Comm)
	return out, timings, nil
}

// MakeRHS clears out, then for each local TOD filters DatCalib through
// the noise operator and scatters it into every map of out, finally
// reducing across ranks.
func (v *TodVec) MakeRHS(out *Mapset) error {
	out.Clear()
	for _, t := range v.Tods {
		filtered, err := t.ApplyNoise(t.DatCalib)
		if err != nil {
			return err
		}
		for _, m := range out.Maps {
			m.Tod2Map(t, filtered, true)
		}
	}
	out.MPIReduce(v.Comm)
	return nil
}
