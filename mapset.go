package minkasi

import (
	"fmt"

	tiledb "github.com/TileDB-Inc/TileDB-Go"

	"github.com/Sulla2012/minkasi-go/internal/mpicomm"
	"github.com/Sulla2012/minkasi-go/internal/store"
)

// Mapset is an ordered sequence of maps forming a single vector in the PCG
// state space. All vector ops act componentwise; two Mapsets are
// conformable iff they have the same length and identically-shaped
// elements at every index.
type Mapset struct {
	Maps []*SkyMap
}

// NewMapset wraps a slice of maps as a single CG vector.
func NewMapset(maps ...*SkyMap) *Mapset {
	return &Mapset{Maps: maps}
}

func (s *Mapset) conformable(other *Mapset) error {
	if len(s.Maps) != len(other.Maps) {
		return NewMapError(Conformability, "mapset length mismatch")
	}
	for i := range s.Maps {
		if err := s.Maps[i].conformable(other.Maps[i]); err != nil {
			return NewMapError(Conformability, fmt.Sprintf("mapset component %d shape mismatch", i))
		}
	}
	return nil
}

// Copy returns an independent Mapset with independently-copied components.
func (s *Mapset) Copy() *Mapset {
	out := make([]*SkyMap, len(s.Maps))
	for i, m := range s.Maps {
		out[i] = m.Copy()
	}
	return &Mapset{Maps: out}
}

// Clear zeroes every component map.
func (s *Mapset) Clear() {
	for _, m := range s.Maps {
		m.Clear()
	}
}

// Axpy performs self += a*other componentwise.
func (s *Mapset) Axpy(other *Mapset, a float64) error {
	if err := s.conformable(other); err != nil {
		return err
	}
	for i, m := range s.Maps {
		if err := m.Axpy(other.Maps[i], a); err != nil {
			return err
		}
	}
	return nil
}

// Dot returns the sum of per-component dot products.
func (s *Mapset) Dot(other *Mapset) (float64, error) {
	if err := s.conformable(other); err != nil {
		return 0, err
	}
	var sum float64
	for i, m := range s.Maps {
		d, err := m.Dot(other.Maps[i])
		if err != nil {
			return 0, err
		}
		sum += d
	}
	return sum, nil
}

// Mul returns the componentwise elementwise product as a new Mapset; used
// to apply a diagonal preconditioner.
func (s *Mapset) Mul(other *Mapset) (*Mapset, error) {
	if err := s.conformable(other); err != nil {
		return nil, err
	}
	out := make([]*SkyMap, len(s.Maps))
	for i, m := range s.Maps {
		p, err := m.Mul(other.Maps[i])
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return &Mapset{Maps: out}, nil
}

// MPIReduce reduces every component map across the world communicator.
func (s *Mapset) MPIReduce(comm mpicomm.Communicator) {
	for _, m := range s.Maps {
		m.MPIReduce(comm)
	}
}

// Write persists every component map under uriPrefix/0, uriPrefix/1, ...
func (s *Mapset) Write(ctx *tiledb.Context, uriPrefix string) error {
	rasters := make([]store.RasterMap, len(s.Maps))
	for i, m := range s.Maps {
		rasters[i] = m
	}
	return store.WriteMapset(ctx, uriPrefix, rasters)
}
