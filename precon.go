package minkasi

// Precon is the PCG preconditioner: either the identity (no-op) or an
// explicit diagonal Mapset applied componentwise. This replaces the
// operator-overload "null object acts as identity for + and *" trick with
// explicit case analysis in the PCG loop.
type Precon struct {
	diag *Mapset // nil means identity
}

// IdentityPrecon is the no-op preconditioner: Apply(r) returns r unchanged.
func IdentityPrecon() Precon {
	return Precon{}
}

// DiagonalPrecon wraps a diagonal Mapset as a preconditioner: Apply(r)
// returns diag * r componentwise.
func DiagonalPrecon(diag *Mapset) Precon {
	return Precon{diag: diag}
}

// IsIdentity reports whether this preconditioner is the identity case.
func (p Precon) IsIdentity() bool { return p.diag == nil }

// Apply returns K*r: r unchanged for the identity case, or the componentwise
// product with the diagonal Mapset otherwise.
func (p Precon) Apply(r *Mapset) (*Mapset, error) {
	if p.IsIdentity() {
		return r.Copy(), nil
	}
	return p.diag.Mul(r)
}
