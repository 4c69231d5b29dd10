// Package srcmodel provides forward-model fillers for cluster (isothermal
// beta) and point-source (Gaussian) profiles. These are leaf numeric
// functions consumed by external source-fitting code; the PCG solver
// never calls them.
package srcmodel

import "math"

// IsobetaParams are the parameters of an isothermal-beta cluster profile:
// center (x0,y0), core radius theta (same units as dx/dy), beta exponent,
// and peak amplitude.
type IsobetaParams struct {
	X0, Y0 float64
	Theta  float64
	Beta   float64
	Amp    float64
}

// FillIsobeta evaluates the isothermal-beta profile
// amp * (1 + rsqr / theta^2) ^ (0.5 - 1.5*beta)
// at every (dx[i], dy[i]) pair, writing into out (which must be at least
// len(dx) long). The x offset is scaled by cos of the profile's
// declination so rsqr measures on-sky distance.
func FillIsobeta(p IsobetaParams, dx, dy []float64, out []float64) {
	exp := 0.5 - 1.5*p.Beta
	thetaSq := p.Theta * p.Theta
	cosdec := math.Cos(p.Y0)
	for i := range dx {
		ddx := (dx[i] - p.X0) * cosdec
		ddy := dy[i] - p.Y0
		r2 := ddx*ddx + ddy*ddy
		out[i] = p.Amp * math.Pow(1+r2/thetaSq, exp)
	}
}

// GaussSrcParams are the parameters of a 2-D Gaussian point-source
// profile: center (x0,y0), standard deviation sigma, peak amplitude.
type GaussSrcParams struct {
	X0, Y0, Sigma, Amp float64
}

// FillGaussSrc evaluates amp * exp(-rsqr / (2*sigma^2)) at every
// (dx[i], dy[i]) pair, writing into out. The x offset carries the same
// cos-declination scaling as FillIsobeta.
func FillGaussSrc(p GaussSrcParams, dx, dy []float64, out []float64) {
	denom := 2 * p.Sigma * p.Sigma
	cosdec := math.Cos(p.Y0)
	for i := range dx {
		ddx := (dx[i] - p.X0) * cosdec
		ddy := dy[i] - p.Y0
		r2 := ddx*ddx + ddy*ddy
		out[i] = p.Amp * math.Exp(-r2/denom)
	}
}
