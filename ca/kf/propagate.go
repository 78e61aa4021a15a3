package kf

import "math"

// cLight is the standard c*charge-normalisation constant converting
// Q/p [ (GeV/c)^-1 ] and B [kG] into a track curvature in 1/cm, the same
// constant used throughout the ALICE/CBM family of track fitters.
const cLight = 0.000299792458

// derivatives evaluates d(x,y,Tx,Ty)/dz of the charged-particle equation
// of motion in a magnetic field, parametrised by z (spec.md §4.6 "3-point
// polynomial field region"). At B=0 all Tx/Ty derivatives vanish and the
// trajectory is the straight line x=x0+Tx*dz, y=y0+Ty*dz (spec.md §8 S1).
func derivatives(tx, ty, qp, bx, by, bz float64) (dtx, dty float64) {
	t := math.Sqrt(1 + tx*tx + ty*ty)
	k := cLight * qp * t
	dtx = k * (ty*(tx*bx+bz) - (1+tx*tx)*by)
	dty = k * (-tx*(ty*by+bz) + (1+ty*ty)*bx)
	return dtx, dty
}

// step advances (x,y,Tx,Ty) by dz using RK4 against the field region,
// leaving Q/p unchanged (elastic propagation; energy loss is applied
// separately via ApplyEnergyLoss).
func step(x, y, tx, ty, qp float64, z, dz float64, field FieldRegion) (nx, ny, ntx, nty float64) {
	eval := func(zz, txx, tyy float64) (dx, dy, dtxx, dtyy float64) {
		bx, by, bz := field.At(zz)
		dtxx, dtyy = derivatives(txx, tyy, qp, bx, by, bz)
		return txx, tyy, dtxx, dtyy
	}

	k1x, k1y, k1tx, k1ty := eval(z, tx, ty)
	k2x, k2y, k2tx, k2ty := eval(z+dz/2, tx+dz/2*k1tx, ty+dz/2*k1ty)
	k3x, k3y, k3tx, k3ty := eval(z+dz/2, tx+dz/2*k2tx, ty+dz/2*k2ty)
	k4x, k4y, k4tx, k4ty := eval(z+dz, tx+dz*k3tx, ty+dz*k3ty)

	nx = x + dz/6*(k1x+2*k2x+2*k3x+k4x)
	ny = y + dz/6*(k1y+2*k2y+2*k3y+k4y)
	ntx = tx + dz/6*(k1tx+2*k2tx+2*k3tx+k4tx)
	nty = ty + dz/6*(k1ty+2*k2ty+2*k3ty+k4ty)
	return
}

// Extrapolate propagates the state from its current plane (at z zFrom)
// to zTo through field, transporting the covariance with a numerical
// (one-sided forward-difference) Jacobian of the (x,y,Tx,Ty,Q/p) map --
// the closed form Jacobian of the RK4 step is a lengthy polynomial in the
// field coefficients that buys no clarity over a finite-difference
// estimate at this track-level (not per-hit-in-a-tight-loop) granularity.
func Extrapolate(s *State, zFrom, zTo float64, field FieldRegion) {
	dz := zTo - zFrom
	if dz == 0 {
		return
	}

	f := func(v [NPars]float64) [NPars]float64 {
		nx, ny, ntx, nty := step(v[IX], v[IY], v[ITx], v[ITy], v[IQp], zFrom, dz, field)
		out := v
		out[IX], out[IY], out[ITx], out[ITy] = nx, ny, ntx, nty
		tAvg := math.Sqrt(1 + v[ITx]*v[ITx] + v[ITy]*v[ITy])
		out[IT] = v[IT] + v[IVI]*tAvg*dz
		return out
	}

	v0 := s.Vec()
	v1 := f(v0)

	var jac [NPars][NPars]float64
	const eps = 1e-6
	for j := 0; j < NPars; j++ {
		if j == IT || j == IVI {
			jac[j][j] = 1
			continue
		}
		vp := v0
		step := eps
		if j == IQp {
			step = eps * 1e-2
		}
		vp[j] += step
		fp := f(vp)
		for i := 0; i < NPars; i++ {
			jac[i][j] = (fp[i] - v1[i]) / step
		}
	}
	jac[IT][IT] = 1
	jac[IVI][IVI] = 1
	jac[IT][ITx] = 0
	jac[IT][ITy] = 0

	s.C = transportCov(s.C, jac)
	s.SetVec(v1)
}

// transportCov applies C' = F C F^T.
func transportCov(c [NPars][NPars]float64, f [NPars][NPars]float64) [NPars][NPars]float64 {
	var fc [NPars][NPars]float64
	for i := 0; i < NPars; i++ {
		for j := 0; j < NPars; j++ {
			var sum float64
			for k := 0; k < NPars; k++ {
				sum += f[i][k] * c[k][j]
			}
			fc[i][j] = sum
		}
	}
	var out [NPars][NPars]float64
	for i := 0; i < NPars; i++ {
		for j := 0; j < NPars; j++ {
			var sum float64
			for k := 0; k < NPars; k++ {
				sum += fc[i][k] * f[j][k]
			}
			out[i][j] = sum
		}
	}
	return out
}
