package kf

// minPivot is the Cholesky/determinant clamp floor (spec.md §4.3 "if any
// covariance diagonal goes negative", §7 "Cholesky pivot below 1e-12:
// clamp pivot; continue").
const minPivot = 1e-12

// FilterXY performs the Kalman update of the (x,y) state components
// against a 2-D measurement with covariance (dx2, dy2, dxy), returning
// the chi2 of the residual. It is used for hit updates (§4.3 doublet/
// triplet steps, §4.6 fit passes) and for the primary-vertex target
// constraint (§4.3 "A Kalman update against the target position").
func (s *State) FilterXY(mx, my, dx2, dy2, dxy float64) float64 {
	rx := mx - s.X
	ry := my - s.Y

	sxx := s.C[IX][IX] + dx2
	syy := s.C[IY][IY] + dy2
	sxy := s.C[IX][IY] + dxy

	det := sxx*syy - sxy*sxy
	if det < minPivot {
		det = minPivot
	}
	ixx := syy / det
	iyy := sxx / det
	ixy := -sxy / det

	chi2 := rx*rx*ixx + 2*rx*ry*ixy + ry*ry*iyy
	if chi2 < 0 || chi2 != chi2 { // guard against NaN from a degenerate update
		chi2 = 0
	}

	var kx, ky [NPars]float64
	for i := 0; i < NPars; i++ {
		kx[i] = s.C[i][IX]*ixx + s.C[i][IY]*ixy
		ky[i] = s.C[i][IX]*ixy + s.C[i][IY]*iyy
	}

	v := s.Vec()
	for i := 0; i < NPars; i++ {
		v[i] += kx[i]*rx + ky[i]*ry
	}
	s.SetVec(v)

	var newC [NPars][NPars]float64
	for i := 0; i < NPars; i++ {
		for j := 0; j < NPars; j++ {
			newC[i][j] = s.C[i][j] - (kx[i]*s.C[IX][j] + ky[i]*s.C[IY][j])
		}
	}
	s.C = newC
	s.Chi2 += chi2
	s.NDF += 2
	return chi2
}

// FilterTime performs the scalar Kalman update of the time component
// against a time measurement with variance dt2 (spec.md §4.3 step 1,
// §4.6). When a station carries no time information the caller must
// skip this call and NDFTime is not incremented (spec.md §7).
func (s *State) FilterTime(mt, dt2 float64) float64 {
	r := mt - s.Time
	sVar := s.C[IT][IT] + dt2
	if sVar < minPivot {
		sVar = minPivot
	}
	chi2 := r * r / sVar
	k := make([]float64, NPars)
	for i := 0; i < NPars; i++ {
		k[i] = s.C[i][IT] / sVar
	}
	v := s.Vec()
	for i := 0; i < NPars; i++ {
		v[i] += k[i] * r
	}
	s.SetVec(v)
	var newC [NPars][NPars]float64
	for i := 0; i < NPars; i++ {
		for j := 0; j < NPars; j++ {
			newC[i][j] = s.C[i][j] - k[i]*s.C[IT][j]
		}
	}
	s.C = newC
	s.Chi2 += chi2
	s.NDFTime++
	return chi2
}

// Chi2XY computes the chi2 of a candidate (x,y) measurement against the
// current state without applying the update (spec.md §4.3 doublet/triplet
// gating: "compute chi2_xy ... accept if both < cut").
func (s *State) Chi2XY(mx, my, dx2, dy2, dxy float64) float64 {
	rx := mx - s.X
	ry := my - s.Y
	sxx := s.C[IX][IX] + dx2
	syy := s.C[IY][IY] + dy2
	sxy := s.C[IX][IY] + dxy
	det := sxx*syy - sxy*sxy
	if det < minPivot {
		det = minPivot
	}
	ixx := syy / det
	iyy := sxx / det
	ixy := -sxy / det
	chi2 := rx*rx*ixx + 2*rx*ry*ixy + ry*ry*iyy
	if chi2 < 0 || chi2 != chi2 {
		return 0
	}
	return chi2
}

// Chi2XU decomposes the correlated (x,y) residual into two independent
// components via the Cholesky/Schur-complement decorrelation of the 2x2
// covariance: chi2x gates the raw x residual, and chi2u gates the y
// residual conditioned on x. The two are independent and chi2x+chi2u
// equals Chi2XY's combined value, but spec.md §4.3's doublet step gates
// them separately ("compute chi2_xy and chi2_u; accept if both <
// doubletChi2Cut") rather than jointly. With the same cut value this is
// a looser test than cutting on their sum: each term may approach the
// cut on its own.
func (s *State) Chi2XU(mx, my, dx2, dy2, dxy float64) (chi2x, chi2u float64) {
	rx := mx - s.X
	ry := my - s.Y
	sxx := s.C[IX][IX] + dx2
	syy := s.C[IY][IY] + dy2
	sxy := s.C[IX][IY] + dxy

	if sxx < minPivot {
		sxx = minPivot
	}
	chi2x = rx * rx / sxx

	su := syy - sxy*sxy/sxx
	if su < minPivot {
		su = minPivot
	}
	ru := ry - (sxy/sxx)*rx
	chi2u = ru * ru / su

	if chi2x < 0 || chi2x != chi2x {
		chi2x = 0
	}
	if chi2u < 0 || chi2u != chi2u {
		chi2u = 0
	}
	return chi2x, chi2u
}
