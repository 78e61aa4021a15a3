package kf

// FieldRegion is a local approximation of (Bx, By, Bz) as a quadratic
// polynomial in z, built from three sampled (z, B) points spanning a
// propagation segment (spec.md §4.3 "propagated ... using a 3-station
// polynomial field approximation", §9 "three distinct field regions").
// Coefficients come from the station parameter block and are never
// recomputed from raw fields at propagation time (spec.md §9).
type FieldRegion struct {
	Z0         float64
	Cx, Cy, Cz [3]float64 // B(z) = c0 + c1*(z-Z0) + c2*(z-Z0)^2
}

// FieldPoint is one (z, B) sample used to build a FieldRegion.
type FieldPoint struct {
	Z          float64
	Bx, By, Bz float64
}

// FitFieldRegion builds the polynomial-in-z approximation through three
// field samples, truncated to the requested order (0: constant at p0,
// 1: linear, 2: full quadratic -- spec.md §6's fieldApproxOrder knob).
// The samples need not be equally spaced.
func FitFieldRegion(p0, p1, p2 FieldPoint, order int) FieldRegion {
	fr := FieldRegion{Z0: p0.Z}
	fr.Cx = quadCoeffs(p0.Z, p1.Z, p2.Z, p0.Bx, p1.Bx, p2.Bx, fr.Z0)
	fr.Cy = quadCoeffs(p0.Z, p1.Z, p2.Z, p0.By, p1.By, p2.By, fr.Z0)
	fr.Cz = quadCoeffs(p0.Z, p1.Z, p2.Z, p0.Bz, p1.Bz, p2.Bz, fr.Z0)
	if order < 2 {
		fr.Cx[2], fr.Cy[2], fr.Cz[2] = 0, 0, 0
	}
	if order < 1 {
		fr.Cx[1], fr.Cy[1], fr.Cz[1] = 0, 0, 0
	}
	return fr
}

// quadCoeffs solves for (c0, c1, c2) such that
// c0 + c1*(z-z0) + c2*(z-z0)^2 interpolates (z0,v0), (z1,v1), (z2,v2).
func quadCoeffs(z0, z1, z2, v0, v1, v2, refZ float64) [3]float64 {
	d1 := z1 - refZ
	d2 := z2 - refZ
	c0 := v0

	// Solve the 2x2 linear system:
	//   c1*d1 + c2*d1^2 = v1 - c0
	//   c1*d2 + c2*d2^2 = v2 - c0
	a11, a12 := d1, d1*d1
	a21, a22 := d2, d2*d2
	b1, b2 := v1-c0, v2-c0

	det := a11*a22 - a12*a21
	if det == 0 {
		// Degenerate sampling (duplicate z): fall back to a linear fit
		// through the first two distinct points.
		if d1 != 0 {
			return [3]float64{c0, b1 / d1, 0}
		}
		if d2 != 0 {
			return [3]float64{c0, b2 / d2, 0}
		}
		return [3]float64{c0, 0, 0}
	}
	c1 := (b1*a22 - a12*b2) / det
	c2 := (a11*b2 - b1*a21) / det
	return [3]float64{c0, c1, c2}
}

// At evaluates the field region at z.
func (f FieldRegion) At(z float64) (bx, by, bz float64) {
	dz := z - f.Z0
	bx = f.Cx[0] + f.Cx[1]*dz + f.Cx[2]*dz*dz
	by = f.Cy[0] + f.Cy[1]*dz + f.Cy[2]*dz*dz
	bz = f.Cz[0] + f.Cz[1]*dz + f.Cz[2]*dz*dz
	return
}

// ZeroFieldRegion is the degenerate field region used outside the magnet
// or for straight-line (no-field) seeding.
func ZeroFieldRegion(z float64) FieldRegion {
	return FieldRegion{Z0: z}
}
