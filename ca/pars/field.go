package pars

// FieldSlice is a polynomial approximation of the magnetic field
// (Bx, By, Bz) as a function of (x, y) at one station's z plane
// (spec.md §3). Coefficients are laid out in triangular order: term
// (i,j) with i+j <= Order contributes coefficient[idx]*x^i*y^j, idx
// running i=0..Order, j=0..Order-i, in that nesting order.
type FieldSlice struct {
	Z     float64
	Order int
	Cx    []float64
	Cy    []float64
	Cz    []float64
}

// NofFieldApproxCoefficients returns the number of triangular terms for a
// given polynomial order, matching CaDefs.h's MaxNFieldApproxCoefficients
// formula generalised to an arbitrary order.
func NofFieldApproxCoefficients(order int) int {
	return (order + 1) * (order + 2) / 2
}

// Value evaluates the field slice at (x, y).
func (f FieldSlice) Value(x, y float64) (bx, by, bz float64) {
	idx := 0
	for i := 0; i <= f.Order; i++ {
		xi := pow(x, i)
		for j := 0; j <= f.Order-i; j++ {
			term := xi * pow(y, j)
			if idx < len(f.Cx) {
				bx += f.Cx[idx] * term
			}
			if idx < len(f.Cy) {
				by += f.Cy[idx] * term
			}
			if idx < len(f.Cz) {
				bz += f.Cz[idx] * term
			}
			idx++
		}
	}
	return bx, by, bz
}

func pow(v float64, n int) float64 {
	r := 1.0
	for i := 0; i < n; i++ {
		r *= v
	}
	return r
}

// ZeroField returns a FieldSlice that always evaluates to (0,0,0), used
// for stations/regions outside the magnet (spec.md §3 "field-present
// flag").
func ZeroField(z float64) FieldSlice {
	return FieldSlice{Z: z, Order: 0, Cx: []float64{0}, Cy: []float64{0}, Cz: []float64{0}}
}
