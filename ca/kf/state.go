package kf

// Parameter indices into State.C, the packed state vector order used
// throughout the core: (x, y, Tx, Ty, Q/p, time, 1/v).
const (
	IX = iota
	IY
	ITx
	ITy
	IQp
	IT
	IVI
	NPars
)

// State is one track's Kalman state at a given z-plane: the parameter
// vector, its 7x7 covariance, and accumulated fit-quality counters
// (spec.md §3 Track, §4.6 TrackFitter).
type State struct {
	X, Y, Tx, Ty, Qp, Time, VI float64

	C [NPars][NPars]float64

	Chi2    float64
	NDF     float64
	NDFTime float64
}

// Vec returns the state's parameter vector in canonical order.
func (s *State) Vec() [NPars]float64 {
	return [NPars]float64{s.X, s.Y, s.Tx, s.Ty, s.Qp, s.Time, s.VI}
}

// SetVec loads the state's parameters from a vector in canonical order.
func (s *State) SetVec(v [NPars]float64) {
	s.X, s.Y, s.Tx, s.Ty, s.Qp, s.Time, s.VI = v[0], v[1], v[2], v[3], v[4], v[5], v[6]
}

// NewSeedState builds a straight-line seed state at (targetX, targetY)
// with Tx = Ty = Q/p = 0: position variances targetSigmaX^2 and
// targetSigmaY^2, unit slope and Q/p variances, and large time and 1/v
// variances. Callers set the direction themselves where they need one
// (triplet seeding points it from the target at the left hit, §4.3).
func NewSeedState(targetX, targetY, targetZ float64, targetSigmaX, targetSigmaY float64) *State {
	s := &State{X: targetX, Y: targetY}
	s.C[IX][IX] = targetSigmaX * targetSigmaX
	s.C[IY][IY] = targetSigmaY * targetSigmaY
	s.C[ITx][ITx] = 1.0
	s.C[ITy][ITy] = 1.0
	s.C[IQp][IQp] = 1.0
	s.C[IT][IT] = 1e6
	s.C[IVI][IVI] = 1e6
	return s
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	c := *s
	return &c
}
