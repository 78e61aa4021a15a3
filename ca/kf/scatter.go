package kf

import "math"

// ApplyMultipleScattering adds the Highland-formula scattering angle
// variance to the slope covariances (spec.md §4.3 doublet step 5, §4.6
// backward/forward pass) for a thin scatterer of thickness
// radiationLength in units of X0.
func ApplyMultipleScattering(s *State, radiationLength float64) {
	if radiationLength <= 0 {
		return
	}
	p := 1.0
	if s.Qp != 0 {
		p = math.Abs(1.0 / s.Qp)
	}
	t2 := 1 + s.Tx*s.Tx + s.Ty*s.Ty
	theta0 := (0.0136 / p) * math.Sqrt(radiationLength*t2) * (1 + 0.038*math.Log(radiationLength*t2))
	if theta0 < 0 {
		theta0 = 0
	}
	varMS := theta0 * theta0
	s.C[ITx][ITx] += varMS * (1 + s.Tx*s.Tx)
	s.C[ITy][ITy] += varMS * (1 + s.Ty*s.Ty)
}

// ApplyEnergyLoss applies a direction-dependent dE/dx correction to Q/p
// (spec.md §4.6 "energy-loss correction (direction-dependent sign)"):
// dir=+1 for the backward (downstream-seeded, propagating upstream) pass
// lowers |p| by the loss, dir=-1 for the forward pass raises |p| by the
// same amount.
func ApplyEnergyLoss(s *State, radiationLength float64, dir int) {
	if radiationLength <= 0 {
		return
	}
	const dEdXPerX0 = 2.0e-3 // fractional momentum loss per unit X0, thin-material approximation
	sign := 1.0
	if s.Qp < 0 {
		sign = -1.0
	}
	loss := dEdXPerX0 * radiationLength * float64(dir)
	p := 1e9
	if s.Qp != 0 {
		p = math.Abs(1.0 / s.Qp)
	}
	p -= loss
	if p < 1e-3 {
		p = 1e-3
	}
	s.Qp = sign / p
}
