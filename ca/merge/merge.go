// Package merge implements CloneMerger (spec.md §4.7): pairs short
// tracks with compatible kinematics across a station gap and fuses them
// into one longer track.
package merge

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/cbm-reco/catrack/ca/kf"
	"github.com/cbm-reco/catrack/ca/pars"
	"github.com/cbm-reco/catrack/ca/track"
	"github.com/cbm-reco/catrack/ca/window"
)

const chi2Accept = 50.0
const timeSigmaCut = 3.0

// Merger is the reusable, per-thread CloneMerger.
type Merger struct {
	p *pars.Parameters
}

// New returns a Merger bound to the shared Parameters.
func New(p *pars.Parameters) *Merger { return &Merger{p: p} }

type link struct {
	neighbour int
	upstream  bool // true if this track is the upstream member of the pair
	chi2      float64
}

// MergeClones implements spec.md §4.7. It mutates st.RecoTracks and
// st.RecoHitIndices in place: merged tracks absorb their neighbour's
// hits and the neighbour's Track record is dropped from the output.
func (m *Merger) MergeClones(st *window.State) {
	n := len(st.RecoTracks)
	if n < 2 {
		return
	}
	offsets := hitOffsets(st.RecoTracks)

	best := make([]link, n)
	for i := range best {
		best[i] = link{neighbour: -1}
	}

	nMax := m.p.NActiveStations - 3
	for i := 0; i < n; i++ {
		ti := &st.RecoTracks[i]
		if ti.NHits > nMax {
			continue
		}
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			tj := &st.RecoTracks[j]
			if tj.NHits > nMax {
				continue
			}
			if ti.FirstStation <= tj.LastStation {
				continue // need ti strictly downstream of tj
			}
			varI := ti.Last.C[kf.IT][kf.IT]
			varJ := tj.Last.C[kf.IT][kf.IT]
			if math.Abs(ti.LastHitTime-tj.LastHitTime) > timeSigmaCut*math.Sqrt(varI+varJ) {
				continue
			}

			chi2 := m.mergeChi2(ti, tj)
			if chi2 >= chi2Accept {
				continue
			}
			if best[i].neighbour == -1 || chi2 < best[i].chi2 {
				best[i] = link{neighbour: j, upstream: false, chi2: chi2}
			}
			if best[j].neighbour == -1 || chi2 < best[j].chi2 {
				best[j] = link{neighbour: i, upstream: true, chi2: chi2}
			}
		}
	}

	consumed := make([]bool, n)
	var mergedTracks []track.Track
	var mergedHits []int32

	for i := 0; i < n; i++ {
		if consumed[i] {
			continue
		}
		consumed[i] = true
		tr := st.RecoTracks[i]
		hits := append([]int32(nil), st.RecoHitIndices[offsets[i]:offsets[i]+tr.NHits]...)

		if nb := best[i].neighbour; nb != -1 && !consumed[nb] && mutual(best, i, nb) {
			consumed[nb] = true
			other := st.RecoTracks[nb]
			otherHits := st.RecoHitIndices[offsets[nb] : offsets[nb]+other.NHits]
			if best[i].upstream {
				hits = append(append([]int32(nil), hits...), otherHits...)
				tr.LastStation = other.LastStation
				tr.Last = other.Last
			} else {
				combined := append([]int32(nil), otherHits...)
				hits = append(combined, hits...)
				tr.FirstStation = other.FirstStation
				tr.First = other.First
			}
			tr.NHits = len(hits)
		}

		mergedTracks = append(mergedTracks, tr)
		mergedHits = append(mergedHits, hits...)
	}

	st.RecoTracks = mergedTracks
	st.RecoHitIndices = mergedHits
}

func mutual(best []link, i, j int) bool {
	return best[j].neighbour == i
}

func hitOffsets(tracks []track.Track) []int {
	offsets := make([]int, len(tracks))
	acc := 0
	for i, t := range tracks {
		offsets[i] = acc
		acc += t.NHits
	}
	return offsets
}

// mergeChi2 propagates both tracks to a common midpoint z and computes
// the chi2 of merging their 5-parameter (x,y,Tx,Ty,Qp) states via a
// Cholesky-inverted sum of covariances (spec.md §4.7).
func (m *Merger) mergeChi2(downstream, upstream *track.Track) float64 {
	midZ := (m.p.Stations[downstream.FirstStation].Z + m.p.Stations[upstream.LastStation].Z) / 2

	x, y := 0.0, 0.0
	if m.p.DevUseOriginalField {
		x, y = 0.5*(downstream.First.X+upstream.Last.X), 0.5*(downstream.First.Y+upstream.Last.Y)
	}
	field := m.midField(upstream.LastStation, downstream.FirstStation, midZ, x, y)

	sDown := downstream.First.Clone()
	kf.Extrapolate(sDown, m.p.Stations[downstream.FirstStation].Z, midZ, field)

	sUp := upstream.Last.Clone()
	kf.Extrapolate(sUp, m.p.Stations[upstream.LastStation].Z, midZ, field)

	const dim = 5
	idx := [dim]int{kf.IX, kf.IY, kf.ITx, kf.ITy, kf.IQp}

	diff := mat.NewVecDense(dim, nil)
	sum := mat.NewSymDense(dim, nil)
	for a := 0; a < dim; a++ {
		va := sDown.Vec()[idx[a]] - sUp.Vec()[idx[a]]
		diff.SetVec(a, va)
		for b := a; b < dim; b++ {
			v := sDown.C[idx[a]][idx[b]] + sUp.C[idx[a]][idx[b]]
			sum.SetSym(a, b, v)
		}
	}

	var chol mat.Cholesky
	ok := chol.Factorize(sum)
	var inv mat.SymDense
	if ok {
		if err := chol.InverseTo(&inv); err != nil {
			ok = false
		}
	}
	if !ok {
		// Clamp any near-singular diagonal to the spec's floor and
		// retry with a regularised matrix rather than fail the pair
		// (spec.md §4.7 "if a diagonal would be < 1e-12, clamp").
		for a := 0; a < dim; a++ {
			if sum.At(a, a) < 1e-12 {
				sum.SetSym(a, a, 1e-12)
			}
		}
		if !chol.Factorize(sum) {
			return math.Inf(1)
		}
		if err := chol.InverseTo(&inv); err != nil {
			return math.Inf(1)
		}
	}

	var tmp mat.VecDense
	tmp.MulVec(&inv, diff)
	return mat.Dot(diff, &tmp)
}

func (m *Merger) midField(sUp, sDown int, midZ, x, y float64) kf.FieldRegion {
	a := &m.p.Stations[sUp]
	b := &m.p.Stations[sDown]
	bxa, bya, bza := a.Field.Value(x, y)
	bxb, byb, bzb := b.Field.Value(x, y)
	return kf.FitFieldRegion(
		kf.FieldPoint{Z: a.Z, Bx: bxa, By: bya, Bz: bza},
		kf.FieldPoint{Z: midZ, Bx: (bxa + bxb) / 2, By: (bya + byb) / 2, Bz: (bza + bzb) / 2},
		kf.FieldPoint{Z: b.Z, Bx: bxb, By: byb, Bz: bzb},
		m.p.FieldApproxOrder,
	)
}
