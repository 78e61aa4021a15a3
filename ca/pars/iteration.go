package pars

// Iteration describes one pass of the cellular-automaton pipeline with a
// specific set of cuts (primary vs secondary, fast vs all, electron vs
// hadron -- spec.md GLOSSARY). TrackFinderWindow runs the configured
// iterations in order for every window.
type Iteration struct {
	Name string

	// FirstStationIndex is the lowest station a left hit may start a
	// triplet chain from in this iteration.
	FirstStationIndex int
	// MaxStationGap bounds how many stations may be skipped between two
	// hits belonging to the same track (spec.md §8, property 2).
	MaxStationGap int

	// Primary marks this iteration as a primary-vertex iteration: the
	// target constraint is always applied and short (3-hit) branches are
	// allowed without the secondary-track survival policy of
	// §4.4(d)/CreateTrackCandidates.
	Primary bool
	// ElectronFlag marks an electron-hypothesis pass. It is carried as
	// configuration only: no component reads it, and scattering and
	// energy loss are computed the same way with or without it.
	ElectronFlag bool

	DoubletChi2Cut      float64
	TripletChi2Cut      float64
	TripletFinalChi2Cut float64
	TripletLinkChi2     float64
	TrackChi2Cut        float64 // compared against TrackChi2Cut * ndf

	MaxSlope float64 // |Tx|, |Ty| rejection bound (§4.3 triplet step)

	MinNHits         int
	MinNHitsStation0 int

	// TargetSigmaX/Y configure the primary-vertex Kalman constraint
	// incorporated at the start of triplet seeding (§4.3).
	TargetSigmaX, TargetSigmaY float64
	// UseVertexField selects the vertex-to-left-hit field region over
	// the first-station-to-left-hit one when seeding (§4.3, §9).
	UseVertexField bool

	// Pick and MaxDZ parametrise the doublet/triplet search-window size
	// (§4.3 "dx = sqrt(pick*C00) + grid.MaxRangeX + maxDZ*|Tx|").
	Pick  float64
	MaxDZ float64

	// PickGather and ExtendMaxDZ parametrise TrackExtender's gather
	// window (§4.5).
	PickGather  float64
	ExtendMaxDZ float64

	ExtendTracks    bool // run TrackExtender on survivors of this pass
	GhostSuppressed bool // apply the 3-hit primary/secondary survival policy

	// TrackGroup selects which row of Parameters.SearchWindows this
	// iteration reads from when Parameters.DevUseParametrisedSearchWindow
	// is set, mirroring the original's per-(station,track-group) static
	// window table (CaParameters::GetSearchWindow).
	TrackGroup int
}
