package pars

import "github.com/grailbio/base/errors"

// Parameters is the single configuration object shared read-only by every
// worker thread (spec.md §5, §6). It is built once via NewParameters (or
// directly as a struct literal by trusted callers, e.g. tests) and never
// mutated afterwards.
type Parameters struct {
	Stations          []Station
	NActiveStations   int
	Iterations        []Iteration
	NHitKeys          int
	// FieldApproxOrder truncates every FieldRegion fit to this z-polynomial
	// degree (0: constant, 1: linear, 2: full quadratic), read by
	// ca/finder, ca/extend, ca/fit and ca/merge wherever they build a
	// kf.FieldRegion (spec.md §6, §9).
	FieldApproxOrder int
	// GhostSuppression is the run-wide master switch for the 3-hit
	// branch survival policy: false disables every iteration's
	// Iteration.GhostSuppressed regardless of its own setting (ca/finder's
	// allowThreeHit).
	GhostSuppression bool
	DefaultMass      float32
	RandomSeed       int32

	MaxDoubletsPerSinglet uint32
	MaxTripletPerDoublets uint32

	MisalignmentX []float32
	MisalignmentY []float32
	MisalignmentT []float32

	// DevIgnoreHitSearchAreas switches every grid.Area query in
	// ca/triplet and ca/extend into grid.Area.LoopOverEntireGrid, so
	// every hit on the target station is visited instead of only those
	// inside the computed search window -- useful for isolating whether
	// a missed hit is a window-sizing bug or a chi2-cut rejection.
	DevIgnoreHitSearchAreas bool
	// DevUseOriginalField forces every FieldRegion sample in ca/finder,
	// ca/extend, ca/fit and ca/merge to be taken at the real (x,y) of the
	// trajectory under consideration instead of the field origin (0,0),
	// at the cost of rebuilding the FieldRegion per hit/step rather than
	// sharing one per station triple.
	DevUseOriginalField bool
	// DevUseParametrisedSearchWindow switches ca/triplet and ca/extend
	// from their dynamically computed pick/maxDZ search window to the
	// static per-(station,track-group) entry in SearchWindows, when one
	// is configured for the (station, Iteration.TrackGroup) pair
	// (mirroring the original's CaParameters::GetSearchWindow).
	DevUseParametrisedSearchWindow bool
	// SearchWindows is indexed [station][Iteration.TrackGroup]; read only
	// when DevUseParametrisedSearchWindow is set. A missing row, a group
	// index past the row's end, or a zero-value entry all fall back to
	// the dynamic window.
	SearchWindows [][]SearchWindow

	TargetX, TargetY, TargetZ float64
	TargetSigmaX, TargetSigmaY float64
}

// Option mutates a Parameters under construction, following the
// functional-options style of markduplicates.Opts in the teacher repo.
type Option func(*Parameters)

// WithMaxDoublets overrides the default per-singlet doublet cap (§6).
func WithMaxDoublets(n uint32) Option {
	return func(p *Parameters) { p.MaxDoubletsPerSinglet = n }
}

// WithMaxTripletsPerDoublet overrides the default per-doublet triplet cap.
func WithMaxTripletsPerDoublet(n uint32) Option {
	return func(p *Parameters) { p.MaxTripletPerDoublets = n }
}

// WithGhostSuppression toggles the ghost-suppression policy (§6).
func WithGhostSuppression(on bool) Option {
	return func(p *Parameters) { p.GhostSuppression = on }
}

// NewParameters builds a Parameters from a geometry (stations, ordered by
// Z) and a list of tracking iterations, applying defaults matching §6 and
// then any supplied options.
func NewParameters(stations []Station, iterations []Iteration, nHitKeys int, opts ...Option) (*Parameters, error) {
	if len(stations) == 0 {
		return nil, errors.E(errors.Precondition, "pars.NewParameters: at least one station is required")
	}
	if len(stations) > MaxStations {
		return nil, errors.E(errors.Precondition, "pars.NewParameters: too many stations for the 6-bit station id")
	}
	if nHitKeys < 0 {
		return nil, errors.E(errors.Precondition, "pars.NewParameters: nHitKeys must be non-negative")
	}
	p := &Parameters{
		Stations:              stations,
		NActiveStations:       len(stations),
		Iterations:             iterations,
		NHitKeys:               nHitKeys,
		FieldApproxOrder:       2,
		MaxDoubletsPerSinglet:  150,
		MaxTripletPerDoublets:  15,
		GhostSuppression:       true,
		DefaultMass:            0.105658375523, // muon, spec.md §6 default
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}
