package pars

// Resource limits ported from CaDefs.h (constants::size). They size the
// packed triplet id of PackTripletID: a (station, index) pair fits into
// 32 bits as station<<TripletBits | index.
const (
	// StationBits is the number of bits used to code a station index.
	StationBits = 6
	// TripletBits is the number of bits used to code a triplet index
	// within one station's triplet array.
	TripletBits = 32 - StationBits

	// MaxStations is the largest number of active stations a single
	// setup may have (2^StationBits).
	MaxStations = 1 << StationBits
	// MaxTripletsPerStation is the largest number of triplets a single
	// station's iteration pass may produce (2^TripletBits).
	MaxTripletsPerStation = 1 << TripletBits

	// MaxTrackGroups bounds the number of search-window parametrisation
	// groups an Iteration may reference (CaParameters.h GetSearchWindow).
	MaxTrackGroups = 4

	// CompetitionLoopMaxPasses is the empirical upper bound on the
	// winner-take-all competition loop (spec.md §9): preserved as a
	// termination guarantee, not tuned away.
	CompetitionLoopMaxPasses = 100

	// MomentumUncertaintyBoost is the "magic correction" added to a
	// triplet's fitted Qp variance (spec.md §4.3, §9). Removing it is
	// reported to raise the ghost-track ratio; retained verbatim.
	MomentumUncertaintyBoost = 0.001
)

// PackTripletID encodes a (station, index) pair into the 32-bit composite
// id used as a triplet-chain neighbour handle (spec.md §9).
func PackTripletID(station, index int) uint32 {
	return uint32(station)<<TripletBits | uint32(index)
}

// UnpackTripletID decodes a composite id produced by PackTripletID.
func UnpackTripletID(id uint32) (station, index int) {
	return int(id >> TripletBits), int(id & (MaxTripletsPerStation - 1))
}
