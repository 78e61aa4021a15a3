package pars

// Station is the geometry descriptor for one tracking-detector layer
// (spec.md §3). Stations are ordered by Z; indices [0, NActiveStations)
// are "active" and participate in tracking.
type Station struct {
	// Type tags the detector technology (e.g. silicon tracking station
	// vs RICH/TRD); GeoLayerID is the index of this station in the full
	// geometry, which may include inactive layers the core never sees.
	Type       int
	GeoLayerID int

	Z            float64
	FieldPresent bool
	TimeInfo     bool

	Xmax, Ymax float64

	Field FieldSlice

	// DetectorID is an opaque identifier used only to index
	// per-detector misalignment corrections in Parameters.
	DetectorID int
}
