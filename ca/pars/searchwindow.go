package pars

// SearchWindow is a static per-(station, track-group) half-width for the
// doublet/triplet/extension hit search, an alternative to the
// dynamically computed pick/maxDZ-based window (spec.md §6
// devUseParametrisedSearchWindow, ported from
// CaParameters::GetSearchWindow).
type SearchWindow struct {
	Dx, Dy float64
}

// SearchWindow looks up the configured static window for (station,
// group), returning ok=false when Parameters carries no table entry for
// it (either SearchWindows itself is unset, or the entry is the zero
// value), in which case the caller should fall back to its own
// dynamically computed window.
func (p *Parameters) SearchWindow(station, group int) (w SearchWindow, ok bool) {
	if station < 0 || station >= len(p.SearchWindows) {
		return SearchWindow{}, false
	}
	row := p.SearchWindows[station]
	if group < 0 || group >= len(row) {
		return SearchWindow{}, false
	}
	w = row[group]
	if w.Dx == 0 && w.Dy == 0 {
		return SearchWindow{}, false
	}
	return w, true
}
