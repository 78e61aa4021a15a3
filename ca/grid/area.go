package grid

// Area iterates over the grid entries that lie within a rectangle
// centred at (x,y) with half-widths (dx,dy), in row-major order,
// advancing to the next y-row once the current row is exhausted
// (spec.md §4.2 GridArea, ported from CaGridArea.h).
type Area struct {
	grid *Grid

	areaLastBinY     int
	areaNBinsX       int
	areaFirstBin     int
	areaCurrentBinY  int
	curEntry         int32
	entriesXEnd      int32
	gridNBinsX       int
}

// NewArea constructs an Area over g centred at (x,y) with half-widths
// (dx,dy).
func NewArea(g *Grid, x, y, dx, dy float64) *Area {
	binXMin := g.GetBinX(x - dx)
	binXMax := g.GetBinX(x + dx)
	binYMin := g.GetBinY(y - dy)
	binYMax := g.GetBinY(y + dy)

	a := &Area{
		grid:            g,
		gridNBinsX:      g.NofBinsX(),
		areaLastBinY:    binYMax,
		areaNBinsX:      binXMax - binXMin + 1,
		areaCurrentBinY: binYMin,
	}
	a.areaFirstBin = binYMin*a.gridNBinsX + binXMin
	a.curEntry = g.FirstBinEntryIndex(a.areaFirstBin)
	a.entriesXEnd = g.FirstBinEntryIndex(a.areaFirstBin + a.areaNBinsX)
	return a
}

// Next advances to the next grid entry in the area, returning its index
// into grid.Entries() and true, or false once the area is exhausted.
func (a *Area) Next() (int32, bool) {
	xOutOfRange := a.curEntry >= a.entriesXEnd
	for xOutOfRange {
		if a.areaCurrentBinY >= a.areaLastBinY {
			return 0, false
		}
		a.areaCurrentBinY++
		a.areaFirstBin += a.gridNBinsX
		a.curEntry = a.grid.FirstBinEntryIndex(a.areaFirstBin)
		a.entriesXEnd = a.grid.FirstBinEntryIndex(a.areaFirstBin + a.areaNBinsX)
		xOutOfRange = a.curEntry >= a.entriesXEnd
	}
	ind := a.curEntry
	a.curEntry++
	return ind, true
}

// NextEntry is a convenience wrapper returning the Entry itself.
func (a *Area) NextEntry() (Entry, bool) {
	idx, ok := a.Next()
	if !ok {
		return Entry{}, false
	}
	return a.grid.Entries()[idx], true
}

// NextObjectID advances to the next entry in the area, returning its
// original hit index.
func (a *Area) NextObjectID() (int32, bool) {
	idx, ok := a.Next()
	if !ok {
		return 0, false
	}
	return a.grid.Entries()[idx].ObjectID, true
}

// LoopOverEntireGrid switches the area into a debug mode that yields
// every entry in the grid, ignoring the configured rectangle (spec.md
// §4.2, ported from CaGridArea::DoLoopOverEntireGrid).
func (a *Area) LoopOverEntireGrid() {
	a.curEntry = 0
	a.entriesXEnd = int32(len(a.grid.Entries()))
	a.areaLastBinY = 0
	a.areaNBinsX = 0
	a.areaFirstBin = 0
	a.areaCurrentBinY = 0
}
