// Package grid implements the per-station 2-D bucket index over hits
// (spec.md §4.2) and its rectangular-area iterator. Grid is built once
// per station per window from WindowState's hit array, compacted in
// place before each later tracking iteration, and queried by ca/triplet
// and ca/extend while walking candidate hits.
package grid
